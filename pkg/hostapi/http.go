package hostapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manifesto-ai/intentcore/pkg/core"
	"github.com/manifesto-ai/intentcore/pkg/proposal"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Server is the gin adapter over an Engine: one handler per route,
// JSON request/response, slog.Error on failure. The HTTP surface is
// fixed and small: submit an intent, read a world, explain a path,
// read a proposal.
type Server struct {
	Engine *Engine
	Router *gin.Engine
}

// NewServer builds a gin.Engine with the routes wired to engine, plus
// a /metrics endpoint. gin.Default() (not gin.New()) keeps the
// recovery + logger middleware pair.
func NewServer(engine *Engine) *Server {
	router := gin.Default()
	s := &Server{Engine: engine, Router: router}

	router.POST("/intents", s.submitIntent)
	router.GET("/worlds/:id", s.getWorld)
	router.GET("/worlds/:id/explain", s.explainWorld)
	router.GET("/proposals/:id", s.getProposal)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

type submitIntentRequest struct {
	Actor     string         `json:"actor" binding:"required"`
	Action    string         `json:"action" binding:"required"`
	Input     map[string]any `json:"input"`
	BaseWorld string         `json:"baseWorld" binding:"required"`
}

func (s *Server) submitIntent(c *gin.Context) {
	var req submitIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}

	input := value.FromGo(map[string]any(req.Input))
	p, err := s.Engine.SubmitIntent(c.Request.Context(), req.Actor, req.Action, input, req.BaseWorld)
	if err != nil {
		s.Engine.Logger.Error("hostapi: submit intent failed", "actor", req.Actor, "action", req.Action, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, proposalJSON(p))
}

func (s *Server) getWorld(c *gin.Context) {
	worldID := c.Param("id")
	snap, err := s.Engine.Worlds.Restore(worldID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	w, _ := s.Engine.Worlds.Get(worldID)
	c.JSON(http.StatusOK, gin.H{
		"worldId":    w.WorldID,
		"schemaHash": w.SchemaHash,
		"createdAt":  w.CreatedAt,
		"createdBy":  w.CreatedBy,
		"data":       value.ToGo(snap.Data),
	})
}

// explainWorld is core.Explain exposed over HTTP: ?path=
// selects a dotted snapshot path, e.g. "computed.openTaskCount" to see
// how a computed field was derived, or a plain "data.foo" for a bare
// value lookup.
func (s *Server) explainWorld(c *gin.Context) {
	worldID := c.Param("id")
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing required query param: path"})
		return
	}
	snap, err := s.Engine.Worlds.Restore(worldID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	res := core.Explain(s.Engine.Host.Schema(), snap, path)
	c.JSON(http.StatusOK, gin.H{
		"path":  path,
		"value": value.ToGo(res.Value),
		"deps":  res.Deps,
	})
}

func (s *Server) getProposal(c *gin.Context) {
	p, ok := s.Engine.Proposals.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no such proposal: " + c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, proposalJSON(p))
}

func proposalJSON(p proposal.Proposal) gin.H {
	return gin.H{
		"proposalId":   p.ProposalID,
		"executionKey": p.ExecutionKey,
		"actor":        p.Actor,
		"action":       p.Intent.Type,
		"intentId":     p.Intent.IntentID,
		"baseWorld":    p.BaseWorld,
		"status":       string(p.Status),
		"submittedAt":  p.SubmittedAt,
		"decisionId":   p.DecisionID,
		"resultWorld":  p.ResultWorld,
	}
}
