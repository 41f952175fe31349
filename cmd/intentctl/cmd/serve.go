package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/manifesto-ai/intentcore/internal/sampledomain"
	"github.com/manifesto-ai/intentcore/pkg/bridge"
	effecthttp "github.com/manifesto-ai/intentcore/pkg/effecthandlers/http"
	"github.com/manifesto-ai/intentcore/pkg/host"
	"github.com/manifesto-ai/intentcore/pkg/hostapi"
	"github.com/manifesto-ai/intentcore/pkg/hostapi/metrics"
	"github.com/manifesto-ai/intentcore/pkg/proposal"
	"github.com/manifesto-ai/intentcore/pkg/schema"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
	"github.com/manifesto-ai/intentcore/pkg/world"
)

var (
	serveAddr       string
	serveSchemaPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a standalone intent-execution host over HTTP",
	Long: `serve boots a Host, an in-memory world store seeded with a root world,
and the hostapi HTTP surface (POST /intents, GET /worlds/:id, GET /proposals/:id,
GET /metrics). With no --schema it runs the bundled task-list sample domain.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	serveCmd.Flags().StringVar(&serveSchemaPath, "schema", "", "path to a YAML domain schema document (defaults to the bundled sample domain)")
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracing := hostapi.NewTracerProvider(logger)
	defer shutdownTracing(context.Background())

	domainSchema, err := loadSchema(serveSchemaPath)
	if err != nil {
		return fmt.Errorf("intentctl: load schema: %w", err)
	}

	h := host.New(domainSchema, nil, nil, nil, logger)
	httpHandler := effecthttp.NewHandler(effecthttp.Config{})
	h.RegisterEffect("api:fetch", httpHandler)
	h.RegisterEffect("http.request", httpHandler)
	worlds := world.NewMemoryStore(4)

	root := world.World{WorldID: "root", SchemaHash: domainSchema.Hash, SnapshotHash: domainSchema.Hash, CreatedAt: 0}
	rootSnap := snapshot.Snapshot{Data: value.Object(nil)}
	if err := worlds.Store(root, nil, rootSnap); err != nil {
		return fmt.Errorf("intentctl: seed root world: %w", err)
	}

	engine := hostapi.NewEngine(h, worlds, proposal.AutoApprove{}, metrics.New(prometheus.DefaultRegisterer), logger)

	// Projection bridge over the server's world line: every completed
	// proposal's terminal snapshot is published to subscribers. The one
	// subscriber this process itself attaches logs the update; UI
	// adapters would attach theirs the same way.
	br := bridge.New("serve", rootSnap, h)
	defer br.Dispose()
	unsubscribe := br.Subscribe(func(snap snapshot.Snapshot) {
		logger.Info("projection: snapshot updated", "version", snap.Meta.Version, "hash", snapshot.Hash(snap))
	})
	defer unsubscribe()
	engine.OnResult = func(_ world.World, snap snapshot.Snapshot) {
		br.Publish(snap)
	}

	server := hostapi.NewServer(engine)

	logger.Info("intentctl: serving", "addr", serveAddr, "rootWorld", root.WorldID, "schema", domainSchema.ID)
	return server.Router.Run(serveAddr)
}

func loadSchema(path string) (*schema.DomainSchema, error) {
	if path == "" {
		return sampledomain.Schema(), nil
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema document: %w", err)
	}
	return schema.Load(doc)
}
