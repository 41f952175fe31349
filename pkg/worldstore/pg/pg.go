// Package pg implements an optional durable world.Store backed by
// Postgres: a pooled *sql.DB over the same append-only worlds/deltas
// edge shape the in-memory store keeps, which remains the reference
// implementation every other package is written against.
package pg

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/creasty/defaults"
	_ "github.com/lib/pq"

	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
	"github.com/manifesto-ai/intentcore/pkg/world"
)

// Config carries the connection string and pool sizing, defaulted the
// same way pkg/schema.Load defaults a domain document:
// creasty/defaults fills the pool-sizing knobs, the caller is
// responsible for a non-empty ConnectionString.
type Config struct {
	ConnectionString  string `default:""`
	MaxOpenConns      int    `default:"10"`
	MaxIdleConns      int    `default:"5"`
	ConnMaxLifetimeMS int    `default:"300000"`
	HorizonEvery      int    `default:"4"`
}

// Store is a world.Store backed by three append-only tables: worlds,
// deltas (one row per non-root world, keyed by its own world id), and
// horizons (a materialized canonical snapshot, cached every
// HorizonEvery hops along a world's parent chain — the same bound
// world.MemoryStore enforces in memory).
type Store struct {
	db           *sql.DB
	horizonEvery int
	logger       *slog.Logger
}

// Open validates cfg, applies its defaults, opens a pooled connection
// and verifies it with Ping.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("worldstore/pg: apply config defaults: %w", err)
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("worldstore/pg: connection_string is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("worldstore/pg: open connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMS) * time.Millisecond)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("worldstore/pg: ping: %w", err)
	}

	logger.Info("worldstore/pg: connected", "connection", maskConnectionString(cfg.ConnectionString))
	return &Store{db: db, horizonEvery: cfg.HorizonEvery, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the worlds/deltas/horizons tables if they don't
// already exist. Kept separate from Open so callers running their own
// migration tooling can skip it.
func (s *Store) Migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worlds (
			world_id TEXT PRIMARY KEY,
			schema_hash TEXT NOT NULL,
			snapshot_hash TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			created_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS deltas (
			to_world TEXT PRIMARY KEY REFERENCES worlds(world_id),
			from_world TEXT NOT NULL,
			patches JSONB NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS horizons (
			world_id TEXT PRIMARY KEY REFERENCES worlds(world_id),
			data JSONB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("worldstore/pg: migrate: %w", err)
		}
	}
	return nil
}

// Store records the world/delta edge in a single transaction and
// materializes a horizon snapshot when delta is nil (a root world) or
// the hop-distance since the nearest existing horizon reaches
// horizonEvery.
func (s *Store) Store(w world.World, delta *world.WorldDelta, snap snapshot.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("worldstore/pg: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO worlds (world_id, schema_hash, snapshot_hash, created_at, created_by) VALUES ($1,$2,$3,$4,$5)`,
		w.WorldID, w.SchemaHash, w.SnapshotHash, w.CreatedAt, w.CreatedBy,
	); err != nil {
		return fmt.Errorf("worldstore/pg: insert world: %w", err)
	}

	if delta != nil {
		patchJSON, err := marshalPatches(delta.Patches)
		if err != nil {
			return fmt.Errorf("worldstore/pg: marshal patches: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO deltas (to_world, from_world, patches, created_at) VALUES ($1,$2,$3,$4)`,
			w.WorldID, delta.FromWorld, patchJSON, delta.CreatedAt,
		); err != nil {
			return fmt.Errorf("worldstore/pg: insert delta: %w", err)
		}
	}

	depth, err := s.depthSinceHorizon(tx, w.WorldID)
	if err != nil {
		return err
	}
	if delta == nil || depth >= s.horizonEvery {
		dataJSON, err := json.Marshal(value.ToGo(snap.Data))
		if err != nil {
			return fmt.Errorf("worldstore/pg: marshal snapshot: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO horizons (world_id, data) VALUES ($1,$2)`, w.WorldID, dataJSON); err != nil {
			return fmt.Errorf("worldstore/pg: insert horizon: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) depthSinceHorizon(tx *sql.Tx, worldID string) (int, error) {
	depth := 0
	cur := worldID
	for {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM horizons WHERE world_id = $1)`, cur).Scan(&exists); err != nil {
			return 0, fmt.Errorf("worldstore/pg: check horizon: %w", err)
		}
		if exists {
			return depth, nil
		}
		var from string
		err := tx.QueryRow(`SELECT from_world FROM deltas WHERE to_world = $1`, cur).Scan(&from)
		if err == sql.ErrNoRows {
			return depth, nil
		}
		if err != nil {
			return 0, fmt.Errorf("worldstore/pg: walk parent chain: %w", err)
		}
		cur = from
		depth++
	}
}

// Get returns the World identity record.
func (s *Store) Get(worldID string) (world.World, bool) {
	var w world.World
	err := s.db.QueryRow(
		`SELECT world_id, schema_hash, snapshot_hash, created_at, created_by FROM worlds WHERE world_id = $1`,
		worldID,
	).Scan(&w.WorldID, &w.SchemaHash, &w.SnapshotHash, &w.CreatedAt, &w.CreatedBy)
	if err != nil {
		return world.World{}, false
	}
	return w, true
}

// Restore reconstructs worldID's canonical terminal snapshot by walking
// parent links to the nearest horizon and folding deltas forward, the
// same algorithm world.MemoryStore.Restore uses against its in-memory
// maps.
func (s *Store) Restore(worldID string) (snapshot.Snapshot, error) {
	w, ok := s.Get(worldID)
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("worldstore/pg: world %q not found", worldID)
	}

	var chain []world.WorldDelta
	cur := worldID
	for {
		var dataJSON []byte
		err := s.db.QueryRow(`SELECT data FROM horizons WHERE world_id = $1`, cur).Scan(&dataJSON)
		if err == nil {
			var raw any
			if err := json.Unmarshal(dataJSON, &raw); err != nil {
				return snapshot.Snapshot{}, fmt.Errorf("worldstore/pg: unmarshal horizon: %w", err)
			}
			data := value.FromGo(raw)
			for i := len(chain) - 1; i >= 0; i-- {
				for _, p := range chain[i].Patches {
					data = applyDataPatch(data, p)
				}
			}
			return snapshot.Snapshot{Data: snapshot.Canonical(data), Meta: snapshot.Meta{SchemaHash: w.SchemaHash}}, nil
		}
		if err != sql.ErrNoRows {
			return snapshot.Snapshot{}, fmt.Errorf("worldstore/pg: query horizon: %w", err)
		}

		var fromWorld string
		var patchJSON []byte
		var createdAt int64
		err = s.db.QueryRow(`SELECT from_world, patches, created_at FROM deltas WHERE to_world = $1`, cur).
			Scan(&fromWorld, &patchJSON, &createdAt)
		if err == sql.ErrNoRows {
			return snapshot.Snapshot{}, fmt.Errorf("worldstore/pg: world %q has no materialized ancestor", worldID)
		}
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("worldstore/pg: query delta: %w", err)
		}

		patches, err := unmarshalPatches(patchJSON)
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("worldstore/pg: unmarshal patches: %w", err)
		}
		chain = append(chain, world.WorldDelta{FromWorld: fromWorld, ToWorld: cur, Patches: patches, CreatedAt: createdAt})
		cur = fromWorld
	}
}

func applyDataPatch(data value.Value, p snapshot.Patch) value.Value {
	path := value.ParsePath(p.Path)
	if len(path) == 0 || path[0] != "data" {
		return data
	}
	sub := path[1:]
	switch p.Op {
	case snapshot.OpSet:
		return value.Set(data, sub, p.Value)
	case snapshot.OpUnset:
		return value.Unset(data, sub)
	case snapshot.OpMerge:
		return value.Merge(data, sub, p.Value)
	default:
		return data
	}
}

type wirePatch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

func marshalPatches(patches []snapshot.Patch) ([]byte, error) {
	wire := make([]wirePatch, len(patches))
	for i, p := range patches {
		wire[i] = wirePatch{Op: string(p.Op), Path: p.Path, Value: value.ToGo(p.Value)}
	}
	return json.Marshal(wire)
}

func unmarshalPatches(data []byte) ([]snapshot.Patch, error) {
	var wire []wirePatch
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	patches := make([]snapshot.Patch, len(wire))
	for i, w := range wire {
		patches[i] = snapshot.Patch{Op: snapshot.Op(w.Op), Path: w.Path, Value: value.FromGo(w.Value)}
	}
	return patches, nil
}

// maskConnectionString masks the password segment of a postgres DSN
// before it reaches a log line.
func maskConnectionString(connStr string) string {
	const scheme = "://"
	start := 0
	for i := 0; i+len(scheme) <= len(connStr); i++ {
		if connStr[i:i+len(scheme)] == scheme {
			start = i + len(scheme)
			break
		}
	}
	colonPos, atPos := -1, -1
	for i := start; i < len(connStr); i++ {
		switch connStr[i] {
		case ':':
			if colonPos == -1 {
				colonPos = i
			}
		case '@':
			if atPos == -1 {
				atPos = i
			}
		}
	}
	if colonPos > 0 && atPos > colonPos {
		return connStr[:colonPos+1] + "***" + connStr[atPos:]
	}
	return connStr
}
