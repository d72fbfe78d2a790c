// Package environ provisions isolated per-run database schemas and tracks
// their pooled connection leases.
package environ

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/alfredjeanlab/warren/internal/idgen"
	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// schemaAlphabet restricts schema names to characters that need no quoting
// anywhere a schema name might end up (search_path entries, wal2json
// add-tables lists).
const schemaAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Provisioner creates and destroys environment schemas. It is the
// schema-drop collaborator the reaper tears environments down through.
type Provisioner struct {
	db     *sql.DB
	store  store.Store
	ttl    time.Duration
	logger *slog.Logger
}

// New opens a database handle for schema DDL. The handle is shared across
// provisioning calls; DDL is cheap and infrequent.
func New(databaseURL string, s store.Store, ttl time.Duration, logger *slog.Logger) (*Provisioner, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Provisioner{db: db, store: s, ttl: ttl, logger: logger}, nil
}

// Close releases the DDL connection handle.
func (p *Provisioner) Close() error {
	return p.db.Close()
}

// Provision creates a fresh schema and registers it as a ready environment
// expiring after the configured TTL. A metadata insert failure rolls the
// schema back so no orphan schema survives a half-provisioned environment.
func (p *Provisioner) Provision(ctx context.Context) (*model.Environment, error) {
	id, err := idgen.NewEnvironmentID()
	if err != nil {
		return nil, err
	}
	suffix, err := nanoid.Generate(schemaAlphabet, 12)
	if err != nil {
		return nil, fmt.Errorf("generate schema name: %w", err)
	}
	schema := "warren_" + suffix

	if _, err := p.db.ExecContext(ctx, "CREATE SCHEMA "+pq.QuoteIdentifier(schema)); err != nil {
		return nil, fmt.Errorf("create schema %s: %w", schema, err)
	}

	now := time.Now().UTC()
	env := &model.Environment{
		ID:        id,
		Schema:    schema,
		Status:    model.EnvReady,
		ExpiresAt: now.Add(p.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.CreateEnvironment(ctx, env); err != nil {
		if _, dropErr := p.db.ExecContext(ctx, "DROP SCHEMA "+pq.QuoteIdentifier(schema)+" CASCADE"); dropErr != nil {
			p.logger.Warn("failed to roll back schema after provisioning error",
				"schema", schema, "err", dropErr)
		}
		return nil, fmt.Errorf("register environment: %w", err)
	}

	p.logger.Info("provisioned environment",
		"environment_id", id, "schema", schema, "expires_at", env.ExpiresAt)
	return env, nil
}

// DropSchema destroys the schema and everything in it. Irreversible.
func (p *Provisioner) DropSchema(ctx context.Context, schema string) error {
	if _, err := p.db.ExecContext(ctx, "DROP SCHEMA "+pq.QuoteIdentifier(schema)+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", schema, err)
	}
	return nil
}
