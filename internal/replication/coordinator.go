package replication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/warren/internal/config"
)

// lib/pq error codes for the idempotent DDL paths.
const (
	pqDuplicateObject = "42710"
	pqUndefinedObject = "42704"
)

// stopTimeout bounds how long StopStream waits for a worker to unwind. A
// timeout means "stop requested but not yet confirmed", not an error; the
// slot is only reclaimed by an explicit drop either way.
var stopTimeout = 5 * time.Second

// Coordinator is the registry and lifecycle manager for capture workers,
// and the owner of slot/publication administrative DDL. The registry is
// the single source of truth for which streams are live; every
// read-modify-write on it holds the mutex for the whole sequence.
type Coordinator struct {
	cfg     config.ReplicationConfig
	sink    Sink
	connect ConnectFunc
	logger  *slog.Logger

	mu      sync.Mutex
	workers map[string]*Worker // slot name -> live worker
}

// NewCoordinator creates a coordinator that journals captured changes
// through sink.
func NewCoordinator(cfg config.ReplicationConfig, sink Sink, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		sink:    sink,
		connect: pqConnect(cfg.DSN),
		logger:  logger,
		workers: make(map[string]*Worker),
	}
}

// StartStream ensures a replication slot exists for the (environment, run)
// pair and launches a capture worker for it. Idempotent: a second call for
// the same pair returns the same slot name without spawning a second
// worker. A slot-creation failure is returned to the caller; no
// environment should be treated as ready without a working stream.
func (c *Coordinator) StartStream(ctx context.Context, environmentID, runID string, tables []string, targetSchema string) (string, error) {
	slotName := SlotName(c.cfg.SlotPrefix, environmentID, runID)

	// The lock spans check, slot creation, and registration so two
	// concurrent calls can never race one slot into two workers.
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, live := c.workers[slotName]; live {
		return slotName, nil
	}

	if err := c.ensureSlot(ctx, slotName); err != nil {
		return "", fmt.Errorf("ensure slot %s: %w", slotName, err)
	}

	worker := newWorker(c.cfg, slotName, environmentID, runID, tables, targetSchema, c.sink, c.connect, c.logger)
	c.workers[slotName] = worker
	go worker.Run()

	c.logger.Debug("started replication stream",
		"slot", slotName, "environment_id", environmentID, "target_schema", targetSchema)
	return slotName, nil
}

// StopStream stops the worker for the (environment, run) pair, waits a
// bounded time for it to unwind, and optionally drops its slot. Stopping an
// unregistered stream is a no-op, not an error. The slot name is returned
// either way since it is derived, not looked up.
func (c *Coordinator) StopStream(ctx context.Context, environmentID, runID string, dropSlot bool) (string, error) {
	slotName := SlotName(c.cfg.SlotPrefix, environmentID, runID)

	c.mu.Lock()
	worker := c.workers[slotName]
	delete(c.workers, slotName)
	c.mu.Unlock()

	if worker != nil {
		worker.Stop()
		select {
		case <-worker.Done():
		case <-time.After(stopTimeout):
			c.logger.Warn("replication worker did not stop in time", "slot", slotName)
		}
	}

	if dropSlot {
		if err := c.dropSlot(ctx, slotName); err != nil {
			return slotName, fmt.Errorf("drop slot %s: %w", slotName, err)
		}
	}
	return slotName, nil
}

// EnsurePublication creates the named publication, treating "already
// exists" as success. With no tables the publication covers all tables.
func (c *Coordinator) EnsurePublication(ctx context.Context, publication string, tables []string) error {
	stmt := fmt.Sprintf("CREATE PUBLICATION %s FOR ALL TABLES", pq.QuoteIdentifier(publication))
	if len(tables) > 0 {
		quoted := make([]string, len(tables))
		for i, t := range tables {
			quoted[i] = pq.QuoteIdentifier(t)
		}
		stmt = fmt.Sprintf("CREATE PUBLICATION %s FOR TABLE %s",
			pq.QuoteIdentifier(publication), strings.Join(quoted, ", "))
	}

	db, err := c.connect()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		if isPQCode(err, pqDuplicateObject) {
			c.logger.Debug("publication already exists", "publication", publication)
			return nil
		}
		return fmt.Errorf("create publication %s: %w", publication, err)
	}
	return nil
}

// CleanupEnvironment stops and drops every registered stream belonging to
// the environment. Per-stream failures are logged and do not stop the
// sweep over the remaining streams.
func (c *Coordinator) CleanupEnvironment(ctx context.Context, environmentID string) {
	type target struct {
		slot  string
		runID string
	}

	c.mu.Lock()
	var targets []target
	for slot, worker := range c.workers {
		if worker.environmentID == environmentID {
			targets = append(targets, target{slot: slot, runID: worker.runID})
		}
	}
	c.mu.Unlock()

	for _, tg := range targets {
		if _, err := c.StopStream(ctx, environmentID, tg.runID, true); err != nil {
			c.logger.Warn("failed to stop replication stream during cleanup",
				"slot", tg.slot, "environment_id", environmentID, "err", err)
		}
	}
}

// CleanupAll stops every registered worker without dropping slots. Used on
// shutdown so a restarted server can resume the streams where they left off.
func (c *Coordinator) CleanupAll(ctx context.Context) {
	type target struct {
		environmentID string
		runID         string
	}

	c.mu.Lock()
	var targets []target
	for _, worker := range c.workers {
		targets = append(targets, target{environmentID: worker.environmentID, runID: worker.runID})
	}
	c.mu.Unlock()

	for _, tg := range targets {
		if _, err := c.StopStream(ctx, tg.environmentID, tg.runID, false); err != nil {
			c.logger.Warn("failed to stop replication stream during shutdown",
				"environment_id", tg.environmentID, "run_id", tg.runID, "err", err)
		}
	}
}

// ActiveStreams returns the slot names of currently registered workers.
func (c *Coordinator) ActiveStreams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	slots := make([]string, 0, len(c.workers))
	for slot := range c.workers {
		slots = append(slots, slot)
	}
	return slots
}

// ensureSlot creates the logical replication slot bound to the configured
// decoding plugin if it does not already exist.
func (c *Coordinator) ensureSlot(ctx context.Context, slotName string) error {
	db, err := c.connect()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	var one int
	err = db.QueryRowContext(ctx,
		"SELECT 1 FROM pg_replication_slots WHERE slot_name = $1", slotName).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check slot: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		"SELECT pg_create_logical_replication_slot($1, $2)", slotName, c.cfg.Plugin); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	c.logger.Debug("created logical replication slot", "slot", slotName, "plugin", c.cfg.Plugin)
	return nil
}

// dropSlot drops the slot, treating "already absent" as success so cleanup
// races stay quiet.
func (c *Coordinator) dropSlot(ctx context.Context, slotName string) error {
	db, err := c.connect()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "SELECT pg_drop_replication_slot($1)", slotName); err != nil {
		if isPQCode(err, pqUndefinedObject) {
			c.logger.Debug("replication slot already gone", "slot", slotName)
			return nil
		}
		return err
	}
	c.logger.Debug("dropped logical replication slot", "slot", slotName)
	return nil
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
