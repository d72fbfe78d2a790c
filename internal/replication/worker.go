package replication

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/warren/internal/config"
)

// maxPollFailures is how many consecutive connect/fetch errors a worker
// tolerates before terminating. A single transient connection blip should
// not kill a stream, but a persistently broken source should not spin
// forever.
const maxPollFailures = 3

// errJournalWrite marks a sink write failure. Never retried: the failed
// record and everything behind it in that batch were already consumed from
// the slot, so re-polling would only strand more entries unjournaled.
var errJournalWrite = errors.New("journal write failed")

// ConnectFunc yields a database handle for one poll or admin operation.
// Handles are short-lived and never shared across workers, so autocommit
// and session state cannot leak between streams.
type ConnectFunc func() (*sql.DB, error)

func pqConnect(dsn string) ConnectFunc {
	return func() (*sql.DB, error) {
		return sql.Open("postgres", dsn)
	}
}

// Worker owns one logical replication slot and pumps its changes into the
// journal until stopped. Each worker runs on its own goroutine; the only
// state shared with the rest of the process is the Coordinator's registry.
type Worker struct {
	cfg           config.ReplicationConfig
	slotName      string
	environmentID string
	runID         string
	tables        []string
	targetSchema  string
	sink          Sink
	connect       ConnectFunc
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newWorker(cfg config.ReplicationConfig, slotName, environmentID, runID string, tables []string, targetSchema string, sink Sink, connect ConnectFunc, logger *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:           cfg,
		slotName:      slotName,
		environmentID: environmentID,
		runID:         runID,
		tables:        tables,
		targetSchema:  targetSchema,
		sink:          sink,
		connect:       connect,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Run polls the slot until Stop is called or the worker hits a fatal error.
// A fatal error terminates this worker only; it is surfaced through logs,
// never propagated to a caller.
func (w *Worker) Run() {
	defer close(w.done)
	w.logger.Debug("replication worker started",
		"slot", w.slotName, "environment_id", w.environmentID, "run_id", w.runID)
	defer w.logger.Debug("replication worker stopped", "slot", w.slotName)

	failures := 0
	for w.ctx.Err() == nil {
		fetched, err := w.pollOnce(w.ctx)
		switch {
		case err != nil:
			if w.ctx.Err() != nil {
				return
			}
			if errors.Is(err, errJournalWrite) {
				w.logger.Error("replication worker terminating",
					"slot", w.slotName, "err", err)
				return
			}
			failures++
			w.logger.Error("replication poll failed",
				"slot", w.slotName, "consecutive", failures, "err", err)
			if failures >= maxPollFailures {
				w.logger.Error("replication worker terminating", "slot", w.slotName)
				return
			}
		case fetched:
			// Backlog present: re-poll immediately to drain it.
			failures = 0
			continue
		default:
			failures = 0
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// Stop signals the worker to exit. Idempotent; safe before Run starts. The
// worker can take up to one poll cycle plus one in-flight poll to unwind;
// wait on Done for confirmation.
func (w *Worker) Stop() {
	w.cancel()
}

// Done is closed once Run has fully unwound.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// pollOnce consumes up to BatchSize pending entries from the slot
// (advancing its read position), normalizes each table-level change, and
// writes the results to the sink. Reports whether any raw entry was
// fetched, which drives the caller's backoff decision.
func (w *Worker) pollOnce(ctx context.Context) (bool, error) {
	options := buildPluginOptions(w.cfg.PluginOptions, w.tables)

	var sb strings.Builder
	sb.WriteString("SELECT lsn, data FROM pg_logical_slot_get_changes($1, NULL, $2")
	for i := range options {
		fmt.Fprintf(&sb, ", $%d", i+3)
	}
	sb.WriteString(")")

	args := make([]any, 0, 2+len(options))
	args = append(args, w.slotName, w.cfg.BatchSize)
	for _, opt := range options {
		args = append(args, opt)
	}

	db, err := w.connect()
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	entries, err := fetchSlotEntries(ctx, db, sb.String(), args, w.logger)
	if err != nil {
		return false, fmt.Errorf("fetch slot changes: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	for _, entry := range entries {
		var payload walPayload
		if err := json.Unmarshal([]byte(entry.data), &payload); err != nil {
			w.logger.Warn("skipping malformed change payload",
				"slot", w.slotName, "lsn", entry.lsn, "err", err)
			continue
		}
		for i := range payload.Change {
			rec, ok := normalizeChange(w.environmentID, w.runID, entry.lsn, &payload.Change[i], w.targetSchema)
			if !ok {
				continue
			}
			w.logger.Debug("captured change",
				"slot", w.slotName, "table", rec.Table, "operation", rec.Operation)
			if err := w.sink.Write(ctx, rec); err != nil {
				return true, fmt.Errorf("%w: %v", errJournalWrite, err)
			}
		}
	}
	return true, nil
}

// slotEntry is one raw (lsn, payload) row fetched from the slot.
type slotEntry struct {
	lsn  string
	data string
}

// fetchSlotEntries reads all rows from a slot-changes query, tolerating
// both the 2-column (lsn, data) and 3-column (lsn, xid, data) row shapes.
// Rows with any other shape are skipped with a warning.
func fetchSlotEntries(ctx context.Context, db *sql.DB, query string, args []any, logger *slog.Logger) ([]slotEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var entries []slotEntry
	for rows.Next() {
		var e slotEntry
		switch len(cols) {
		case 2:
			err = rows.Scan(&e.lsn, &e.data)
		case 3:
			var xid any
			err = rows.Scan(&e.lsn, &xid, &e.data)
		default:
			logger.Warn("unexpected logical change row shape", "columns", len(cols))
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
