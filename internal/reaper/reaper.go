// Package reaper ages out expired environments and reclaims their
// resources: backing schema, pooled connection lease, and replication
// streams.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/warren/internal/events"
	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// SchemaDropper destroys an environment's backing schema. Irreversible.
type SchemaDropper interface {
	DropSchema(ctx context.Context, schema string) error
}

// PoolRecycler releases an environment's pooled connection lease. Optional;
// a nil recycler is a no-op.
type PoolRecycler interface {
	Release(schema string, recycle bool) error
}

// StreamCleaner stops and drops every replication stream belonging to an
// environment. Optional; a nil cleaner is a no-op.
type StreamCleaner interface {
	CleanupEnvironment(ctx context.Context, environmentID string)
}

// phase is the reaper's two-state cycle: mark ready environments past
// their TTL as expired, then on the next cycle delete what is expired.
type phase int

const (
	phaseMark phase = iota
	phaseDelete
)

// Reaper is the background lifecycle sweep. One instance runs per process;
// Start is idempotent and Stop waits for the loop to fully unwind.
type Reaper struct {
	store     store.Store
	dropper   SchemaDropper
	pool      PoolRecycler
	streams   StreamCleaner
	publisher events.Publisher
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(s store.Store, dropper SchemaDropper, pool PoolRecycler, streams StreamCleaner, publisher events.Publisher, interval time.Duration, logger *slog.Logger) *Reaper {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Reaper{
		store:     s,
		dropper:   dropper,
		pool:      pool,
		streams:   streams,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Start launches the background sweep loop. Calling Start on a running
// reaper warns and does nothing.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.logger.Warn("environment reaper already running")
		return
	}
	r.running = true

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
	r.logger.Info("environment reaper started", "interval", r.interval)
}

// Stop cancels the sweep loop and blocks until it has fully unwound.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("environment reaper stopped")
}

// run alternates mark and delete phases with one interval sleep between
// cycles. A failed cycle is logged and the loop continues; one bad row
// must never stop future sweeps.
func (r *Reaper) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	current := phaseMark
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var err error
		switch current {
		case phaseMark:
			err = r.markExpired(ctx)
			current = phaseDelete
		case phaseDelete:
			err = r.deleteExpired(ctx)
			current = phaseMark
		}
		if err != nil && ctx.Err() == nil {
			r.logger.Error("reaper sweep cycle failed", "err", err)
		}
	}
}

// markExpired is phase 1: flip every ready environment past its expiry to
// expired. Pure metadata mutation inside one transaction; no external
// resource is touched.
func (r *Reaper) markExpired(ctx context.Context) error {
	now := time.Now().UTC()
	var marked []*model.Environment

	err := r.store.RunInTransaction(ctx, func(tx store.Store) error {
		envs, err := tx.ListExpiredReady(ctx, now)
		if err != nil {
			return err
		}
		for _, env := range envs {
			if err := tx.SetEnvironmentStatus(ctx, env.ID, model.EnvExpired); err != nil {
				return err
			}
		}
		marked = envs
		return nil
	})
	if err != nil {
		return err
	}

	if len(marked) > 0 {
		r.logger.Info("marked environments as expired", "count", len(marked))
	}
	for _, env := range marked {
		r.publish(ctx, events.TopicEnvironmentExpired, events.EnvironmentExpired{
			EnvironmentID: env.ID,
			ExpiredAt:     now,
		})
	}
	return nil
}

// sweepResult records how one environment's teardown went.
type sweepResult struct {
	env    *model.Environment
	status model.EnvStatus
	err    error
}

// deleteExpired is phase 2: tear down every expired environment
// independently. One environment's failure is recorded as cleanup_failed
// and never blocks its siblings; a cleanup_failed row is picked up again
// by the next delete phase.
func (r *Reaper) deleteExpired(ctx context.Context) error {
	envs, err := r.store.ListByStatus(ctx, model.EnvExpired)
	if err != nil {
		return err
	}
	if len(envs) == 0 {
		return nil
	}
	r.logger.Info("found expired environments to clean up", "count", len(envs))

	for _, env := range envs {
		res := r.reapOne(ctx, env)
		switch res.status {
		case model.EnvDeleted:
			r.logger.Info("cleaned up expired environment",
				"environment_id", env.ID, "schema", env.Schema, "expired_at", env.ExpiresAt)
			r.publish(ctx, events.TopicEnvironmentDeleted, events.EnvironmentDeleted{
				EnvironmentID: env.ID,
				Schema:        env.Schema,
			})
		case model.EnvCleanupFailed:
			r.logger.Error("failed to clean up environment",
				"environment_id", env.ID, "schema", env.Schema, "err", res.err)
			r.publish(ctx, events.TopicEnvironmentCleanupFailed, events.EnvironmentCleanupFailed{
				EnvironmentID: env.ID,
				Schema:        env.Schema,
				Reason:        res.err.Error(),
			})
		}
	}
	return nil
}

// reapOne tears down a single environment. The pooled connection lease and
// the replication streams are released on every exit path; a failed schema
// drop must not leak either.
func (r *Reaper) reapOne(ctx context.Context, env *model.Environment) sweepResult {
	defer func() {
		if r.pool != nil {
			if err := r.pool.Release(env.Schema, true); err != nil {
				r.logger.Warn("failed to release schema lease for recycling",
					"schema", env.Schema, "err", err)
			}
		}
		if r.streams != nil {
			r.streams.CleanupEnvironment(ctx, env.ID)
		}
	}()

	res := sweepResult{env: env, status: model.EnvDeleted}
	if err := r.dropper.DropSchema(ctx, env.Schema); err != nil {
		res.status = model.EnvCleanupFailed
		res.err = err
	}
	if err := r.store.SetEnvironmentStatus(ctx, env.ID, res.status); err != nil {
		r.logger.Error("failed to record environment status",
			"environment_id", env.ID, "status", res.status, "err", err)
	}
	return res
}

// publish emits a lifecycle event, best-effort.
func (r *Reaper) publish(ctx context.Context, topic string, event any) {
	if err := r.publisher.Publish(ctx, topic, event); err != nil {
		r.logger.Warn("failed to publish lifecycle event", "topic", topic, "err", err)
	}
}
