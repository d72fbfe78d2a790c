// Package server exposes the warren admin API over HTTP.
package server

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/warren/internal/events"
	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// Provisioner creates and tears down environment schemas.
type Provisioner interface {
	Provision(ctx context.Context) (*model.Environment, error)
	DropSchema(ctx context.Context, schema string) error
}

// Pool tracks per-schema connection leases.
type Pool interface {
	Acquire(schema string) error
	Release(schema string, recycle bool) error
	Available() []string
}

// StreamCoordinator manages replication streams for environments.
type StreamCoordinator interface {
	StartStream(ctx context.Context, environmentID, runID string, tables []string, targetSchema string) (string, error)
	StopStream(ctx context.Context, environmentID, runID string, dropSlot bool) (string, error)
	ActiveStreams() []string
}

// WarrenServer handles the admin API backed by the given collaborators.
type WarrenServer struct {
	store       store.Store
	provisioner Provisioner
	pool        Pool
	streams     StreamCoordinator
	publisher   events.Publisher
	logger      *slog.Logger
}

// NewWarrenServer returns a new WarrenServer. A nil publisher disables
// event emission.
func NewWarrenServer(s store.Store, prov Provisioner, pool Pool, streams StreamCoordinator, pub events.Publisher, logger *slog.Logger) *WarrenServer {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WarrenServer{
		store:       s,
		provisioner: prov,
		pool:        pool,
		streams:     streams,
		publisher:   pub,
		logger:      logger,
	}
}

// publish emits an event to the bus. Failures are logged but do not block
// the caller.
func (s *WarrenServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// inputError indicates invalid user input. The HTTP layer maps it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }
