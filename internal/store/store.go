// Package store defines the storage interface for warren.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/warren/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the interface for warren metadata and journal storage.
type Store interface {
	// Environment lifecycle
	CreateEnvironment(ctx context.Context, env *model.Environment) error
	GetEnvironment(ctx context.Context, id string) (*model.Environment, error)
	ListEnvironments(ctx context.Context, filter model.EnvironmentFilter) ([]*model.Environment, error)
	SetEnvironmentStatus(ctx context.Context, id string, status model.EnvStatus) error

	// Reaper phase queries
	ListExpiredReady(ctx context.Context, now time.Time) ([]*model.Environment, error)
	ListByStatus(ctx context.Context, status model.EnvStatus) ([]*model.Environment, error)

	// Change journal
	AppendChange(ctx context.Context, rec *model.ChangeRecord) error
	ListChanges(ctx context.Context, environmentID, runID string) ([]*model.ChangeRecord, error)

	// RunInTransaction executes fn inside a single database transaction.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Close releases the underlying connection.
	Close() error
}
