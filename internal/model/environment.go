// Package model defines the core types shared across warren: isolated
// database environments and the change records captured inside them.
package model

import "time"

// EnvStatus is the lifecycle state of an environment. Transitions are
// monotonic: ready -> expired -> {deleted | cleanup_failed}. A row never
// returns to ready; cleanup_failed rows are retried by the next sweep.
type EnvStatus string

const (
	EnvReady         EnvStatus = "ready"
	EnvExpired       EnvStatus = "expired"
	EnvDeleted       EnvStatus = "deleted"
	EnvCleanupFailed EnvStatus = "cleanup_failed"
)

// Valid reports whether s is one of the known environment statuses.
func (s EnvStatus) Valid() bool {
	switch s {
	case EnvReady, EnvExpired, EnvDeleted, EnvCleanupFailed:
		return true
	}
	return false
}

// Environment is one isolated, schema-scoped database namespace allocated
// to a single evaluation run.
type Environment struct {
	ID        string    `json:"id"`
	Schema    string    `json:"schema"`
	Status    EnvStatus `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnvironmentFilter narrows ListEnvironments results.
type EnvironmentFilter struct {
	Status []EnvStatus
	Limit  int
}
