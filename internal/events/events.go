package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/warren/internal/model"
)

// Event topic constants
const (
	TopicEnvironmentCreated       = "warren.environment.created"
	TopicEnvironmentExpired       = "warren.environment.expired"
	TopicEnvironmentDeleted       = "warren.environment.deleted"
	TopicEnvironmentCleanupFailed = "warren.environment.cleanup_failed"

	TopicStreamStarted = "warren.stream.started"
	TopicStreamStopped = "warren.stream.stopped"
)

// Event types

type EnvironmentCreated struct {
	Environment *model.Environment `json:"environment"`
}

type EnvironmentExpired struct {
	EnvironmentID string    `json:"environment_id"`
	ExpiredAt     time.Time `json:"expired_at"`
}

type EnvironmentDeleted struct {
	EnvironmentID string `json:"environment_id"`
	Schema        string `json:"schema"`
}

type EnvironmentCleanupFailed struct {
	EnvironmentID string `json:"environment_id"`
	Schema        string `json:"schema"`
	Reason        string `json:"reason"`
}

type StreamStarted struct {
	EnvironmentID string `json:"environment_id"`
	RunID         string `json:"run_id"`
	SlotName      string `json:"slot_name"`
}

type StreamStopped struct {
	EnvironmentID string `json:"environment_id"`
	RunID         string `json:"run_id"`
	SlotName      string `json:"slot_name"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
