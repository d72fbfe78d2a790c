// Package client provides a Go client for the warren admin API.
package client

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/warren/internal/model"
)

// WarrenClient is the interface the CLI commands program against.
type WarrenClient interface {
	Health(ctx context.Context) (string, error)

	CreateEnvironment(ctx context.Context) (*model.Environment, error)
	GetEnvironment(ctx context.Context, id string) (*model.Environment, error)
	ListEnvironments(ctx context.Context, req *ListEnvironmentsRequest) (*ListEnvironmentsResponse, error)
	ExpireEnvironment(ctx context.Context, id string) error

	StartStream(ctx context.Context, req *StartStreamRequest) (*StartStreamResponse, error)
	StopStream(ctx context.Context, environmentID, runID string, dropSlot bool) error
	ListStreams(ctx context.Context) (*ListStreamsResponse, error)

	ListChanges(ctx context.Context, environmentID, runID string) (*ListChangesResponse, error)

	Close() error
}

// ListEnvironmentsRequest narrows a ListEnvironments call.
type ListEnvironmentsRequest struct {
	Status []string
	Limit  int
}

// ListEnvironmentsResponse is the environment listing payload.
type ListEnvironmentsResponse struct {
	Environments []*model.Environment `json:"environments"`
	Total        int                  `json:"total"`
}

// StartStreamRequest starts change capture for an environment.
type StartStreamRequest struct {
	EnvironmentID string   `json:"environment_id"`
	RunID         string   `json:"run_id,omitempty"`
	Tables        []string `json:"tables,omitempty"`
}

// StartStreamResponse identifies the started stream.
type StartStreamResponse struct {
	EnvironmentID string `json:"environment_id"`
	RunID         string `json:"run_id"`
	SlotName      string `json:"slot_name"`
}

// ListStreamsResponse lists active stream slot names.
type ListStreamsResponse struct {
	Streams []string `json:"streams"`
	Total   int      `json:"total"`
}

// ListChangesResponse is the change journal payload.
type ListChangesResponse struct {
	Changes []*model.ChangeRecord `json:"changes"`
	Total   int                   `json:"total"`
}

// APIError is an error response from the warren server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}
