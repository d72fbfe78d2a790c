package model

import "time"

// Operation is the kind of mutation a change record describes.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeRecord is one normalized mutation observed on a captured table.
//
// Exactly one of Before/After is nil for insert and delete; both are set
// for update. LSN orders records within a single stream; records from
// different streams carry no relative ordering.
type ChangeRecord struct {
	ID            int64          `json:"id,omitempty"`
	EnvironmentID string         `json:"environment_id"`
	RunID         string         `json:"run_id"`
	LSN           string         `json:"lsn"`
	Table         string         `json:"table"`
	Operation     Operation      `json:"operation"`
	PrimaryKey    map[string]any `json:"primary_key"`
	Before        map[string]any `json:"before,omitempty"`
	After         map[string]any `json:"after,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
