// Package archive exports the change journal to external storage on a
// schedule. Retention and compaction of the journal itself stay in the
// database; the archive is a read-only copy for offline analysis.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version          string    `json:"version"`
	Type             string    `json:"type"`
	Timestamp        time.Time `json:"timestamp"`
	EnvironmentCount int       `json:"environment_count"`
	ChangeCount      int       `json:"change_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes every environment and its journaled changes as JSONL
// to w. Changes keep their per-stream journal order.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	envs, err := s.ListEnvironments(ctx, model.EnvironmentFilter{})
	if err != nil {
		return fmt.Errorf("list environments: %w", err)
	}

	var changes []*model.ChangeRecord
	for _, env := range envs {
		recs, err := s.ListChanges(ctx, env.ID, "")
		if err != nil {
			return fmt.Errorf("list changes for %s: %w", env.ID, err)
		}
		changes = append(changes, recs...)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:          "1",
		Type:             "header",
		Timestamp:        time.Now().UTC(),
		EnvironmentCount: len(envs),
		ChangeCount:      len(changes),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, env := range envs {
		if err := enc.Encode(record{Type: "environment", Data: env}); err != nil {
			return fmt.Errorf("encode environment %s: %w", env.ID, err)
		}
	}
	for _, c := range changes {
		if err := enc.Encode(record{Type: "change", Data: c}); err != nil {
			return fmt.Errorf("encode change %d: %w", c.ID, err)
		}
	}

	return nil
}
