package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// journalStore is an in-memory store.Store covering what the archive reads.
type journalStore struct {
	envs    []*model.Environment
	changes map[string][]*model.ChangeRecord
}

func (f *journalStore) CreateEnvironment(_ context.Context, _ *model.Environment) error { return nil }

func (f *journalStore) GetEnvironment(_ context.Context, _ string) (*model.Environment, error) {
	return nil, store.ErrNotFound
}

func (f *journalStore) ListEnvironments(_ context.Context, _ model.EnvironmentFilter) ([]*model.Environment, error) {
	return f.envs, nil
}

func (f *journalStore) SetEnvironmentStatus(_ context.Context, _ string, _ model.EnvStatus) error {
	return nil
}

func (f *journalStore) ListExpiredReady(_ context.Context, _ time.Time) ([]*model.Environment, error) {
	return nil, nil
}

func (f *journalStore) ListByStatus(_ context.Context, _ model.EnvStatus) ([]*model.Environment, error) {
	return nil, nil
}

func (f *journalStore) AppendChange(_ context.Context, _ *model.ChangeRecord) error { return nil }

func (f *journalStore) ListChanges(_ context.Context, environmentID, _ string) ([]*model.ChangeRecord, error) {
	return f.changes[environmentID], nil
}

func (f *journalStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(f)
}

func (f *journalStore) Close() error { return nil }

func testJournalStore() *journalStore {
	now := time.Now()
	return &journalStore{
		envs: []*model.Environment{
			{ID: "env-1", Schema: "warren_1", Status: model.EnvReady, ExpiresAt: now.Add(time.Hour)},
		},
		changes: map[string][]*model.ChangeRecord{
			"env-1": {
				{ID: 1, EnvironmentID: "env-1", RunID: "run-1", LSN: "0/1", Table: "events",
					Operation: model.OpInsert, After: map[string]any{"id": float64(1)}},
				{ID: 2, EnvironmentID: "env-1", RunID: "run-1", LSN: "0/2", Table: "events",
					Operation: model.OpDelete, Before: map[string]any{"id": float64(1)}},
			},
		},
	}
}

func TestExportJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), testJournalStore(), &buf); err != nil {
		t.Fatalf("ExportJSONL() error: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %d is not JSON: %v", len(lines), err)
		}
		lines = append(lines, line)
	}

	// header + 1 environment + 2 changes
	if len(lines) != 4 {
		t.Fatalf("exported %d lines, want 4", len(lines))
	}
	if lines[0]["type"] != "header" {
		t.Errorf("first line type = %v, want header", lines[0]["type"])
	}
	if lines[0]["change_count"] != float64(2) {
		t.Errorf("header change_count = %v, want 2", lines[0]["change_count"])
	}
	if lines[1]["type"] != "environment" {
		t.Errorf("second line type = %v, want environment", lines[1]["type"])
	}
	if lines[2]["type"] != "change" || lines[3]["type"] != "change" {
		t.Errorf("change lines = %v, %v", lines[2]["type"], lines[3]["type"])
	}
}

// memDestination records every payload written to it.
type memDestination struct {
	mu     sync.Mutex
	writes [][]byte
}

func (d *memDestination) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, append([]byte(nil), data...))
	return nil
}

func (d *memDestination) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func TestScheduler_ExportsImmediatelyAndStops(t *testing.T) {
	dest := &memDestination{}
	s := NewScheduler(testJournalStore(), []Destination{dest}, time.Hour, slog.Default())

	s.Start()
	deadline := time.After(2 * time.Second)
	for dest.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never exported")
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()

	if dest.count() != 1 {
		t.Errorf("destination saw %d writes, want 1 (initial export only)", dest.count())
	}
}
