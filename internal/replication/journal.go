package replication

import (
	"context"

	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// Sink receives normalized change records from capture workers. It carries
// no batching, retry, or dedup; delivery is at-least-once and a failed
// write is fatal to the worker that issued it.
type Sink interface {
	Write(ctx context.Context, rec *model.ChangeRecord) error
}

// JournalWriter appends change records to the durable journal, one
// transaction per record.
type JournalWriter struct {
	store store.Store
}

var _ Sink = (*JournalWriter)(nil)

func NewJournalWriter(s store.Store) *JournalWriter {
	return &JournalWriter{store: s}
}

func (w *JournalWriter) Write(ctx context.Context, rec *model.ChangeRecord) error {
	return w.store.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.AppendChange(ctx, rec)
	})
}
