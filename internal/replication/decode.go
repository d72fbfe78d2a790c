package replication

import (
	"log/slog"

	"github.com/alfredjeanlab/warren/internal/model"
)

// walPayload is the wal2json document emitted for one WAL batch.
type walPayload struct {
	Change []walChange `json:"change"`
}

// walChange is one table-level change inside a wal2json payload. Column
// names and values arrive as parallel arrays; oldkeys carries the replica
// identity for updates and deletes.
type walChange struct {
	Kind         string     `json:"kind"`
	Schema       string     `json:"schema"`
	Table        string     `json:"table"`
	ColumnNames  []string   `json:"columnnames"`
	ColumnValues []any      `json:"columnvalues"`
	OldKeys      walOldKeys `json:"oldkeys"`
}

type walOldKeys struct {
	KeyNames  []string `json:"keynames"`
	KeyValues []any    `json:"keyvalues"`
}

// operation maps a wal2json change kind onto the journal operation set.
func (c *walChange) operation() (model.Operation, bool) {
	switch c.Kind {
	case "insert":
		return model.OpInsert, true
	case "update":
		return model.OpUpdate, true
	case "delete":
		return model.OpDelete, true
	}
	return "", false
}

// zipColumns pairs column names with values positionally. Either list being
// absent or empty yields nil. Mismatched lengths pair up to the shorter
// list; the extra entries are dropped with a warning rather than failing
// the whole change.
func zipColumns(names []string, values []any) map[string]any {
	if len(names) == 0 || len(values) == 0 {
		return nil
	}
	n := len(names)
	if len(values) < n {
		n = len(values)
	}
	if len(names) != len(values) {
		slog.Warn("column name/value length mismatch in change payload",
			"names", len(names), "values", len(values))
	}
	cols := make(map[string]any, n)
	for i := 0; i < n; i++ {
		cols[names[i]] = values[i]
	}
	return cols
}

// primaryKey derives the primary-key map for a change. Updates and deletes
// identify the row by its pre-mutation image; inserts by the new image. A
// change with no usable image falls back to whatever key columns the
// payload carried.
func primaryKey(c *walChange, before, after map[string]any) map[string]any {
	if before != nil && (c.Kind == "update" || c.Kind == "delete") {
		return before
	}
	if after != nil {
		return after
	}
	if pk := zipColumns(c.OldKeys.KeyNames, c.OldKeys.KeyValues); pk != nil {
		return pk
	}
	return map[string]any{}
}

// normalizeChange turns one decoded wal2json change into a journal record.
// Returns false when the change should not be journaled: no table, a kind
// outside insert/update/delete, or a schema outside targetSchema (which is
// what keeps warren's own metadata tables out of the journal).
func normalizeChange(environmentID, runID, lsn string, c *walChange, targetSchema string) (*model.ChangeRecord, bool) {
	if c.Table == "" {
		return nil, false
	}
	// wal2json omits the schema field under include-schemas=false; such
	// changes belong to the default schema.
	schema := c.Schema
	if schema == "" {
		schema = "public"
	}
	if targetSchema != "" && schema != targetSchema {
		return nil, false
	}
	op, ok := c.operation()
	if !ok {
		return nil, false
	}

	before := zipColumns(c.OldKeys.KeyNames, c.OldKeys.KeyValues)
	after := zipColumns(c.ColumnNames, c.ColumnValues)
	pk := primaryKey(c, before, after)

	rec := &model.ChangeRecord{
		EnvironmentID: environmentID,
		RunID:         runID,
		LSN:           lsn,
		Table:         c.Table,
		Operation:     op,
		PrimaryKey:    pk,
	}
	if op == model.OpUpdate || op == model.OpDelete {
		rec.Before = before
	}
	if op == model.OpInsert || op == model.OpUpdate {
		rec.After = after
	}
	return rec, true
}
