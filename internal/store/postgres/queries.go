package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// envColumns is the column list used for SELECT statements on environments.
const envColumns = `id, schema_name, status, expires_at, created_at, updated_at`

// changeColumns is the column list used for SELECT statements on change_journal.
const changeColumns = `id, environment_id, run_id, lsn, table_name, operation,
	primary_key, before, after, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateEnvironment(ctx context.Context, db executor, env *model.Environment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO environments (id, schema_name, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		env.ID,
		env.Schema,
		string(env.Status),
		env.ExpiresAt,
		env.CreatedAt,
		env.UpdatedAt,
	)
	return err
}

func queryGetEnvironment(ctx context.Context, db executor, id string) (*model.Environment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+envColumns+` FROM environments WHERE id = $1`, id)
	env, err := scanEnvironment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return env, err
}

func queryListEnvironments(ctx context.Context, db executor, filter model.EnvironmentFilter) ([]*model.Environment, error) {
	query := `SELECT ` + envColumns + ` FROM environments`
	var args []any

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			args = append(args, string(st))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEnvironments(rows)
}

func querySetEnvironmentStatus(ctx context.Context, db executor, id string, status model.EnvStatus) error {
	res, err := db.ExecContext(ctx, `
		UPDATE environments SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryListExpiredReady(ctx context.Context, db executor, now time.Time) ([]*model.Environment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+envColumns+` FROM environments
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at`,
		string(model.EnvReady), now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEnvironments(rows)
}

func queryListByStatus(ctx context.Context, db executor, status model.EnvStatus) ([]*model.Environment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+envColumns+` FROM environments
		WHERE status = $1
		ORDER BY expires_at`,
		string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEnvironments(rows)
}

func queryAppendChange(ctx context.Context, db executor, rec *model.ChangeRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO change_journal (
			environment_id, run_id, lsn, table_name, operation,
			primary_key, before, after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		rec.EnvironmentID,
		rec.RunID,
		rec.LSN,
		rec.Table,
		string(rec.Operation),
		jsonbMap(rec.PrimaryKey),
		jsonbMapOrNull(rec.Before),
		jsonbMapOrNull(rec.After),
		createdAt,
	).Scan(&rec.ID)
}

func queryListChanges(ctx context.Context, db executor, environmentID, runID string) ([]*model.ChangeRecord, error) {
	query := `SELECT ` + changeColumns + ` FROM change_journal WHERE environment_id = $1`
	args := []any{environmentID}
	if runID != "" {
		args = append(args, runID)
		query += ` AND run_id = $2`
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*model.ChangeRecord
	for rows.Next() {
		rec, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
