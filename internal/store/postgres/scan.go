package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/warren/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEnvironment scans a single row into a model.Environment.
// The row must contain columns in the order defined by envColumns.
func scanEnvironment(row scannable) (*model.Environment, error) {
	var env model.Environment
	var status string
	err := row.Scan(
		&env.ID,
		&env.Schema,
		&status,
		&env.ExpiresAt,
		&env.CreatedAt,
		&env.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	env.Status = model.EnvStatus(status)
	return &env, nil
}

func scanEnvironments(rows *sql.Rows) ([]*model.Environment, error) {
	var envs []*model.Environment
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

// scanChange scans a single row into a model.ChangeRecord.
// The row must contain columns in the order defined by changeColumns.
func scanChange(row scannable) (*model.ChangeRecord, error) {
	var rec model.ChangeRecord
	var operation string
	var pk, before, after []byte
	err := row.Scan(
		&rec.ID,
		&rec.EnvironmentID,
		&rec.RunID,
		&rec.LSN,
		&rec.Table,
		&operation,
		&pk,
		&before,
		&after,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Operation = model.Operation(operation)
	if len(pk) > 0 {
		if err := json.Unmarshal(pk, &rec.PrimaryKey); err != nil {
			return nil, err
		}
	}
	if len(before) > 0 {
		if err := json.Unmarshal(before, &rec.Before); err != nil {
			return nil, err
		}
	}
	if len(after) > 0 {
		if err := json.Unmarshal(after, &rec.After); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// jsonbMap marshals a map for a NOT NULL jsonb column; nil maps become {}.
func jsonbMap(m map[string]any) []byte {
	if m == nil {
		return []byte(`{}`)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}

// jsonbMapOrNull marshals a map for a nullable jsonb column; nil maps become SQL NULL.
func jsonbMapOrNull(m map[string]any) any {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}
