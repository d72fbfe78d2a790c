package environ

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// envStore is a minimal store.Store capturing environment registrations.
type envStore struct {
	mu      sync.Mutex
	created []*model.Environment
	fail    error
}

func (f *envStore) CreateEnvironment(_ context.Context, env *model.Environment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.created = append(f.created, env)
	return nil
}

func (f *envStore) GetEnvironment(_ context.Context, _ string) (*model.Environment, error) {
	return nil, store.ErrNotFound
}

func (f *envStore) ListEnvironments(_ context.Context, _ model.EnvironmentFilter) ([]*model.Environment, error) {
	return nil, nil
}

func (f *envStore) SetEnvironmentStatus(_ context.Context, _ string, _ model.EnvStatus) error {
	return nil
}

func (f *envStore) ListExpiredReady(_ context.Context, _ time.Time) ([]*model.Environment, error) {
	return nil, nil
}

func (f *envStore) ListByStatus(_ context.Context, _ model.EnvStatus) ([]*model.Environment, error) {
	return nil, nil
}

func (f *envStore) AppendChange(_ context.Context, _ *model.ChangeRecord) error { return nil }

func (f *envStore) ListChanges(_ context.Context, _, _ string) ([]*model.ChangeRecord, error) {
	return nil, nil
}

func (f *envStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(f)
}

func (f *envStore) Close() error { return nil }

func newTestProvisioner(t *testing.T, s store.Store) (*Provisioner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return &Provisioner{db: db, store: s, ttl: 30 * time.Minute, logger: slog.Default()}, mock
}

func TestProvision(t *testing.T) {
	fs := &envStore{}
	p, mock := newTestProvisioner(t, fs)

	mock.ExpectExec(`CREATE SCHEMA "warren_[a-z0-9]+"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	env, err := p.Provision(context.Background())
	if err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if !strings.HasPrefix(env.ID, "env-") {
		t.Errorf("ID = %q, want env- prefix", env.ID)
	}
	if !strings.HasPrefix(env.Schema, "warren_") {
		t.Errorf("Schema = %q, want warren_ prefix", env.Schema)
	}
	if env.Status != model.EnvReady {
		t.Errorf("Status = %q, want ready", env.Status)
	}
	if ttl := time.Until(env.ExpiresAt); ttl < 29*time.Minute || ttl > 31*time.Minute {
		t.Errorf("ExpiresAt %v not ~30m out", env.ExpiresAt)
	}
	if len(fs.created) != 1 {
		t.Errorf("store registered %d environments, want 1", len(fs.created))
	}
}

func TestProvision_RegistrationFailureDropsSchema(t *testing.T) {
	fs := &envStore{fail: errors.New("insert failed")}
	p, mock := newTestProvisioner(t, fs)

	mock.ExpectExec(`CREATE SCHEMA "warren_[a-z0-9]+"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP SCHEMA "warren_[a-z0-9]+" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := p.Provision(context.Background()); err == nil {
		t.Fatal("Provision() expected error when registration fails")
	}
}

func TestDropSchema(t *testing.T) {
	p, mock := newTestProvisioner(t, &envStore{})

	mock.ExpectExec(`DROP SCHEMA "warren_abc" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := p.DropSchema(context.Background(), "warren_abc"); err != nil {
		t.Fatalf("DropSchema() error: %v", err)
	}
}

func TestDropSchema_Error(t *testing.T) {
	p, mock := newTestProvisioner(t, &envStore{})

	mock.ExpectExec(`DROP SCHEMA`).WillReturnError(sql.ErrConnDone)

	if err := p.DropSchema(context.Background(), "warren_abc"); err == nil {
		t.Fatal("DropSchema() expected error")
	}
}
