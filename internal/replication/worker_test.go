package replication

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/warren/internal/config"
	"github.com/alfredjeanlab/warren/internal/model"
)

func testReplConfig() config.ReplicationConfig {
	return config.ReplicationConfig{
		DSN:          "postgres://localhost/warren",
		Plugin:       "wal2json",
		SlotPrefix:   "warrenslot",
		PollInterval: time.Millisecond,
		BatchSize:    100,
	}
}

// captureSink records every write; optionally fails.
type captureSink struct {
	mu   sync.Mutex
	recs []*model.ChangeRecord
	err  error
}

func (s *captureSink) Write(_ context.Context, rec *model.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *captureSink) records() []*model.ChangeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.ChangeRecord(nil), s.recs...)
}

// singleConn returns a ConnectFunc handing out the given db once, then failing.
func singleConn(db *sql.DB) ConnectFunc {
	used := false
	return func() (*sql.DB, error) {
		if used {
			return nil, errors.New("no more connections")
		}
		used = true
		return db, nil
	}
}

func testWorker(sink Sink, connect ConnectFunc) *Worker {
	return newWorker(testReplConfig(), "warrenslot_a_b", "env-a", "run-b",
		nil, "warren_env_a", sink, connect, slog.Default())
}

const insertPayload = `{"change":[{"kind":"insert","schema":"warren_env_a","table":"events",` +
	`"columnnames":["id","title"],"columnvalues":[1,"standup"]}]}`

func TestPollOnce_JournalsChanges(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	rows := sqlmock.NewRows([]string{"lsn", "data"}).
		AddRow("0/1", insertPayload).
		AddRow("0/2", `{"change":[{"kind":"delete","schema":"warren_env_a","table":"events",`+
			`"oldkeys":{"keynames":["id"],"keyvalues":[1]}}]}`)
	mock.ExpectQuery("SELECT lsn, data FROM pg_logical_slot_get_changes").WillReturnRows(rows)
	mock.ExpectClose()

	sink := &captureSink{}
	w := testWorker(sink, singleConn(db))

	fetched, err := w.pollOnce(context.Background())
	if err != nil {
		t.Fatalf("pollOnce() error: %v", err)
	}
	if !fetched {
		t.Error("pollOnce() = false, want true when entries were fetched")
	}

	recs := sink.records()
	if len(recs) != 2 {
		t.Fatalf("sink received %d records, want 2", len(recs))
	}
	if recs[0].Operation != model.OpInsert || recs[0].LSN != "0/1" {
		t.Errorf("recs[0] = %+v", recs[0])
	}
	if recs[1].Operation != model.OpDelete || recs[1].Before == nil || recs[1].After != nil {
		t.Errorf("recs[1] = %+v", recs[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPollOnce_NoEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectQuery("pg_logical_slot_get_changes").
		WillReturnRows(sqlmock.NewRows([]string{"lsn", "data"}))
	mock.ExpectClose()

	sink := &captureSink{}
	w := testWorker(sink, singleConn(db))

	fetched, err := w.pollOnce(context.Background())
	if err != nil {
		t.Fatalf("pollOnce() error: %v", err)
	}
	if fetched {
		t.Error("pollOnce() = true with no entries, want false to trigger backoff")
	}
	if len(sink.records()) != 0 {
		t.Errorf("sink received %d records, want 0", len(sink.records()))
	}
}

func TestPollOnce_SkipsMalformedPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	rows := sqlmock.NewRows([]string{"lsn", "data"}).
		AddRow("0/1", `{not json`).
		AddRow("0/2", insertPayload)
	mock.ExpectQuery("pg_logical_slot_get_changes").WillReturnRows(rows)
	mock.ExpectClose()

	sink := &captureSink{}
	w := testWorker(sink, singleConn(db))

	fetched, err := w.pollOnce(context.Background())
	if err != nil {
		t.Fatalf("pollOnce() error: %v", err)
	}
	if !fetched {
		t.Error("pollOnce() = false, want true")
	}
	recs := sink.records()
	if len(recs) != 1 || recs[0].LSN != "0/2" {
		t.Errorf("sink records = %+v, want only the well-formed entry", recs)
	}
}

func TestPollOnce_ThreeColumnRowShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	rows := sqlmock.NewRows([]string{"lsn", "xid", "data"}).
		AddRow("0/1", int64(731), insertPayload)
	mock.ExpectQuery("pg_logical_slot_get_changes").WillReturnRows(rows)
	mock.ExpectClose()

	sink := &captureSink{}
	w := testWorker(sink, singleConn(db))

	if _, err := w.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error: %v", err)
	}
	if len(sink.records()) != 1 {
		t.Errorf("sink received %d records, want 1", len(sink.records()))
	}
}

func TestPollOnce_SinkFailureIsFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectQuery("pg_logical_slot_get_changes").
		WillReturnRows(sqlmock.NewRows([]string{"lsn", "data"}).AddRow("0/1", insertPayload))
	mock.ExpectClose()

	sink := &captureSink{err: errors.New("journal down")}
	w := testWorker(sink, singleConn(db))

	fetched, err := w.pollOnce(context.Background())
	if err == nil {
		t.Fatal("pollOnce() expected error when the sink fails")
	}
	if !fetched {
		t.Error("pollOnce() = false, want true (entries were consumed)")
	}
}

func TestRun_TerminatesImmediatelyOnJournalWriteFailure(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	connect := func() (*sql.DB, error) {
		mu.Lock()
		polls++
		mu.Unlock()
		db, mock, err := sqlmock.New()
		if err != nil {
			return nil, err
		}
		mock.ExpectQuery("pg_logical_slot_get_changes").
			WillReturnRows(sqlmock.NewRows([]string{"lsn", "data"}).AddRow("0/1", insertPayload))
		mock.ExpectClose()
		return db, nil
	}

	w := testWorker(&captureSink{err: errors.New("journal down")}, connect)
	go w.Run()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate after journal write failure")
	}

	// Retrying would consume and strand further slot entries, so the first
	// failed write must be the last poll.
	mu.Lock()
	defer mu.Unlock()
	if polls != 1 {
		t.Errorf("worker polled %d times, want 1", polls)
	}
}

func TestRun_TerminatesAfterRepeatedFailures(t *testing.T) {
	connect := func() (*sql.DB, error) { return nil, errors.New("database unreachable") }
	w := testWorker(&captureSink{}, connect)

	go w.Run()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate after repeated poll failures")
	}
}

func TestStop_IdempotentAndSafeBeforeRun(t *testing.T) {
	w := testWorker(&captureSink{}, func() (*sql.DB, error) {
		return nil, errors.New("unused")
	})

	// Stop before Run, and twice.
	w.Stop()
	w.Stop()

	go w.Run()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after pre-Run stop")
	}
}
