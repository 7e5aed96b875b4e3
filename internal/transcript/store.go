// Package transcript persists finished generations to a local SQLite file so
// answers can be reviewed later with `sightspeak history` or GET /history.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"sightspeak/internal/common/fsutil"
	"sightspeak/internal/manager"
	"sightspeak/pkg/types"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("transcript store closed")

const schema = `
CREATE TABLE IF NOT EXISTS transcript (
	id           TEXT PRIMARY KEY,
	request_id   TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	query        TEXT NOT NULL,
	answer       TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_created ON transcript(created_unix);
`

// queueSize bounds pending writes; Publish drops entries beyond it.
const queueSize = 64

type item struct {
	entry   types.TranscriptEntry
	flushed chan struct{}
}

// Store records generation_done and generation_failed events. It implements
// manager.EventPublisher; writes happen on a background goroutine.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}
}

var _ manager.EventPublisher = (*Store)(nil)

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		p, err := fsutil.PrepareFile(path)
		if err != nil {
			return nil, fmt.Errorf("transcript: %w", err)
		}
		path = p
	}
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %q: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcript: migrate: %w", err)
	}
	s := &Store{
		db:    db,
		log:   log.With().Str("component", "transcript").Logger(),
		queue: make(chan item, queueSize),
		done:  make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// Publish converts finished-generation events into transcript rows.
func (s *Store) Publish(e manager.LifecycleEvent) {
	var outcome string
	switch e.Name {
	case manager.EventGenerationDone:
		outcome = "done"
	case manager.EventGenerationFailed:
		outcome = field(e, "outcome")
		if outcome == "" {
			outcome = "error"
		}
	default:
		return
	}
	entry := types.TranscriptEntry{
		ID:          uuid.NewString(),
		RequestID:   e.RequestID,
		Outcome:     outcome,
		Kind:        field(e, "kind"),
		Query:       field(e, "query"),
		Answer:      field(e, "answer"),
		Error:       field(e, "error"),
		CreatedUnix: time.Now().Unix(),
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- item{entry: entry}:
	default:
		s.log.Warn().Str("request_id", e.RequestID).Msg("transcript queue full; entry dropped")
	}
}

// Flush blocks until every entry published before the call is written.
func (s *Store) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.queue <- item{flushed: ch}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]types.TranscriptEntry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, outcome, kind, query, answer, error, created_unix
		 FROM transcript ORDER BY created_unix DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("transcript: query: %w", err)
	}
	defer rows.Close()
	var out []types.TranscriptEntry
	for rows.Next() {
		var e types.TranscriptEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Outcome, &e.Kind, &e.Query, &e.Answer, &e.Error, &e.CreatedUnix); err != nil {
			return nil, fmt.Errorf("transcript: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains pending writes and closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
	return s.db.Close()
}

func (s *Store) writer() {
	defer close(s.done)
	for it := range s.queue {
		if it.flushed != nil {
			close(it.flushed)
			continue
		}
		if err := s.insert(it.entry); err != nil {
			s.log.Error().Err(err).Str("request_id", it.entry.RequestID).Msg("transcript write failed")
		}
	}
}

func (s *Store) insert(e types.TranscriptEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (id, request_id, outcome, kind, query, answer, error, created_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.Outcome, e.Kind, e.Query, e.Answer, e.Error, e.CreatedUnix)
	return err
}

func field(e manager.LifecycleEvent, key string) string {
	if v, ok := e.Fields[key].(string); ok {
		return v
	}
	return ""
}
