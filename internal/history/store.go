package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store keeps a record of postings that were already emailed so that later
// runs never notify the same recruiter about the same posting twice.
type Store struct {
	db *sql.DB
}

type SentRecord struct {
	PostingID string
	Title     string
	Contact   string
	SentAt    time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS sent_postings (
	posting_id TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	contact    TEXT NOT NULL DEFAULT '',
	sent_at    TEXT NOT NULL
);`

func Open(path string) (*Store, error) {
	// modernc sqlite DSN: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seen reports whether the posting was recorded by a previous run.
func (s *Store) Seen(ctx context.Context, postingID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sent_postings WHERE posting_id = ? LIMIT 1;`, postingID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query sent posting: %w", err)
	}
	return true, nil
}

// Record inserts the sent record, ignoring duplicates. It reports whether
// the record was newly added.
func (s *Store) Record(ctx context.Context, rec SentRecord) (bool, error) {
	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO sent_postings (posting_id, title, contact, sent_at)
VALUES (?, ?, ?, ?);`,
		rec.PostingID, rec.Title, rec.Contact, sentAt.Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert sent posting: %w", err)
	}

	changes, err := res.RowsAffected()
	if err != nil {
		return true, nil
	}
	return changes > 0, nil
}

// SentCount returns the total number of recorded sends.
func (s *Store) SentCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sent_postings;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sent postings: %w", err)
	}
	return count, nil
}
