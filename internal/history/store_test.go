package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestRecordAndSeen(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("fresh store must not know the posting")
	}

	added, err := store.Record(ctx, SentRecord{
		PostingID: "p1",
		Title:     "QA Engineer",
		Contact:   "hr@example.com",
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !added {
		t.Fatal("expected record to be added")
	}

	seen, err = store.Seen(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("posting must be seen after recording")
	}
}

func TestRecordIgnoresDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := SentRecord{PostingID: "p1", Title: "QA Engineer", Contact: "hr@example.com"}

	if added, err := store.Record(ctx, rec); err != nil || !added {
		t.Fatalf("first record: added=%v err=%v", added, err)
	}
	if added, err := store.Record(ctx, rec); err != nil || added {
		t.Fatalf("duplicate record: added=%v err=%v", added, err)
	}

	count, err := store.SentCount(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if _, err := store.Record(ctx, SentRecord{PostingID: "p1"}); err != nil {
		t.Fatalf("recording: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer reopened.Close()

	seen, err := reopened.Seen(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("record must survive reopen")
	}
}
