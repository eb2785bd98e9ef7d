package jobsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestFeedAcceptsWrappedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs": [{"id": "j1", "title": "QA Engineer", "url": "https://example.com/j1", "contact_email": "hr@example.com"}]}`))
	}))
	defer server.Close()

	feed := NewFeed(server.URL, zap.NewNop())

	postings, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if postings.Len() != 1 {
		t.Fatalf("expected 1 posting, got %d", postings.Len())
	}
	posting := postings.Items[0]
	if posting.ID != "j1" {
		t.Fatalf("expected provider id preserved, got %s", posting.ID)
	}
	if posting.Contact != "hr@example.com" {
		t.Fatalf("unexpected contact: %s", posting.Contact)
	}
	if posting.Source == "" {
		t.Fatalf("expected source to be set")
	}
}

func TestFeedAcceptsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"title": "SDET", "url": "https://example.com/sdet"}]`))
	}))
	defer server.Close()

	feed := NewFeed(server.URL, zap.NewNop())

	postings, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if postings.Len() != 1 {
		t.Fatalf("expected 1 posting, got %d", postings.Len())
	}
	if postings.Items[0].ID == "" {
		t.Fatalf("expected generated id for posting without one")
	}
}

func TestFeedUnreachableIsRetrievalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	feed := NewFeed(server.URL, zap.NewNop())

	_, err := feed.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var retrieval *RetrievalError
	if !errors.As(err, &retrieval) {
		t.Fatalf("expected RetrievalError, got %T", err)
	}
}
