package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jobcatcher/jobcatcher/internal/jobsource"
	"go.uber.org/zap"
)

type fakeSeenStore struct {
	seen map[string]bool
	err  error
}

func (f *fakeSeenStore) Seen(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.seen[id], nil
}

func postingsFixture() *jobsource.Postings {
	return &jobsource.Postings{Items: []*jobsource.Posting{
		{ID: "1", Title: "QA Automation Engineer", Description: "Selenium"},
		{ID: "2", Title: "Backend Developer", Description: "Go services"},
		{ID: "3", Title: "SDET", Description: "test automation"},
	}}
}

func TestKeywordsFilterDropsNonMatching(t *testing.T) {
	deps := Deps{Logger: zap.NewNop()}

	result, err := Run(context.Background(), deps, []Filter{NewKeywords([]string{"qa", "automation"})}, postingsFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Len() != 2 {
		t.Fatalf("expected 2 postings left, got %d", result.Len())
	}
	if result.FindByID("2") != nil {
		t.Fatal("backend posting should be dropped")
	}
}

func TestKeywordsFilterEmptyListKeepsAll(t *testing.T) {
	deps := Deps{Logger: zap.NewNop()}

	result, err := Run(context.Background(), deps, []Filter{NewKeywords(nil)}, postingsFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Len() != 3 {
		t.Fatalf("expected all postings kept, got %d", result.Len())
	}
}

func TestExcludeFileFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	excluded := &jobsource.ExcludedPostings{}
	excluded.Append((&jobsource.Postings{Items: []*jobsource.Posting{{ID: "3", Title: "SDET"}}}).ToExcluded())
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("writing exclude file: %v", err)
	}

	deps := Deps{Logger: zap.NewNop()}

	result, err := Run(context.Background(), deps, []Filter{NewExcludeFile(path)}, postingsFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Len() != 2 {
		t.Fatalf("expected 2 postings left, got %d", result.Len())
	}
	if result.FindByID("3") != nil {
		t.Fatal("excluded posting still present")
	}
}

func TestHistoryFilterDropsSeenPostings(t *testing.T) {
	deps := Deps{
		Logger:  zap.NewNop(),
		History: &fakeSeenStore{seen: map[string]bool{"1": true}},
	}

	result, err := Run(context.Background(), deps, []Filter{NewHistory()}, postingsFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Len() != 2 {
		t.Fatalf("expected 2 postings left, got %d", result.Len())
	}
	if result.FindByID("1") != nil {
		t.Fatal("seen posting still present")
	}
}

func TestHistoryFilterWithoutStoreKeepsAll(t *testing.T) {
	deps := Deps{Logger: zap.NewNop()}

	result, err := Run(context.Background(), deps, []Filter{NewHistory()}, postingsFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Len() != 3 {
		t.Fatalf("expected all postings kept, got %d", result.Len())
	}
}

func TestHistoryFilterPropagatesStoreErrors(t *testing.T) {
	deps := Deps{
		Logger:  zap.NewNop(),
		History: &fakeSeenStore{err: errors.New("db locked")},
	}

	if _, err := Run(context.Background(), deps, []Filter{NewHistory()}, postingsFixture()); err == nil {
		t.Fatal("expected error from history store")
	}
}

func TestDisabledFilterIsSkipped(t *testing.T) {
	filter := NewHistory()
	filter.Disable("disabled for this run")

	deps := Deps{
		Logger:  zap.NewNop(),
		History: &fakeSeenStore{seen: map[string]bool{"1": true}},
	}

	result, err := Run(context.Background(), deps, []Filter{filter}, postingsFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Len() != 3 {
		t.Fatalf("disabled filter must not drop postings, got %d", result.Len())
	}
}
