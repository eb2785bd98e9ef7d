package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobcatcher/jobcatcher/internal/jobsource"
	"go.uber.org/zap"
)

type keywordsFilter struct {
	keywords []string
}

// NewKeywords creates a filter that removes postings matching none of the
// configured keywords. An empty keyword list keeps everything: the search
// provider already queried by keyword, but feed providers return unfiltered
// postings.
func NewKeywords(keywords []string) Filter {
	return &keywordsFilter{keywords: keywords}
}

func (f *keywordsFilter) Name() string { return "keywords" }

func (f *keywordsFilter) Disable(string) {}

func (f *keywordsFilter) IsEnabled() bool { return true }

func (f *keywordsFilter) Apply(_ context.Context, deps Deps, p *jobsource.Postings) (*jobsource.Postings, Step, error) {
	initial := p.Len()
	if len(f.keywords) == 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept := make([]*jobsource.Posting, 0, initial)
	var excluded []string
	for _, posting := range p.Items {
		if posting.MatchesAny(f.keywords) {
			kept = append(kept, posting)
			continue
		}
		excluded = append(excluded, posting.ID)
	}
	p.Items = kept

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding postings without keyword match",
			zap.Strings("keywords", f.keywords),
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes postings contained in an
// exclude file. An empty path keeps the step as a no-op.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path)}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, p *jobsource.Postings) (*jobsource.Postings, Step, error) {
	initial := p.Len()
	if f.path == "" {
		return p, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	excluded, err := jobsource.GetExcludedPostingsFromFile(f.path)
	if err != nil {
		return p, Step{}, fmt.Errorf("getting excluded postings from file: %w", err)
	}

	removed := p.Exclude(jobsource.PostingIDField, excluded.PostingIDs())
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding postings based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_postings", removed),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(removed), Left: p.Len()}, nil
}

type historyFilter struct {
	disabled bool
	reason   string
}

// NewHistory creates a filter that removes postings already emailed in
// previous runs.
func NewHistory() Filter {
	return &historyFilter{}
}

func (f *historyFilter) Name() string { return "history" }

func (f *historyFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *historyFilter) IsEnabled() bool { return !f.disabled }

func (f *historyFilter) Apply(ctx context.Context, deps Deps, p *jobsource.Postings) (*jobsource.Postings, Step, error) {
	initial := p.Len()
	if deps.History == nil {
		if deps.Logger != nil {
			deps.Logger.Info("history store is not configured; skipping history filter")
		}
		return p, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	var seenIDs []string
	for _, posting := range p.Items {
		seen, err := deps.History.Seen(ctx, posting.ID)
		if err != nil {
			return p, Step{}, fmt.Errorf("checking sent history: %w", err)
		}
		if seen {
			seenIDs = append(seenIDs, posting.ID)
		}
	}

	removed := p.Exclude(jobsource.PostingIDField, seenIDs)
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding postings already emailed in previous runs",
			zap.Strings("excluded_postings", removed),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(removed), Left: p.Len()}, nil
}
