package jobsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Feed fetches postings from a generic JSON endpoint. The endpoint may
// respond either with {"jobs": [...]} or with a bare array of postings.
type Feed struct {
	url        string
	logger     *zap.Logger
	HTTPClient *http.Client
}

func NewFeed(url string, logger *zap.Logger) *Feed {
	return &Feed{
		url:    url,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (f *Feed) Name() string { return "feed:" + f.url }

func (f *Feed) Fetch(ctx context.Context) (*Postings, error) {
	postings, err := f.fetch(ctx)
	if err != nil {
		return nil, &RetrievalError{Source: f.Name(), Err: err}
	}
	return postings, nil
}

func (f *Feed) fetch(ctx context.Context) (*Postings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	f.logger.Debug("fetching feed", zap.String("url", f.url))

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	items, err := decodeFeed(data)
	if err != nil {
		return nil, err
	}

	postings := &Postings{}
	for _, posting := range items {
		if posting == nil {
			continue
		}
		if posting.Source == "" {
			posting.Source = f.Name()
		}
		posting.EnsureID()
		postings.Items = append(postings.Items, posting)
	}

	return postings, nil
}

func decodeFeed(data []byte) ([]*Posting, error) {
	var wrapped struct {
		Jobs []*Posting `json:"jobs"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Jobs != nil {
		return wrapped.Jobs, nil
	}

	var bare []*Posting
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("feed response is neither a jobs object nor an array: %w", err)
	}

	return bare, nil
}
