package jobsource

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL = "https://www.googleapis.com/customsearch/v1"
	// Google CSE caps results per request at 10.
	perPage = 10
)

// Source produces a finite list of postings per invocation.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Postings, error)
}

// Client queries the Google Custom Search API for job postings.
type Client struct {
	apiKey     string
	cx         string
	params     *SearchParams
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(apiKey, cx string, params *SearchParams, logger *zap.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		cx:     cx,
		params: params,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) Name() string { return "customsearch" }

func (c *Client) Fetch(ctx context.Context) (*Postings, error) {
	postings, err := c.search(ctx, c.params)
	if err != nil {
		return nil, &RetrievalError{Source: c.Name(), Err: err}
	}
	return postings, nil
}
