package jobsource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

type SearchParams struct {
	Query      string   `mapstructure:"query"`
	Keywords   []string `mapstructure:"keywords"`
	Locations  []string `mapstructure:"locations"`
	Sites      []string `mapstructure:"sites"`
	MaxResults int      `mapstructure:"max-results"`
}

// searchItem mirrors the fields of a Custom Search result we care about.
type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (c *Client) search(ctx context.Context, params *SearchParams) (*Postings, error) {
	if params == nil || strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("search query is required")
	}

	max := params.MaxResults
	if max <= 0 {
		max = perPage
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.cx)
	q.Set("q", buildQuery(params))
	q.Set("num", strconv.Itoa(min(max, perPage)))

	items, err := c.GetItems(ctx, c.APIURL, q, max)
	if err != nil {
		return nil, err
	}

	var results []*searchItem
	cfg := &mapstructure.DecoderConfig{
		Result:  &results,
		TagName: "json",
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode search items: %w", err)
	}

	postings := &Postings{}
	for _, item := range results {
		posting := &Posting{
			Title:       item.Title,
			URL:         item.Link,
			Description: item.Snippet,
			Source:      c.Name(),
		}
		posting.EnsureID()
		postings.Items = append(postings.Items, posting)
	}

	return postings, nil
}

// buildQuery assembles the full search expression:
// "<query> (site:a OR site:b) (loc1 OR loc2)".
func buildQuery(params *SearchParams) string {
	parts := []string{strings.TrimSpace(params.Query)}

	if len(params.Sites) > 0 {
		sites := make([]string, 0, len(params.Sites))
		for _, site := range params.Sites {
			sites = append(sites, "site:"+strings.TrimSpace(site))
		}
		parts = append(parts, "("+strings.Join(sites, " OR ")+")")
	}

	if len(params.Locations) > 0 {
		parts = append(parts, "("+strings.Join(params.Locations, " OR ")+")")
	}

	return strings.Join(parts, " ")
}
