package jobsource

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

type itemResponse struct {
	Items   []Item `json:"items"`
	Queries struct {
		NextPage []struct {
			StartIndex int `json:"startIndex"`
		} `json:"nextPage"`
	} `json:"queries"`
}

type Item map[string]any

// GetItems makes GET requests against the Custom Search API and returns items
// from consecutive pages until max items are collected or no next page is
// advertised.
func (c *Client) GetItems(ctx context.Context, endpoint string, q url.Values, max int) ([]Item, error) {
	var items []Item

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.URL.RawQuery = q.Encode()

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	response, err := c.parseItemResponse(resp)
	if err != nil {
		return nil, err
	}

	items = append(items, response.Items...)

	for len(response.Items) > 0 && len(response.Queries.NextPage) > 0 && (max <= 0 || len(items) < max) {
		next := response.Queries.NextPage[0].StartIndex
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"collected %d items, next page starts at %d", len(items), next),
		))

		resp, err = c.request(addStart(req, next))
		if err != nil {
			return nil, err
		}

		response, err = c.parseItemResponse(resp)
		if err != nil {
			return nil, err
		}

		items = append(items, response.Items...)
	}

	if max > 0 && len(items) > max {
		items = items[:max]
	}

	return items, nil
}

func (c *Client) parseItemResponse(resp *http.Response) (*itemResponse, error) {
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.ReadCloser
	var err error
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		body, err = gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer body.Close()
	default:
		body = resp.Body
		defer body.Close()
	}

	var response *itemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// addStart sets the 1-based start index parameter on the request URL.
func addStart(req *http.Request, start int) *http.Request {
	q := req.URL.Query()
	q.Set("start", strconv.Itoa(start))
	req.URL.RawQuery = q.Encode()

	return req
}
