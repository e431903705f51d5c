package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kotoba/internal/keyword"
	"github.com/hyperjump/kotoba/internal/models"
)

// client talks to a running kotoba server.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *client) do(method, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *client) Analogy(q *models.AnalogyQuery) (*models.AnalogyResult, error) {
	params := url.Values{"A": {q.A}, "B": {q.B}, "C": {q.C}}
	if q.TopK > 0 {
		params.Set("top_k", strconv.Itoa(q.TopK))
	}
	var out models.AnalogyResult
	if err := c.do(http.MethodGet, "/analogy", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Neighbors(q *models.NeighborsQuery) (*models.NeighborsResult, error) {
	params := url.Values{"word": {q.Word}}
	if q.N > 0 {
		params.Set("n", strconv.Itoa(q.N))
	}
	var out models.NeighborsResult
	if err := c.do(http.MethodGet, "/api/v1/neighbors", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Logs(offset, limit int) ([][4]*string, error) {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var rows [][4]*string
	if err := c.do(http.MethodGet, "/logs", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *client) SearchLogs(q string, limit int, opts *keyword.SearchOptions) ([]models.LogHit, error) {
	params := url.Values{"q": {q}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if opts != nil {
		params.Set("fuzzy", strconv.FormatBool(opts.Fuzzy))
		params.Set("answer_only", strconv.FormatBool(opts.AnswerOnly))
	}
	var out struct {
		Hits []models.LogHit `json:"hits"`
	}
	if err := c.do(http.MethodGet, "/api/v1/logs/search", params, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

func (c *client) Status() (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.do(http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Reload() (*models.EngineStats, error) {
	var out models.EngineStats
	if err := c.do(http.MethodPost, "/api/v1/reload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
