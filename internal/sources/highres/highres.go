// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package highres wraps the paid, budgeted high-resolution change-detection
// imagery service: header token auth, a 60-day re-run guard, and a
// two-narrow-search temporal-pair acquisition strategy.
package highres

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/parceldistress/sentinel/internal/errs"
	"github.com/parceldistress/sentinel/internal/httputil"
	"github.com/parceldistress/sentinel/internal/spatial"
)

const sourceName = "highres"

// cooldown is the re-run guard window: a parcel scanned within this window
// is skipped unless Force is set.
const cooldown = 60 * 24 * time.Hour

// Scene is one returned high-resolution capture.
type Scene struct {
	ID         string    `json:"id"`
	AcquiredAt time.Time `json:"acquired"`
	ThumbURL   string    `json:"thumb_url"`
}

// ChangeResult is the fused temporal-pair comparison.
type ChangeResult struct {
	SceneCount   int
	ChangeScore  float64
	TemporalSpan int // days
	Earliest     Scene
	Latest       Scene
}

// Client is the high-resolution imagery adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Options configures Client.
type Options struct {
	BaseURL        string
	Token          string
	UserAgent      string
	TraceWriter    io.Writer
	TraceBody      bool
	RequestTimeout time.Duration
}

// New builds a highres Client. Auth is a static `api-key <token>` header
// injected by the shared AppendRequestHeadersRoundTripper.
func New(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	headers := map[string]string{"Authorization": "api-key " + opts.Token}

	return &Client{
		httpClient: httputil.NewClient(opts.UserAgent, headers, opts.TraceWriter, opts.TraceBody, timeout),
		baseURL:    opts.BaseURL,
	}
}

// ShouldSkip reports whether lastScanDate is recent enough that Search
// should be skipped, honoring force.
func ShouldSkip(lastScanDate time.Time, force bool) bool {
	if force || lastScanDate.IsZero() {
		return false
	}

	return time.Since(lastScanDate) < cooldown
}

// Search runs the two-narrow-date-range acquisition: an earliest-window and
// a latest-window search, each picking the single most-recent scene within
// its window, rather than one wide search that risks picking two scenes
// from the same window.
func (c *Client) Search(ctx context.Context, p spatial.Point, earliestStart, earliestEnd, latestStart, latestEnd time.Time) (ChangeResult, error) {
	earliest, err := c.searchWindow(ctx, p, earliestStart, earliestEnd)
	if err != nil {
		return ChangeResult{}, fmt.Errorf("searching earliest window: %w", err)
	}

	latest, err := c.searchWindow(ctx, p, latestStart, latestEnd)
	if err != nil {
		return ChangeResult{}, fmt.Errorf("searching latest window: %w", err)
	}

	result := ChangeResult{
		SceneCount:   2,
		TemporalSpan: int(latest.AcquiredAt.Sub(earliest.AcquiredAt).Hours() / 24),
		Earliest:     earliest,
		Latest:       latest,
	}

	result.ChangeScore, err = c.compareChange(ctx, earliest, latest)
	if err != nil {
		return ChangeResult{}, fmt.Errorf("comparing scenes: %w", err)
	}

	return result, nil
}

func (c *Client) searchWindow(ctx context.Context, p spatial.Point, start, end time.Time) (Scene, error) {
	u := fmt.Sprintf("%s/quick-search?%s", c.baseURL, url.Values{
		"geometry":   {fmt.Sprintf("%f,%f", p.Lng, p.Lat)},
		"start":      {start.Format(time.RFC3339)},
		"end":        {end.Format(time.RFC3339)},
		"sort":       {"acquired desc"},
		"page_size":  {"1"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Scene{}, fmt.Errorf("building quick-search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Scene{}, errs.New(sourceName, errs.KindTransient, "quick-search failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return Scene{}, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, string(body))
	}

	var parsed struct {
		Features []Scene `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Scene{}, errs.New(sourceName, errs.KindStructural, "decoding quick-search response", err)
	}

	if len(parsed.Features) == 0 {
		return Scene{}, errs.New(sourceName, errs.KindStructural, "no scene in window", nil)
	}

	return parsed.Features[0], nil
}

func (c *Client) compareChange(ctx context.Context, earliest, latest Scene) (float64, error) {
	u := fmt.Sprintf("%s/compare?%s", c.baseURL, url.Values{
		"scene_a": {earliest.ID},
		"scene_b": {latest.ID},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("building compare request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errs.New(sourceName, errs.KindTransient, "compare request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return 0, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, string(body))
	}

	var parsed struct {
		ChangeScore float64 `json:"change_score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, errs.New(sourceName, errs.KindStructural, "decoding compare response", err)
	}

	return parsed.ChangeScore, nil
}
