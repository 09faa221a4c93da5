// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package historical reads multi-year NDVI per point from a STAC catalog
// backed by cloud-optimized rasters, exposed as a lazy, restartable,
// deduplicated (year, NDVI) sequence — Pass 1.5's input to the slope
// regression.
package historical

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/parceldistress/sentinel/internal/errs"
	"github.com/parceldistress/sentinel/internal/httputil"
	"github.com/parceldistress/sentinel/internal/scoring"
	"github.com/parceldistress/sentinel/internal/spatial"
)

const sourceName = "historical"

type stacItem struct {
	Year int     `json:"year"`
	NDVI float64 `json:"ndvi"`
}

type stacResponse struct {
	Items []stacItem `json:"items"`
}

// Client is the historical STAC adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Options configures Client.
type Options struct {
	BaseURL        string
	UserAgent      string
	TraceWriter    io.Writer
	TraceBody      bool
	RequestTimeout time.Duration
}

// New builds a historical Client.
func New(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: httputil.NewClient(opts.UserAgent, nil, opts.TraceWriter, opts.TraceBody, timeout),
		baseURL:    opts.BaseURL,
	}
}

// Vintages fetches every STAC item covering p and returns a pull-based,
// year-deduplicated sequence in ascending year order. Tile-boundary points
// can yield two items for the same year; only the first is kept, matching
// scoring.CollectDedup's semantics.
func (c *Client) Vintages(ctx context.Context, p spatial.Point) (scoring.NDVISequence, error) {
	u := fmt.Sprintf("%s/search?%s", c.baseURL, url.Values{
		"geometry": {fmt.Sprintf("%f,%f", p.Lng, p.Lat)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building STAC search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.New(sourceName, errs.KindTransient, "STAC search failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return nil, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, string(body))
	}

	var parsed stacResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.New(sourceName, errs.KindStructural, "decoding STAC search response", err)
	}

	sort.SliceStable(parsed.Items, func(i, j int) bool { return parsed.Items[i].Year < parsed.Items[j].Year })

	seen := make(map[int]bool, len(parsed.Items))
	idx := 0

	return func() (scoring.YearNDVI, bool) {
		for idx < len(parsed.Items) {
			item := parsed.Items[idx]
			idx++

			if seen[item.Year] {
				continue
			}

			seen[item.Year] = true

			return scoring.YearNDVI{Year: item.Year, NDVI: item.NDVI}, true
		}

		// Exhausted: rewind so the next pull restarts the sequence.
		idx = 0
		seen = make(map[int]bool, len(parsed.Items))

		return scoring.YearNDVI{}, false
	}, nil
}
