// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package aerial wraps the free, unlimited 1m RGB+NIR aerial imagery
// service: band identification (for NDVI) and PNG export, backed by a
// content-addressed on-disk cache.
package aerial

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/parceldistress/sentinel/internal/cache"
	"github.com/parceldistress/sentinel/internal/errs"
	"github.com/parceldistress/sentinel/internal/httputil"
	"github.com/parceldistress/sentinel/internal/spatial"
)

const sourceName = "aerial"

const cacheTTL = 7 * 24 * time.Hour

// BandValues are the raw reflectance bands returned by identify.
type BandValues struct {
	Red       float64 `json:"red"`
	NIR       float64 `json:"nir"`
	Vintage   string  `json:"vintage"` // lowercase, e.g. "2024-naip"
	IsCurrent bool    `json:"is_current"`
}

// NDVI computes the normalized difference vegetation index from the bands.
func (b BandValues) NDVI() float64 {
	denom := b.NIR + b.Red
	if denom == 0 {
		return 0
	}

	return (b.NIR - b.Red) / denom
}

// Client is the aerial imagery adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.Disk
}

// Options configures Client.
type Options struct {
	BaseURL        string
	UserAgent      string
	CacheDir       string
	TraceWriter    io.Writer
	TraceBody      bool
	RequestTimeout time.Duration
}

// New builds an aerial Client.
func New(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		httpClient: httputil.NewClient(opts.UserAgent, nil, opts.TraceWriter, opts.TraceBody, timeout),
		baseURL:    opts.BaseURL,
		cache:      cache.NewDisk(opts.CacheDir, cacheTTL),
	}
}

// Identify returns the band values at p, using the on-disk cache when
// available. The response is decoded as a single record and returned as-is;
// its category flag and vintage fields are not used to filter it.
func (c *Client) Identify(ctx context.Context, p spatial.Point) (BandValues, error) {
	key := cache.Key(sourceName, "identify", strconv.FormatFloat(p.Lat, 'f', 6, 64), strconv.FormatFloat(p.Lng, 'f', 6, 64))

	var cached BandValues
	if ok, err := c.cache.Get(key, &cached); err == nil && ok {
		return cached, nil
	}

	u := fmt.Sprintf("%s/identify?%s", c.baseURL, url.Values{
		"geometry": {fmt.Sprintf("%f,%f", p.Lng, p.Lat)},
	}.Encode())

	var bands BandValues
	if err := c.getJSON(ctx, u, &bands); err != nil {
		return BandValues{}, err
	}

	if err := c.cache.Put(key, bands); err != nil {
		// A cache-write failure must not fail the identify call itself.
		log.Printf("aerial: caching identify response failed: %v", err)
	}

	return bands, nil
}

// IdentifyFast is the bulk Pass-1 variant: current NDVI only, no history,
// used to keep Pass 1's ~10 parcels/s target throughput.
func (c *Client) IdentifyFast(ctx context.Context, p spatial.Point) (BandValues, error) {
	u := fmt.Sprintf("%s/identify?%s", c.baseURL, url.Values{
		"geometry": {fmt.Sprintf("%f,%f", p.Lng, p.Lat)},
		"fast":     {"true"},
	}.Encode())

	var bands BandValues
	if err := c.getJSON(ctx, u, &bands); err != nil {
		return BandValues{}, err
	}

	return bands, nil
}

// ExportImage returns the raw PNG bytes for the point's exported image.
func (c *Client) ExportImage(ctx context.Context, p spatial.Point) ([]byte, error) {
	u := fmt.Sprintf("%s/exportImage?%s", c.baseURL, url.Values{
		"geometry": {fmt.Sprintf("%f,%f", p.Lng, p.Lat)},
		"format":   {"png"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building exportImage request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.New(sourceName, errs.KindTransient, "exportImage request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, "")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(sourceName, errs.KindTransient, "reading exportImage body", err)
	}

	return data, nil
}

func (c *Client) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.New(sourceName, errs.KindTransient, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return errs.New(sourceName, errs.KindStructural, "decoding response", err)
	}

	return nil
}
