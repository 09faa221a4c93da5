// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package satellite wraps the quota-bounded satellite NDVI statistics
// endpoint (OAuth client-credentials, 300 req/min, 10,000 req/month) used
// by Pass 1.5b. The free fallback for an empty series is not part of this
// package: Pass 1.5b calls the aerial client for it.
package satellite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/parceldistress/sentinel/internal/errs"
	"github.com/parceldistress/sentinel/internal/httputil"
	"github.com/parceldistress/sentinel/internal/ratelimit"
	"github.com/parceldistress/sentinel/internal/spatial"
)

const sourceName = "satellite"

// gridSize is the explicit pixel-grid dimension the statistical endpoint
// must be requested with; requesting by resolution instead yields all
// zeros on this backend.
const gridSize = 50

// MonthlyNDVI is one month's aggregated NDVI statistic.
type MonthlyNDVI struct {
	Month int     `json:"month"`
	Year  int     `json:"year"`
	Mean  float64 `json:"mean"`
}

// Client is the satellite NDVI statistics adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	maxRetries int
}

// Options configures Client.
type Options struct {
	BaseURL        string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	UserAgent      string
	TraceWriter    io.Writer
	TraceBody      bool
	RequestTimeout time.Duration

	PerMinuteLimit int // default 300
	MonthlyQuota   int // default 10000
	MaxRetries     int // default 3, internal retry on 429
}

// New builds a satellite Client backed by an OAuth2 client-credentials
// token source.
func New(ctx context.Context, opts Options) *Client {
	perMinute := opts.PerMinuteLimit
	if perMinute == 0 {
		perMinute = 300
	}

	monthlyQuota := opts.MonthlyQuota
	if monthlyQuota == 0 {
		monthlyQuota = 10_000
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	oauthCfg := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	base := httputil.NewClient(opts.UserAgent, nil, opts.TraceWriter, opts.TraceBody, timeout)
	oauthClient := oauthCfg.Client(context.WithValue(ctx, oauth2.HTTPClient, base))

	return &Client{
		httpClient: oauthClient,
		baseURL:    opts.BaseURL,
		limiter:    ratelimit.NewLimiter(perMinute, monthlyQuota),
		maxRetries: maxRetries,
	}
}

// StatsNDVI requests the per-month mean NDVI series for p over the last
// months months, explicitly as a 50x50 pixel grid with a data-mask band
// declared on both input and output.
func (c *Client) StatsNDVI(ctx context.Context, p spatial.Point, months int) ([]MonthlyNDVI, error) {
	payload := map[string]any{
		"geometry": map[string]float64{"lat": p.Lat, "lng": p.Lng},
		"months":   months,
		"width":    gridSize,
		"height":   gridSize,
		"evalscript": map[string]any{
			"input_bands":  []string{"B04", "B08", "dataMask"},
			"output_bands": []string{"ndvi", "dataMask"},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding satellite stats request: %w", err)
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.New(sourceName, errs.KindRateLimit, "monthly/per-minute quota exceeded", err)
		}

		series, retryAfter, err := c.doStatsRequest(ctx, body)
		if err == nil {
			return series, nil
		}

		lastErr = err

		if !errs.IsRateLimit(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryAfter):
		}
	}

	return nil, lastErr
}

func (c *Client) doStatsRequest(ctx context.Context, body []byte) ([]MonthlyNDVI, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/statistics", httputil.NewJSONBody(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building stats request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errs.New(sourceName, errs.KindTransient, "stats request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := httputil.ParseRetryAfter(resp.Header.Get("Retry-After"), 5*time.Second)

		return nil, retryAfter, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, "")
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return nil, 0, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Series []MonthlyNDVI `json:"series"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, errs.New(sourceName, errs.KindStructural, "decoding stats response", err)
	}

	return parsed.Series, 0, nil
}
