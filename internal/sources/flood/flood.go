// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package flood queries the free FEMA-style flood hazard layer service for
// zone classification. A FLOODWAY field is not present on this backend and
// must never be referenced.
package flood

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

const sourceName = "flood"

// Risk tiers, matching internal/evidence's flood tier constants.
const (
	RiskNone     = "NONE"
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
)

var highRiskZones = map[string]bool{
	"A": true, "AE": true, "AO": true, "VE": true, "V": true,
}

// Zone is the raw field set returned by the layer service.
type Zone struct {
	FldZone      string  `json:"FLD_ZONE"`
	SFHATF       string  `json:"SFHA_TF"`
	ZoneSubtype  string  `json:"ZONE_SUBTY"`
	FldAreaID    string  `json:"FLD_AR_ID"`
	StaticBFE    float64 `json:"STATIC_BFE"`
	Hit          bool    `json:"-"`
}

// RiskTier classifies a Zone into NONE|LOW|MODERATE|HIGH per the zone-subtype
// rules: zone X requires inspecting ZONE_SUBTY ("MINIMAL" => low, "500" =>
// moderate); the A/AE/AO/VE/V family is always HIGH regardless of subtype.
func (z Zone) RiskTier() string {
	if !z.Hit {
		return RiskNone
	}

	if highRiskZones[z.FldZone] {
		return RiskHigh
	}

	if z.FldZone == "X" {
		switch z.ZoneSubtype {
		case "MINIMAL":
			return RiskLow
		case "500":
			return RiskModerate
		}
	}

	return RiskNone
}

// Client is the flood hazard adapter.
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

// New builds a flood Client.
func New(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		httpClient: httputil.NewClient(opts.UserAgent, nil, opts.TraceWriter, opts.TraceBody, timeout),
		baseURL:    opts.BaseURL,
	}
}

// Lookup queries the zone layer for p. A response with no matching feature
// is a zero-value Zone (Hit=false), which classifies as RiskNone.
func (c *Client) Lookup(ctx context.Context, p spatial.Point) (Zone, error) {
	u := fmt.Sprintf("%s/query?%s", c.baseURL, url.Values{
		"geometry":   {fmt.Sprintf("%f,%f", p.Lng, p.Lat)},
		"outFields":  {"FLD_ZONE,SFHA_TF,ZONE_SUBTY,FLD_AR_ID,STATIC_BFE"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Zone{}, fmt.Errorf("building flood query request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Zone{}, errs.New(sourceName, errs.KindTransient, "flood query failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return Zone{}, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, string(body))
	}

	var parsed struct {
		Features []Zone `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Zone{}, errs.New(sourceName, errs.KindStructural, "decoding flood query response", err)
	}

	if len(parsed.Features) == 0 {
		return Zone{}, nil
	}

	zone := parsed.Features[0]
	zone.Hit = true

	return zone, nil
}
