// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package vacancy wraps the carrier-confirmed vacancy address service: OAuth
// client-credentials per account, mandatory inter-call jitter, exponential
// backoff on 429, and independent quota/backoff state per credential.
package vacancy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/errs"
	"github.com/parceldistress/sentinel/internal/httputil"
	"github.com/parceldistress/sentinel/internal/ratelimit"
	"github.com/parceldistress/sentinel/internal/textnorm"
)

const sourceName = "vacancy"

const testEndpointSuffix = "/test"

// Record is the carrier-confirmed vacancy result for a single address
// lookup.
type Record struct {
	AddressNormalized string
	CityNormalized    string
	ZIPNormalized     string
	ZIP4Normalized    string
	Vacant            bool
	DPVConfirmed      bool
	Business          bool
	AddressMismatch   bool
	ErrorCode         string
}

// Account is one live credential's client plus its independent jitter and
// backoff state.
type Account struct {
	Name       string
	httpClient *http.Client
	jitter     ratelimit.JitterSleeper
	backoff    *ratelimit.Backoff
}

// Client pools multiple accounts, round-robining lookups one at a time per
// account — never concurrently within an account, since the 60/hour quota
// is token-scoped.
type Client struct {
	baseURL  string
	accounts []*Account
	next     int
}

// Options configures Client.
type Options struct {
	BaseURL        string
	TokenURL       string
	Accounts       []config.VacancyAccount
	UserAgent      string
	DelayMin       time.Duration
	DelayMax       time.Duration
	UseTestEP      bool
	TraceWriter    io.Writer
	TraceBody      bool
	RequestTimeout time.Duration
}

// New builds a vacancy Client with one Account per configured credential.
func New(ctx context.Context, opts Options) (*Client, error) {
	if len(opts.Accounts) == 0 {
		return nil, errs.New(sourceName, errs.KindAuth, "no vacancy credentials configured", nil)
	}

	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	baseURL := opts.BaseURL
	if opts.UseTestEP {
		baseURL += testEndpointSuffix
	}

	accounts := make([]*Account, 0, len(opts.Accounts))

	for _, cred := range opts.Accounts {
		oauthCfg := &clientcredentials.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			TokenURL:     opts.TokenURL,
		}

		base := httputil.NewClient(opts.UserAgent, nil, opts.TraceWriter, opts.TraceBody, timeout)
		oauthClient := oauthCfg.Client(context.WithValue(ctx, oauth2.HTTPClient, base))

		accounts = append(accounts, &Account{
			Name:       cred.Name(),
			httpClient: oauthClient,
			jitter:     ratelimit.JitterSleeper{Min: opts.DelayMin, Max: opts.DelayMax},
			backoff:    ratelimit.NewBackoff(),
		})
	}

	return &Client{baseURL: baseURL, accounts: accounts}, nil
}

// Lookup checks address for carrier-confirmed vacancy using the next
// account in rotation, sleeping the mandatory jitter interval before the
// call and applying that account's exponential backoff on 429. It returns
// the account name used so callers can attribute an audit row to it.
func (c *Client) Lookup(ctx context.Context, address, city, zip string) (Record, string, error) {
	account := c.accounts[c.next]
	c.next = (c.next + 1) % len(c.accounts)

	if err := account.jitter.Sleep(ctx); err != nil {
		return Record{}, account.Name, err
	}

	for {
		rec, retryAfter, err := c.doLookup(ctx, account, address, city, zip)
		if err == nil {
			account.backoff.Reset()

			return rec, account.Name, nil
		}

		if !errs.IsRateLimit(err) {
			return Record{}, account.Name, err
		}

		delay := account.backoff.Next(retryAfter)

		select {
		case <-ctx.Done():
			return Record{}, account.Name, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) doLookup(ctx context.Context, account *Account, address, city, zip string) (Record, time.Duration, error) {
	u := fmt.Sprintf("%s/lookup?%s", c.baseURL, url.Values{
		"street": {textnorm.NormalizeAddress(address)},
		"city":   {textnorm.NormalizeAddress(city)},
		"zip":    {textnorm.NormalizeZIP(zip)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Record{}, 0, fmt.Errorf("building vacancy lookup request: %w", err)
	}

	resp, err := account.httpClient.Do(req)
	if err != nil {
		return Record{}, 0, errs.New(sourceName, errs.KindTransient, "lookup request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := httputil.ParseRetryAfter(resp.Header.Get("Retry-After"), 0)

		return Record{}, retryAfter, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, "")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return Record{}, 0, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, "")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return Record{}, 0, errs.ClassifyHTTPStatus(sourceName, resp.StatusCode, string(body))
	}

	var parsed struct {
		DeliveryPoint struct {
			Vacant       bool   `json:"vacant"`
			DPVConfirmed bool   `json:"dpv_confirmed"`
			Business     bool   `json:"business"`
			Address      string `json:"delivery_line_1"`
			City         string `json:"city_name"`
			ZIPCode      string `json:"zipcode"`
			Plus4Code    string `json:"plus4_code"`
		} `json:"delivery_point"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Record{}, 0, errs.New(sourceName, errs.KindStructural, "decoding lookup response", err)
	}

	resolved := textnorm.NormalizeAddress(parsed.DeliveryPoint.Address)
	requested := textnorm.NormalizeAddress(address)

	return Record{
		AddressNormalized: resolved,
		CityNormalized:    textnorm.NormalizeAddress(parsed.DeliveryPoint.City),
		ZIPNormalized:     textnorm.NormalizeZIP(parsed.DeliveryPoint.ZIPCode),
		ZIP4Normalized:    parsed.DeliveryPoint.Plus4Code,
		Vacant:            parsed.DeliveryPoint.Vacant,
		DPVConfirmed:      parsed.DeliveryPoint.DPVConfirmed,
		Business:          parsed.DeliveryPoint.Business,
		AddressMismatch:   resolved != "" && resolved != requested,
		ErrorCode:         parsed.ErrorCode,
	}, 0, nil
}
