// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputil provides shared http.RoundTripper layers used by every
// remote-source client: request/response tracing, header injection, and a
// cookie jar that enforces an expiration on cookies upstreams send without
// one.
package httputil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LoggingRoundTripper adds primitive request/response tracing to an HTTP
// transaction. A nil Writer disables tracing entirely.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 2048, 512

	for i, line := range lines {
		if i < maxLines {
			lines[i] = fmt.Sprintf("%c %s", prefix, line)
		} else {
			break
		}
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines = append(lines, "…")
	}

	for i, line := range lines {
		if len(line) > maxChars {
			lines[i] = line[0:maxChars] + "…"
		}
	}

	return lines
}

func (t *LoggingRoundTripper) dumpRequest(req *http.Request) error {
	dump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '>')
	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

func (t *LoggingRoundTripper) dumpResponse(resp *http.Response, duration time.Duration) error {
	dump, err := httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '<')

	_, err = fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n", duration)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	if err := t.dumpRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := t.dumpResponse(resp, time.Since(start)); err != nil {
		return nil, err
	}

	return resp, nil
}

// AppendRequestHeadersRoundTripper injects static headers into every
// request, used for User-Agent and for the high-res client's
// `api-key <token>` header auth.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	return t.Transport.RoundTrip(req)
}

// EnforceExpirationCookieJar wraps a cookiejar.Jar and assigns an expiration
// to any cookie upstream sends without one.
type EnforceExpirationCookieJar struct {
	Target   *cookiejar.Jar
	Duration time.Duration
}

// SetCookies implements http.CookieJar.
func (t *EnforceExpirationCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	now := time.Now()

	for _, cookie := range cookies {
		if cookie.Expires.IsZero() {
			cookie.Expires = now.Add(t.Duration)
		}
	}

	(*t.Target).SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (t *EnforceExpirationCookieJar) Cookies(u *url.URL) []*http.Cookie {
	return (*t.Target).Cookies(u)
}

// NewClient builds the standard layered client shared by every remote-source
// client: header injection over request/response tracing over a bounded
// transport.
func NewClient(userAgent string, headers map[string]string, traceWriter io.Writer, dumpBody bool, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   8,
		MaxConnsPerHost:       8,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	loggingTransport := &LoggingRoundTripper{
		Writer:    traceWriter,
		DumpBody:  dumpBody,
		Transport: transport,
	}

	h := map[string]string{"User-Agent": userAgent}
	for k, v := range headers {
		h[k] = v
	}

	headerTransport := &AppendRequestHeadersRoundTripper{
		Headers:   h,
		Transport: loggingTransport,
	}

	// cookiejar.New with default options never fails.
	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Timeout:   timeout,
		Transport: headerTransport,
		Jar:       &EnforceExpirationCookieJar{Target: jar, Duration: time.Hour},
	}
}

// NewJSONBody wraps a marshalled JSON payload as an io.Reader suitable for
// http.NewRequestWithContext.
func NewJSONBody(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// ParseRetryAfter parses a Retry-After header value (seconds form) into a
// duration, falling back to def when the header is absent or malformed.
func ParseRetryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}

	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return def
	}

	return time.Duration(secs) * time.Second
}
