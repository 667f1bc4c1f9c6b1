// Package webapp talks to a spreadsheet web app endpoint (an Apps Script
// deployment or anything with the same contract): POST a JSON body to push,
// GET to pull the whole state back.
package webapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/remote"
)

var ErrInvalidURL = errors.New("invalid web app url")

// maxBody caps pull responses.
const maxBody = 32 << 20

type Client struct {
	url  string
	http *http.Client
}

var _ remote.Client = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// New validates rawURL and returns a client for it. Only absolute http(s)
// URLs are accepted.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	c := &Client{url: u.String(), http: newHTTPClientWithPooling()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// newHTTPClientWithPooling keeps connections to the endpoint alive between
// pushes.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// Push posts the sync_all snapshot.
func (c *Client) Push(ctx context.Context, s core.Snapshot) error {
	if s.Action == "" {
		s.Action = core.ActionSyncAll
	}
	return c.post(ctx, s)
}

// Publish posts a single audit event.
func (c *Client) Publish(ctx context.Context, ev core.Event) error {
	return c.post(ctx, ev)
}

func (c *Client) post(ctx context.Context, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post to web app: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("post to web app: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Pull fetches the remote state object.
func (c *Client) Pull(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch from web app: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch from web app: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read web app response: %w", err)
	}
	return body, nil
}
