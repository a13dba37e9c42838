// Package probe is the single HTTP gateway used by every pipeline stage.
// It owns the shared connection context (one http.Client, one user agent,
// per-host pacing) and turns every transport failure into a TransportError.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultUserAgent identifies the tool to the catalogue
const DefaultUserAgent = "goodreads-ester/1.32"

// maxBodyBytes caps how much of any response is kept in memory
const maxBodyBytes = 8 << 20

// Observer receives one call per finished request. Kind is "" on success.
type Observer interface {
	ObserveProbe(host string, kind Kind)
}

// Options configures a Client
type Options struct {
	UserAgent      string
	RequestsPerSec float64            // per host; 0 means unpaced
	HostRates      map[string]float64 // per-host overrides
	Transport      http.RoundTripper
	Debug          bool
	Observer       Observer
}

// Client issues paced requests with a fixed user agent
type Client struct {
	httpClient *http.Client
	pacer      *politeTransport
	debug      bool
	observer   Observer
}

// Request describes one call. Timeout is chosen by the caller per target.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	JSON    any
	Header  http.Header
	Timeout time.Duration
}

// Response is a fully read response body
type Response struct {
	StatusCode int
	FinalURL   string
	Header     http.Header
	Body       []byte
}

// NewClient creates a new probe client
func NewClient(opts Options) *Client {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	pacer := newPoliteTransport(opts.Transport, ua, opts.RequestsPerSec, opts.HostRates)
	return &Client{
		httpClient: &http.Client{Transport: pacer},
		pacer:      pacer,
		debug:    opts.Debug,
		observer: opts.Observer,
	}
}

// HTTPClient exposes the shared client for SDKs that take an *http.Client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Get is Fetch with GET and no body
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	return c.Fetch(ctx, Request{Method: http.MethodGet, URL: rawURL, Timeout: timeout})
}

// Fetch performs one request. No retries are attempted.
func (c *Client) Fetch(ctx context.Context, r Request) (*Response, error) {
	resp, err := c.fetch(ctx, r)
	if c.observer != nil {
		host := ""
		if u, perr := url.Parse(r.URL); perr == nil {
			host = u.Host
		}
		c.observer.ObserveProbe(host, KindOf(err))
	}
	return resp, err
}

func (c *Client) fetch(ctx context.Context, r Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := r.URL
	if len(r.Params) > 0 {
		u, err := url.Parse(r.URL)
		if err != nil {
			return nil, &TransportError{Kind: KindNetwork, URL: r.URL, Err: err}
		}
		q := u.Query()
		for k, vs := range r.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	ctx, err := c.pace(ctx, target)
	if err != nil {
		return nil, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var body io.Reader
	if r.JSON != nil {
		payload, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, &TransportError{Kind: KindNetwork, URL: target, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &TransportError{Kind: KindNetwork, URL: target, Err: err}
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.JSON != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	if c.debug {
		slog.Debug("probe request", "method", method, "url", target)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Kind: KindTimeout, URL: target, Err: ctx.Err()}
		}
		return nil, classify(target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Kind: KindTimeout, URL: target, Err: err}
		}
		return nil, &TransportError{Kind: KindMalformedBody, URL: target, Err: err}
	}

	if c.debug {
		slog.Debug("probe response", "url", target, "status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))
	}

	if resp.StatusCode >= 400 {
		return nil, &TransportError{Kind: KindHTTPStatus, Code: resp.StatusCode, URL: target}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Stream issues a GET and hands the open response to fn. Used for size probes
// where the body should not be read in full.
func (c *Client) Stream(ctx context.Context, rawURL string, timeout time.Duration, fn func(*http.Response) error) error {
	err := c.stream(ctx, rawURL, timeout, fn)
	if c.observer != nil {
		host := ""
		if u, perr := url.Parse(rawURL); perr == nil {
			host = u.Host
		}
		c.observer.ObserveProbe(host, KindOf(err))
	}
	return err
}

func (c *Client) stream(ctx context.Context, rawURL string, timeout time.Duration, fn func(*http.Response) error) error {
	ctx, err := c.pace(ctx, rawURL)
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &TransportError{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &TransportError{Kind: KindTimeout, URL: rawURL, Err: ctx.Err()}
		}
		return classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &TransportError{Kind: KindHTTPStatus, Code: resp.StatusCode, URL: rawURL}
	}
	if err := fn(resp); err != nil {
		if ctx.Err() != nil {
			return &TransportError{Kind: KindTimeout, URL: rawURL, Err: err}
		}
		return &TransportError{Kind: KindMalformedBody, URL: rawURL, Err: err}
	}
	return nil
}

// pace waits for the host's pacing slot. The request timeout only starts
// once the slot is granted, so a long queue is never reported as a failure
// of the request itself.
func (c *Client) pace(ctx context.Context, rawURL string) (context.Context, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ctx, &TransportError{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	paced, err := c.pacer.wait(ctx, u.Host)
	if err != nil {
		return ctx, &TransportError{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return paced, nil
}

// Ping checks that the host behind rawURL answers at all. Any HTTP status
// counts as reachable; only NETWORK and TIMEOUT failures are returned.
func (c *Client) Ping(ctx context.Context, rawURL string, timeout time.Duration) error {
	_, err := c.Get(ctx, rawURL, timeout)
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) && te.Kind == KindHTTPStatus {
		return nil
	}
	return err
}

// DecodeJSON unmarshals a response body, reporting failures as MALFORMED_BODY
func DecodeJSON(resp *Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &TransportError{Kind: KindMalformedBody, URL: resp.FinalURL, Err: err}
	}
	return nil
}
