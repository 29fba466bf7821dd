package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/utils/metrics"
)

// maxErrorBody bounds how much of a failed response is kept for logging
const maxErrorBody = 4096

// Client is an authenticated REST caller for the Mattermost API. It holds
// only immutable configuration and is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// Option configures Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a Client for the API rooted at baseURL (e.g.
// https://mm.example.com/api/v4/) acting with the bot token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, goerr.New("mattermost token is required", goerr.T(model.TagConfiguration))
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid mattermost URL",
			goerr.T(model.TagConfiguration),
			goerr.V("url", baseURL))
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, goerr.New("mattermost URL must be absolute",
			goerr.T(model.TagConfiguration),
			goerr.V("url", baseURL))
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	client := &Client{
		baseURL:    u,
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Request describes one API call
type Request struct {
	// Operation names the call in logs and metrics
	Operation string
	Method    string
	// Path is relative to the base URL, with segments already escaped
	Path  string
	Query url.Values
	// Body is sent raw when it is a []byte and as JSON otherwise
	Body any
}

// Call performs req and decodes a successful JSON response into out (if not
// nil). A 404 yields an error tagged model.TagNotFound with no platform
// detail, any other failure an error tagged model.TagUpstream.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.ObservePlatformCall(req.Operation, outcome, time.Since(start))
	}()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		outcome = "error"
		return err
	}

	logger := ctxlog.From(ctx)
	logger.Debug("calling mattermost API",
		"operation", req.Operation,
		"method", req.Method,
		"path", req.Path,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		outcome = "error"
		return goerr.Wrap(err, "failed to call mattermost API",
			goerr.T(model.TagUpstream),
			goerr.V("operation", req.Operation))
	}
	defer safeClose(ctx, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		outcome = "not_found"
		// drain so the connection can be reused; the body is never surfaced
		_, _ = io.Copy(io.Discard, resp.Body)
		return goerr.New("not found",
			goerr.T(model.TagNotFound),
			goerr.V("operation", req.Operation))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "error"
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return goerr.New("unexpected status from mattermost API",
			goerr.T(model.TagUpstream),
			goerr.V("operation", req.Operation),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = "error"
		return goerr.Wrap(err, "failed to decode mattermost API response",
			goerr.T(model.TagUpstream),
			goerr.V("operation", req.Operation))
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid API path", goerr.V("path", req.Path))
	}
	u := c.baseURL.ResolveReference(ref)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch v := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(v)
		contentType = "application/octet-stream"
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode request body",
				goerr.V("operation", req.Operation))
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request",
			goerr.V("operation", req.Operation))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	return httpReq, nil
}

func safeClose(ctx context.Context, c io.Closer) {
	if err := c.Close(); err != nil {
		ctxlog.From(ctx).Warn("failed to close response body", "error", err)
	}
}
