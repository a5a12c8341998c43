// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianSwarm/pkg/logging"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds one HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// apiVersion pins the REST API revision.
	apiVersion = "2022-11-28"

	// maxBlobBytes caps fetched file content. Import extraction reads
	// source files, not archives.
	maxBlobBytes = 1 << 20

	// defaultRequestsPerSecond paces outbound calls well below the
	// authenticated REST quota.
	defaultRequestsPerSecond = 8

	// retryBase seeds the fibonacci backoff applied to transient failures.
	retryBase  = 500 * time.Millisecond
	maxRetries = 3
)

// Options configures the GitHub client.
type Options struct {
	// Token is the bearer token. Empty means unauthenticated, which works
	// against public repositories at a much smaller quota.
	Token string

	// BaseURL overrides the API endpoint, for GitHub Enterprise or tests.
	BaseURL string

	// Timeout bounds each HTTP round trip. Defaults to 30s.
	Timeout time.Duration

	// RequestsPerSecond caps the outbound request rate. Defaults to 8.
	RequestsPerSecond float64
}

// GitHub implements Client over the GitHub REST v3 API.
//
// # Description
//
// Every call is paced by a client-side limiter, retried with fibonacci
// backoff on network errors and 5xx responses, and checked for a spent
// rate-limit window. Branch heads fetched through GetHead land in an
// in-process HeadCache that GetHeadCached consults first.
//
// # Thread Safety
//
// Safe for concurrent use.
type GitHub struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	heads   *HeadCache
	log     *logging.Logger
}

var _ Client = (*GitHub)(nil)

// NewGitHub returns a ready client. Zero option fields take defaults.
func NewGitHub(opts Options, log *logging.Logger) *GitHub {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if log == nil {
		log = logging.Default()
	}
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	initMetrics()
	return &GitHub{
		token:   opts.Token,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		heads:   NewHeadCache(),
		log:     log,
	}
}

// GetHead returns the commit id at the tip of branch and refreshes the head
// cache with it.
func (g *GitHub) GetHead(ctx context.Context, repo Repo, branch string) (string, error) {
	ctx, span := tracer.Start(ctx, "remote.GetHead",
		trace.WithAttributes(
			attribute.String("repo", repo.String()),
			attribute.String("branch", branch),
		),
	)
	defer span.End()

	var out struct {
		SHA string `json:"sha"`
	}
	path := fmt.Sprintf("/repos/%s/%s/commits/%s",
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(branch))
	if err := g.getJSON(ctx, "get_head", path, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if out.SHA == "" {
		return "", fmt.Errorf("remote: empty head for %s@%s", repo, branch)
	}

	g.heads.Put(repo, branch, out.SHA)
	return out.SHA, nil
}

// GetHeadCached serves the head from the in-process cache when it is younger
// than maxAge, falling back to a real fetch otherwise.
func (g *GitHub) GetHeadCached(ctx context.Context, repo Repo, branch string, maxAge time.Duration) (string, error) {
	if sha, ok := g.heads.Get(repo, branch, maxAge); ok {
		return sha, nil
	}
	return g.GetHead(ctx, repo, branch)
}

// GetTreeRecursive lists every blob reachable from one commit.
func (g *GitHub) GetTreeRecursive(ctx context.Context, repo Repo, commitSHA string) (*Tree, error) {
	ctx, span := tracer.Start(ctx, "remote.GetTreeRecursive",
		trace.WithAttributes(
			attribute.String("repo", repo.String()),
			attribute.String("sha", commitSHA),
		),
	)
	defer span.End()

	var out struct {
		SHA       string `json:"sha"`
		Truncated bool   `json:"truncated"`
		Tree      []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
			Size int64  `json:"size"`
		} `json:"tree"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1",
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(commitSHA))
	if err := g.getJSON(ctx, "get_tree", path, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tree := &Tree{
		SHA:       out.SHA,
		Truncated: out.Truncated,
		Entries:   make([]TreeEntry, 0, len(out.Tree)),
	}
	for _, e := range out.Tree {
		if e.Type != "blob" {
			continue
		}
		tree.Entries = append(tree.Entries, TreeEntry{Path: e.Path, SHA: e.SHA, Size: e.Size})
	}
	if tree.Truncated {
		g.log.Warn("recursive tree listing truncated by remote",
			"repo", repo.String(), "sha", commitSHA)
	}
	span.SetAttributes(attribute.Int("blobs", len(tree.Entries)))
	return tree, nil
}

// GetFileContent fetches one blob as UTF-8 text.
func (g *GitHub) GetFileContent(ctx context.Context, repo Repo, path, blobSHA string) (string, error) {
	ctx, span := tracer.Start(ctx, "remote.GetFileContent",
		trace.WithAttributes(
			attribute.String("repo", repo.String()),
			attribute.String("path", path),
		),
	)
	defer span.End()

	var out struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		Size     int64  `json:"size"`
	}
	apiPath := fmt.Sprintf("/repos/%s/%s/git/blobs/%s",
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(blobSHA))
	if err := g.getJSON(ctx, "get_blob", apiPath, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if out.Size > maxBlobBytes {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrContentSkipped, path, out.Size)
	}

	var text string
	switch out.Encoding {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode blob %s (%s): %w", blobSHA, path, err)
		}
		text = string(decoded)
	case "utf-8", "":
		text = out.Content
	default:
		return "", fmt.Errorf("%w: %s has unsupported encoding %q", ErrContentSkipped, path, out.Encoding)
	}

	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrContentSkipped, path)
	}
	return text, nil
}

// getJSON performs one GET with pacing, retry, and quota detection.
//
// Network errors and 5xx responses retry with fibonacci backoff up to
// maxRetries. Quota exhaustion, missing resources, and other 4xx responses
// are permanent.
func (g *GitHub) getJSON(ctx context.Context, op, path string, out interface{}) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		start := time.Now()
		err := g.fetchOnce(ctx, path, out)
		observe(ctx, op, start, err)
		return err
	})
}

// fetchOnce executes a single attempt. Retryable failures are wrapped with
// retry.RetryableError; everything else aborts the backoff loop.
func (g *GitHub) fetchOnce(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("github %s: %w", path, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode github response for %s: %w", path, err)
		}
		return nil
	case quotaExhausted(resp):
		if quotaTotal != nil {
			quotaTotal.Add(ctx, 1)
		}
		return newQuotaError(resp)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("github %s returned %d", path, resp.StatusCode))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// quotaExhausted reports whether the response is a spent rate-limit window
// rather than an ordinary permission failure.
func quotaExhausted(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return resp.Header.Get("X-RateLimit-Remaining") == "0" ||
			resp.Header.Get("Retry-After") != ""
	}
	return false
}

// newQuotaError derives the reset instant from rate-limit response headers.
func newQuotaError(resp *http.Response) error {
	var resetAt time.Time
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			resetAt = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
	if resetAt.IsZero() {
		if s := resp.Header.Get("X-RateLimit-Reset"); s != "" {
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil && unix > 0 {
				resetAt = time.Unix(unix, 0)
			}
		}
	}
	return &QuotaError{ResetAt: resetAt}
}
