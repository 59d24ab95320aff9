// Package feed fetches listing pages through a chain of relays and merges
// them across sources.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"feedviewer/internal/logging"
	"feedviewer/internal/media"
	"feedviewer/internal/metrics"
)

const (
	defaultBaseURL  = "https://www.reddit.com"
	defaultPageSize = 25

	// maxBody caps how much of a relay answer is read.
	maxBody = 8 << 20
)

// HTTPClient is the subset of *http.Client the feed client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets the upstream base URL the listing paths hang off.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRelays replaces the relay chain.
func WithRelays(chain *RelayChain) ClientOption {
	return func(c *Client) {
		c.relays = chain
	}
}

// WithPageSize sets the listing limit per source.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithUserAgent sets the User-Agent sent with each attempt.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// Page is one source's listing page.
type Page struct {
	Source string
	Posts  []media.Post
	After  string
}

// Client fetches a source's listing, trying each relay in order.
type Client struct {
	baseURL    string
	pageSize   int
	userAgent  string
	relays     *RelayChain
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient returns a Client using the direct relay unless WithRelays is
// given.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		pageSize:   defaultPageSize,
		relays:     Direct(),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logging.For("feed"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Relays returns the relay chain in use.
func (c *Client) Relays() *RelayChain {
	return c.relays
}

// PageURL builds the upstream listing URL for source. A leading "r/" on
// the source name is ignored.
func (c *Client) PageURL(source, after string) string {
	name := strings.TrimPrefix(strings.TrimSpace(source), "r/")
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", c.baseURL, name, c.pageSize)
	if after != "" {
		u += "&after=" + url.QueryEscape(after)
	}
	return u
}

// FetchSource fetches one page of source. Relays are tried in order; the
// first structurally valid payload wins. When every relay fails the
// returned *SourceError wraps the last attempt's error.
func (c *Client) FetchSource(ctx context.Context, source, after string) (Page, error) {
	upstream := c.PageURL(source, after)

	var lastErr error
	for _, r := range c.relays.Relays {
		page, err := c.Attempt(ctx, r, upstream)
		if err == nil {
			metrics.RelayAttempts.WithLabelValues(r.Name, "ok").Inc()
			page.Source = source
			return page, nil
		}

		metrics.RelayAttempts.WithLabelValues(r.Name, outcome(err)).Inc()
		c.log.Debug().Err(err).Str("source", source).Str("relay", r.Name).Msg("relay attempt failed")
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no relays configured")
	}
	return Page{Source: source}, &SourceError{Source: source, Err: lastErr}
}

// Attempt asks a single relay for upstream and validates the answer.
func (c *Client) Attempt(ctx context.Context, r Relay, upstream string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL(upstream), nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}

	return DecodePage(body)
}

// DecodePage validates and decodes a listing payload.
func DecodePage(body []byte) (Page, error) {
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		return Page{}, ErrMarkup
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return Page{}, fmt.Errorf("decode listing: %w", err)
	}
	if l.Data == nil || l.Data.Children == nil {
		return Page{}, ErrStructure
	}

	posts := make([]media.Post, 0, len(l.Data.Children))
	for _, ch := range l.Data.Children {
		posts = append(posts, ch.Data)
	}

	return Page{Posts: posts, After: l.Data.After}, nil
}

type listing struct {
	Data *struct {
		After    string  `json:"after"`
		Children []child `json:"children"`
	} `json:"data"`
}

type child struct {
	Data media.Post `json:"data"`
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, ErrMarkup):
		return "markup"
	case errors.Is(err, ErrStructure):
		return "structure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
