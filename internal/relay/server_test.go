package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedviewer/internal/metrics"
)

const listing = `{"data":{"after":"t3_x","children":[{"data":{"id":"a","title":"Alpine lake"}}]}}`

type upstream struct {
	*httptest.Server
	hits      atomic.Int32
	userAgent atomic.Value
	accept    atomic.Value
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.userAgent.Store(r.Header.Get("User-Agent"))
		u.accept.Store(r.Header.Get("Accept"))
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(u.Close)
	return u
}

func newApp() *fiber.App {
	nop := zerolog.Nop()
	return New(Options{AllowedDomain: "127.0.0.1", UserAgent: "feedviewer-test", Logger: &nop})
}

func proxyRequest(method, target string) *http.Request {
	path := Path
	if target != "" {
		path += "?url=" + url.QueryEscape(target)
	}
	return httptest.NewRequest(method, path, nil)
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestProxyPassesThrough(t *testing.T) {
	up := newUpstream(t, http.StatusOK, listing)

	resp, err := newApp().Test(proxyRequest(http.MethodGet, up.URL+"/r/pics/hot.json?limit=25&raw_json=1"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, listing, string(body))

	assert.Equal(t, "feedviewer-test", up.userAgent.Load())
	assert.Equal(t, "application/json", up.accept.Load())
}

func TestProxyPreflight(t *testing.T) {
	resp, err := newApp().Test(proxyRequest(http.MethodOptions, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	body, _ := io.ReadAll(resp.Body)
	assert.Empty(t, body)
}

func TestProxyRejections(t *testing.T) {
	up := newUpstream(t, http.StatusOK, listing)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		msg    string
	}{
		{"method", proxyRequest(http.MethodPost, up.URL), http.StatusMethodNotAllowed, "Method not allowed"},
		{"missing", proxyRequest(http.MethodGet, ""), http.StatusBadRequest, "Missing url parameter"},
		{"foreign host", proxyRequest(http.MethodGet, "https://example.com/r/pics.json"), http.StatusBadRequest, "Invalid URL"},
		{"lookalike host", proxyRequest(http.MethodGet, "https://127.0.0.1.evil.test/"), http.StatusBadRequest, "Invalid URL"},
		{"scheme", proxyRequest(http.MethodGet, "file:///etc/passwd"), http.StatusBadRequest, "Invalid URL"},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(tt.req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decodeError(t, resp))
		})
	}
	assert.Zero(t, up.hits.Load())
}

func TestProxyMirrorsUpstreamStatus(t *testing.T) {
	up := newUpstream(t, http.StatusTooManyRequests, "slow down")

	resp, err := newApp().Test(proxyRequest(http.MethodGet, up.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "HTTP 429", decodeError(t, resp))
}

func TestProxyInvalidUpstreamBody(t *testing.T) {
	up := newUpstream(t, http.StatusOK, "<html>blocked</html>")

	resp, err := newApp().Test(proxyRequest(http.MethodGet, up.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, errInvalidJSON.Error(), decodeError(t, resp))
}

func TestProxyUpstreamUnreachable(t *testing.T) {
	up := newUpstream(t, http.StatusOK, listing)
	target := up.URL
	up.Close()

	resp, err := newApp().Test(proxyRequest(http.MethodGet, target))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, decodeError(t, resp))
}

func TestProxyCountsResponses(t *testing.T) {
	before := testutil.ToFloat64(metrics.RelayRequests.WithLabelValues("400"))

	resp, err := newApp().Test(proxyRequest(http.MethodGet, ""))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RelayRequests.WithLabelValues("400")))
}

func TestAllowed(t *testing.T) {
	s := newServer(Options{})

	assert.True(t, s.Allowed("https://www.reddit.com/r/pics/hot.json"))
	assert.True(t, s.Allowed("https://reddit.com/r/pics/hot.json"))
	assert.True(t, s.Allowed("https://OLD.Reddit.com/r/pics"))
	assert.False(t, s.Allowed("https://notreddit.com/"))
	assert.False(t, s.Allowed("https://reddit.com.evil.test/"))
	assert.False(t, s.Allowed("ftp://reddit.com/"))
	assert.False(t, s.Allowed("::not a url"))
}

func TestHealthAndMetrics(t *testing.T) {
	nop := zerolog.Nop()
	app := New(Options{Registry: metrics.NewRegistry(), Logger: &nop})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "feedviewer_upstream_duration_seconds"))
}
