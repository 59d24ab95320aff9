package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"feedviewer/internal/feed"
	"feedviewer/internal/metrics"
)

const maxBody = 8 << 20

var errInvalidJSON = errors.New("upstream returned invalid JSON")

// Proxy handles the relay endpoint.
func (s *Server) Proxy(c fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "Content-Type")

	switch c.Method() {
	case fiber.MethodOptions:
		return c.Status(fiber.StatusOK).Send(nil)
	case fiber.MethodGet:
	default:
		return fail(c, fiber.StatusMethodNotAllowed, "Method not allowed")
	}

	target := c.Query("url")
	if target == "" {
		return fail(c, fiber.StatusBadRequest, "Missing url parameter")
	}
	if !s.Allowed(target) {
		return fail(c, fiber.StatusBadRequest, "Invalid URL")
	}

	body, err := s.fetch(c.Context(), target)
	if err != nil {
		var se *feed.StatusError
		if errors.As(err, &se) {
			return fail(c, se.Code, se.Error())
		}
		s.log.Error().Err(err).Str("url", target).Msg("relay error")
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}

// Allowed reports whether target is an http(s) URL on the allowed domain
// or one of its subdomains.
func (s *Server) Allowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == s.domain || strings.HasSuffix(host, "."+s.domain)
}

func (s *Server) fetch(ctx context.Context, target string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &feed.StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errInvalidJSON
	}
	return body, nil
}

func fail(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
