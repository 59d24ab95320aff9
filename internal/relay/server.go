// Package relay serves the feed relay endpoint: a CORS-enabled GET that
// fetches an allowed upstream URL and passes its JSON body through.
package relay

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"golang.org/x/time/rate"

	"feedviewer/internal/config"
	"feedviewer/internal/logging"
)

// Path is the relay endpoint route.
const Path = "/api/proxy"

// HTTPClient performs upstream requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the relay server.
type Options struct {
	AllowedDomain string
	UserAgent     string
	Timeout       time.Duration

	// RPS and Burst pace upstream requests. RPS <= 0 disables pacing.
	RPS   float64
	Burst int

	Client   HTTPClient
	Registry *prometheus.Registry
	Logger   *zerolog.Logger
}

// OptionsFromConfig maps the loaded configuration onto server options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AllowedDomain: cfg.AllowedDomain,
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.Timeout,
		RPS:           cfg.UpstreamRPS,
		Burst:         cfg.UpstreamBurst,
	}
}

// Server is the relay endpoint.
type Server struct {
	domain    string
	userAgent string
	client    HTTPClient
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// New builds the fiber app with the middleware stack and all routes.
func New(opts Options) *fiber.App {
	s := newServer(opts)

	app := fiber.New(fiber.Config{
		AppName:      "feedviewer relay",
		ServerHeader: "feedviewer",
	})

	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(requestLogger(s.log))
	app.Use(requestMetrics())

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if opts.Registry != nil {
		app.Get("/metrics", metricsHandler(opts.Registry))
	}

	app.All(Path, s.Proxy)
	return app
}

func newServer(opts Options) *Server {
	s := &Server{
		domain:    strings.ToLower(opts.AllowedDomain),
		userAgent: opts.UserAgent,
		client:    opts.Client,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		log:       logging.For("relay"),
	}
	if s.domain == "" {
		s.domain = "reddit.com"
	}
	if s.userAgent == "" {
		s.userAgent = config.DefaultUserAgent
	}
	if s.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		s.client = &http.Client{Timeout: timeout}
	}
	if opts.RPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(opts.Burst, 1))
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	return s
}

// metricsHandler serves the Prometheus registry via fiber.
func metricsHandler(reg *prometheus.Registry) fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
