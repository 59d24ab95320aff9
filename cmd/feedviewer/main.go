// feedviewer: aggregates media posts from many subreddits, renders them as
// a terminal grid and plays them full screen through VLC.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"feedviewer/internal/config"
	"feedviewer/internal/feed"
	"feedviewer/internal/logging"
	"feedviewer/internal/metrics"
	"feedviewer/internal/prefs"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every command shares once flags are parsed.
type app struct {
	envFile  string
	logLevel string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "feedviewer",
		Short:         "feedviewer: multi-subreddit media grid and slideshow",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file (ignored when missing)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(serveCmd(a))
	root.AddCommand(fetchCmd(a))
	root.AddCommand(playCmd(a))
	root.AddCommand(checkCmd(a))
	root.AddCommand(prefsCmd(a))
	root.AddCommand(versionCmd())

	return root
}

func (a *app) setup() {
	a.cfg = config.Load(a.envFile)
	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.log = logging.Init(level, a.cfg.LogFormat, "feedviewer")
}

// relays returns the configured relay chain. direct bypasses relays.
func (a *app) relays(direct bool) (*feed.RelayChain, error) {
	if direct {
		return feed.Direct(), nil
	}
	if a.cfg.RelaysFile != "" {
		chain, err := feed.LoadRelays(a.cfg.RelaysFile)
		if err != nil {
			return nil, fmt.Errorf("relay load: %w", err)
		}
		return chain, nil
	}
	return feed.DefaultRelays(a.cfg.LocalRelay), nil
}

func (a *app) client(chain *feed.RelayChain) *feed.Client {
	return feed.NewClient(
		feed.WithBaseURL(a.cfg.UpstreamBase),
		feed.WithRelays(chain),
		feed.WithPageSize(a.cfg.PageSize),
		feed.WithUserAgent(a.cfg.UserAgent),
		feed.WithHTTPClient(&http.Client{Timeout: a.cfg.Timeout}),
	)
}

func (a *app) aggregator(chain *feed.RelayChain, opts ...feed.AggregatorOption) *feed.Aggregator {
	opts = append([]feed.AggregatorOption{
		feed.WithBatchWidth(a.cfg.BatchWidth),
		feed.WithBatchPause(a.cfg.BatchPause),
	}, opts...)
	return feed.NewAggregator(a.client(chain), opts...)
}

func (a *app) store() *prefs.Store {
	return prefs.NewStore(a.cfg.PrefsPath)
}

// sources takes names from args, falling back to the stored preferences.
func sources(args []string, p prefs.Prefs) ([]string, error) {
	names := p.Sources()
	if len(args) > 0 {
		names = prefs.ParseSources(strings.Join(args, ","))
	}
	if len(names) == 0 {
		return nil, prefs.ErrNoSources
	}
	return names, nil
}

// logSourceErrors reports sources that failed while others succeeded.
func (a *app) logSourceErrors(res feed.Result) {
	for _, se := range res.Errors {
		a.log.Warn().Str("source", se.Source).Err(se.Err).Msg("source failed")
	}
}

// writeMetrics dumps this process's collectors to path in the textfile
// collector format. An empty path does nothing.
func (a *app) writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, metrics.NewRegistry()); err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("write metrics")
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feedviewer %s\nBuilt: %s\n", version, buildTime)
		},
	}
}
