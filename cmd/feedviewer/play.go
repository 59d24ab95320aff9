package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"feedviewer/internal/filter"
	"feedviewer/internal/logging"
	"feedviewer/internal/media"
	"feedviewer/internal/prefs"
	"feedviewer/internal/viewer"
	"feedviewer/internal/vlc"
)

// lineKeys maps typed words to key names. Anything else is passed through.
var lineKeys = map[string]string{
	"":      "Enter",
	"space": " ",
	"esc":   "Escape",
	"back":  "Backspace",
	"left":  "ArrowLeft",
	"right": "ArrowRight",
}

// playCmd loads sources and runs the slideshow on a VLC surface. Keys are
// read one per line from stdin.
func playCmd(a *app) *cobra.Command {
	var (
		ff       filterFlags
		auto     bool
		random   bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "play [subreddit...]",
		Short: "Play the media slideshow through VLC",
		Long: `Play the media slideshow through VLC.

Type a key per line: Enter opens or pauses, left/right (or h/l) navigate,
f toggles fullscreen, esc closes, a/A start auto-play (A from a random
post). "peek N" previews post N, "unpeek" stops it, "quit" exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, names, err := ff.resolve(a, cmd, args)
			if err != nil {
				return err
			}
			defer a.writeMetrics(ff.metrics)
			if interval <= 0 {
				interval = a.cfg.SlideInterval
			}

			chain, err := a.relays(ff.direct)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			agg := a.aggregator(chain)
			res, err := agg.Load(ctx, names)
			if err != nil {
				return err
			}
			a.logSourceErrors(res)
			all := agg.Posts()

			loop := viewer.NewLoop()
			player, err := vlc.New(loop.Post, vlc.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer player.Close()

			sched := viewer.NewLoopScheduler(loop)
			ctrl := viewer.NewController(player, player, sched,
				viewer.WithInterval(interval),
				viewer.WithLogger(logging.For("viewer")),
			)
			hover := viewer.NewHoverPreview(player, sched, logging.For("hover"))

			watcher, err := prefs.NewWatcher(a.store(), func(np prefs.Prefs) {
				loop.Post(func() {
					ctrl.SetPosts(filter.Apply(all, np.Filter(), nil))
					a.log.Info().Int("posts", len(ctrl.Posts())).Msg("filters reloaded")
				})
			})
			if err != nil {
				return err
			}
			go func() {
				if err := watcher.Start(); err != nil {
					a.log.Warn().Err(err).Msg("preferences watcher")
				}
			}()
			defer watcher.Stop()

			session := &playSession{ctrl: ctrl, hover: hover, player: player, stop: stop, log: logging.For("play")}
			go session.readKeys(ctx, loop, cmd.InOrStdin())

			loop.Post(func() {
				ctrl.SetPosts(filter.Apply(all, p.Filter(), nil))
				if auto {
					if err := ctrl.StartAutoPlay(random); err != nil {
						a.log.Error().Err(err).Msg("auto-play")
						stop()
					}
					return
				}
				ctrl.Open(0, true)
			})

			err = loop.Run(ctx)
			// The loop has exited: this goroutine now owns the viewer.
			ctrl.Close()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	ff.bind(cmd)
	cmd.Flags().BoolVar(&auto, "auto", false, "Start in auto-play mode (fullscreen, videos play to the end)")
	cmd.Flags().BoolVar(&random, "random", false, "Start auto-play from a random post")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Slideshow interval (default from FEEDVIEWER_SLIDE_INTERVAL)")
	return cmd
}

// playSession turns input lines into viewer commands.
type playSession struct {
	ctrl   *viewer.Controller
	hover  *viewer.HoverPreview
	player viewer.Element
	stop   context.CancelFunc
	log    zerolog.Logger
}

// readKeys forwards input lines to the loop. End of input leaves the
// viewer running; only "quit" or a signal stops it.
func (s *playSession) readKeys(ctx context.Context, loop *viewer.Loop, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" {
			s.stop()
			return
		}
		if !loop.Post(func() { s.handle(line) }) || ctx.Err() != nil {
			return
		}
	}
}

// handle runs on the viewer loop.
func (s *playSession) handle(line string) {
	if rest, ok := strings.CutPrefix(line, "peek "); ok {
		s.peek(rest)
		return
	}
	if line == "unpeek" {
		s.hover.Leave()
		return
	}

	key := line
	if k, ok := lineKeys[line]; ok {
		key = k
	}
	open := s.ctrl.State().Open()
	cmd, ok := viewer.KeyCommand(key, open)
	if !ok {
		return
	}
	// The preview shares the player with the viewer.
	if !open && s.hover.Active() {
		s.hover.Leave()
	}
	if err := s.ctrl.Dispatch(cmd); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("command rejected")
	}
}

// peek previews a post without opening the viewer.
func (s *playSession) peek(arg string) {
	if s.ctrl.State().Open() {
		return
	}
	idx, err := strconv.Atoi(strings.TrimSpace(arg))
	posts := s.ctrl.Posts()
	if err != nil || idx < 0 || idx >= len(posts) {
		return
	}

	res := media.Classify(posts[idx])
	if !res.Kind.TimeBased() {
		return
	}
	s.hover.Leave()
	if err := s.player.Load(viewer.Source{URL: res.URL, Poster: res.Thumbnail, Loop: true, Muted: true}); err != nil {
		return
	}
	s.hover.Enter()
}
