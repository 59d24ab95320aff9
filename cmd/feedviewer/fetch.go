package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"feedviewer/internal/display"
	"feedviewer/internal/feed"
	"feedviewer/internal/filter"
	"feedviewer/internal/prefs"
)

// filterFlags binds the display filter flags shared by fetch and play.
type filterFlags struct {
	images  bool
	videos  bool
	shuffle bool
	direct  bool
	save    bool
	metrics string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.images, "images", true, "Show images and animated images")
	cmd.Flags().BoolVar(&f.videos, "videos", true, "Show videos")
	cmd.Flags().BoolVar(&f.shuffle, "shuffle", false, "Shuffle the displayed posts")
	cmd.Flags().BoolVar(&f.direct, "direct", false, "Fetch upstream directly, without relays")
	cmd.Flags().BoolVar(&f.save, "save", false, "Remember sources and filters as preferences")
	cmd.Flags().StringVar(&f.metrics, "metrics-file", "", "Write feed metrics in Prometheus text format to this file on exit")
}

// apply overlays explicitly set flags on the stored preferences.
func (f *filterFlags) apply(cmd *cobra.Command, p prefs.Prefs) prefs.Prefs {
	if cmd.Flags().Changed("images") {
		p.Images = f.images
	}
	if cmd.Flags().Changed("videos") {
		p.Videos = f.videos
	}
	if cmd.Flags().Changed("shuffle") {
		p.Shuffle = f.shuffle
	}
	return p
}

// resolve loads preferences, applies args and flags, and saves them when
// asked to.
func (f *filterFlags) resolve(a *app, cmd *cobra.Command, args []string) (prefs.Prefs, []string, error) {
	store := a.store()
	p := f.apply(cmd, store.Load())

	names, err := sources(args, p)
	if err != nil {
		return p, nil, err
	}
	if len(args) > 0 {
		p.Subreddits = strings.Join(names, ", ")
	}

	if f.save {
		if err := store.Save(p); err != nil {
			return p, nil, err
		}
		a.log.Info().Str("path", store.Path()).Msg("preferences saved")
	}
	return p, names, nil
}

// fetchCmd loads sources and prints the media grid.
func fetchCmd(a *app) *cobra.Command {
	var (
		ff    filterFlags
		more  int
		width int
	)

	cmd := &cobra.Command{
		Use:   "fetch [subreddit...]",
		Short: "Fetch sources and print the media grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, names, err := ff.resolve(a, cmd, args)
			if err != nil {
				return err
			}
			defer a.writeMetrics(ff.metrics)
			opts := p.Filter()

			chain, err := a.relays(ff.direct)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stderr := cmd.ErrOrStderr()
			agg := a.aggregator(chain, feed.WithProgress(func(part feed.Partial) {
				fmt.Fprintf(stderr, "batch %d/%d: %d posts\n", part.Batch, part.Batches, len(filter.Preview(part.Posts, opts, 0)))
			}))

			grid := display.NewRenderer(cmd.OutOrStdout(), width)

			res, err := agg.Load(ctx, names)
			if err != nil {
				if errors.Is(err, feed.ErrNoContent) {
					a.logSourceErrors(res)
					fmt.Fprintf(stderr, "Failed to load content: %v\n", err)
					return grid.Reset(nil)
				}
				return err
			}
			a.logSourceErrors(res)

			if err := grid.Reset(filter.Apply(agg.Posts(), opts, nil)); err != nil {
				return err
			}

			for i := 0; i < more; i++ {
				res, err := agg.LoadMore(ctx)
				if err != nil {
					if errors.Is(err, feed.ErrNoContent) {
						break
					}
					return err
				}
				a.logSourceErrors(res)
				if err := grid.Append(filter.Apply(res.Posts, opts, nil)); err != nil {
					return err
				}
			}

			fmt.Fprintf(stderr, "%d posts shown\n", grid.Count())
			return nil
		},
	}

	ff.bind(cmd)
	cmd.Flags().IntVar(&more, "more", 0, "Load this many further pages")
	cmd.Flags().IntVar(&width, "width", 120, "Terminal width in columns")
	return cmd
}
