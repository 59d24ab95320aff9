package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"feedviewer/internal/logging"
	"feedviewer/internal/media"
	"feedviewer/internal/metrics"
)

const (
	defaultBatchWidth   = 5
	defaultBatchPause   = 100 * time.Millisecond
	defaultPreviewLimit = 50
)

// Fetcher fetches one page of one source.
type Fetcher interface {
	FetchSource(ctx context.Context, source, after string) (Page, error)
}

// Result is the merged outcome of fetching a set of sources.
type Result struct {
	// Posts are sorted by score, highest first. Duplicates are kept.
	Posts []media.Post

	// After is the continuation token taken from the first batch.
	After string

	// Errors has one entry per source that failed or returned nothing.
	Errors []*SourceError
}

// Err joins the per-source errors, or returns nil when there are none.
func (r Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Partial is reported after every batch while a fetch is in flight.
type Partial struct {
	Batch   int
	Batches int

	// Posts accumulated so far, sorted by score and capped to the
	// preview limit.
	Posts []media.Post
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithBatchWidth sets how many sources are fetched concurrently.
func WithBatchWidth(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.width = n
		}
	}
}

// WithBatchPause sets the pause between batches.
func WithBatchPause(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d >= 0 {
			a.pause = d
		}
	}
}

// WithPreviewLimit caps the posts handed to the progress callback.
func WithPreviewLimit(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.previewLimit = n
		}
	}
}

// WithProgress registers a callback run after each batch.
func WithProgress(fn func(Partial)) AggregatorOption {
	return func(a *Aggregator) {
		a.progress = fn
	}
}

// WithAggregatorLogger sets the aggregator logger.
func WithAggregatorLogger(l zerolog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.log = l
	}
}

// Aggregator fetches many sources in bounded batches and keeps the
// session's merged posts and continuation token.
type Aggregator struct {
	fetcher      Fetcher
	width        int
	pause        time.Duration
	previewLimit int
	progress     func(Partial)
	log          zerolog.Logger

	mu      sync.Mutex
	session string
	sources []string
	posts   []media.Post
	after   string
}

// NewAggregator returns an Aggregator backed by f.
func NewAggregator(f Fetcher, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetcher:      f,
		width:        defaultBatchWidth,
		pause:        defaultBatchPause,
		previewLimit: defaultPreviewLimit,
		log:          logging.For("feed"),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// FetchPage fetches sources with token. Batches run one after another;
// inside a batch every source runs concurrently and a failure never
// cancels its siblings. When no source yields a post the returned error
// wraps ErrNoContent together with the per-source errors; the Result is
// returned either way.
func (a *Aggregator) FetchPage(ctx context.Context, sources []string, token string) (Result, error) {
	var res Result
	batches := chunk(sources, a.width)

	for bi, batch := range batches {
		if bi > 0 && a.pause > 0 {
			t := time.NewTimer(a.pause)
			select {
			case <-ctx.Done():
				t.Stop()
				sortByScore(res.Posts)
				return res, ctx.Err()
			case <-t.C:
			}
		}

		pages := make([]Page, len(batch))
		errs := make([]error, len(batch))

		var g errgroup.Group
		for i, src := range batch {
			g.Go(func() error {
				pages[i], errs[i] = a.fetcher.FetchSource(ctx, src, token)
				return nil
			})
		}
		_ = g.Wait()

		for i, src := range batch {
			if errs[i] != nil {
				var se *SourceError
				if !errors.As(errs[i], &se) {
					se = &SourceError{Source: src, Err: errs[i]}
				}
				res.Errors = append(res.Errors, se)
				metrics.SourceFetches.WithLabelValues("failed").Inc()
				a.log.Warn().Err(errs[i]).Str("source", src).Msg("source failed")
				continue
			}

			if len(pages[i].Posts) == 0 {
				res.Errors = append(res.Errors, &SourceError{Source: src, Err: ErrEmptySource})
				metrics.SourceFetches.WithLabelValues("empty").Inc()
				a.log.Warn().Str("source", src).Msg("source returned no posts")
				continue
			}

			metrics.SourceFetches.WithLabelValues("ok").Inc()
			res.Posts = append(res.Posts, pages[i].Posts...)
			if bi == 0 && res.After == "" {
				res.After = pages[i].After
			}
		}

		if a.progress != nil && len(res.Posts) > 0 {
			a.progress(Partial{
				Batch:   bi + 1,
				Batches: len(batches),
				Posts:   a.preview(res.Posts),
			})
		}
	}

	sortByScore(res.Posts)

	if len(res.Posts) == 0 {
		if err := res.Err(); err != nil {
			return res, fmt.Errorf("%w: %w", ErrNoContent, err)
		}
		return res, ErrNoContent
	}

	return res, nil
}

// Load starts a new session over sources: previous state is cleared and
// the first page is fetched. The continuation token of this first page
// is kept for the whole session.
func (a *Aggregator) Load(ctx context.Context, sources []string) (Result, error) {
	a.mu.Lock()
	a.session = uuid.NewString()
	a.sources = slices.Clone(sources)
	a.posts = nil
	a.after = ""
	session := a.session
	a.mu.Unlock()

	log := a.log.With().Str("session", session).Logger()
	log.Info().Strs("sources", sources).Msg("loading sources")

	res, err := a.FetchPage(ctx, sources, "")

	a.mu.Lock()
	if a.session == session {
		a.posts = slices.Clone(res.Posts)
		a.after = res.After
	}
	a.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("load failed")
		return res, err
	}
	if len(res.Errors) > 0 {
		log.Warn().Err(res.Err()).Int("failed", len(res.Errors)).Msg("some sources failed")
	}
	log.Info().Int("posts", len(res.Posts)).Str("after", res.After).Msg("loaded")

	return res, nil
}

// LoadMore fetches the next page of every session source with the frozen
// continuation token, appends it and re-sorts. The token only changes
// when the session never had one.
func (a *Aggregator) LoadMore(ctx context.Context) (Result, error) {
	a.mu.Lock()
	session := a.session
	sources := slices.Clone(a.sources)
	token := a.after
	a.mu.Unlock()

	if len(sources) == 0 {
		return Result{}, ErrNoContent
	}

	log := a.log.With().Str("session", session).Logger()
	res, err := a.FetchPage(ctx, sources, token)

	a.mu.Lock()
	if a.session == session {
		a.posts = append(a.posts, res.Posts...)
		sortByScore(a.posts)
		if a.after == "" {
			a.after = res.After
		}
	}
	a.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("load more failed")
		return res, err
	}
	log.Info().Int("posts", len(res.Posts)).Msg("loaded more")

	return res, nil
}

// Posts returns a copy of the session's merged posts.
func (a *Aggregator) Posts() []media.Post {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.posts)
}

// Next returns the session's continuation token.
func (a *Aggregator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.after
}

// Sources returns the sources of the current session.
func (a *Aggregator) Sources() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.sources)
}

// Session returns the current session id, or "" before the first Load.
func (a *Aggregator) Session() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Clear drops the session.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = ""
	a.sources = nil
	a.posts = nil
	a.after = ""
}

func (a *Aggregator) preview(posts []media.Post) []media.Post {
	out := slices.Clone(posts)
	sortByScore(out)
	if len(out) > a.previewLimit {
		out = out[:a.previewLimit]
	}
	return out
}

// sortByScore orders posts by score, highest first, keeping the order of
// equal scores.
func sortByScore(posts []media.Post) {
	slices.SortStableFunc(posts, func(x, y media.Post) int {
		return y.Score - x.Score
	})
}

func chunk(sources []string, width int) [][]string {
	var out [][]string
	for i := 0; i < len(sources); i += width {
		end := min(i+width, len(sources))
		out = append(out, sources[i:end])
	}
	return out
}
