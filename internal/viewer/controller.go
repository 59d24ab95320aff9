package viewer

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"feedviewer/internal/filter"
	"feedviewer/internal/logging"
	"feedviewer/internal/media"
)

// NoSelection is the index of a closed viewer.
const NoSelection = -1

const (
	// DefaultInterval is the slideshow period for still images.
	DefaultInterval = 5 * time.Second

	// TargetLoops is how many loops of a video count as "seen".
	TargetLoops = 1

	loopAdvanceDelay  = 100 * time.Millisecond
	endedAdvanceDelay = 500 * time.Millisecond
	fullscreenDelay   = 500 * time.Millisecond
)

// State is the viewer's observable state.
type State struct {
	Index       int
	Running     bool
	Interval    time.Duration
	AutoPlay    bool
	Loops       int
	TargetLoops int

	// TimeBased is set while the current item plays in the element.
	TimeBased bool
	Kind      media.Kind
}

// Open reports whether an item is shown.
func (s State) Open() bool {
	return s.Index != NoSelection
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the initial slideshow interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.state.Interval = d
		}
	}
}

// WithDetector sets the loop detector factory used for elements that do
// not report loops natively.
func WithDetector(fn func() LoopDetector) Option {
	return func(c *Controller) {
		c.newDetector = fn
	}
}

// WithRand sets the source used to pick a random auto-play start.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = r
	}
}

// WithLogger sets the controller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// Controller is the viewer and slideshow state machine.
type Controller struct {
	screen  Screen
	element Element
	sched   Scheduler
	log     zerolog.Logger

	newDetector func() LoopDetector
	rng         *rand.Rand

	posts []media.Post
	state State

	ticker     Timer
	pending    Timer
	fullscreen Timer
	detach     []Detach

	// gen changes on every open and close; callbacks carrying an older
	// value belong to an item that is no longer shown.
	gen uint64
}

// NewController returns a closed controller.
func NewController(screen Screen, el Element, sched Scheduler, opts ...Option) *Controller {
	c := &Controller{
		screen:      screen,
		element:     el,
		sched:       sched,
		log:         logging.For("viewer"),
		newDetector: func() LoopDetector { return NewPositionReset() },
		state: State{
			Index:       NoSelection,
			Interval:    DefaultInterval,
			TargetLoops: TargetLoops,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns a snapshot of the viewer state.
func (c *Controller) State() State {
	return c.state
}

// Posts returns the displayed set.
func (c *Controller) Posts() []media.Post {
	return slices.Clone(c.posts)
}

// Current returns the shown post.
func (c *Controller) Current() (media.Post, bool) {
	if !c.state.Open() {
		return media.Post{}, false
	}
	return c.posts[c.state.Index], true
}

// SetPosts replaces the displayed set. An open viewer follows its current
// post to its new index, or closes when the post is gone.
func (c *Controller) SetPosts(posts []media.Post) {
	cur, open := c.Current()
	c.posts = slices.Clone(posts)
	if !open {
		return
	}

	idx := filter.IndexOf(c.posts, cur.ID)
	if idx < 0 {
		c.Close()
		return
	}
	c.state.Index = idx
	c.caption()
}

// OpenPost opens the post with the given id, starting the slideshow.
func (c *Controller) OpenPost(id string) bool {
	idx := filter.IndexOf(c.posts, id)
	if idx < 0 {
		return false
	}
	c.Open(idx, true)
	return true
}

// Open shows the item at index. Out-of-range indexes are ignored.
func (c *Controller) Open(index int, autoStart bool) {
	if index < 0 || index >= len(c.posts) {
		return
	}

	c.cancelPending()
	c.release()
	c.gen++

	post := c.posts[index]
	res := media.Classify(post)

	c.state.Index = index
	c.state.Kind = res.Kind
	c.state.Loops = 0
	c.state.TimeBased = res.Kind.TimeBased()

	log := c.log.With().Str("post", post.ID).Stringer("kind", res.Kind).Int("index", index).Logger()
	log.Debug().Str("url", res.URL).Msg("open")

	if c.state.TimeBased {
		c.openElement(post, res, log)
	} else {
		c.screen.ShowImage(Image{URL: res.URL, Fallback: media.Placeholder})
	}

	c.caption()

	if autoStart {
		c.StartSlideshow()
	}
}

func (c *Controller) openElement(post media.Post, res media.Resolved, log zerolog.Logger) {
	auto := c.state.AutoPlay
	err := c.element.Load(Source{
		URL:      res.URL,
		Poster:   res.Thumbnail,
		Loop:     !auto,
		Muted:    true,
		Controls: !auto,
	})
	if err != nil {
		log.Warn().Err(err).Msg("load failed")
		c.fallback(post, res)
		return
	}
	c.screen.ShowVideo()

	gen := c.gen
	current := func() bool { return gen == c.gen }

	c.detach = append(c.detach, c.element.OnError(func(err error) {
		if !current() {
			return
		}
		log.Warn().Err(err).Msg("playback error")
		c.fallback(post, res)
	}))

	if auto {
		c.detach = append(c.detach, c.element.OnEnded(func() {
			if !current() {
				return
			}
			c.scheduleAdvance(endedAdvanceDelay, func() bool {
				return c.state.AutoPlay && c.state.Running
			})
		}))
	} else if n, ok := c.element.(LoopNotifier); ok {
		c.detach = append(c.detach, n.OnLoop(func() {
			if current() {
				c.countLoop()
			}
		}))
	} else {
		det := c.newDetector()
		c.detach = append(c.detach, c.element.OnProgress(func(p Progress) {
			if current() && det.Observe(p.Position, p.Duration) {
				c.countLoop()
			}
		}))
	}

	if c.element.Ready() {
		c.play(log)
		return
	}

	started := false
	c.detach = append(c.detach, c.element.OnLoaded(func() {
		if !current() || started {
			return
		}
		started = true
		c.play(log)
	}))
}

func (c *Controller) play(log zerolog.Logger) {
	c.element.Play(func(err error) {
		if err != nil && !benign(err) {
			log.Warn().Err(err).Msg("play failed")
		}
	})
}

// fallback replaces a failed video with a still image. The slide then
// advances on the timer like any other image.
func (c *Controller) fallback(post media.Post, res media.Resolved) {
	c.release()
	c.state.TimeBased = false

	u := post.URL
	if u == "" {
		u = res.URL
	}
	if u == "" {
		u = media.Placeholder
	}
	c.screen.ShowImage(Image{URL: u, Fallback: media.Placeholder})
}

func (c *Controller) countLoop() {
	c.state.Loops++
	if c.state.Loops >= c.state.TargetLoops && c.state.Running {
		c.scheduleAdvance(loopAdvanceDelay, func() bool {
			return c.state.Running
		})
	}
}

// scheduleAdvance moves to the next item after d, provided the same item
// is still shown and guard still holds.
func (c *Controller) scheduleAdvance(d time.Duration, guard func() bool) {
	c.cancelPending()
	gen := c.gen
	c.pending = c.sched.AfterFunc(d, func() {
		c.pending = nil
		if gen != c.gen || !guard() {
			return
		}
		c.Navigate(1)
	})
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// release stops the element and detaches every handler attached for the
// previous item.
func (c *Controller) release() {
	for _, d := range c.detach {
		d()
	}
	c.detach = nil

	if c.state.TimeBased {
		c.element.Pause()
		c.element.Rewind()
	}
}

func (c *Controller) caption() {
	post := c.posts[c.state.Index]
	c.screen.SetCaption(Caption{
		Title:    post.Title,
		Source:   "r/" + post.Subreddit,
		Score:    post.Score,
		Comments: post.NumComments,
		Index:    c.state.Index,
		Total:    len(c.posts),
	})
}

// Close hides the viewer and resets its state.
func (c *Controller) Close() {
	if c.state.AutoPlay && c.screen.Fullscreen() {
		if err := c.screen.SetFullscreen(false); err != nil {
			c.log.Warn().Err(err).Msg("exit fullscreen failed")
		}
	}

	c.cancelPending()
	if c.fullscreen != nil {
		c.fullscreen.Stop()
		c.fullscreen = nil
	}

	c.screen.Hide()
	c.release()
	c.StopSlideshow()
	c.gen++

	c.state = State{
		Index:       NoSelection,
		Interval:    c.state.Interval,
		TargetLoops: TargetLoops,
	}
}

// Navigate moves by dir (+1 or -1) with wraparound. A running slideshow
// keeps running on the new item.
func (c *Controller) Navigate(dir int) {
	n := len(c.posts)
	if n == 0 {
		return
	}

	running := c.state.Running
	c.StopSlideshow()

	idx := c.state.Index + dir
	if idx < 0 {
		idx = n - 1
	} else if idx >= n {
		idx = 0
	}

	c.Open(idx, running)
}

// StartSlideshow (re)starts the slideshow timer.
func (c *Controller) StartSlideshow() {
	c.StopSlideshow()
	c.state.Running = true
	c.ticker = c.sched.Every(c.state.Interval, c.tick)
}

// StopSlideshow stops the slideshow timer.
func (c *Controller) StopSlideshow() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.state.Running = false
}

// ToggleSlideshow starts or stops the slideshow.
func (c *Controller) ToggleSlideshow() {
	if c.state.Running {
		c.StopSlideshow()
	} else {
		c.StartSlideshow()
	}
}

// tick advances still images. Time-based items advance on their own
// completion signal instead.
func (c *Controller) tick() {
	if !c.state.Running || c.state.TimeBased {
		return
	}
	c.Navigate(1)
}

// SetInterval changes the slideshow period, restarting a running timer.
func (c *Controller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.state.Interval = d
	if c.state.Running {
		c.StartSlideshow()
	}
}

// ToggleFullscreen flips the screen's fullscreen mode.
func (c *Controller) ToggleFullscreen() {
	if err := c.screen.SetFullscreen(!c.screen.Fullscreen()); err != nil {
		c.log.Warn().Err(err).Msg("fullscreen failed")
	}
}

// StartAutoPlay opens the first item (or a random one) in auto-play
// mode: videos play once without controls and advance when they end,
// and the screen goes fullscreen shortly after.
func (c *Controller) StartAutoPlay(random bool) error {
	n := len(c.posts)
	if n == 0 {
		return ErrNoContent
	}

	c.state.AutoPlay = true

	start := 0
	if random {
		if c.rng != nil {
			start = c.rng.IntN(n)
		} else {
			start = rand.IntN(n)
		}
	}

	c.log.Info().Int("start", start).Int("posts", n).Msg("auto-play")

	c.Open(start, true)
	c.StartSlideshow()

	if c.fullscreen != nil {
		c.fullscreen.Stop()
	}
	c.fullscreen = c.sched.AfterFunc(fullscreenDelay, func() {
		c.fullscreen = nil
		if c.state.AutoPlay {
			c.ToggleFullscreen()
		}
	})

	return nil
}
