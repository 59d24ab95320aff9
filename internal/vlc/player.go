// Package vlc is the VLC playback surface for the viewer.
// On linux/arm64 it drives libVLC in-process; elsewhere it runs VLC as a
// subprocess per item.
package vlc

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"feedviewer/internal/display"
	"feedviewer/internal/logging"
	"feedviewer/internal/viewer"
)

type eventKind int

const (
	evLoaded eventKind = iota
	evProgress
	evEnded
	evError
)

// event is a backend notification for the media loaded under id.
type event struct {
	kind eventKind
	id   uint64
	pos  float64
	dur  float64
	err  error
}

// backend is the platform-specific playback implementation.
//
// emit may be called from any goroutine. Every other method is called from
// the viewer goroutine only. Backends must NOT call player control methods
// from inside their own event callbacks.
type backend interface {
	Init(emit func(event)) error
	Load(id uint64, url string, still bool) error
	Play() error
	Pause()
	Rewind()
	SetFullscreen(on bool) error
	Stop()
	Release()
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the player logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Player) { p.log = l }
}

// WithOutput sets where captions are written.
func WithOutput(w io.Writer) Option {
	return func(p *Player) { p.out = w }
}

// withBackend replaces the platform backend.
func withBackend(b backend) Option {
	return func(p *Player) { p.backend = b }
}

// Player implements viewer.Screen, viewer.Element and viewer.LoopNotifier
// on top of a backend. post must queue closures onto the viewer goroutine.
type Player struct {
	post    func(func()) bool
	backend backend
	log     zerolog.Logger
	out     io.Writer

	id         uint64
	src        viewer.Source
	still      bool
	fallback   string
	ready      bool
	controls   bool
	fullscreen bool

	loaded   viewer.Listeners[func()]
	progress viewer.Listeners[func(viewer.Progress)]
	ended    viewer.Listeners[func()]
	errs     viewer.Listeners[func(error)]
	loops    viewer.Listeners[func()]
}

var (
	_ viewer.Screen       = (*Player)(nil)
	_ viewer.Element      = (*Player)(nil)
	_ viewer.LoopNotifier = (*Player)(nil)
)

// New creates a player and initializes its backend.
func New(post func(func()) bool, opts ...Option) (*Player, error) {
	p := &Player{
		post: post,
		log:  logging.For("vlc"),
		out:  os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.backend == nil {
		p.backend = newBackend(p.log)
	}

	if err := p.backend.Init(p.emit); err != nil {
		return nil, fmt.Errorf("init playback backend: %w", err)
	}
	return p, nil
}

// Close releases the backend.
func (p *Player) Close() {
	p.id++
	p.backend.Release()
	p.log.Info().Msg("player released")
}

func (p *Player) emit(ev event) {
	p.post(func() { p.handle(ev) })
}

func (p *Player) handle(ev event) {
	if ev.id != p.id {
		return
	}

	switch ev.kind {
	case evLoaded:
		if p.still {
			return
		}
		p.ready = true
		p.loaded.Each(func(fn func()) { fn() })

	case evProgress:
		pr := viewer.Progress{Position: ev.pos, Duration: ev.dur}
		p.progress.Each(func(fn func(viewer.Progress)) { fn(pr) })

	case evEnded:
		if p.still {
			return
		}
		if p.src.Loop {
			p.loops.Each(func(fn func()) { fn() })
			p.restart()
			return
		}
		p.ended.Each(func(fn func()) { fn() })

	case evError:
		if p.still {
			p.imageFailed(ev.err)
			return
		}
		p.ready = false
		p.errs.Each(func(fn func(error)) { fn(ev.err) })
	}
}

func (p *Player) restart() {
	p.backend.Rewind()
	if err := p.backend.Play(); err != nil {
		p.errs.Each(func(fn func(error)) { fn(err) })
	}
}

// --- viewer.Element ---

func (p *Player) Load(src viewer.Source) error {
	p.id++
	p.src = src
	p.still = false
	p.ready = false
	p.controls = src.Controls

	if err := p.backend.Load(p.id, src.URL, false); err != nil {
		return fmt.Errorf("load %s: %w", src.URL, err)
	}
	p.log.Debug().Str("url", src.URL).Bool("loop", src.Loop).Msg("media loaded")
	return nil
}

func (p *Player) Play(done func(error)) {
	id := p.id
	err := p.backend.Play()
	if done == nil {
		return
	}
	p.post(func() {
		if id != p.id {
			done(viewer.ErrPlayAborted)
			return
		}
		done(err)
	})
}

func (p *Player) Pause() {
	p.backend.Pause()
}

func (p *Player) Rewind() {
	p.backend.Rewind()
}

// SetControls records whether on-screen controls are wanted. VLC runs
// without its interface, so this only affects caption output.
func (p *Player) SetControls(on bool) {
	p.controls = on
}

func (p *Player) Ready() bool {
	return p.ready
}

func (p *Player) OnLoaded(fn func()) viewer.Detach { return p.loaded.Add(fn) }

func (p *Player) OnProgress(fn func(viewer.Progress)) viewer.Detach { return p.progress.Add(fn) }

func (p *Player) OnEnded(fn func()) viewer.Detach { return p.ended.Add(fn) }

func (p *Player) OnError(fn func(error)) viewer.Detach { return p.errs.Add(fn) }

// OnLoop fires each time a looping source restarts.
func (p *Player) OnLoop(fn func()) viewer.Detach { return p.loops.Add(fn) }

// --- viewer.Screen ---

func (p *Player) ShowImage(img viewer.Image) {
	p.id++
	p.still = true
	p.ready = false
	p.fallback = img.Fallback

	url := img.URL
	if !playable(url) {
		url, p.fallback = p.fallback, ""
	}
	p.showStill(url)
}

func (p *Player) showStill(url string) {
	if !playable(url) {
		p.backend.Stop()
		p.log.Info().Msg("media not available")
		return
	}
	if err := p.backend.Load(p.id, url, true); err != nil {
		p.imageFailed(err)
		return
	}
	if err := p.backend.Play(); err != nil {
		p.imageFailed(err)
	}
}

func (p *Player) imageFailed(err error) {
	p.log.Warn().Err(err).Msg("image failed to load")
	url := p.fallback
	p.fallback = ""
	p.showStill(url)
}

// ShowVideo is a no-op: the element is the video surface.
func (p *Player) ShowVideo() {}

func (p *Player) Hide() {
	p.id++
	p.still = false
	p.ready = false
	p.backend.Stop()
}

func (p *Player) SetCaption(c viewer.Caption) {
	line := fmt.Sprintf("[%d/%d] %s  %s • ▲ %s • %s comments",
		c.Index+1, c.Total, c.Title, c.Source,
		display.FormatNumber(c.Score), display.FormatNumber(c.Comments))
	if p.controls {
		line += "  (space: pause slideshow, ←/→: navigate, esc: close)"
	}
	fmt.Fprintln(p.out, line)
}

func (p *Player) Fullscreen() bool {
	return p.fullscreen
}

func (p *Player) SetFullscreen(on bool) error {
	if err := p.backend.SetFullscreen(on); err != nil {
		return fmt.Errorf("set fullscreen: %w", err)
	}
	p.fullscreen = on
	return nil
}

// playable reports whether VLC can open u. Inline data URIs cannot be.
func playable(u string) bool {
	return u != "" && !strings.HasPrefix(u, "data:")
}
