package viewer

import (
	"errors"
	"time"
)

// fakeElement records calls and lets tests emit playback events.
type fakeElement struct {
	loaded   []Source
	ready    bool
	loadErr  error
	playErr  error
	deferred bool

	plays    int
	pauses   int
	rewinds  int
	controls bool

	pendingPlays []func(error)

	onLoaded   Listeners[func()]
	onProgress Listeners[func(Progress)]
	onEnded    Listeners[func()]
	onError    Listeners[func(error)]
}

func (e *fakeElement) Load(src Source) error {
	if e.loadErr != nil {
		return e.loadErr
	}
	e.loaded = append(e.loaded, src)
	e.controls = src.Controls
	return nil
}

func (e *fakeElement) Play(done func(error)) {
	e.plays++
	if e.deferred {
		e.pendingPlays = append(e.pendingPlays, done)
		return
	}
	done(e.playErr)
}

func (e *fakeElement) Pause()              { e.pauses++ }
func (e *fakeElement) Rewind()             { e.rewinds++ }
func (e *fakeElement) SetControls(on bool) { e.controls = on }
func (e *fakeElement) Ready() bool         { return e.ready }

func (e *fakeElement) OnLoaded(fn func()) Detach          { return e.onLoaded.Add(fn) }
func (e *fakeElement) OnProgress(fn func(Progress)) Detach { return e.onProgress.Add(fn) }
func (e *fakeElement) OnEnded(fn func()) Detach           { return e.onEnded.Add(fn) }
func (e *fakeElement) OnError(fn func(error)) Detach      { return e.onError.Add(fn) }

func (e *fakeElement) emitLoaded() {
	e.onLoaded.Each(func(fn func()) { fn() })
}

func (e *fakeElement) emitProgress(pos, dur float64) {
	e.onProgress.Each(func(fn func(Progress)) { fn(Progress{Position: pos, Duration: dur}) })
}

func (e *fakeElement) emitEnded() {
	e.onEnded.Each(func(fn func()) { fn() })
}

func (e *fakeElement) emitError(err error) {
	e.onError.Each(func(fn func(error)) { fn(err) })
}

func (e *fakeElement) handlers() int {
	return e.onLoaded.Len() + e.onProgress.Len() + e.onEnded.Len() + e.onError.Len()
}

// loopingElement also reports native loops.
type loopingElement struct {
	fakeElement
	onLoop Listeners[func()]
}

func (e *loopingElement) OnLoop(fn func()) Detach { return e.onLoop.Add(fn) }

func (e *loopingElement) emitLoop() {
	e.onLoop.Each(func(fn func()) { fn() })
}

// fakeScreen records what the controller showed.
type fakeScreen struct {
	images     []Image
	videos     int
	hides      int
	captions   []Caption
	fullscreen bool
	fsCalls    []bool
	fsErr      error
}

func (s *fakeScreen) ShowImage(img Image)  { s.images = append(s.images, img) }
func (s *fakeScreen) ShowVideo()           { s.videos++ }
func (s *fakeScreen) Hide()                { s.hides++ }
func (s *fakeScreen) SetCaption(c Caption) { s.captions = append(s.captions, c) }
func (s *fakeScreen) Fullscreen() bool     { return s.fullscreen }

func (s *fakeScreen) SetFullscreen(on bool) error {
	s.fsCalls = append(s.fsCalls, on)
	if s.fsErr != nil {
		return s.fsErr
	}
	s.fullscreen = on
	return nil
}

func (s *fakeScreen) lastCaption() Caption {
	return s.captions[len(s.captions)-1]
}

// fakeScheduler is a manual clock.
type fakeScheduler struct {
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	every   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{at: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) Timer {
	t := &fakeTimer{at: s.now + d, every: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		var next *fakeTimer
		for _, t := range s.timers {
			if t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		s.now = next.at
		if next.every > 0 {
			next.at += next.every
		} else {
			next.stopped = true
		}
		next.fn()
	}
	s.now = target
}

func (s *fakeScheduler) active() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

var errDecode = errors.New("decode failed")
