package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedviewer/internal/media"
	"feedviewer/internal/viewer"
)

// stubElement counts plays and lets the test deliver "loaded".
type stubElement struct {
	ready    bool
	plays    int
	controls bool

	onLoaded   viewer.Listeners[func()]
	onProgress viewer.Listeners[func(viewer.Progress)]
	onEnded    viewer.Listeners[func()]
	onError    viewer.Listeners[func(error)]
}

func (e *stubElement) Load(src viewer.Source) error {
	e.ready = false
	e.controls = src.Controls
	return nil
}

func (e *stubElement) Play(done func(error)) {
	e.plays++
	done(nil)
}

func (e *stubElement) Pause()              {}
func (e *stubElement) Rewind()             {}
func (e *stubElement) SetControls(on bool) { e.controls = on }
func (e *stubElement) Ready() bool         { return e.ready }

func (e *stubElement) OnLoaded(fn func()) viewer.Detach { return e.onLoaded.Add(fn) }
func (e *stubElement) OnProgress(fn func(viewer.Progress)) viewer.Detach {
	return e.onProgress.Add(fn)
}
func (e *stubElement) OnEnded(fn func()) viewer.Detach      { return e.onEnded.Add(fn) }
func (e *stubElement) OnError(fn func(error)) viewer.Detach { return e.onError.Add(fn) }

func (e *stubElement) loaded() {
	e.ready = true
	e.onLoaded.Each(func(fn func()) { fn() })
}

type stubScreen struct{}

func (stubScreen) ShowImage(viewer.Image)    {}
func (stubScreen) ShowVideo()                {}
func (stubScreen) Hide()                     {}
func (stubScreen) SetCaption(viewer.Caption) {}
func (stubScreen) Fullscreen() bool          { return false }
func (stubScreen) SetFullscreen(bool) error  { return nil }

// idleScheduler never fires.
type idleScheduler struct{}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func (idleScheduler) AfterFunc(time.Duration, func()) viewer.Timer { return idleTimer{} }
func (idleScheduler) Every(time.Duration, func()) viewer.Timer     { return idleTimer{} }

func newPlaySession(t *testing.T) (*playSession, *stubElement) {
	t.Helper()
	el := &stubElement{}
	sched := idleScheduler{}
	ctrl := viewer.NewController(stubScreen{}, el, sched, viewer.WithLogger(zerolog.Nop()))
	ctrl.SetPosts([]media.Post{{
		ID:      "v1",
		Title:   "Harbour fog",
		IsVideo: true,
		URL:     "https://v.redd.it/v1",
		Media:   &media.PostMedia{RedditVideo: &media.NativeVideo{FallbackURL: "https://v.redd.it/v1/DASH_720.mp4"}},
	}})
	return &playSession{
		ctrl:   ctrl,
		hover:  viewer.NewHoverPreview(el, sched, zerolog.Nop()),
		player: el,
		stop:   func() {},
		log:    zerolog.Nop(),
	}, el
}

func TestOpenCancelsWaitingPeek(t *testing.T) {
	s, el := newPlaySession(t)

	s.handle("peek 0")
	require.True(t, s.hover.Active())
	assert.Zero(t, el.plays)

	s.handle("Enter")
	require.True(t, s.ctrl.State().Open())
	assert.False(t, s.hover.Active())

	el.loaded()
	assert.Equal(t, 1, el.plays)
}

func TestUnpeekStopsPreview(t *testing.T) {
	s, el := newPlaySession(t)

	s.handle("peek 0")
	s.handle("unpeek")
	el.loaded()

	assert.False(t, s.hover.Active())
	assert.Zero(t, el.plays)
}
