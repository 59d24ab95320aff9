package viewer

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedviewer/internal/media"
)

func fixture() []media.Post {
	return []media.Post{
		{ID: "a", Title: "A", Subreddit: "pics", Score: 10, NumComments: 2, URL: "https://i.redd.it/a.jpg"},
		{
			ID: "b", Title: "B", Subreddit: "videos", URL: "https://v.redd.it/b", IsVideo: true,
			Media: &media.PostMedia{RedditVideo: &media.NativeVideo{FallbackURL: "https://v.redd.it/b/DASH_720.mp4", Duration: 5}},
			Preview: &media.Preview{Images: []media.PreviewImage{{
				Source: &media.ImageSource{URL: "https://preview.redd.it/b.jpg?x=1&amp;y=2"},
			}}},
		},
		{ID: "c", Title: "C", Subreddit: "pics", URL: "https://i.redd.it/c.png"},
		{
			ID: "d", Title: "D", Subreddit: "gifs", URL: "https://i.redd.it/d.gif",
			Preview: &media.Preview{Images: []media.PreviewImage{{
				Source: &media.ImageSource{URL: "https://preview.redd.it/d.gif"},
				Variants: &media.Variants{MP4: &media.Variant{
					Source: &media.ImageSource{URL: "https://preview.redd.it/d.gif?format=mp4"},
				}},
			}}},
		},
	}
}

type harness struct {
	el    *fakeElement
	scr   *fakeScreen
	sched *fakeScheduler
	c     *Controller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		el:    &fakeElement{ready: true},
		scr:   &fakeScreen{},
		sched: &fakeScheduler{},
	}
	h.c = NewController(h.scr, h.el, h.sched, opts...)
	h.c.SetPosts(fixture())
	return h
}

// playLoop feeds one full loop of a 5 second clip.
func playLoop(el interface{ emitProgress(float64, float64) }) {
	for _, pos := range []float64{0.0, 4.7, 4.9, 0.1} {
		el.emitProgress(pos, 5.0)
	}
}

func TestNavigateWraps(t *testing.T) {
	h := newHarness(t)

	h.c.Open(0, false)
	h.c.Navigate(-1)
	assert.Equal(t, 3, h.c.State().Index)

	h.c.Navigate(1)
	assert.Equal(t, 0, h.c.State().Index)
}

func TestNavigateEmptyIsNoop(t *testing.T) {
	h := newHarness(t)
	h.c.SetPosts(nil)

	h.c.Navigate(1)
	assert.False(t, h.c.State().Open())
	assert.Empty(t, h.scr.captions)
}

func TestOpenOutOfRangeIsNoop(t *testing.T) {
	h := newHarness(t)

	h.c.Open(4, true)
	h.c.Open(-1, true)

	assert.False(t, h.c.State().Open())
	assert.False(t, h.c.State().Running)
	assert.Empty(t, h.scr.images)
}

func TestOpenImage(t *testing.T) {
	h := newHarness(t)

	h.c.Open(0, false)

	require.Len(t, h.scr.images, 1)
	assert.Equal(t, Image{URL: "https://i.redd.it/a.jpg", Fallback: media.Placeholder}, h.scr.images[0])
	assert.Empty(t, h.el.loaded)
	assert.Equal(t, Caption{Title: "A", Source: "r/pics", Score: 10, Comments: 2, Index: 0, Total: 4}, h.scr.lastCaption())
	assert.False(t, h.c.State().Running)
}

func TestOpenVideoWaitsForLoad(t *testing.T) {
	h := newHarness(t)
	h.el.ready = false

	h.c.Open(1, false)

	require.Len(t, h.el.loaded, 1)
	assert.Equal(t, Source{
		URL:      "https://v.redd.it/b/DASH_720.mp4",
		Poster:   "https://preview.redd.it/b.jpg?x=1&y=2",
		Loop:     true,
		Muted:    true,
		Controls: true,
	}, h.el.loaded[0])
	assert.Equal(t, 1, h.scr.videos)
	assert.Equal(t, 0, h.el.plays)

	h.el.emitLoaded()
	h.el.emitLoaded()
	assert.Equal(t, 1, h.el.plays)

	st := h.c.State()
	assert.True(t, st.TimeBased)
	assert.Equal(t, media.Video, st.Kind)
}

func TestLoopDetectionAdvancesOnce(t *testing.T) {
	var scheduled int
	h := newHarness(t)
	h.c.Open(1, true)
	before := len(h.sched.timers)

	playLoop(h.el)

	assert.Equal(t, 1, h.c.State().Loops)
	for _, tm := range h.sched.timers[before:] {
		if tm.every == 0 {
			scheduled++
		}
	}
	assert.Equal(t, 1, scheduled)

	h.sched.Advance(loopAdvanceDelay)
	assert.Equal(t, 2, h.c.State().Index)
	assert.True(t, h.c.State().Running)

	// The old clip's handlers are gone.
	playLoop(h.el)
	h.sched.Advance(loopAdvanceDelay)
	assert.Equal(t, 2, h.c.State().Index)
}

func TestLoopWithoutSlideshowOnlyCounts(t *testing.T) {
	h := newHarness(t)
	h.c.Open(1, false)

	playLoop(h.el)

	assert.Equal(t, 1, h.c.State().Loops)
	assert.Zero(t, h.sched.active())
}

func TestSlideshowTimerSkipsTimeBased(t *testing.T) {
	h := newHarness(t)
	h.c.Open(0, true)

	h.sched.Advance(DefaultInterval)
	assert.Equal(t, 1, h.c.State().Index)

	h.sched.Advance(3 * DefaultInterval)
	assert.Equal(t, 1, h.c.State().Index)
	assert.True(t, h.c.State().Running)
}

func TestNavigationDetachesHandlers(t *testing.T) {
	h := newHarness(t)

	h.c.Open(1, false)
	attached := h.el.handlers()
	require.NotZero(t, attached)

	h.c.Navigate(1)
	assert.Zero(t, h.el.handlers())
	assert.Equal(t, 1, h.el.pauses)
	assert.Equal(t, 1, h.el.rewinds)

	h.c.Open(3, false)
	assert.Equal(t, attached, h.el.handlers())
	h.c.Open(1, false)
	assert.Equal(t, attached, h.el.handlers())

	h.c.Close()
	assert.Zero(t, h.el.handlers())
}

func TestStaleAdvanceIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.c.Open(1, true)
	playLoop(h.el)

	// The user jumps back before the delayed advance fires.
	h.c.Open(0, true)
	h.sched.Advance(loopAdvanceDelay)

	assert.Equal(t, 0, h.c.State().Index)
}

func TestAdvanceAfterCloseIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.c.Open(1, true)
	playLoop(h.el)

	h.c.Close()
	h.sched.Advance(time.Minute)

	assert.False(t, h.c.State().Open())
	assert.Zero(t, h.sched.active())
}

func TestNativeLoopReplacesDetector(t *testing.T) {
	el := &loopingElement{fakeElement: fakeElement{ready: true}}
	sched := &fakeScheduler{}
	c := NewController(&fakeScreen{}, el, sched)
	c.SetPosts(fixture())

	c.Open(1, true)
	assert.Zero(t, el.onProgress.Len())

	el.emitLoop()
	sched.Advance(loopAdvanceDelay)
	assert.Equal(t, 2, c.State().Index)
}

func TestAutoPlay(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.StartAutoPlay(false))
	st := h.c.State()
	assert.True(t, st.AutoPlay)
	assert.True(t, st.Running)
	assert.Equal(t, 0, st.Index)

	h.sched.Advance(fullscreenDelay)
	assert.True(t, h.scr.fullscreen)

	h.sched.Advance(DefaultInterval - fullscreenDelay)
	require.Equal(t, 1, h.c.State().Index)

	src := h.el.loaded[len(h.el.loaded)-1]
	assert.False(t, src.Loop)
	assert.False(t, src.Controls)

	// No loop counting and no timer advance for videos in auto-play.
	playLoop(h.el)
	h.sched.Advance(2 * DefaultInterval)
	assert.Equal(t, 1, h.c.State().Index)
	assert.Zero(t, h.c.State().Loops)

	h.el.emitEnded()
	h.sched.Advance(endedAdvanceDelay)
	assert.Equal(t, 2, h.c.State().Index)
}

func TestAutoPlayEndedAfterStopDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.StartAutoPlay(false))
	h.c.Open(1, false)
	h.c.StopSlideshow()

	h.el.emitEnded()
	h.sched.Advance(endedAdvanceDelay)

	assert.Equal(t, 1, h.c.State().Index)
}

func TestAutoPlayRandomStart(t *testing.T) {
	want := rand.New(rand.NewPCG(9, 9)).IntN(4)
	h := newHarness(t, WithRand(rand.New(rand.NewPCG(9, 9))))

	require.NoError(t, h.c.StartAutoPlay(true))
	assert.Equal(t, want, h.c.State().Index)
}

func TestAutoPlayWithoutPosts(t *testing.T) {
	h := newHarness(t)
	h.c.SetPosts(nil)

	assert.ErrorIs(t, h.c.StartAutoPlay(false), ErrNoContent)
	assert.False(t, h.c.State().AutoPlay)
}

func TestCloseExitsFullscreenInAutoPlay(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.StartAutoPlay(false))
	h.sched.Advance(fullscreenDelay)
	require.True(t, h.scr.fullscreen)

	h.c.Close()

	assert.False(t, h.scr.fullscreen)
	assert.Equal(t, 1, h.scr.hides)
	st := h.c.State()
	assert.Equal(t, NoSelection, st.Index)
	assert.False(t, st.AutoPlay)
	assert.False(t, st.Running)
	assert.Zero(t, h.sched.active())
}

func TestCloseKeepsFullscreenOutsideAutoPlay(t *testing.T) {
	h := newHarness(t)
	h.c.Open(0, false)
	h.c.ToggleFullscreen()

	h.c.Close()

	assert.True(t, h.scr.fullscreen)
}

func TestCloseBeforeAutoFullscreen(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.StartAutoPlay(false))
	h.c.Close()

	h.sched.Advance(time.Second)

	assert.Empty(t, h.scr.fsCalls)
}

func TestPlaybackErrorFallsBackToImage(t *testing.T) {
	h := newHarness(t)
	h.c.Open(1, true)

	h.el.emitError(errDecode)

	img := h.scr.images[len(h.scr.images)-1]
	assert.Equal(t, Image{URL: "https://v.redd.it/b", Fallback: media.Placeholder}, img)
	assert.False(t, h.c.State().TimeBased)
	assert.Zero(t, h.el.handlers())

	// The slide now advances like an image.
	h.sched.Advance(DefaultInterval)
	assert.Equal(t, 2, h.c.State().Index)
}

func TestLoadErrorFallsBackToImage(t *testing.T) {
	h := newHarness(t)
	h.el.loadErr = errDecode

	h.c.Open(3, false)

	require.Len(t, h.scr.images, 1)
	assert.Equal(t, "https://i.redd.it/d.gif", h.scr.images[0].URL)
	assert.Zero(t, h.scr.videos)
}

func TestBenignPlayErrorsAreNotLogged(t *testing.T) {
	tests := []struct {
		err    error
		logged bool
	}{
		{ErrPlayAborted, false},
		{ErrPlayNotAllowed, false},
		{errors.New("no decoder"), true},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			var buf bytes.Buffer
			h := newHarness(t, WithLogger(zerolog.New(&buf)))
			h.el.playErr = tt.err

			h.c.Open(1, false)

			assert.Equal(t, tt.logged, bytes.Contains(buf.Bytes(), []byte("play failed")))
		})
	}
}

func TestSetInterval(t *testing.T) {
	h := newHarness(t)
	h.c.Open(0, true)

	h.c.SetInterval(2 * time.Second)
	h.sched.Advance(2 * time.Second)
	assert.Equal(t, 1, h.c.State().Index)
	assert.Equal(t, 2*time.Second, h.c.State().Interval)

	h.c.SetInterval(0)
	assert.Equal(t, 2*time.Second, h.c.State().Interval)
}

func TestToggleSlideshowIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.c.Open(0, false)

	h.c.StartSlideshow()
	h.c.StartSlideshow()
	assert.Equal(t, 1, h.sched.active())

	h.c.ToggleSlideshow()
	assert.False(t, h.c.State().Running)
	h.c.StopSlideshow()
	assert.Zero(t, h.sched.active())
}

func TestSetPostsFollowsCurrent(t *testing.T) {
	h := newHarness(t)
	h.c.Open(2, false)

	posts := fixture()
	h.c.SetPosts([]media.Post{posts[2], posts[0]})
	assert.Equal(t, 0, h.c.State().Index)
	assert.Equal(t, 2, h.scr.lastCaption().Total)

	h.c.SetPosts([]media.Post{posts[0]})
	assert.False(t, h.c.State().Open())
}

func TestOpenPost(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.c.OpenPost("c"))
	assert.Equal(t, 2, h.c.State().Index)
	assert.True(t, h.c.State().Running)

	assert.False(t, h.c.OpenPost("zzz"))
}
