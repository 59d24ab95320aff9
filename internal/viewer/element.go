// Package viewer drives the full-screen viewer and slideshow over the
// displayed set of posts.
//
// Every method of Controller and HoverPreview, and every callback handed
// to an Element, Screen or Scheduler, runs on a single goroutine: the one
// draining the Loop. Playback surfaces deliver their events by posting
// them into that Loop.
package viewer

import (
	"errors"
	"slices"
)

var (
	// ErrPlayAborted is reported by an element when a pending play was
	// interrupted by a pause or a new load.
	ErrPlayAborted = errors.New("play aborted")

	// ErrPlayNotAllowed is reported when the surface refuses to start
	// playback on its own.
	ErrPlayNotAllowed = errors.New("play not allowed")

	// ErrNoContent is returned when an operation needs posts and there
	// are none.
	ErrNoContent = errors.New("no content loaded")
)

// benign reports whether a play failure is expected and not worth a log
// line.
func benign(err error) bool {
	return errors.Is(err, ErrPlayAborted) || errors.Is(err, ErrPlayNotAllowed)
}

// Source describes what an element should load.
type Source struct {
	URL      string
	Poster   string
	Loop     bool
	Muted    bool
	Controls bool
}

// Progress is a playback position update, in seconds.
type Progress struct {
	Position float64
	Duration float64
}

// Detach removes a previously attached handler. Calling it twice is safe.
type Detach func()

// Element is a time-based playback element (video or animated image).
type Element interface {
	Load(src Source) error

	// Play starts playback. done receives the outcome once known.
	Play(done func(error))
	Pause()
	Rewind()
	SetControls(on bool)

	// Ready reports whether enough data is loaded to start playing.
	Ready() bool

	OnLoaded(fn func()) Detach
	OnProgress(fn func(Progress)) Detach
	OnEnded(fn func()) Detach
	OnError(fn func(error)) Detach
}

// LoopNotifier is implemented by elements that report each native loop
// restart. When present it replaces position-based loop detection.
type LoopNotifier interface {
	OnLoop(fn func()) Detach
}

// Image is a still image to show, with a fallback for load failures.
type Image struct {
	URL      string
	Fallback string
}

// Caption is the text shown alongside the current item.
type Caption struct {
	Title    string
	Source   string
	Score    int
	Comments int
	Index    int
	Total    int
}

// Screen is the viewer surface.
type Screen interface {
	ShowImage(img Image)
	ShowVideo()
	Hide()
	SetCaption(c Caption)
	Fullscreen() bool
	SetFullscreen(on bool) error
}

// Listeners is an ordered set of handlers that can be detached
// individually. Surfaces use it to implement the Element On* methods.
type Listeners[T any] struct {
	next int
	ids  []int
	fns  []T
}

// Add registers fn and returns its Detach.
func (l *Listeners[T]) Add(fn T) Detach {
	id := l.next
	l.next++
	l.ids = append(l.ids, id)
	l.fns = append(l.fns, fn)
	return func() {
		if i := slices.Index(l.ids, id); i >= 0 {
			l.ids = slices.Delete(l.ids, i, i+1)
			l.fns = slices.Delete(l.fns, i, i+1)
		}
	}
}

// Each calls f for a snapshot of the registered handlers, so handlers may
// detach themselves or others while being called.
func (l *Listeners[T]) Each(f func(T)) {
	for _, fn := range slices.Clone(l.fns) {
		f(fn)
	}
}

// Len returns the number of attached handlers.
func (l *Listeners[T]) Len() int {
	return len(l.fns)
}
