package viewer

import (
	"time"

	"github.com/rs/zerolog"
)

// hoverReadyTimeout bounds how long Enter waits for the element to load.
const hoverReadyTimeout = 3 * time.Second

// HoverPreview plays a grid card's element while it is focused.
type HoverPreview struct {
	el    Element
	sched Scheduler
	log   zerolog.Logger

	active  bool
	gen     uint64
	detach  []Detach
	timeout Timer
}

// NewHoverPreview returns a preview for el.
func NewHoverPreview(el Element, sched Scheduler, log zerolog.Logger) *HoverPreview {
	return &HoverPreview{el: el, sched: sched, log: log}
}

// Active reports whether the preview is between Enter and Leave.
func (h *HoverPreview) Active() bool {
	return h.active
}

// Enter waits until the element is ready (loaded, failed, or timed out),
// then plays it and shows its controls. A second Enter before Leave is
// ignored.
func (h *HoverPreview) Enter() {
	if h.active {
		return
	}
	h.active = true
	h.gen++
	gen := h.gen

	start := func() {
		if gen != h.gen {
			return
		}
		h.stopWaiting()
		h.el.Play(func(err error) {
			if gen != h.gen {
				return
			}
			if err != nil {
				if !benign(err) {
					h.log.Warn().Err(err).Msg("preview play failed")
				}
				h.active = false
				return
			}
			h.el.SetControls(true)
		})
	}

	if h.el.Ready() {
		start()
		return
	}

	h.detach = append(h.detach,
		h.el.OnLoaded(start),
		h.el.OnError(func(error) { start() }),
	)
	h.timeout = h.sched.AfterFunc(hoverReadyTimeout, start)
}

// Leave discards any in-flight play outcome and resets the element.
func (h *HoverPreview) Leave() {
	h.gen++
	h.active = false
	h.stopWaiting()

	h.el.Pause()
	h.el.Rewind()
	h.el.SetControls(false)
}

func (h *HoverPreview) stopWaiting() {
	for _, d := range h.detach {
		d()
	}
	h.detach = nil

	if h.timeout != nil {
		h.timeout.Stop()
		h.timeout = nil
	}
}
