//go:build linux && arm64

// libVLC backend for the Raspberry Pi 5: in-process playback through CGO
// bindings, rendering via DRM/KMS.
package vlc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	libvlc "github.com/adrg/libvlc-go/v3"
	"github.com/rs/zerolog"
)

var (
	vlcInitOnce sync.Once
	vlcInitErr  error
)

var errPlayback = errors.New("libvlc playback error")

type libvlcBackend struct {
	log    zerolog.Logger
	emit   func(event)
	player *libvlc.Player
	events *libvlc.EventManager
	ids    []libvlc.EventID

	// current is read from libVLC callback threads.
	current atomic.Uint64
}

func newBackend(log zerolog.Logger) backend {
	return &libvlcBackend{log: log.With().Str("backend", "libvlc").Logger()}
}

func (b *libvlcBackend) Init(emit func(event)) error {
	b.emit = emit

	vlcInitOnce.Do(func() {
		vlcInitErr = libvlc.Init(
			"--no-xlib", // Render via DRM/KMS directly
			"--no-osd",
			"--no-dbus",
			"--no-video-title-show",
			"--aout=alsa",
			"--network-caching=3000",
			"--clock-jitter=0",
			"--deinterlace=0",
			"--quiet",
		)
	})
	if vlcInitErr != nil {
		return fmt.Errorf("libvlc init failed: %w", vlcInitErr)
	}

	player, err := libvlc.NewPlayer()
	if err != nil {
		return fmt.Errorf("player creation failed: %w", err)
	}
	b.player = player

	manager, err := player.EventManager()
	if err != nil {
		return fmt.Errorf("event manager: %w", err)
	}
	b.events = manager

	// Callbacks run on libVLC threads: only getters here, never control
	// calls, or libVLC deadlocks.
	attach := []struct {
		ev libvlc.Event
		fn libvlc.EventCallback
	}{
		{libvlc.MediaPlayerTimeChanged, func(libvlc.Event, interface{}) { b.onTime() }},
		{libvlc.MediaPlayerEndReached, func(libvlc.Event, interface{}) {
			b.emit(event{kind: evEnded, id: b.current.Load()})
		}},
		{libvlc.MediaPlayerEncounteredError, func(libvlc.Event, interface{}) {
			b.emit(event{kind: evError, id: b.current.Load(), err: errPlayback})
		}},
	}
	for _, a := range attach {
		id, err := manager.Attach(a.ev, a.fn, nil)
		if err != nil {
			return fmt.Errorf("attach event: %w", err)
		}
		b.ids = append(b.ids, id)
	}

	b.log.Info().Msg("libVLC player initialized")
	return nil
}

func (b *libvlcBackend) onTime() {
	pos, err := b.player.MediaTime()
	if err != nil {
		return
	}
	dur, err := b.player.MediaLength()
	if err != nil {
		return
	}
	b.emit(event{
		kind: evProgress,
		id:   b.current.Load(),
		pos:  float64(pos) / 1000,
		dur:  float64(dur) / 1000,
	})
}

func (b *libvlcBackend) Load(id uint64, url string, still bool) error {
	b.current.Store(id)

	m, err := b.player.LoadMediaFromURL(url)
	if err != nil {
		return fmt.Errorf("load media: %w", err)
	}
	if still {
		if err := m.AddOptions(":image-duration=-1"); err != nil {
			return fmt.Errorf("media options: %w", err)
		}
	} else {
		if err := m.AddOptions(":no-audio"); err != nil {
			return fmt.Errorf("media options: %w", err)
		}
	}

	b.emit(event{kind: evLoaded, id: id})
	return nil
}

func (b *libvlcBackend) Play() error {
	return b.player.Play()
}

func (b *libvlcBackend) Pause() {
	if err := b.player.SetPause(true); err != nil {
		b.log.Debug().Err(err).Msg("pause")
	}
}

// Rewind seeks to the start. An ended player has to be stopped before
// it can play again.
func (b *libvlcBackend) Rewind() {
	if state, err := b.player.MediaState(); err == nil && state == libvlc.MediaEnded {
		_ = b.player.Stop()
		return
	}
	if err := b.player.SetMediaTime(0); err != nil {
		b.log.Debug().Err(err).Msg("rewind")
	}
}

func (b *libvlcBackend) SetFullscreen(on bool) error {
	return b.player.SetFullScreen(on)
}

func (b *libvlcBackend) Stop() {
	if err := b.player.Stop(); err != nil {
		b.log.Debug().Err(err).Msg("stop")
	}
}

func (b *libvlcBackend) Release() {
	if b.events != nil {
		b.events.Detach(b.ids...)
		b.ids = nil
	}
	if b.player != nil {
		_ = b.player.Stop()
		_ = b.player.Release()
		b.player = nil
	}
	_ = libvlc.Release()
	b.log.Info().Msg("released")
}
