//go:build !(linux && arm64)

// Subprocess backend: one VLC process per item, exiting when the item
// ends. Used for development on desktop platforms. No CGO required.
package vlc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

type execBackend struct {
	log  zerolog.Logger
	path string
	emit func(event)

	mu         sync.Mutex
	cmd        *exec.Cmd
	id         uint64
	url        string
	still      bool
	fullscreen bool
}

func newBackend(log zerolog.Logger) backend {
	return &execBackend{log: log.With().Str("backend", "exec").Logger()}
}

func (b *execBackend) Init(emit func(event)) error {
	path, err := findVLC()
	if err != nil {
		return err
	}
	b.path = path
	b.emit = emit
	b.log.Info().Str("path", path).Msg("using VLC subprocess")
	return nil
}

// Load only records the item: the process starts on Play. The item is
// reported loaded straight away.
func (b *execBackend) Load(id uint64, url string, still bool) error {
	b.kill()

	b.mu.Lock()
	b.id, b.url, b.still = id, url, still
	b.mu.Unlock()

	b.emit(event{kind: evLoaded, id: id})
	return nil
}

func (b *execBackend) Play() error {
	b.kill()

	b.mu.Lock()
	if b.url == "" {
		b.mu.Unlock()
		return errors.New("nothing loaded")
	}
	cmd := exec.Command(b.path, buildArgs(b.url, b.still, b.fullscreen)...)
	cmd.Stderr = os.Stderr
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" {
		cmd.Env = append(os.Environ(), "DISPLAY=:0")
	}
	id := b.id
	b.cmd = cmd
	b.mu.Unlock()

	if err := cmd.Start(); err != nil {
		b.mu.Lock()
		b.cmd = nil
		b.mu.Unlock()
		return fmt.Errorf("vlc start failed: %w", err)
	}

	go b.wait(cmd, id)
	return nil
}

// wait reports how the process ended unless it was killed by us.
func (b *execBackend) wait(cmd *exec.Cmd, id uint64) {
	err := cmd.Wait()

	b.mu.Lock()
	current := b.cmd == cmd
	if current {
		b.cmd = nil
	}
	b.mu.Unlock()

	if !current {
		return
	}
	if err != nil {
		b.emit(event{kind: evError, id: id, err: fmt.Errorf("vlc exited: %w", err)})
		return
	}
	b.emit(event{kind: evEnded, id: id})
}

// Pause stops the process. The next Play starts the item from the top.
func (b *execBackend) Pause() {
	b.kill()
}

func (b *execBackend) Rewind() {}

// SetFullscreen applies from the next Play.
func (b *execBackend) SetFullscreen(on bool) error {
	b.mu.Lock()
	b.fullscreen = on
	b.mu.Unlock()
	return nil
}

func (b *execBackend) Stop() {
	b.kill()
}

func (b *execBackend) Release() {
	b.kill()
	b.log.Info().Msg("released")
}

func (b *execBackend) kill() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cmd != nil && b.cmd.Process != nil {
		_ = b.cmd.Process.Kill()
	}
	b.cmd = nil
}

func buildArgs(url string, still, fullscreen bool) []string {
	args := []string{
		"--play-and-exit",       // Exit when the item ends
		"--no-loop",             // Looping is driven by the player
		"--no-video-title-show", // No filename overlay
		"--no-osd",
		"--no-spu",

		"--avcodec-hw=any",    // HW decode where available
		"--avcodec-threads=0", // Auto-detect cores

		"--network-caching=3000",
		"--clock-jitter=0",
		"--deinterlace=0",

		"--quiet",
	}

	if runtime.GOOS == "windows" {
		args = append(args,
			"--no-video-deco",
			"--no-qt-fs-controller",
			"--no-qt-privacy-ask",
			"--vout=direct3d11",
		)
	}

	if still {
		args = append(args, "--image-duration=-1") // Hold until replaced
	} else {
		args = append(args, "--no-audio") // Muted
	}

	if fullscreen {
		args = append(args, "--fullscreen")
	}

	return append(args, url)
}

// findVLC locates the VLC executable on the system.
func findVLC() (string, error) {
	// On Linux, prefer cvlc (VLC without Qt GUI).
	if runtime.GOOS == "linux" {
		if path, err := exec.LookPath("cvlc"); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("vlc"); err == nil {
		return path, nil
	}

	var candidates []string
	switch runtime.GOOS {
	case "windows":
		candidates = []string{
			`C:\Program Files\VideoLAN\VLC\vlc.exe`,
			`C:\Program Files (x86)\VideoLAN\VLC\vlc.exe`,
		}
	case "darwin":
		candidates = []string{
			"/Applications/VLC.app/Contents/MacOS/VLC",
		}
	default:
		candidates = []string{
			"/usr/bin/cvlc",
			"/usr/bin/vlc",
			"/snap/bin/vlc",
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", errors.New("VLC not found, install from https://www.videolan.org/vlc/")
}
