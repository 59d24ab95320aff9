package viewer

import (
	"fmt"
	"time"
)

// Action names a viewer command.
type Action string

const (
	ActionOpen             Action = "open"
	ActionClose            Action = "close"
	ActionNext             Action = "next"
	ActionPrev             Action = "prev"
	ActionToggleSlideshow  Action = "toggle-slideshow"
	ActionToggleFullscreen Action = "toggle-fullscreen"
	ActionAutoPlay         Action = "auto-play"
	ActionSetInterval      Action = "set-interval"
)

// Command is a request from the UI layer.
type Command struct {
	Action Action

	// Index is the item for ActionOpen.
	Index int

	// Random picks a random start for ActionAutoPlay.
	Random bool

	// Interval is the new period for ActionSetInterval.
	Interval time.Duration
}

// Dispatch applies cmd to the controller.
func (c *Controller) Dispatch(cmd Command) error {
	switch cmd.Action {
	case ActionOpen:
		if cmd.Index < 0 || cmd.Index >= len(c.posts) {
			return fmt.Errorf("open: index %d out of range [0,%d)", cmd.Index, len(c.posts))
		}
		c.Open(cmd.Index, true)
	case ActionClose:
		c.Close()
	case ActionNext:
		c.Navigate(1)
	case ActionPrev:
		c.Navigate(-1)
	case ActionToggleSlideshow:
		c.ToggleSlideshow()
	case ActionToggleFullscreen:
		c.ToggleFullscreen()
	case ActionAutoPlay:
		return c.StartAutoPlay(cmd.Random)
	case ActionSetInterval:
		if cmd.Interval <= 0 {
			return fmt.Errorf("set-interval: invalid interval %s", cmd.Interval)
		}
		c.SetInterval(cmd.Interval)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}

// KeyCommand maps a key name to a command. Keys follow the browser
// names ("Escape", "ArrowLeft", " ") so TV remotes work unchanged; single
// letters are terminal aliases. open tells whether the viewer is shown.
func KeyCommand(key string, open bool) (Command, bool) {
	if !open {
		switch key {
		case "Enter", " ":
			return Command{Action: ActionOpen, Index: 0}, true
		case "a":
			return Command{Action: ActionAutoPlay}, true
		case "A":
			return Command{Action: ActionAutoPlay, Random: true}, true
		}
		return Command{}, false
	}

	switch key {
	case "Escape", "Backspace", "q":
		return Command{Action: ActionClose}, true
	case "ArrowLeft", "h", "p":
		return Command{Action: ActionPrev}, true
	case "ArrowRight", "l", "n":
		return Command{Action: ActionNext}, true
	case " ", "Enter":
		return Command{Action: ActionToggleSlideshow}, true
	case "f":
		return Command{Action: ActionToggleFullscreen}, true
	}
	return Command{}, false
}
