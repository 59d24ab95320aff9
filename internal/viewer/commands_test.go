package viewer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		key  string
		open bool
		want Action
		ok   bool
	}{
		{"Escape", true, ActionClose, true},
		{"Backspace", true, ActionClose, true},
		{"ArrowLeft", true, ActionPrev, true},
		{"ArrowRight", true, ActionNext, true},
		{" ", true, ActionToggleSlideshow, true},
		{"Enter", true, ActionToggleSlideshow, true},
		{"f", true, ActionToggleFullscreen, true},
		{"x", true, "", false},
		{"Enter", false, ActionOpen, true},
		{"a", false, ActionAutoPlay, true},
		{"Escape", false, "", false},
	}

	for _, tt := range tests {
		cmd, ok := KeyCommand(tt.key, tt.open)
		assert.Equal(t, tt.ok, ok, "key %q open=%v", tt.key, tt.open)
		assert.Equal(t, tt.want, cmd.Action, "key %q open=%v", tt.key, tt.open)
	}

	cmd, _ := KeyCommand("A", false)
	assert.True(t, cmd.Random)
}

func TestDispatch(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.Dispatch(Command{Action: ActionOpen, Index: 2}))
	assert.Equal(t, 2, h.c.State().Index)
	assert.True(t, h.c.State().Running)

	require.NoError(t, h.c.Dispatch(Command{Action: ActionToggleSlideshow}))
	assert.False(t, h.c.State().Running)

	require.NoError(t, h.c.Dispatch(Command{Action: ActionNext}))
	assert.Equal(t, 3, h.c.State().Index)
	require.NoError(t, h.c.Dispatch(Command{Action: ActionNext}))
	assert.Equal(t, 0, h.c.State().Index)
	require.NoError(t, h.c.Dispatch(Command{Action: ActionPrev}))
	assert.Equal(t, 3, h.c.State().Index)

	require.NoError(t, h.c.Dispatch(Command{Action: ActionToggleFullscreen}))
	assert.True(t, h.scr.fullscreen)

	require.NoError(t, h.c.Dispatch(Command{Action: ActionSetInterval, Interval: time.Second}))
	assert.Equal(t, time.Second, h.c.State().Interval)

	require.NoError(t, h.c.Dispatch(Command{Action: ActionClose}))
	assert.False(t, h.c.State().Open())

	assert.Error(t, h.c.Dispatch(Command{Action: ActionOpen, Index: 9}))
	assert.Error(t, h.c.Dispatch(Command{Action: ActionSetInterval}))
	assert.Error(t, h.c.Dispatch(Command{Action: "dance"}))

	require.NoError(t, h.c.Dispatch(Command{Action: ActionAutoPlay}))
	assert.True(t, h.c.State().AutoPlay)
}

func TestKeysDriveController(t *testing.T) {
	h := newHarness(t)

	press := func(key string) {
		cmd, ok := KeyCommand(key, h.c.State().Open())
		require.True(t, ok, key)
		require.NoError(t, h.c.Dispatch(cmd))
	}

	press("Enter")
	assert.Equal(t, 0, h.c.State().Index)
	press("ArrowLeft")
	assert.Equal(t, 3, h.c.State().Index)
	press(" ")
	press("Escape")
	assert.False(t, h.c.State().Open())
}
