package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionResetCountsOneLoop(t *testing.T) {
	d := NewPositionReset()

	var loops int
	for _, pos := range []float64{0.0, 4.7, 4.9, 0.1} {
		if d.Observe(pos, 5.0) {
			loops++
		}
	}

	assert.Equal(t, 1, loops)
}

func TestPositionResetIgnoresSeekWithoutNearEnd(t *testing.T) {
	d := NewPositionReset()

	for _, pos := range []float64{0.0, 1.0, 2.5, 0.2} {
		assert.False(t, d.Observe(pos, 5.0))
	}
}

func TestPositionResetUnknownDuration(t *testing.T) {
	d := NewPositionReset()

	for _, pos := range []float64{0.0, 4.9, 0.1} {
		assert.False(t, d.Observe(pos, 0))
	}
}

func TestPositionResetCountsEachLoop(t *testing.T) {
	d := NewPositionReset()

	var loops int
	for range 3 {
		for _, pos := range []float64{0.1, 2.0, 4.8, 0.05} {
			if d.Observe(pos, 5.0) {
				loops++
			}
		}
	}
	assert.Equal(t, 3, loops)

	d.Reset()
	assert.False(t, d.Observe(0.1, 5.0))
}
