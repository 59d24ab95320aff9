package viewer

// LoopDetector infers loop restarts of a looping element from its
// position updates.
type LoopDetector interface {
	// Observe feeds one position update and reports whether it completed
	// a loop.
	Observe(position, duration float64) bool
	Reset()
}

// PositionReset counts a loop when playback, having come within NearEnd
// seconds of the end, jumps back below Restart seconds.
type PositionReset struct {
	NearEnd float64
	Restart float64

	nearEnd bool
	last    float64
}

// NewPositionReset returns a detector with the default thresholds.
func NewPositionReset() *PositionReset {
	return &PositionReset{NearEnd: 0.3, Restart: 0.5}
}

func (d *PositionReset) Observe(position, duration float64) bool {
	if duration > 0 && position >= duration-d.NearEnd {
		d.nearEnd = true
	}

	looped := d.nearEnd && position < d.Restart && d.last > d.Restart
	if looped {
		d.nearEnd = false
	}
	d.last = position
	return looped
}

func (d *PositionReset) Reset() {
	d.nearEnd = false
	d.last = 0
}
