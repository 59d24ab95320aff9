package viewer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped it.
	Stop() bool
}

// Scheduler runs callbacks later on the viewer goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

// Loop serialises closures onto the goroutine calling Run. The queue is
// unbounded, so Post never blocks, including from the loop goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewLoop returns a Loop ready to accept posts.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}

	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

// Run drains posted closures until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			fn := l.pop()
			if fn == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn()
		}
	}
}

func (l *Loop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// LoopScheduler is a wall-clock Scheduler whose callbacks run on a Loop.
// A timer stopped from the loop goroutine never fires afterwards.
type LoopScheduler struct {
	loop *Loop
}

// NewLoopScheduler returns a scheduler posting into loop.
func NewLoopScheduler(loop *Loop) *LoopScheduler {
	return &LoopScheduler{loop: loop}
}

type loopTimer struct {
	stopped atomic.Bool
	cancel  func()
}

func (t *loopTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

// AfterFunc runs fn once after d.
func (s *LoopScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	tt := time.AfterFunc(d, func() {
		s.loop.Post(func() {
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	t.cancel = func() { tt.Stop() }
	return t
}

// Every runs fn every d until stopped.
func (s *LoopScheduler) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	ticker := time.NewTicker(d)
	quit := make(chan struct{})
	t.cancel = func() {
		ticker.Stop()
		close(quit)
	}

	go func() {
		for {
			select {
			case <-quit:
				return
			case <-s.loop.done:
				ticker.Stop()
				return
			case <-ticker.C:
				s.loop.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				})
			}
		}
	}()

	return t
}
