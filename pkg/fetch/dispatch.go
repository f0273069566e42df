package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLoopStopped is returned by MainLoop.Sync once the loop no longer runs jobs.
var ErrLoopStopped = errors.New("fetch: main loop stopped")

// Dispatcher runs functions on a designated execution context.
type Dispatcher interface {
	// Sync runs fn on the designated context and returns once fn has returned.
	Sync(fn func()) error
}

// Immediate runs fn on the calling goroutine.
type Immediate struct{}

// Sync runs fn right away.
func (Immediate) Sync(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch: dispatched function panicked: %v", r)
		}
	}()
	fn()
	return nil
}

// Serial runs fn on the calling goroutine while holding a lock, so functions
// dispatched through the same Serial never overlap. It is the Client default.
//
// Calling Sync from inside a function it is running deadlocks.
type Serial struct {
	mu sync.Mutex
}

// Sync runs fn under the lock and returns once fn has returned.
func (s *Serial) Sync(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Immediate{}.Sync(fn)
}

// MainLoop serializes work onto the goroutine that calls Run. Hand-off is an
// unbuffered rendezvous: Sync blocks until the loop has picked the job up and
// finished it.
//
// Calling Sync from inside a job running on the same loop deadlocks.
type MainLoop struct {
	jobs     chan *job
	stopped  chan struct{}
	stopOnce sync.Once
}

type job struct {
	fn   func()
	err  error
	done chan struct{}
}

// NewMainLoop creates a loop. Nothing runs until Run is called.
func NewMainLoop() *MainLoop {
	return &MainLoop{
		jobs:    make(chan *job),
		stopped: make(chan struct{}),
	}
}

// Run executes jobs on the calling goroutine until ctx is done or Stop is called.
func (l *MainLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.stopped:
			return nil
		case j := <-l.jobs:
			l.exec(j)
		}
	}
}

// Stop makes Run return and every later Sync fail with ErrLoopStopped. A job
// already picked up still runs to completion.
func (l *MainLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

// Done is closed once the loop is stopped.
func (l *MainLoop) Done() <-chan struct{} { return l.stopped }

// Sync runs fn on the loop goroutine and waits for it. A panic inside fn is
// recovered and returned as an error.
func (l *MainLoop) Sync(fn func()) error {
	j := &job{fn: fn, done: make(chan struct{})}
	select {
	case <-l.stopped:
		return ErrLoopStopped
	case l.jobs <- j:
	}
	<-j.done
	return j.err
}

func (l *MainLoop) exec(j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("fetch: dispatched function panicked: %v", r)
		}
	}()
	j.fn()
}
