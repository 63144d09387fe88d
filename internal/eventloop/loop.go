// Package eventloop is the single-threaded, cooperative multiplexer that
// drives the LSP host: it waits for registered file descriptors to become
// readable and, when nothing is ready within the idle timeout, runs a set
// of idle callbacks instead (used for idle-time diagnostics scans).
//
// Handlers are run one at a time on whatever goroutine calls Run, so they
// never need locking against each other -- the same cooperative contract
// the reference FDMultiplexer gives its callers.
package eventloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// Handler is called when its file descriptor is readable, or, for an idle
// handler, every IdleInterval with nothing else to do. Returning false
// unregisters it.
type Handler func() bool

// Loop is a level-triggered select(2)-based multiplexer over readable file
// descriptors, plus a list of idle callbacks invoked when a cycle's select
// times out.
type Loop struct {
	idleInterval time.Duration

	order    []int
	handlers map[int]Handler

	idle []Handler
}

// New returns a Loop whose idle handlers fire after idleInterval of
// inactivity on every registered descriptor.
func New(idleInterval time.Duration) *Loop {
	return &Loop{
		idleInterval: idleInterval,
		handlers:     make(map[int]Handler),
	}
}

// RunOnReadable registers handler to be called whenever fd has data
// available. It reports false if fd is already registered. Like the
// reference multiplexer, this may only be called before Run or from
// within a running handler.
func (l *Loop) RunOnReadable(fd int, handler Handler) bool {
	if _, exists := l.handlers[fd]; exists {
		return false
	}
	l.handlers[fd] = handler
	l.order = append(l.order, fd)
	return true
}

// RunOnIdle registers handler to be called on every cycle that timed out
// waiting for a readable descriptor.
func (l *Loop) RunOnIdle(handler Handler) {
	l.idle = append(l.idle, handler)
}

// SetIdleInterval changes the timeout used by every subsequent cycle.
// Safe to call from within a handler, since handlers only ever run
// between cycles, not concurrently with one.
func (l *Loop) SetIdleInterval(d time.Duration) {
	l.idleInterval = d
}

// Run blocks, calling SingleCycle until there are no more readable
// descriptors registered or a select(2) call fails.
func (l *Loop) Run() {
	for l.SingleCycle(l.idleInterval) {
	}
}

// SingleCycle performs exactly one select() wait and the handler call(s)
// it triggers: either the readable descriptors found ready, or -- on
// timeout -- every idle handler once. It reports false when there are no
// descriptors left to wait on, or the underlying select(2) call failed.
func (l *Loop) SingleCycle(timeout time.Duration) bool {
	if len(l.order) == 0 {
		// No descriptors left means none can ever reappear: handlers can
		// only be added before Run or from within a handler itself.
		return false
	}

	var set unix.FdSet
	maxFD := -1
	for _, fd := range l.order {
		fdSet(&set, fd)
		if fd > maxFD {
			maxFD = fd
		}
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(maxFD+1, &set, nil, nil, &tv)
	if err != nil {
		return false
	}

	if n == 0 {
		l.callIdleHandlers()
		return true
	}

	l.callReadyHandlers(&set, n)
	return true
}

func (l *Loop) callReadyHandlers(ready *unix.FdSet, available int) {
	current := l.order
	next := l.order[:0:0]
	for _, fd := range current {
		keep := true
		if available > 0 && fdIsSet(ready, fd) {
			available--
			keep = l.handlers[fd]()
		}
		if keep {
			next = append(next, fd)
		} else {
			delete(l.handlers, fd)
		}
	}
	// Keep descriptors a handler registered during this cycle.
	l.order = append(next, l.order[len(current):]...)
}

// fdSet and fdIsSet replicate the FD_SET/FD_ISSET macros: unix.FdSet has
// no such helpers of its own, just the raw bitmask storage.
func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

func (l *Loop) callIdleHandlers() {
	current := l.idle
	next := l.idle[:0:0]
	for _, h := range current {
		if h() {
			next = append(next, h)
		}
	}
	// Keep idle handlers registered during this cycle.
	l.idle = append(next, l.idle[len(current):]...)
}
