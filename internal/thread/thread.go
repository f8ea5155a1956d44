// Package thread implements timed joinable OS threads.
//
// Ownership boundary:
// - per-thread monitor state (exit flag, status, join claim)
// - the create/exit/join protocol
// - the handle-to-record registry
//
// Join with a deadline follows the timed-join protocol from the
// P1003.1d/D14 draft, figure B-6: the joiner waits on a condition variable
// guarded by the record's mutex until the exit flag is set, re-checking a
// single absolute deadline on every wake-up.
package thread

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/danmuck/threadctl/internal/objectmodel"
)

var (
	ErrNilEntry      = errors.New("thread: nil entry point")
	ErrTimeout       = errors.New("thread: join deadline elapsed")
	ErrAlreadyJoined = errors.New("thread: already joined")
)

// Handle is a kernel thread id. It is unique among live threads and doubles
// as the registry key and the value Start hands back to the managed runtime.
type Handle int32

// NoThread is reserved for embedders that persist handles; no code path
// signals failure through it.
const NoThread Handle = 0

// Self returns the calling goroutine's current kernel thread id. It is only
// stable for goroutines locked to their OS thread.
func Self() Handle {
	return Handle(unix.Gettid())
}

// Thread is one spawned thread's record. The mutex guards status, exiting
// and joined; entry and arg are captured at creation and never mutated.
type Thread struct {
	id       Handle
	identity objectmodel.Identity

	mu   sync.Mutex
	cond *sync.Cond

	entry objectmodel.EntryPoint
	arg   any

	status  any
	exiting bool
	joined  bool

	start     chan struct{}
	released  sync.Once
	interrupt chan struct{}
}

// Create spawns a new OS thread and returns its record once the thread has
// reported its kernel id. The spawned goroutine locks itself to its OS
// thread for its whole lifetime, so the id stays valid as a registry key; it
// exits without unlocking, which discards the OS thread the way a detached
// pthread is reclaimed on termination. The entry function does not run until
// Release, giving the creator a window to register the record first. Join
// semantics live entirely in the record's monitor.
func Create(entry objectmodel.EntryPoint, arg any) (*Thread, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	t := &Thread{
		entry:     entry,
		arg:       arg,
		start:     make(chan struct{}),
		interrupt: make(chan struct{}, 1),
	}
	t.cond = sync.NewCond(&t.mu)

	started := make(chan Handle)
	go func() {
		runtime.LockOSThread()
		started <- Handle(unix.Gettid())
		<-t.start
		t.exit(t.entry(t.arg))
	}()
	t.id = <-started
	return t, nil
}

// Release lets the spawned thread run its entry function. A thread that is
// never released never exits, so every creator must release exactly the
// threads it keeps.
func (t *Thread) Release() {
	t.released.Do(func() { close(t.start) })
}

// exit runs on the spawned thread after the entry function returns. Status
// is stored strictly before the exit flag is set, all under the mutex, so a
// woken joiner always observes a fully written status. The broadcast happens
// exactly once per record.
func (t *Thread) exit(status any) {
	t.mu.Lock()
	t.status = status
	t.exiting = true
	t.cond.Broadcast()
	t.mu.Unlock()
}

// Join blocks until the thread announces exit, then returns its status. The
// zero deadline waits untimed. A non-zero deadline is absolute: it is never
// re-derived from a relative offset, so spurious wake-ups cannot extend it.
// Exactly one joiner wins the claim; concurrent joiners of an exited thread
// get ErrAlreadyJoined and must not touch the record further.
func (t *Thread) Join(deadline time.Time) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !deadline.IsZero() {
		wake := time.AfterFunc(time.Until(deadline), func() {
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		})
		defer wake.Stop()
	}

	for !t.exiting {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: thread %d", ErrTimeout, t.id)
		}
		t.cond.Wait()
	}
	if t.joined {
		return nil, fmt.Errorf("%w: thread %d", ErrAlreadyJoined, t.id)
	}
	t.joined = true
	return t.status, nil
}

// ID returns the thread's kernel id.
func (t *Thread) ID() Handle {
	return t.id
}

// BindIdentity records the managed identity object this thread represents.
// The record does not keep the identity alive; it only labels it.
func (t *Thread) BindIdentity(id objectmodel.Identity) {
	t.identity = id
}

// Identity returns the bound managed identity, or nil before BindIdentity.
func (t *Thread) Identity() objectmodel.Identity {
	return t.identity
}

// Interrupt trips the thread's sleep gate. At most one interrupt is held
// pending, matching pending-signal semantics.
func (t *Thread) Interrupt() {
	select {
	case t.interrupt <- struct{}{}:
	default:
	}
}

// Gate exposes the interrupt channel for the sleep path.
func (t *Thread) Gate() <-chan struct{} {
	return t.interrupt
}
