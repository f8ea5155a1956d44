package runtime

import (
	"errors"
	"fmt"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/threadctl/internal/logging"
	"github.com/danmuck/threadctl/internal/objectmodel"
	"github.com/danmuck/threadctl/internal/thread"
)

var (
	ErrNotInitialized = errors.New("runtime: not initialized")
	ErrNotCallable    = errors.New("runtime: delegate value is not callable")
	ErrSelfJoin       = errors.New("runtime: thread cannot join itself")
	ErrUnknownThread  = errors.New("runtime: unknown thread handle")
)

// Config carries the runtime's collaborators and posture.
type Config struct {
	// MainThreadClass is instantiated once by Init to produce the identity
	// CurrentThread returns for threads that were never started here.
	MainThreadClass string
	Resolver        objectmodel.Resolver
	Instantiator    objectmodel.Instantiator
	// CleanupWarnings controls whether shutdown-time join failures are
	// logged at warn level; they are skipped either way.
	CleanupWarnings bool
}

func DefaultConfig(model *objectmodel.Model) Config {
	return Config{
		MainThreadClass: "System.Threading.Thread",
		Resolver:        model,
		Instantiator:    model,
		CleanupWarnings: true,
	}
}

// Runtime is the thread lifecycle surface exposed to the managed runtime.
type Runtime struct {
	cfg Config
	reg *thread.Registry

	initOnce sync.Once
	initErr  error
	main     objectmodel.Identity

	// mainGate is the sleep interrupt gate for callers with no record.
	mainGate chan struct{}
}

func New(cfg Config) *Runtime {
	return &Runtime{
		cfg:      cfg,
		reg:      thread.NewRegistry(),
		mainGate: make(chan struct{}, 1),
	}
}

// logger resolves the component child at log time, so a Runtime constructed
// before logging is configured still follows the configured global logger.
func (r *Runtime) logger() *zerolog.Logger {
	l := logging.Component("runtime")
	return &l
}

// Init builds the main-thread identity. It must run before any Start call
// and takes effect exactly once.
func (r *Runtime) Init() error {
	r.initOnce.Do(func() {
		id, err := r.cfg.Instantiator.Instantiate(r.cfg.MainThreadClass)
		if err != nil {
			r.initErr = fmt.Errorf("runtime: instantiate %q: %w", r.cfg.MainThreadClass, err)
			return
		}
		r.main = id
	})
	return r.initErr
}

// Start resolves value to a native entry point, spawns a thread running it,
// and registers the new record under the thread's kernel id, bound to
// identity. Failures are logged and reported as errors; no handle value is
// overloaded to mean failure.
func (r *Runtime) Start(identity objectmodel.Identity, value any) (thread.Handle, error) {
	if r.main == nil {
		r.logger().Error().Msg("start before Init")
		return thread.NoThread, ErrNotInitialized
	}
	entry, arg, ok := r.cfg.Resolver.ResolveEntryPoint(value)
	if !ok {
		r.logger().Warn().Msg("start: cannot locate start method")
		return thread.NoThread, ErrNotCallable
	}
	t, err := thread.Create(entry, arg)
	if err != nil {
		r.logger().Warn().Err(err).Msg("start: thread create failed")
		return thread.NoThread, err
	}
	return r.register(t, identity)
}

// register binds the identity, records the thread, and lets it run. When the
// handle collides with a registered one (kernel id reuse, a corner that does
// not occur while the holder is alive), the thread can never be joined
// through the registry, so it is released and reaped inline rather than left
// running with nothing waiting on it.
func (r *Runtime) register(t *thread.Thread, identity objectmodel.Identity) (thread.Handle, error) {
	t.BindIdentity(identity)
	if err := r.reg.Insert(t); err != nil {
		r.logger().Warn().Err(err).Msg("start: register thread failed")
		t.Release()
		if _, jerr := t.Join(time.Time{}); jerr != nil {
			r.logger().Warn().Err(jerr).Int32("tid", int32(t.ID())).Msg("start: reap unregistered thread")
		}
		return thread.NoThread, err
	}
	t.Release()
	r.logger().Debug().Int32("tid", int32(t.ID())).Msg("started thread")
	return t.ID(), nil
}

// Sleep blocks the calling thread for ms milliseconds and returns 0, or, if
// the thread is interrupted first, returns the remaining milliseconds so the
// caller can resume sleeping for the rest.
func (r *Runtime) Sleep(ms int32) int32 {
	if ms <= 0 {
		return 0
	}
	deadline := time.Now().Add(time.Duration(ms) * time.Millisecond)
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return 0
	case <-r.callerGate():
		rem := time.Until(deadline).Milliseconds()
		if rem < 0 {
			rem = 0
		}
		r.logger().Debug().Int64("remaining_ms", rem).Msg("sleep interrupted")
		return int32(rem)
	}
}

// Yield gives up the rest of the scheduling quantum without blocking.
func (r *Runtime) Yield() {
	goruntime.Gosched()
}

// CurrentThread resolves the caller's kernel id against the registry. A
// caller with no record is the thread that was running before any managed
// thread started, so it gets the main-thread identity.
func (r *Runtime) CurrentThread() objectmodel.Identity {
	if t, ok := r.reg.Lookup(thread.Self()); ok {
		return t.Identity()
	}
	return r.main
}

// Join waits for the target thread to exit. ms == 0 blocks untimed; any
// other ms waits until an absolute deadline computed once from now, so a
// negative wait fails promptly. On success the
// winning joiner removes the record from the registry. Timeout returns false
// silently and leaves the target joinable; every other failure is logged.
func (r *Runtime) Join(ms int32, target thread.Handle) bool {
	self := thread.Self()
	if self == target {
		// A permissive runtime would proceed and deadlock here.
		r.logger().Warn().Err(ErrSelfJoin).Int32("tid", int32(target)).Msg("join refused")
		return false
	}
	t, ok := r.reg.Lookup(target)
	if !ok {
		r.logger().Warn().Err(ErrUnknownThread).Int32("tid", int32(target)).Msg("join refused")
		return false
	}

	// Any nonzero wait is timed; a negative ms yields an already-elapsed
	// deadline and a prompt timeout rather than an untimed block.
	var deadline time.Time
	if ms != 0 {
		deadline = time.Now().Add(time.Duration(ms) * time.Millisecond)
	}
	if _, err := t.Join(deadline); err != nil {
		if errors.Is(err, thread.ErrTimeout) {
			return false
		}
		r.logger().Warn().Err(err).Int32("tid", int32(target)).Msg("join error")
		return false
	}
	r.reg.Remove(target)
	return true
}

// Interrupt trips the target thread's sleep gate. NoThread addresses the
// main thread. Reports whether a target was found.
func (r *Runtime) Interrupt(target thread.Handle) bool {
	if target == thread.NoThread {
		select {
		case r.mainGate <- struct{}{}:
		default:
		}
		return true
	}
	t, ok := r.reg.Lookup(target)
	if !ok {
		return false
	}
	t.Interrupt()
	return true
}

// Live reports the number of registered threads.
func (r *Runtime) Live() int {
	return r.reg.Len()
}

// Cleanup joins every thread still registered, untimed, then releases the
// records and empties the registry. Shutdown must complete, so join failures
// are logged and skipped rather than aborting the drain.
func (r *Runtime) Cleanup() {
	r.reg.ForEach(func(t *thread.Thread) {
		if _, err := t.Join(time.Time{}); err != nil && r.cfg.CleanupWarnings {
			r.logger().Warn().Err(err).Int32("tid", int32(t.ID())).Msg("cleanup join")
		}
	})
	r.reg.Clear()
	r.logger().Debug().Msg("cleanup complete")
}

func (r *Runtime) callerGate() <-chan struct{} {
	if t, ok := r.reg.Lookup(thread.Self()); ok {
		return t.Gate()
	}
	return r.mainGate
}
