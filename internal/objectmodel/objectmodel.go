// Package objectmodel is the boundary to the managed object model.
//
// Ownership boundary:
// - resolving a delegate-like managed value to a native entry point
// - instantiating a named class to produce an identity object
//
// The thread core never allocates managed objects or dispatches managed
// calls; it only consumes this boundary.
package objectmodel

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNilConstructor = errors.New("objectmodel: nil constructor")

// EntryPoint is a native callable resolved from a managed delegate-like
// value. It receives the single argument captured at resolution time and
// returns the thread's status value.
type EntryPoint func(arg any) any

// Identity is the managed-side value representing a thread. The thread core
// treats it as opaque beyond use as a return value.
type Identity interface {
	Class() string
}

// Resolver resolves a delegate-like managed value to a callable entry point
// plus its captured argument. The boolean is false when nothing callable can
// be resolved.
type Resolver interface {
	ResolveEntryPoint(value any) (EntryPoint, any, bool)
}

// Instantiator builds a fresh identity object for a named class.
type Instantiator interface {
	Instantiate(className string) (Identity, error)
}

// Object is the identity implementation produced by Model.
type Object struct {
	class string
}

func (o *Object) Class() string {
	return o.class
}

// Delegate is the managed delegate-like shape Model knows how to resolve:
// a method pointer plus one captured argument.
type Delegate struct {
	Method EntryPoint
	Target any
}

// Model is an in-process object model used by embedders that have no real
// managed runtime attached, and by tests. Classes are registered by name;
// delegate values resolve through their Method field.
type Model struct {
	mu      sync.RWMutex
	classes map[string]func() Identity
}

func NewModel() *Model {
	return &Model{classes: make(map[string]func() Identity)}
}

// RegisterClass binds a constructor to a class name. Re-registering a name
// replaces the previous constructor.
func (m *Model) RegisterClass(className string, ctor func() Identity) error {
	if ctor == nil {
		return fmt.Errorf("%w: class %q", ErrNilConstructor, className)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[className] = ctor
	return nil
}

func (m *Model) Instantiate(className string) (Identity, error) {
	m.mu.RLock()
	ctor, ok := m.classes[className]
	m.mu.RUnlock()
	if !ok {
		// Unregistered names still produce a usable identity; the core only
		// needs a distinct object per Instantiate call.
		return &Object{class: className}, nil
	}
	id := ctor()
	if id == nil {
		return nil, fmt.Errorf("%w: class %q constructor returned nil", ErrNilConstructor, className)
	}
	return id, nil
}

func (m *Model) ResolveEntryPoint(value any) (EntryPoint, any, bool) {
	switch v := value.(type) {
	case Delegate:
		if v.Method == nil {
			return nil, nil, false
		}
		return v.Method, v.Target, true
	case *Delegate:
		if v == nil || v.Method == nil {
			return nil, nil, false
		}
		return v.Method, v.Target, true
	case EntryPoint:
		if v == nil {
			return nil, nil, false
		}
		return v, nil, true
	case func(any) any:
		if v == nil {
			return nil, nil, false
		}
		return v, nil, true
	default:
		return nil, nil, false
	}
}
