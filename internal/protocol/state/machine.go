package state

import (
	"fmt"
	"slices"
)

// Step is a handshake step enumeration.
type Step[S any] interface {
	~uint8
	String() string
	// Successors lists the steps reachable from this one.
	Successors() []S
}

// TransitionError reports a transition out of order or out of failure.
type TransitionError struct {
	From, To string
	Reason   string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("state: %s -> %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("state: invalid transition %s -> %s", e.From, e.To)
}

// Machine tracks one handshake. The zero value is not usable, use
// NewMachine.
type Machine[S Step[S]] struct {
	current S
	failed  bool
	reason  string
}

// NewMachine starts a machine at initial.
func NewMachine[S Step[S]](initial S) *Machine[S] {
	return &Machine[S]{current: initial}
}

// Current returns the last step reached. It keeps its value after a failure.
func (m *Machine[S]) Current() S { return m.current }

// At reports whether the machine is at s and has not failed.
func (m *Machine[S]) At(s S) bool { return !m.failed && m.current == s }

// Failed returns the failure reason, if any.
func (m *Machine[S]) Failed() (string, bool) { return m.reason, m.failed }

// Advance moves to next. An invalid transition fails the machine.
func (m *Machine[S]) Advance(next S) error {
	if m.failed {
		return &TransitionError{From: "Failure", To: next.String(), Reason: m.reason}
	}
	if !slices.Contains(m.current.Successors(), next) {
		err := &TransitionError{From: m.current.String(), To: next.String()}
		m.Fail(err.Error())
		return err
	}
	m.current = next
	return nil
}

// Fail moves the machine into the failure state. The first reason sticks.
func (m *Machine[S]) Fail(reason string) {
	if m.failed {
		return
	}
	m.failed = true
	m.reason = reason
}

func (m *Machine[S]) String() string {
	if m.failed {
		return "Failure(" + m.reason + ")"
	}
	return m.current.String()
}
