package task

import (
	"fmt"
	"slices"
	"strings"
)

// NegotiationErrorKind categorizes negotiation failures.
type NegotiationErrorKind uint8

const (
	// KindNoCommonTask means the two lists are disjoint.
	KindNoCommonTask NegotiationErrorKind = iota + 1
	// KindNotOffered means the peer chose a task that was never offered.
	KindNotOffered
)

// NegotiationError is returned when no task can be selected.
type NegotiationError struct {
	Kind   NegotiationErrorKind
	Local  []string
	Remote []string
}

func (e *NegotiationError) Error() string {
	switch e.Kind {
	case KindNotOffered:
		return fmt.Sprintf("task: peer chose %s, offered [%s]",
			strings.Join(e.Remote, ", "), strings.Join(e.Local, ", "))
	default:
		return fmt.Sprintf("task: no common task between [%s] and [%s]",
			strings.Join(e.Local, ", "), strings.Join(e.Remote, ", "))
	}
}

// Is matches any *NegotiationError of the same kind.
func (e *NegotiationError) Is(target error) bool {
	t, ok := target.(*NegotiationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNoCommonTask = &NegotiationError{Kind: KindNoCommonTask}
	ErrNotOffered   = &NegotiationError{Kind: KindNotOffered}
)

// Negotiate returns the first entry of local, in preference order, that
// remote also lists.
func Negotiate(local, remote []string) (string, error) {
	for _, name := range local {
		if slices.Contains(remote, name) {
			return name, nil
		}
	}
	return "", &NegotiationError{Kind: KindNoCommonTask, Local: local, Remote: remote}
}

// Accept checks the peer's choice against the list we offered.
func Accept(offered []string, chosen string) error {
	if !slices.Contains(offered, chosen) {
		return &NegotiationError{Kind: KindNotOffered, Local: offered, Remote: []string{chosen}}
	}
	return nil
}
