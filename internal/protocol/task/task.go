package task

import "saltyrtc/internal/domain"

// Sender delivers a task message to the peer. Payload is the complete
// MessagePack encoding of the message, including its type field.
type Sender interface {
	Send(payload []byte) error
}

// Task is the capability interface of a task. The signaling layer only ever
// talks to a task through it.
type Task interface {
	// Name is the task identifier offered during negotiation.
	Name() string
	// SupportedTypes lists the message types the task exchanges once selected.
	SupportedTypes() []string
	// Data is the opaque configuration sent to the peer during negotiation.
	// It may be nil.
	Data() []byte
	// Init hands the task the peer's configuration once it is selected.
	Init(peerData []byte) error
	// Start gives the task its outgoing channel. It is called once, after
	// the peer handshake completed.
	Start(s Sender)
	// OnMessage delivers one incoming message. For the task's own types
	// payload is the complete MessagePack encoding, as passed to Sender.
	// For "application" messages it is only the application data.
	OnMessage(typ string, payload []byte) error
	// Close tells the task the session ended with code.
	Close(code domain.CloseCode)
}

// Names returns the names of tasks in order.
func Names(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Name())
	}
	return out
}

// Find returns the task called name.
func Find(tasks []Task, name string) (Task, bool) {
	for _, t := range tasks {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
