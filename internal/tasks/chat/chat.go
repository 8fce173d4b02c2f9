package chat

import (
	"errors"
	"fmt"
	"sync"

	"gopkg.in/op/go-logging.v1"

	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/task"
)

const (
	// Name is the task identifier used during negotiation.
	Name = "dbrgn.chat"

	TypeMessage    = "msg"
	TypeNickChange = "nick_change"

	eventBuffer = 64
	maxNickname = 64
)

var (
	ErrNotStarted = errors.New("chat: task not started")
	ErrClosed     = errors.New("chat: task closed")
)

// EventKind says what happened.
type EventKind uint8

const (
	EventReady EventKind = iota + 1
	EventMessage
	EventNickChange
	EventApplication
	EventClosed
)

// Event is one thing the UI should show.
type Event struct {
	Kind EventKind
	// From is the peer's nickname at the time of the event.
	From string
	// Text is the message, the new nickname or the application data.
	Text string
	// Code is set for EventClosed.
	Code domain.CloseCode
}

type wireMessage struct {
	Type string `codec:"type"`
	Data string `codec:"data"`
}

type taskData struct {
	Nickname string `codec:"nickname"`
}

// Task implements task.Task.
type Task struct {
	log *logging.Logger

	mu       sync.Mutex
	nickname string
	peerNick string
	sender   task.Sender
	closed   bool

	events chan Event
}

var _ task.Task = (*Task)(nil)

// New returns a chat task announcing nickname.
func New(nickname string, log *logging.Logger) (*Task, error) {
	if err := checkNickname(nickname); err != nil {
		return nil, err
	}
	return &Task{
		log:      log,
		nickname: nickname,
		peerNick: "peer",
		events:   make(chan Event, eventBuffer),
	}, nil
}

func checkNickname(nick string) error {
	if nick == "" || len(nick) > maxNickname {
		return fmt.Errorf("chat: nickname must be 1 to %d bytes", maxNickname)
	}
	return nil
}

func (t *Task) Name() string { return Name }

func (t *Task) SupportedTypes() []string { return []string{TypeMessage, TypeNickChange} }

func (t *Task) Data() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, err := message.Marshal(taskData{Nickname: t.nickname})
	if err != nil {
		t.log.Errorf("Encoding task data: %v", err)
		return nil
	}
	return b
}

// Init reads the peer's nickname. Missing data is fine.
func (t *Task) Init(peerData []byte) error {
	if len(peerData) == 0 {
		return nil
	}
	var d taskData
	if err := message.Unmarshal(peerData, &d); err != nil {
		return fmt.Errorf("chat: peer data: %w", err)
	}
	if d.Nickname == "" {
		return nil
	}
	if err := checkNickname(d.Nickname); err != nil {
		return err
	}
	t.mu.Lock()
	t.peerNick = d.Nickname
	t.mu.Unlock()
	return nil
}

func (t *Task) Start(s task.Sender) {
	t.mu.Lock()
	t.sender = s
	peer := t.peerNick
	t.mu.Unlock()
	t.emit(Event{Kind: EventReady, From: peer})
}

func (t *Task) OnMessage(typ string, payload []byte) error {
	if typ == message.TypeApplication {
		t.emit(Event{Kind: EventApplication, From: t.PeerNickname(), Text: string(payload)})
		return nil
	}

	var m wireMessage
	if err := message.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("chat: %s message: %w", typ, err)
	}
	switch typ {
	case TypeMessage:
		t.emit(Event{Kind: EventMessage, From: t.PeerNickname(), Text: m.Data})
	case TypeNickChange:
		if err := checkNickname(m.Data); err != nil {
			return err
		}
		t.mu.Lock()
		old := t.peerNick
		t.peerNick = m.Data
		t.mu.Unlock()
		t.emit(Event{Kind: EventNickChange, From: old, Text: m.Data})
	default:
		return fmt.Errorf("chat: unsupported message type %q", typ)
	}
	return nil
}

func (t *Task) Close(code domain.CloseCode) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.sender = nil
	peer := t.peerNick
	t.mu.Unlock()

	t.emit(Event{Kind: EventClosed, From: peer, Code: code})
	close(t.events)
}

// Events delivers incoming messages. It is closed after EventClosed.
func (t *Task) Events() <-chan Event { return t.events }

// Nickname returns our nickname.
func (t *Task) Nickname() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nickname
}

// PeerNickname returns the peer's latest nickname.
func (t *Task) PeerNickname() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerNick
}

// SendMessage sends a chat line to the peer.
func (t *Task) SendMessage(text string) error {
	return t.send(TypeMessage, text)
}

// ChangeNickname announces a new nickname to the peer.
func (t *Task) ChangeNickname(nick string) error {
	if err := checkNickname(nick); err != nil {
		return err
	}
	if err := t.send(TypeNickChange, nick); err != nil {
		return err
	}
	t.mu.Lock()
	t.nickname = nick
	t.mu.Unlock()
	return nil
}

func (t *Task) send(typ, data string) error {
	t.mu.Lock()
	s, closed := t.sender, t.closed
	t.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case s == nil:
		return ErrNotStarted
	}
	payload, err := message.Marshal(wireMessage{Type: typ, Data: data})
	if err != nil {
		return err
	}
	return s.Send(payload)
}

// emit never blocks the signaling loop; a UI that falls behind loses events.
func (t *Task) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.log.Warningf("Chat event buffer full, dropping event %d", ev.Kind)
	}
}
