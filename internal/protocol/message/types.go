package message

const (
	TypeServerHello   = "server-hello"
	TypeClientHello   = "client-hello"
	TypeClientAuth    = "client-auth"
	TypeServerAuth    = "server-auth"
	TypeNewInitiator  = "new-initiator"
	TypeNewResponder  = "new-responder"
	TypeDropResponder = "drop-responder"
	TypeSendError     = "send-error"
	TypeDisconnected  = "disconnected"
	TypeToken         = "token"
	TypeKey           = "key"
	TypeAuth          = "auth"
	TypeClose         = "close"
	TypeApplication   = "application"
)

// Subprotocol is the only signaling subprotocol spoken by this client.
const Subprotocol = "v1.saltyrtc.org"

// Message is a signaling message.
type Message interface {
	MessageType() string
	stamp()
}

// ServerHello is the plaintext bootstrap message carrying the server's
// session public key.
type ServerHello struct {
	Type string `codec:"type"`
	Key  []byte `codec:"key"`
}

// ClientHello is the responder's plaintext introduction.
type ClientHello struct {
	Type string `codec:"type"`
	Key  []byte `codec:"key"`
}

// ClientAuth authenticates the client towards the server.
type ClientAuth struct {
	Type         string   `codec:"type"`
	YourCookie   []byte   `codec:"your_cookie"`
	Subprotocols []string `codec:"subprotocols"`
	PingInterval uint32   `codec:"ping_interval"`
	YourKey      []byte   `codec:"your_key,omitempty"`
}

// ServerAuth completes the server handshake.
//
// InitiatorConnected is only sent to responders and Responders only to the
// initiator.
type ServerAuth struct {
	Type               string `codec:"type"`
	YourCookie         []byte `codec:"your_cookie"`
	SignedKeys         []byte `codec:"signed_keys,omitempty"`
	InitiatorConnected *bool  `codec:"initiator_connected,omitempty"`
	Responders         []int  `codec:"responders,omitempty"`
}

// NewInitiator tells a responder that an initiator joined the path.
type NewInitiator struct {
	Type string `codec:"type"`
}

// NewResponder tells the initiator that a responder joined the path.
type NewResponder struct {
	Type string `codec:"type"`
	ID   int    `codec:"id"`
}

// DropResponder asks the server to disconnect a responder.
type DropResponder struct {
	Type   string `codec:"type"`
	ID     int    `codec:"id"`
	Reason int    `codec:"reason,omitempty"`
}

// SendError reports that the server could not relay a message. ID is the
// source, destination and combined sequence number of that message.
type SendError struct {
	Type string `codec:"type"`
	ID   []byte `codec:"id"`
}

// Disconnected reports that a peer left the path.
type Disconnected struct {
	Type string `codec:"type"`
	ID   int    `codec:"id"`
}

// Token carries the responder's permanent key, encrypted with the auth token.
type Token struct {
	Type string `codec:"type"`
	Key  []byte `codec:"key"`
}

// Key carries a session public key, encrypted between permanent keys.
type Key struct {
	Type string `codec:"type"`
	Key  []byte `codec:"key"`
}

// Auth is the last peer handshake message. The responder sends Tasks, the
// initiator answers with the chosen Task. Data maps task names to their
// opaque configuration.
type Auth struct {
	Type       string            `codec:"type"`
	YourCookie []byte            `codec:"your_cookie"`
	Tasks      []string          `codec:"tasks,omitempty"`
	Task       string            `codec:"task,omitempty"`
	Data       map[string][]byte `codec:"data"`
}

// Close ends the peer-to-peer session.
type Close struct {
	Type   string `codec:"type"`
	Reason int    `codec:"reason"`
}

// Application carries application data outside of any task protocol.
type Application struct {
	Type string `codec:"type"`
	Data []byte `codec:"data"`
}

// Task is a message defined by the active task. Raw is its complete
// MessagePack encoding.
type Task struct {
	Kind string
	Raw  []byte
}

func (*ServerHello) MessageType() string   { return TypeServerHello }
func (*ClientHello) MessageType() string   { return TypeClientHello }
func (*ClientAuth) MessageType() string    { return TypeClientAuth }
func (*ServerAuth) MessageType() string    { return TypeServerAuth }
func (*NewInitiator) MessageType() string  { return TypeNewInitiator }
func (*NewResponder) MessageType() string  { return TypeNewResponder }
func (*DropResponder) MessageType() string { return TypeDropResponder }
func (*SendError) MessageType() string     { return TypeSendError }
func (*Disconnected) MessageType() string  { return TypeDisconnected }
func (*Token) MessageType() string         { return TypeToken }
func (*Key) MessageType() string           { return TypeKey }
func (*Auth) MessageType() string          { return TypeAuth }
func (*Close) MessageType() string         { return TypeClose }
func (*Application) MessageType() string   { return TypeApplication }
func (t *Task) MessageType() string        { return t.Kind }

func (m *ServerHello) stamp()   { m.Type = TypeServerHello }
func (m *ClientHello) stamp()   { m.Type = TypeClientHello }
func (m *ClientAuth) stamp()    { m.Type = TypeClientAuth }
func (m *ServerAuth) stamp()    { m.Type = TypeServerAuth }
func (m *NewInitiator) stamp()  { m.Type = TypeNewInitiator }
func (m *NewResponder) stamp()  { m.Type = TypeNewResponder }
func (m *DropResponder) stamp() { m.Type = TypeDropResponder }
func (m *SendError) stamp()     { m.Type = TypeSendError }
func (m *Disconnected) stamp()  { m.Type = TypeDisconnected }
func (m *Token) stamp()         { m.Type = TypeToken }
func (m *Key) stamp()           { m.Type = TypeKey }
func (m *Auth) stamp()          { m.Type = TypeAuth }
func (m *Close) stamp()         { m.Type = TypeClose }
func (m *Application) stamp()   { m.Type = TypeApplication }
func (*Task) stamp()            {}
