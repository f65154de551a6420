// Package protocol defines the tagged text frames exchanged between chat
// clients and the server, and the codec that turns raw lines into typed
// instructions and events.
//
// Every frame is a single UTF-8 line made of a tag and an optional body
// separated by whitespace. Frames sent by clients decode to an Instruction;
// frames sent by the server are described by an Event. Both are closed sets:
// the unexported marker methods keep other packages from adding variants, so
// a type switch over them covers every kind the wire can carry.
package protocol

// Wire tags.
const (
	TagMessage       = "message"
	TagUsername      = "username"
	TagWhisper       = "whisper"
	TagConnection    = "connection"
	TagDisconnection = "disconnection"
	TagError         = "error"
	TagShutdown      = "shutdown"
)

// Error codes carried in the body of an error frame.
const (
	CodeNameTaken     = "name_taken"
	CodeNoNameWhisper = "no_name_whisper"
	CodeInvalidName   = "invalid_name"
)

// Instruction is a frame sent from a client to the server.
type Instruction interface {
	Tag() string
	instruction()
}

// Say asks the server to broadcast Body to every other connected user.
type Say struct {
	Body string
}

// ListUsers asks for a directory of connected users.
type ListUsers struct{}

// Whisper asks the server to deliver Body to Target only.
type Whisper struct {
	Target string
	Body   string
}

func (Say) Tag() string       { return TagMessage }
func (ListUsers) Tag() string { return TagUsername }
func (Whisper) Tag() string   { return TagWhisper }

func (Say) instruction()       {}
func (ListUsers) instruction() {}
func (Whisper) instruction()   {}

// Event is a frame sent from the server to a client.
type Event interface {
	Tag() string
	event()
}

// Relayed is a chat line broadcast on behalf of Sender.
type Relayed struct {
	Sender string
	Body   string
}

// WhisperRelayed is a private line from Sender.
type WhisperRelayed struct {
	Sender string
	Body   string
}

// Directory lists connected users. Omitted counts the names left out
// because the listing is capped.
type Directory struct {
	Omitted int
	Users   []string
}

// Joined announces that User was admitted.
type Joined struct {
	User string
}

// Left announces that User disconnected.
type Left struct {
	User string
}

// Failure reports an error to a single client.
type Failure struct {
	Code    string
	Subject string
}

// Shutdown tells clients the server is terminating.
type Shutdown struct{}

func (Relayed) Tag() string        { return TagMessage }
func (WhisperRelayed) Tag() string { return TagWhisper }
func (Directory) Tag() string      { return TagUsername }
func (Joined) Tag() string         { return TagConnection }
func (Left) Tag() string           { return TagDisconnection }
func (Failure) Tag() string        { return TagError }
func (Shutdown) Tag() string       { return TagShutdown }

func (Relayed) event()        {}
func (WhisperRelayed) event() {}
func (Directory) event()      {}
func (Joined) event()         {}
func (Left) event()           {}
func (Failure) event()        {}
func (Shutdown) event()       {}
