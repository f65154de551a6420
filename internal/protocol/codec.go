package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrEmptyFrame is returned for a line that holds nothing but whitespace.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrUnknownTag is returned for a tag that is not valid in the decoding direction.
	ErrUnknownTag = errors.New("unknown tag")
	// ErrMissingField is returned when a tag requires a field the frame lacks.
	ErrMissingField = errors.New("missing field")
	// ErrBadCount is returned when a directory reply has a non-numeric omitted count.
	ErrBadCount = errors.New("bad omitted count")
)

// DecodeError describes a frame that could not be decoded.
type DecodeError struct {
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var flatten = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Split separates a frame into its tag and the remainder that follows the
// first run of whitespace. The remainder is empty when the frame has no
// whitespace after the tag.
func Split(line string) (tag, rest string) {
	line = strings.TrimLeftFunc(strings.TrimRight(line, "\r\n"), unicode.IsSpace)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimLeftFunc(line[i:], unicode.IsSpace)
}

// DecodeInstruction parses a frame sent by a client.
func DecodeInstruction(line string) (Instruction, error) {
	tag, rest := Split(line)
	switch tag {
	case "":
		return nil, &DecodeError{Frame: line, Err: ErrEmptyFrame}
	case TagMessage:
		return Say{Body: rest}, nil
	case TagUsername:
		return ListUsers{}, nil
	case TagWhisper:
		target, body := Split(rest)
		if target == "" {
			return nil, &DecodeError{Frame: line, Err: fmt.Errorf("%w: whisper target", ErrMissingField)}
		}
		return Whisper{Target: target, Body: body}, nil
	default:
		return nil, &DecodeError{Frame: line, Err: fmt.Errorf("%w %q", ErrUnknownTag, tag)}
	}
}

// DecodeEvent parses a frame sent by the server.
func DecodeEvent(line string) (Event, error) {
	tag, rest := Split(line)
	missing := func(field string) error {
		return &DecodeError{Frame: line, Err: fmt.Errorf("%w: %s", ErrMissingField, field)}
	}

	switch tag {
	case "":
		return nil, &DecodeError{Frame: line, Err: ErrEmptyFrame}
	case TagMessage, TagWhisper:
		sender, body := Split(rest)
		if sender == "" {
			return nil, missing("sender")
		}
		if tag == TagWhisper {
			return WhisperRelayed{Sender: sender, Body: body}, nil
		}
		return Relayed{Sender: sender, Body: body}, nil
	case TagUsername:
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, missing("omitted count")
		}
		omitted, err := strconv.Atoi(fields[0])
		if err != nil || omitted < 0 {
			return nil, &DecodeError{Frame: line, Err: ErrBadCount}
		}
		return Directory{Omitted: omitted, Users: fields[1:]}, nil
	case TagConnection, TagDisconnection:
		user, _ := Split(rest)
		if user == "" {
			return nil, missing("username")
		}
		if tag == TagConnection {
			return Joined{User: user}, nil
		}
		return Left{User: user}, nil
	case TagError:
		code, subject := Split(rest)
		if code == "" {
			return nil, missing("error code")
		}
		return Failure{Code: code, Subject: subject}, nil
	case TagShutdown:
		return Shutdown{}, nil
	default:
		return nil, &DecodeError{Frame: line, Err: fmt.Errorf("%w %q", ErrUnknownTag, tag)}
	}
}

// Encode renders a server event as a single line without a terminator.
func Encode(ev Event) string {
	switch e := ev.(type) {
	case Relayed:
		return join(TagMessage, e.Sender, e.Body)
	case WhisperRelayed:
		return join(TagWhisper, e.Sender, e.Body)
	case Directory:
		return join(TagUsername, strconv.Itoa(e.Omitted), strings.Join(e.Users, " "))
	case Joined:
		return join(TagConnection, e.User)
	case Left:
		return join(TagDisconnection, e.User)
	case Failure:
		return join(TagError, e.Code, e.Subject)
	case Shutdown:
		return TagShutdown
	default:
		panic(fmt.Sprintf("protocol: unhandled event %T", ev))
	}
}

// EncodeInstruction renders a client instruction as a single line without a
// terminator.
func EncodeInstruction(in Instruction) string {
	switch i := in.(type) {
	case Say:
		return join(TagMessage, i.Body)
	case ListUsers:
		return TagUsername
	case Whisper:
		return join(TagWhisper, i.Target, i.Body)
	default:
		panic(fmt.Sprintf("protocol: unhandled instruction %T", in))
	}
}

// join builds a frame from its parts, dropping empty trailing parts so an
// empty body does not leave dangling whitespace.
func join(parts ...string) string {
	for len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return flatten.Replace(strings.Join(parts, " "))
}
