// Package flexwire parses the radio's line-oriented text protocol into
// typed messages. The first character of a line selects the message
// kind; status lines are further dispatched by their first word. Lines
// that fit no known shape produce a recoverable *ParseError so the
// stream is never aborted by a single bad line.
package flexwire

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the top-level message variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindReply
	KindStatus
	KindHandle
	KindVersion
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindStatus:
		return "status"
	case KindHandle:
		return "handle"
	case KindVersion:
		return "version"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Message is one decoded protocol line.
type Message struct {
	Kind Kind

	// Reply fields: R<seq>|<status>|<data>
	Seq    int
	Status string
	Data   string

	// Status fields: S<handle>|<payload>
	Handle  string
	Payload string

	// Handle / version / server-message text.
	Text string
}

// ParseError reports a line that could not be decoded. It is recoverable:
// callers log it and keep reading.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Line, e.Reason)
}

// Parse decodes a single line from the radio.
func Parse(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Message{}, &ParseError{Line: line, Reason: "empty line"}
	}

	switch line[0] {
	case 'R':
		return parseReply(line)
	case 'S':
		return parseStatus(line)
	case 'H':
		return Message{Kind: KindHandle, Text: line[1:]}, nil
	case 'V':
		return Message{Kind: KindVersion, Text: line[1:]}, nil
	case 'M':
		// M<message_num>|<text>
		if i := strings.IndexByte(line, '|'); i >= 0 {
			return Message{Kind: KindMessage, Text: line[i+1:]}, nil
		}
		return Message{Kind: KindMessage, Text: line[1:]}, nil
	default:
		return Message{}, &ParseError{Line: line, Reason: "unknown message prefix"}
	}
}

// parseReply decodes R<seq>|<status>|<data>. The data part is optional.
func parseReply(line string) (Message, error) {
	parts := strings.SplitN(line[1:], "|", 3)
	if len(parts) < 2 {
		return Message{}, &ParseError{Line: line, Reason: "reply without status"}
	}
	seq, err := strconv.Atoi(parts[0])
	if err != nil {
		return Message{}, &ParseError{Line: line, Reason: "bad sequence number"}
	}
	m := Message{Kind: KindReply, Seq: seq, Status: parts[1]}
	if len(parts) == 3 {
		m.Data = parts[2]
	}
	return m, nil
}

// parseStatus decodes S<handle>|<payload>.
func parseStatus(line string) (Message, error) {
	i := strings.IndexByte(line, '|')
	if i < 0 {
		return Message{}, &ParseError{Line: line, Reason: "status without payload"}
	}
	payload := line[i+1:]
	if payload == "" {
		return Message{}, &ParseError{Line: line, Reason: "status without payload"}
	}
	return Message{Kind: KindStatus, Handle: line[1:i], Payload: payload}, nil
}

// StatusTopic is the first word of a status payload.
func (m Message) StatusTopic() string {
	if i := strings.IndexByte(m.Payload, ' '); i >= 0 {
		return m.Payload[:i]
	}
	return m.Payload
}
