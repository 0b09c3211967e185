package inproc

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Heartbeat is a bare SSE comment record. Clients ignore it; it keeps idle
// connections from looking dead.
const Heartbeat = ":\n\n"

// ConnectedEvent is the event name of the frame written once to every newly
// opened connection.
const ConnectedEvent = "connected"

// SSE clients end a line at CR, LF or CRLF.
var (
	normalizeLines = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	singleLine     = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
)

// Event is a single server-sent event.
type Event struct {
	// ID is the event ID (optional). Maps to the "id:" field. Line breaks
	// in ID and Name are replaced with spaces.
	ID string
	// Name is the event type (optional). Maps to the "event:" field.
	Name string
	// Data is the payload. Each line, split at CR, LF or CRLF, becomes its
	// own "data:" field.
	Data string
	// Retry is the client reconnection delay (optional). Maps to "retry:".
	Retry time.Duration
}

// Frame serializes the event as one SSE record.
func (e Event) Frame() []byte {
	var b strings.Builder
	if e.ID != "" {
		writeSSEField(&b, "id", singleLine.Replace(e.ID))
	}
	if e.Name != "" {
		writeSSEField(&b, "event", singleLine.Replace(e.Name))
	}
	if e.Retry > 0 {
		writeSSEField(&b, "retry", strconv.FormatInt(e.Retry.Milliseconds(), 10))
	}
	for line := range strings.SplitSeq(normalizeLines.Replace(e.Data), "\n") {
		writeSSEField(&b, "data", line)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// FormatEvent frames payload under the event name. An empty name omits the
// "event:" line; a multi-line payload becomes one "data:" line per line.
func FormatEvent(name, payload string) []byte {
	return Event{Name: name, Data: payload}.Frame()
}

// FormatComment frames text as SSE comment lines.
func FormatComment(text string) []byte {
	if text == "" {
		return []byte(Heartbeat)
	}
	var b strings.Builder
	for line := range strings.SplitSeq(normalizeLines.Replace(text), "\n") {
		b.WriteString(": ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

// ConnectedFrame is the connection-established record: event "connected"
// carrying the connection id and the opening time in unix milliseconds.
func ConnectedFrame(id ConnID, at time.Time) []byte {
	//nolint:errcheck,errchkjson // struct of string and int64 always marshals
	data, _ := json.Marshal(connectedPayload{ConnectionID: string(id), Timestamp: at.UnixMilli()})
	return FormatEvent(ConnectedEvent, string(data))
}

func writeSSEField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}
