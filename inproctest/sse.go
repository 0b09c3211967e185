package inproctest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// Frame is one parsed server-sent event record.
type Frame struct {
	ID      string
	Event   string
	Data    string // data lines joined with "\n"
	Retry   string
	Comment bool // the record held only comment lines
}

// ReadFrame reads one record from br. It returns io.EOF when the stream ends
// cleanly between records and io.ErrUnexpectedEOF when it ends inside one.
func ReadFrame(br *bufio.Reader) (Frame, error) {
	var (
		f        Frame
		data     []string
		lines    int
		sawField bool
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if lines == 0 && line == "" {
					return Frame{}, io.EOF
				}
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			if lines == 0 {
				continue
			}
			f.Data = strings.Join(data, "\n")
			f.Comment = !sawField
			return f, nil
		}
		lines++

		if strings.HasPrefix(line, ":") {
			continue
		}
		sawField = true
		name, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch name {
		case "id":
			f.ID = value
		case "event":
			f.Event = value
		case "data":
			data = append(data, value)
		case "retry":
			f.Retry = value
		}
	}
}

// ParseFrames parses every complete record in raw.
func ParseFrames(raw string) ([]Frame, error) {
	br := bufio.NewReader(strings.NewReader(raw))
	var out []Frame
	for {
		f, err := ReadFrame(br)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

// EventStream is an open streamed response being read frame by frame.
type EventStream struct {
	Status  int
	Headers http.Header

	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	frames chan Frame
	done   chan struct{}
}

// Events opens a streamed GET request to path. The stream is cancelled when
// the test ends.
func (c *Client) Events(t testing.TB, path string) *EventStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		cancel()
		t.Fatalf("inproctest: create request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("inproctest: execute request: %v", err)
	}

	s := &EventStream{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		ctx:     ctx,
		cancel:  cancel,
		body:    resp.Body,
		frames:  make(chan Frame, 64),
		done:    make(chan struct{}),
	}
	go s.pump()
	t.Cleanup(s.Close)
	return s
}

func (s *EventStream) pump() {
	defer close(s.done)
	defer close(s.frames)
	br := bufio.NewReader(s.body)
	for {
		f, err := ReadFrame(br)
		if err != nil {
			return
		}
		select {
		case s.frames <- f:
		case <-s.ctx.Done():
			return
		}
	}
}

// Next returns the next frame, failing the test if none arrives within
// timeout or the stream ends first.
func (s *EventStream) Next(t testing.TB, timeout time.Duration) Frame {
	t.Helper()
	select {
	case f, ok := <-s.frames:
		if !ok {
			t.Fatalf("inproctest: stream ended")
		}
		return f
	case <-time.After(timeout):
		t.Fatalf("inproctest: no frame within %s", timeout)
	}
	return Frame{}
}

// Ended reports whether the stream reaches EOF within timeout once every
// pending frame has been discarded.
func (s *EventStream) Ended(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-s.frames:
			if !ok {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// Close aborts the request and releases the body.
func (s *EventStream) Close() {
	s.cancel()
	//nolint:errcheck // best-effort close
	s.body.Close()
	<-s.done
}
