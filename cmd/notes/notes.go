package main

import (
	"context"
	"embed"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/bjaus/inproc"
)

// Note is one entry in the list.
type Note struct {
	ID        string    `json:"id" xml:"id,attr"`
	Text      string    `json:"text" xml:"text"`
	CreatedAt time.Time `json:"createdAt" xml:"createdAt"`
}

type noteList struct {
	XMLName xml.Name `json:"-" xml:"notes"`
	Notes   []Note   `json:"notes" xml:"note"`
}

// store keeps notes in memory for the life of the process.
type store struct {
	mu    sync.Mutex
	notes []Note
	now   func() time.Time
}

func newStore() *store {
	return &store{now: time.Now}
}

func (s *store) add(text string) Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := Note{ID: uuid.NewString(), Text: text, CreatedAt: s.now()}
	s.notes = append(s.notes, n)
	return n
}

func (s *store) list() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notes)
}

func (s *store) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.notes, func(n Note) bool { return n.ID == id })
	if i < 0 {
		return false
	}
	s.notes = slices.Delete(s.notes, i, i+1)
	return true
}

// noteItem renders a note as a list item the page can patch in.
func noteItem(n Note) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<li id="note-%s">%s</li>`, n.ID, templ.EscapeString(n.Text))
		return err
	})
}

// app wires the notes routes onto a router.
type app struct {
	router *inproc.Router
	notes  *store
}

//go:embed web
var webFS embed.FS

func newApp(r *inproc.Router) (*app, error) {
	a := &app{router: r, notes: newStore()}
	r.Use(inproc.Secure())

	notes := r.Group("/notes", inproc.WithGroupMiddleware(inproc.ETag()))
	inproc.Get(notes, "", a.list)
	inproc.Post(notes, "", a.create, inproc.WithBodyLimit(64<<10))
	inproc.Delete(notes, "", a.remove)
	r.Events("/events")

	web, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, err
	}
	if err := inproc.Static(r, "", web); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) list(_ context.Context, req *inproc.Request) (inproc.Reply, error) {
	return inproc.Negotiate(req, http.StatusOK, noteList{Notes: a.notes.list()})
}

type createNoteRequest struct {
	Text string `json:"text"`
}

func (a *app) create(ctx context.Context, req *inproc.Request) (inproc.Reply, error) {
	text, err := noteText(req)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, inproc.Error(http.StatusBadRequest, "text is required")
	}

	n := a.notes.add(text)
	a.publish("created", n)
	if _, err := a.router.Hub().RenderElements(ctx, noteItem(n),
		inproc.WithSelector("#notes"),
		inproc.WithMode(inproc.ModeAppend),
	); err != nil {
		return nil, fmt.Errorf("patch note list: %w", err)
	}

	resp, err := inproc.JSON(http.StatusCreated, n)
	if err != nil {
		return nil, err
	}
	return resp.WithHeader("Location", "/notes?id="+n.ID), nil
}

func noteText(req *inproc.Request) (string, error) {
	if strings.HasPrefix(req.Header("Content-Type"), "application/json") {
		var body createNoteRequest
		if err := req.DecodeJSON(&body); err != nil {
			return "", err
		}
		return body.Text, nil
	}
	form, err := req.Form()
	if err != nil {
		return "", err
	}
	return form.Get("text"), nil
}

func (a *app) remove(_ context.Context, req *inproc.Request) (inproc.Reply, error) {
	id := req.Query().Get("id")
	if id == "" {
		return nil, inproc.Error(http.StatusBadRequest, "id is required")
	}
	if !a.notes.remove(id) {
		return nil, inproc.Errorf(http.StatusNotFound, "note %s not found", id)
	}

	a.publish("deleted", Note{ID: id})
	if _, err := a.router.Hub().PatchElements("",
		inproc.WithSelector("#note-"+id),
		inproc.WithMode(inproc.ModeRemove),
	); err != nil {
		return nil, fmt.Errorf("patch note list: %w", err)
	}
	return inproc.NoContent(), nil
}

type noteEvent struct {
	Action string `json:"action"`
	Note   Note   `json:"note"`
	Count  int    `json:"count"`
}

// publish broadcasts a plain "notes" event to every open connection.
func (a *app) publish(action string, n Note) {
	//nolint:errcheck,errchkjson // plain struct always marshals
	payload, _ := json.Marshal(noteEvent{Action: action, Note: n, Count: len(a.notes.list())})
	a.router.Hub().Broadcast("notes", string(payload))
}
