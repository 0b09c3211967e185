// Package inproc serves HTTP-semantics requests inside one process, without
// opening a port. A host (an embedded webview, a desktop shell, a test)
// hands each request over, the router invokes the matching handler, and the
// handler either answers with a finite Response or returns an open Stream the
// host reads server-sent events from.
//
// Handlers see a uniform Request and never touch the host:
//
//	type Handler func(ctx context.Context, req *Request) (Reply, error)
//
// Routes are exact (method, path) pairs registered before the first
// dispatch:
//
//	r := inproc.New(inproc.WithLogger(logger))
//	inproc.Get(r, "/notes", listNotes)
//	inproc.Post(r, "/notes", createNote, inproc.WithBodyLimit(64<<10))
//	r.Events("/events")
//
// The Hub tracks open streams and broadcasts to them. Plain events are
// framed with FormatEvent; datastar patches with SignalsFrame and
// ElementsFrame:
//
//	r.Hub().Broadcast("notes", `{"count":3}`)
//	r.Hub().PatchElements(`<li id="n1">milk</li>`, inproc.WithSelector("#list"), inproc.WithMode(inproc.ModeAppend))
//
// Hosts reach the router through Serve, through an *http.Client whose
// Transport is r.Transport() for a registered virtual scheme, or, during
// development, through ServeHTTP.
package inproc
