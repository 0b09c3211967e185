package inproc

import (
	"context"
	"maps"
	"net/http"
)

// ServeHTTP implements http.Handler so the same routes can be reached from a
// browser during development. Streamed replies are flushed frame by frame
// until the stream closes or the client goes away.
func (r *Router) ServeHTTP(w http.ResponseWriter, hr *http.Request) {
	resp := r.Serve(hr.Context(), HostRequest{
		Method: hr.Method,
		URL:    hr.URL.RequestURI(),
		Header: hr.Header,
		Body:   hr.Body,
	})

	maps.Copy(w.Header(), resp.Header)
	if resp.Stream == nil {
		w.WriteHeader(resp.Status)
		//nolint:errcheck,gosec // best-effort body write
		w.Write(resp.Body)
		return
	}
	writeStream(hr.Context(), w, resp)
}

// writeStream copies a streamed reply to w, flushing after every read.
func writeStream(ctx context.Context, w http.ResponseWriter, resp *Response) {
	s := resp.Stream
	defer s.Close()

	rc := http.NewResponseController(w)
	w.WriteHeader(resp.Status)
	if err := rc.Flush(); err != nil {
		return
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	buf := make([]byte, 32<<10)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if ferr := rc.Flush(); ferr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
