package inproc

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
)

// Static registers a GET route for every regular file in fsys under prefix,
// so a webview can load its assets from the same scheme as its API. An
// index.html also answers for its directory. Files are read on each request.
func Static(reg Registrar, prefix string, fsys fs.FS, opts ...RouteOption) error {
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		h := staticFile(fsys, name)
		reg.Handle(http.MethodGet, prefix+"/"+name, h, opts...)
		if path.Base(name) == "index.html" {
			dir := path.Dir(name)
			if dir == "." {
				dir = ""
			} else {
				dir = "/" + dir
			}
			reg.Handle(http.MethodGet, prefix+dir+"/", h, opts...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("register static files: %w", err)
	}
	return nil
}

func staticFile(fsys fs.FS, name string) Handler {
	ctype := mime.TypeByExtension(path.Ext(name))
	return func(context.Context, *Request) (Reply, error) {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, Errorf(http.StatusNotFound, "%s: %v", name, err)
		}
		ct := ctype
		if ct == "" {
			ct = http.DetectContentType(b)
		}
		return Bytes(http.StatusOK, ct, b), nil
	}
}
