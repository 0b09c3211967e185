package inproc

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/elnormous/contenttype"
)

// Encoder encodes response values to a wire format.
type Encoder interface {
	ContentType() string
	Encode(w io.Writer, v any) error
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

type xmlCodec struct{}

func (xmlCodec) ContentType() string { return "application/xml" }

func (xmlCodec) Encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

// Negotiate encodes v in the format the request's Accept header prefers
// among JSON, XML and any extra encoders. JSON wins when Accept is absent.
// An Accept header nothing satisfies yields a 406 HTTPError.
func Negotiate(req *Request, status int, v any, extra ...Encoder) (*Response, error) {
	encoders := append([]Encoder{jsonCodec{}, xmlCodec{}}, extra...)
	available := make([]contenttype.MediaType, len(encoders))
	for i, enc := range encoders {
		available[i] = contenttype.NewMediaType(enc.ContentType())
	}

	hr, err := req.httpRequest(nil)
	if err != nil {
		return nil, err
	}
	accepted, _, err := contenttype.GetAcceptableMediaType(hr, available)
	if err != nil {
		return nil, Errorf(http.StatusNotAcceptable, "not acceptable: %s", req.Header("Accept"))
	}

	enc := encoders[0]
	for i, mt := range available {
		if mt.Type == accepted.Type && mt.Subtype == accepted.Subtype {
			enc = encoders[i]
			break
		}
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, v); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return Bytes(status, enc.ContentType(), buf.Bytes()), nil
}
