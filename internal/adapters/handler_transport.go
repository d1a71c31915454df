// Package adapters bridges the REST client to an in-process backend.
package adapters

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
)

// HandlerTransport is an http.RoundTripper that serves every request from
// Handler without touching the network. The embedded backend mode and the
// end-to-end tests point the rtapi client at it.
type HandlerTransport struct {
	Handler http.Handler
}

// NewHandlerTransport wraps h.
func NewHandlerTransport(h http.Handler) *HandlerTransport {
	return &HandlerTransport{Handler: h}
}

func (t *HandlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	// the handler may read the body after the caller closes it
	in := req.Clone(req.Context())
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		in.Body = io.NopCloser(bytes.NewReader(raw))
		in.ContentLength = int64(len(raw))
	}
	in.RequestURI = req.URL.RequestURI()
	if in.RemoteAddr == "" {
		in.RemoteAddr = "127.0.0.1:0"
	}

	rec := httptest.NewRecorder()
	t.Handler.ServeHTTP(rec, in)

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
