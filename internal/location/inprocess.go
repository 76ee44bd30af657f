package location

import (
	"bytes"
	"io"
	"net/http"
)

// WithBackendHandler serves backend lookups by calling h in process instead of
// going over the network. The service uses it when the backend endpoint is its
// own, so those lookups skip the per-client rate limit.
func WithBackendHandler(h http.Handler) BackendOption {
	return func(b *BackendResolver) {
		if h != nil {
			b.client = &http.Client{Transport: handlerTransport{handler: h}}
		}
	}
}

type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rw := &bufferedResponse{header: http.Header{}}
	t.handler.ServeHTTP(rw, req)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return &http.Response{
		Status:        http.StatusText(rw.status),
		StatusCode:    rw.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        rw.header,
		Body:          io.NopCloser(&rw.body),
		ContentLength: int64(rw.body.Len()),
		Request:       req,
	}, nil
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}
