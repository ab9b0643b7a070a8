package main

import (
	"context"
	"net/http"
	"strconv"
	"sync"
)

// requestAccessor implements host.RequestAccessor against a buffered
// *http.Request. The demo harness reads the whole body up front (the proxy
// hooks assume a buffering host), so RequestBody never blocks.
type requestAccessor struct {
	headers http.Header
	body    []byte

	mu              sync.Mutex
	upstreamHeaders http.Header
	upstreamBody    []byte
}

func newRequestAccessor(headers http.Header, body []byte) *requestAccessor {
	return &requestAccessor{headers: headers, body: body, upstreamHeaders: headers.Clone(), upstreamBody: body}
}

func (r *requestAccessor) RequestHeaders(context.Context) (map[string][]string, error) {
	return map[string][]string(r.headers), nil
}

func (r *requestAccessor) RequestBody(context.Context) ([]byte, error) {
	return r.body, nil
}

func (r *requestAccessor) SetUpstreamHeaders(_ context.Context, headers map[string][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreamHeaders = http.Header(headers)
	return nil
}

func (r *requestAccessor) SetUpstreamBody(_ context.Context, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreamBody = body
	return nil
}

func (r *requestAccessor) upstream() (http.Header, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upstreamHeaders.Clone(), r.upstreamBody
}

// responseAccessor implements host.ResponseAccessor against the upstream
// http.Response and the harness's own http.ResponseWriter. Nothing is
// flushed to the ResponseWriter until the request finishes, so earlier
// hooks may still rewrite status/headers/body.
type responseAccessor struct {
	upstreamHeaders http.Header
	upstreamBody    []byte

	mu      sync.Mutex
	status  int
	headers http.Header
	body    []byte
}

func newResponseAccessor() *responseAccessor {
	return &responseAccessor{status: http.StatusOK, headers: http.Header{}}
}

func (r *responseAccessor) setUpstream(headers http.Header, body []byte) {
	r.upstreamHeaders, r.upstreamBody = headers, body
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers, r.body = headers.Clone(), body
}

func (r *responseAccessor) UpstreamHeaders(context.Context) (map[string][]string, error) {
	return map[string][]string(r.upstreamHeaders), nil
}

func (r *responseAccessor) UpstreamBody(context.Context) ([]byte, error) {
	return r.upstreamBody, nil
}

func (r *responseAccessor) SetStatus(_ context.Context, status int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	return nil
}

func (r *responseAccessor) SetResponseHeaders(_ context.Context, headers map[string][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers = http.Header(headers)
	return nil
}

func (r *responseAccessor) SetResponseBody(_ context.Context, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = body
	return nil
}

func (r *responseAccessor) write(w http.ResponseWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dst := w.Header()
	for name, values := range r.headers {
		for _, v := range values {
			dst.Add(name, v)
		}
	}
	// The engine may have rewritten the body after the upstream's own
	// Content-Length was copied across; always recompute it for what's
	// actually about to be written.
	dst.Set("Content-Length", strconv.Itoa(len(r.body)))
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body)
}
