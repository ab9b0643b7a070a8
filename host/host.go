// Package host declares the collaborator contracts DataKit assigns to the
// embedding proxy runtime: request/response accessors, HTTP sub-dispatch,
// and logging. DataKit's engine only ever calls through these interfaces —
// it never assumes a particular proxy implementation (envoy/proxy-wasm,
// net/http/httputil.ReverseProxy, or anything else).
package host

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CorrelationID identifies one in-flight HTTP sub-dispatch, handed back by
// Dispatcher.Dispatch and later matched against the host's resumption
// callback.
type CorrelationID uuid.UUID

// String renders the correlation id for logging/tracing.
func (c CorrelationID) String() string { return uuid.UUID(c).String() }

// NewCorrelationID generates a fresh correlation id.
func NewCorrelationID() CorrelationID { return CorrelationID(uuid.New()) }

// DispatchRequest is the host HTTP sub-dispatch request shape 
// names: "(method, url, headers, body, timeout)".
type DispatchRequest struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    []byte
	Timeout time.Duration
}

// DispatchResult is what the host hands back through its resumption
// callback, either a response or an error (timeout/transport failure).
type DispatchResult struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
	Err        error
}

// Dispatcher issues an HTTP sub-request on the engine's behalf. The host
// implementation is expected to perform the dispatch asynchronously and
// resume the engine later (see filter.Filter.OnDispatchResponse) rather
// than blocking the calling goroutine, since the engine itself is
// single-threaded cooperative
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (CorrelationID, error)
}

// RequestAccessor reads the incoming request and writes the upstream
// request, backing the request/service_request implicit nodes.
type RequestAccessor interface {
	RequestHeaders(ctx context.Context) (map[string][]string, error)
	RequestBody(ctx context.Context) ([]byte, error)
	SetUpstreamHeaders(ctx context.Context, headers map[string][]string) error
	SetUpstreamBody(ctx context.Context, body []byte) error
}

// ResponseAccessor reads the upstream response and writes the outgoing
// response, backing the service_response/response implicit nodes.
type ResponseAccessor interface {
	UpstreamHeaders(ctx context.Context) (map[string][]string, error)
	UpstreamBody(ctx context.Context) ([]byte, error)
	SetStatus(ctx context.Context, status int) error
	SetResponseHeaders(ctx context.Context, headers map[string][]string) error
	SetResponseBody(ctx context.Context, body []byte) error
}

// Exchange bundles the per-request host collaborators a Filter needs. One
// Exchange is created per proxied request and discarded with its runtime
// state when the request ends.
type Exchange struct {
	Request  RequestAccessor
	Response ResponseAccessor
	Dispatch Dispatcher
}
