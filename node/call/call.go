// Package call implements the `call` node kind: the only
// asynchronous node, issuing an HTTP sub-dispatch through the host and
// resuming once the host calls back with a result.
package call

import (
	"context"
	"time"

	"github.com/dkengine/datakit/coerce"
	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/value"
)

const (
	bodyPort    = "body"
	headersPort = "headers"

	// DefaultMethod is used when the method attribute is unset.
	DefaultMethod = "GET"
	// DefaultTimeout is used when the timeout attribute is unset.
	DefaultTimeout = 60 * time.Second
)

// Node is a compiled `call` node.
type Node struct {
	url     string
	method  string
	timeout time.Duration
}

// New returns the node kind. method defaults to GET and timeout to 60s
// when zero-valued, matching the defaults.
func New(url, method string, timeout time.Duration) (*Node, error) {
	if url == "" {
		return nil, errkind.Configurationf("call: url attribute is required")
	}
	if method == "" {
		method = DefaultMethod
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Node{url: url, method: method, timeout: timeout}, nil
}

// InputPorts implements graph.AsyncKind.
func (n *Node) InputPorts() []string { return []string{bodyPort, headersPort} }

// OutputPorts implements graph.AsyncKind.
func (n *Node) OutputPorts() []string { return []string{bodyPort, headersPort} }

// Start implements graph.AsyncKind, serializing the (optional) body and
// headers and issuing the host dispatch. body defaults to empty if
// unlinked
func (n *Node) Start(ctx context.Context, in graph.Inputs, disp host.Dispatcher) (host.CorrelationID, error) {
	var body []byte
	contentType := ""
	if v, ok := in[bodyPort]; ok {
		encoded, ct, err := coerce.EncodeBody(v, "")
		if err != nil {
			return host.CorrelationID{}, err
		}
		body, contentType = encoded, ct
	}

	headers := map[string][]string{}
	if v, ok := in[headersPort]; ok {
		h, err := value.HeadersFromValue(v)
		if err != nil {
			return host.CorrelationID{}, errkind.Coercionf("call: headers input: %v", err)
		}
		for _, name := range h.Names() {
			headers[name] = h.Values(name)
		}
	}
	if contentType != "" {
		headers["content-type"] = []string{contentType}
	}

	return disp.Dispatch(ctx, host.DispatchRequest{
		Method:  n.method,
		URL:     n.url,
		Headers: headers,
		Body:    body,
		Timeout: n.timeout,
	})
}

// Finish implements graph.AsyncKind, parsing the upstream response body
// analogously to the implicit body-port read rule.
func (n *Node) Finish(_ context.Context, result host.DispatchResult) (graph.Result, error) {
	if result.Err != nil {
		return graph.Result{}, errkind.Dispatchf("call %q: %v", n.url, result.Err)
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return graph.Result{}, errkind.Dispatchf("call %q: upstream returned status %d", n.url, result.StatusCode)
	}

	h := value.NewHeaders()
	for name, values := range result.Headers {
		for _, v := range values {
			h.Add(name, v)
		}
	}
	contentType, _ := h.Get("content-type")

	outputs := map[string]value.V{
		bodyPort:    coerce.DecodeBody(result.Body, contentType),
		headersPort: h.ToValue(),
	}
	return graph.Result{Outputs: outputs}, nil
}
