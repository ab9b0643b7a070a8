// Package implicit implements the four reserved endpoint node kinds:
// request, service_request, service_response, and response. Each is bound
// fresh per request to the host's RequestAccessor/
// ResponseAccessor, unlike the user-declared node kinds which are compiled
// once per configuration and shared.
package implicit

import (
	"context"
	"strconv"

	"github.com/dkengine/datakit/coerce"
	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/value"
)

const (
	bodyPort    = "body"
	headersPort = "headers"
)

// linked reports whether the named output port on node id has any
// downstream consumer, implementing the lazy-decode rule: avoid forcing
// JSON parsing when no node reads the body.
func linked(g *graph.Graph, nodeID, port string) bool {
	return len(g.DestinationsOf(graph.Port{Node: nodeID, Name: port})) > 0
}

func headersValueFrom(raw map[string][]string) *value.Headers {
	h := value.NewHeaders()
	for name, values := range raw {
		for _, v := range values {
			h.Add(name, v)
		}
	}
	return h
}

// Request is the `request` implicit node: a source publishing the
// incoming request's body and headers.
type Request struct {
	g        *graph.Graph
	accessor host.RequestAccessor
}

// NewRequest binds a fresh Request node to the live request accessor.
func NewRequest(g *graph.Graph, accessor host.RequestAccessor) *Request {
	return &Request{g: g, accessor: accessor}
}

// InputPorts implements graph.SyncKind.
func (n *Request) InputPorts() []string { return nil }

// OutputPorts implements graph.SyncKind.
func (n *Request) OutputPorts() []string { return []string{bodyPort, headersPort} }

// Execute implements graph.SyncKind.
func (n *Request) Execute(ctx context.Context, _ graph.Inputs) (graph.Result, error) {
	outputs := map[string]value.V{}

	rawHeaders, err := n.accessor.RequestHeaders(ctx)
	if err != nil {
		return graph.Result{}, errkind.Dispatchf("request: read headers: %v", err)
	}
	h := headersValueFrom(rawHeaders)

	if linked(n.g, graph.Request, headersPort) {
		outputs[headersPort] = h.ToValue()
	}
	if linked(n.g, graph.Request, bodyPort) {
		body, err := n.accessor.RequestBody(ctx)
		if err != nil {
			return graph.Result{}, errkind.Dispatchf("request: read body: %v", err)
		}
		contentType, _ := h.Get("content-type")
		outputs[bodyPort] = coerce.DecodeBody(body, contentType)
	}
	return graph.Result{Outputs: outputs}, nil
}

// ServiceRequest is the `service_request` implicit node: a sink that
// rewrites the upstream request before dispatch. Leaving both inputs
// unlinked means Execute writes nothing, so the upstream request passes
// through unmodified.
type ServiceRequest struct {
	accessor host.RequestAccessor
}

// NewServiceRequest binds a fresh ServiceRequest node.
func NewServiceRequest(accessor host.RequestAccessor) *ServiceRequest {
	return &ServiceRequest{accessor: accessor}
}

// InputPorts implements graph.SyncKind. Both ports are optional.
func (n *ServiceRequest) InputPorts() []string { return []string{bodyPort, headersPort} }

// OutputPorts implements graph.SyncKind. service_request is a pure sink.
func (n *ServiceRequest) OutputPorts() []string { return nil }

// Execute implements graph.SyncKind.
func (n *ServiceRequest) Execute(ctx context.Context, in graph.Inputs) (graph.Result, error) {
	headers, haveHeaders, body, haveBody, err := decodeSinkInputs(in)
	if err != nil {
		return graph.Result{}, err
	}
	if !haveHeaders && !haveBody {
		return graph.Result{}, nil
	}

	data, contentType, bodySet := []byte(nil), "", false
	if haveBody {
		existingContentType, _ := headers.Get("content-type")
		encoded, ct, err := coerce.EncodeBody(body, existingContentType)
		if err != nil {
			return graph.Result{}, err
		}
		data, contentType, bodySet = encoded, ct, true
	}
	if bodySet {
		headers.Set("content-length", strconv.Itoa(len(data)))
		headers.Set("content-type", contentType)
	}
	if haveHeaders || bodySet {
		if err := n.accessor.SetUpstreamHeaders(ctx, toHeaderMap(headers)); err != nil {
			return graph.Result{}, errkind.Dispatchf("service_request: write headers: %v", err)
		}
	}
	if bodySet {
		if err := n.accessor.SetUpstreamBody(ctx, data); err != nil {
			return graph.Result{}, errkind.Dispatchf("service_request: write body: %v", err)
		}
	}
	return graph.Result{}, nil
}

// ServiceResponse is the `service_response` implicit node: a source
// publishing the upstream response's body and headers once the response
// phase begins.
type ServiceResponse struct {
	g        *graph.Graph
	accessor host.ResponseAccessor
}

// NewServiceResponse binds a fresh ServiceResponse node.
func NewServiceResponse(g *graph.Graph, accessor host.ResponseAccessor) *ServiceResponse {
	return &ServiceResponse{g: g, accessor: accessor}
}

// InputPorts implements graph.SyncKind.
func (n *ServiceResponse) InputPorts() []string { return nil }

// OutputPorts implements graph.SyncKind.
func (n *ServiceResponse) OutputPorts() []string { return []string{bodyPort, headersPort} }

// Execute implements graph.SyncKind.
func (n *ServiceResponse) Execute(ctx context.Context, _ graph.Inputs) (graph.Result, error) {
	outputs := map[string]value.V{}

	rawHeaders, err := n.accessor.UpstreamHeaders(ctx)
	if err != nil {
		return graph.Result{}, errkind.Dispatchf("service_response: read headers: %v", err)
	}
	h := headersValueFrom(rawHeaders)

	if linked(n.g, graph.ServiceResponse, headersPort) {
		outputs[headersPort] = h.ToValue()
	}
	if linked(n.g, graph.ServiceResponse, bodyPort) {
		body, err := n.accessor.UpstreamBody(ctx)
		if err != nil {
			return graph.Result{}, errkind.Dispatchf("service_response: read body: %v", err)
		}
		contentType, _ := h.Get("content-type")
		outputs[bodyPort] = coerce.DecodeBody(body, contentType)
	}
	return graph.Result{Outputs: outputs}, nil
}

// Response is the `response` implicit node: a sink whose values become the
// outgoing response. Leaving both inputs unlinked means the upstream
// response passes through unmodified.
type Response struct {
	accessor host.ResponseAccessor
}

// NewResponse binds a fresh Response node.
func NewResponse(accessor host.ResponseAccessor) *Response {
	return &Response{accessor: accessor}
}

// InputPorts implements graph.SyncKind. Both ports are optional.
func (n *Response) InputPorts() []string { return []string{bodyPort, headersPort} }

// OutputPorts implements graph.SyncKind. response is a pure sink.
func (n *Response) OutputPorts() []string { return nil }

// Execute implements graph.SyncKind.
func (n *Response) Execute(ctx context.Context, in graph.Inputs) (graph.Result, error) {
	headers, haveHeaders, body, haveBody, err := decodeSinkInputs(in)
	if err != nil {
		return graph.Result{}, err
	}
	if !haveHeaders && !haveBody {
		return graph.Result{}, nil
	}

	data, contentType, bodySet := []byte(nil), "", false
	if haveBody {
		existingContentType, _ := headers.Get("content-type")
		encoded, ct, err := coerce.EncodeBody(body, existingContentType)
		if err != nil {
			return graph.Result{}, err
		}
		data, contentType, bodySet = encoded, ct, true
	}
	if bodySet {
		headers.Set("content-length", strconv.Itoa(len(data)))
		headers.Set("content-type", contentType)
	}
	if haveHeaders || bodySet {
		if err := n.accessor.SetResponseHeaders(ctx, toHeaderMap(headers)); err != nil {
			return graph.Result{}, errkind.Dispatchf("response: write headers: %v", err)
		}
	}
	if bodySet {
		if err := n.accessor.SetResponseBody(ctx, data); err != nil {
			return graph.Result{}, errkind.Dispatchf("response: write body: %v", err)
		}
	}
	return graph.Result{}, nil
}

// decodeSinkInputs parses the common body/headers input shape shared by
// service_request and response.
func decodeSinkInputs(in graph.Inputs) (headers *value.Headers, haveHeaders bool, body value.V, haveBody bool, err error) {
	headers = value.NewHeaders()
	if hv, ok := in[headersPort]; ok {
		headers, err = value.HeadersFromValue(hv)
		if err != nil {
			return nil, false, value.Null, false, errkind.Coercionf("headers: %v", err)
		}
		haveHeaders = true
	}
	if bv, ok := in[bodyPort]; ok {
		body, haveBody = bv, true
	}
	return headers, haveHeaders, body, haveBody, nil
}

func toHeaderMap(h *value.Headers) map[string][]string {
	out := make(map[string][]string, len(h.Names()))
	for _, name := range h.Names() {
		out[name] = h.Values(name)
	}
	return out
}
