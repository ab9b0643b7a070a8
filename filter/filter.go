// Package filter implements the per-request façade a proxy host drives:
// it owns one engine.Scheduler bound to a shared configuration graph, maps
// the five proxy hook points from the module contract onto scheduler waves, and
// resolves the exit/trace response-overlay precedence from the module contract.
package filter

import (
	"context"

	"github.com/dkengine/datakit/coerce"
	"github.com/dkengine/datakit/engine"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/log"
	"github.com/dkengine/datakit/node/implicit"
	"github.com/dkengine/datakit/trace"
	"github.com/dkengine/datakit/value"
)

// Outcome tells the host glue what to do after a hook call: whether to
// bypass the rest of the proxy lifecycle (the exit short-circuit) and
// which async calls it must now track to resumption.
type Outcome struct {
	ShortCircuit bool
	Pending      []engine.PendingCall
	Finished     bool
}

// Filter is created fresh per request: runtime state is created when the
// first proxy phase touches the filter and destroyed when the filter
// releases the request.
type Filter struct {
	g        *graph.Graph
	exchange host.Exchange
	bindings map[string]graph.SyncKind
	sched    *engine.Scheduler
	tracer   *trace.Recorder
	done     bool
}

// New binds a Filter to g (a shared, already-built configuration graph)
// and the live per-request host collaborators.
func New(g *graph.Graph, exchange host.Exchange) *Filter {
	return &Filter{
		g:        g,
		exchange: exchange,
		bindings: map[string]graph.SyncKind{
			graph.Request:         implicit.NewRequest(g, exchange.Request),
			graph.ServiceRequest:  implicit.NewServiceRequest(exchange.Request),
			graph.ServiceResponse: implicit.NewServiceResponse(g, exchange.Response),
			graph.Response:        implicit.NewResponse(exchange.Response),
		},
	}
}

// OnRequestHeaders implements the first proxy hook. It only inspects the
// trace debug header; the scheduler itself does not start
// until OnRequestBody, once the host guarantees the request body is
// buffered and readable.
func (f *Filter) OnRequestHeaders(ctx context.Context) (Outcome, error) {
	raw, err := f.exchange.Request.RequestHeaders(ctx)
	if err != nil {
		return Outcome{}, err
	}
	h := value.NewHeaders()
	for name, vs := range raw {
		for _, v := range vs {
			h.Add(name, v)
		}
	}
	debugVal, _ := h.Get(trace.HeaderName)
	if trace.Enabled(debugVal) {
		f.tracer = trace.New(f.g, nil)
	}
	return Outcome{}, nil
}

// OnRequestBody implements the second proxy hook: the request body is now
// buffered, so this starts the scheduler and runs the first wave.
func (f *Filter) OnRequestBody(ctx context.Context) (Outcome, error) {
	f.sched = engine.New(f.g, f.bindings, f.exchange.Dispatch, f.engineTracer())
	return f.advance(ctx, graph.PhaseRequest)
}

// OnResponseHeaders implements the third proxy hook. Response-phase nodes
// depending on service_response's body are gated until OnResponseBody, so
// this is a no-op placeholder matching the headers/body split already used
// on the request side.
func (f *Filter) OnResponseHeaders(ctx context.Context) (Outcome, error) {
	return Outcome{}, nil
}

// OnResponseBody implements the fourth proxy hook: the upstream response
// body is now buffered, so this advances the scheduler into the response
// phase.
func (f *Filter) OnResponseBody(ctx context.Context) (Outcome, error) {
	return f.advance(ctx, graph.PhaseResponse)
}

// OnDispatchResponse implements the fifth proxy hook: the host resumes a
// previously suspended call node with its dispatch result.
func (f *Filter) OnDispatchResponse(ctx context.Context, id host.CorrelationID, result host.DispatchResult) (Outcome, error) {
	res, err := f.sched.Resume(ctx, id, result)
	return f.handle(ctx, res, err)
}

func (f *Filter) engineTracer() engine.Tracer {
	if f.tracer == nil {
		return nil
	}
	return f.tracer
}

func (f *Filter) advance(ctx context.Context, phase graph.Phase) (Outcome, error) {
	res, err := f.sched.RunWave(ctx, phase)
	return f.handle(ctx, res, err)
}

func (f *Filter) handle(ctx context.Context, res engine.WaveResult, err error) (Outcome, error) {
	if err != nil {
		log.Errorf("datakit: scheduler wave failed: %v", err)
		return Outcome{}, err
	}
	if err := f.finalize(ctx, res); err != nil {
		return Outcome{}, err
	}
	return Outcome{ShortCircuit: res.Exit != nil, Pending: res.Pending, Finished: res.Finished}, nil
}

// finalize resolves the exit/trace response-overlay precedence (,
// Open Question): an exit node's status is always honored; tracing, when
// enabled, always wins the outgoing body content, replacing whatever exit
// or the response implicit node would otherwise have written.
func (f *Filter) finalize(ctx context.Context, res engine.WaveResult) error {
	if !res.Finished || f.done {
		return nil
	}
	f.done = true

	if res.Exit != nil {
		if err := f.applyExit(ctx, res.Exit); err != nil {
			return err
		}
	}
	if f.tracer != nil {
		if err := f.applyTrace(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filter) applyExit(ctx context.Context, exit *graph.ExitResponse) error {
	if err := f.exchange.Response.SetStatus(ctx, exit.Status); err != nil {
		return err
	}

	headers := value.NewHeaders()
	if exit.HasHeaders {
		parsed, err := value.HeadersFromValue(exit.Headers)
		if err != nil {
			return err
		}
		headers = parsed
	}
	if !exit.HasBody {
		return f.exchange.Response.SetResponseHeaders(ctx, toHeaderMap(headers))
	}

	body, contentType, err := coerce.EncodeBody(exit.Body, "")
	if err != nil {
		return err
	}
	if _, already := headers.Get("content-type"); !already {
		headers.Set("content-type", contentType)
	}
	if err := f.exchange.Response.SetResponseHeaders(ctx, toHeaderMap(headers)); err != nil {
		return err
	}
	return f.exchange.Response.SetResponseBody(ctx, body)
}

func (f *Filter) applyTrace(ctx context.Context) error {
	data, err := f.tracer.JSON()
	if err != nil {
		return err
	}
	if err := f.exchange.Response.SetResponseHeaders(ctx, map[string][]string{
		"content-type": {"application/json"},
	}); err != nil {
		return err
	}
	return f.exchange.Response.SetResponseBody(ctx, data)
}

func toHeaderMap(h *value.Headers) map[string][]string {
	out := make(map[string][]string, len(h.Names()))
	for _, name := range h.Names() {
		out[name] = h.Values(name)
	}
	return out
}
