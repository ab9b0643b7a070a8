package engine

import (
	"context"
	"testing"

	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/value"
)

// constSync publishes a fixed value on every declared output port once all
// of its declared input ports have arrived.
type constSync struct {
	in, out []string
	publish map[string]value.V
	ran     *bool
}

func (s constSync) InputPorts() []string  { return s.in }
func (s constSync) OutputPorts() []string { return s.out }
func (s constSync) Execute(context.Context, graph.Inputs) (graph.Result, error) {
	if s.ran != nil {
		*s.ran = true
	}
	return graph.Result{Outputs: s.publish}, nil
}

type exitSync struct {
	status int
}

func (s exitSync) InputPorts() []string  { return nil }
func (s exitSync) OutputPorts() []string { return nil }
func (s exitSync) Execute(context.Context, graph.Inputs) (graph.Result, error) {
	return graph.Result{Exit: &graph.ExitResponse{Status: s.status}}, nil
}

type failingSync struct{ in []string }

func (s failingSync) InputPorts() []string  { return s.in }
func (s failingSync) OutputPorts() []string { return nil }
func (s failingSync) Execute(context.Context, graph.Inputs) (graph.Result, error) {
	return graph.Result{}, errTest
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

type fakeAsync struct {
	out map[string]value.V
}

func (a fakeAsync) InputPorts() []string  { return nil }
func (a fakeAsync) OutputPorts() []string { return []string{"body"} }
func (a fakeAsync) Start(_ context.Context, _ graph.Inputs, disp host.Dispatcher) (host.CorrelationID, error) {
	return disp.Dispatch(context.Background(), host.DispatchRequest{})
}
func (a fakeAsync) Finish(context.Context, host.DispatchResult) (graph.Result, error) {
	return graph.Result{Outputs: a.out}, nil
}

type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(context.Context, host.DispatchRequest) (host.CorrelationID, error) {
	return host.NewCorrelationID(), nil
}

func TestRunWavePublishesAcrossLink(t *testing.T) {
	b := graph.NewBuilder()
	must(t, b.AddNode(&graph.Node{
		ID: "request", Kind: "implicit", OutputPorts: []string{"body", "headers"},
	}))
	var ran bool
	must(t, b.AddNode(&graph.Node{
		ID: "rewrite", InputPorts: []string{"in"}, OutputPorts: []string{"out"},
		Sync: constSync{in: []string{"in"}, out: []string{"out"}, publish: map[string]value.V{"out": value.String("done")}, ran: &ran},
	}))
	b.AddLink(graph.Port{Node: "request", Name: "body"}, graph.Port{Node: "rewrite", Name: "in"})
	g, err := b.Build()
	must(t, err)

	bindings := map[string]graph.SyncKind{
		"request": constSync{out: []string{"body", "headers"}, publish: map[string]value.V{"body": value.String("hi")}},
	}
	s := New(g, bindings, fakeDispatcher{}, nil)
	res, err := s.RunWave(context.Background(), graph.PhaseRequest)
	must(t, err)
	if !res.Finished {
		t.Fatal("expected the wave to finish")
	}
	if !ran {
		t.Fatal("expected \"rewrite\" to have run")
	}
}

func TestSkipPropagatesWhenSourceLeavesPortUnpublished(t *testing.T) {
	b := graph.NewBuilder()
	must(t, b.AddNode(&graph.Node{ID: "request", Kind: "implicit", OutputPorts: []string{"body"}}))
	var ran bool
	must(t, b.AddNode(&graph.Node{
		ID: "downstream", InputPorts: []string{"in"}, OutputPorts: []string{"out"},
		Sync: constSync{in: []string{"in"}, out: []string{"out"}, ran: &ran},
	}))
	b.AddLink(graph.Port{Node: "request", Name: "body"}, graph.Port{Node: "downstream", Name: "in"})
	g, err := b.Build()
	must(t, err)

	bindings := map[string]graph.SyncKind{
		// "request" declares output port "body" but never publishes it.
		"request": constSync{out: []string{"body"}},
	}
	s := New(g, bindings, fakeDispatcher{}, nil)
	res, err := s.RunWave(context.Background(), graph.PhaseRequest)
	must(t, err)
	if !res.Finished {
		t.Fatal("expected the wave to finish")
	}
	if ran {
		t.Fatal("expected \"downstream\" to be skipped, not run")
	}
}

func TestExitShortCircuitsRemainingNodes(t *testing.T) {
	b := graph.NewBuilder()
	must(t, b.AddNode(&graph.Node{ID: "request", Kind: "implicit", OutputPorts: []string{"body"}}))
	must(t, b.AddNode(&graph.Node{ID: "guard", Sync: exitSync{status: 403}}))
	var ran bool
	must(t, b.AddNode(&graph.Node{
		ID: "never", InputPorts: []string{"in"}, OutputPorts: []string{"out"},
		Sync: constSync{in: []string{"in"}, out: []string{"out"}, ran: &ran},
	}))
	b.AddLink(graph.Port{Node: "request", Name: "body"}, graph.Port{Node: "never", Name: "in"})
	g, err := b.Build()
	must(t, err)

	bindings := map[string]graph.SyncKind{
		"request": constSync{out: []string{"body"}, publish: map[string]value.V{"body": value.String("x")}},
	}
	s := New(g, bindings, fakeDispatcher{}, nil)
	res, err := s.RunWave(context.Background(), graph.PhaseRequest)
	must(t, err)
	if res.Exit == nil || res.Exit.Status != 403 {
		t.Fatalf("expected exit with status 403, got %#v", res.Exit)
	}
	if ran {
		t.Fatal("expected \"never\" to be skipped by the exit short-circuit")
	}
}

func TestOptionalUnlinkedPortsDoNotBlockReadiness(t *testing.T) {
	b := graph.NewBuilder()
	must(t, b.AddNode(&graph.Node{
		ID: "guard", InputPorts: []string{"body", "headers"}, Sync: exitSync{status: 200},
	}))
	g, err := b.Build()
	must(t, err)

	s := New(g, nil, fakeDispatcher{}, nil)
	res, err := s.RunWave(context.Background(), graph.PhaseRequest)
	must(t, err)
	if res.Exit == nil {
		t.Fatal("expected the exit node to fire despite both input ports being unlinked")
	}
}

func TestAsyncSuspendAndResume(t *testing.T) {
	b := graph.NewBuilder()
	must(t, b.AddNode(&graph.Node{
		ID: "fetch", OutputPorts: []string{"body"}, Async: fakeAsync{out: map[string]value.V{"body": value.String("fetched")}},
	}))
	var ran bool
	must(t, b.AddNode(&graph.Node{
		ID: "after", InputPorts: []string{"in"}, OutputPorts: []string{"out"},
		Sync: constSync{in: []string{"in"}, out: []string{"out"}, ran: &ran},
	}))
	b.AddLink(graph.Port{Node: "fetch", Name: "body"}, graph.Port{Node: "after", Name: "in"})
	g, err := b.Build()
	must(t, err)

	s := New(g, nil, fakeDispatcher{}, nil)
	res, err := s.RunWave(context.Background(), graph.PhaseRequest)
	must(t, err)
	if res.Finished {
		t.Fatal("expected the wave to be pending on the async call")
	}
	if len(res.Pending) != 1 {
		t.Fatalf("expected exactly one pending call, got %d", len(res.Pending))
	}

	res, err = s.Resume(context.Background(), res.Pending[0].ID, host.DispatchResult{})
	must(t, err)
	if !res.Finished {
		t.Fatal("expected resumption to finish the wave")
	}
	if !ran {
		t.Fatal("expected \"after\" to run once \"fetch\" resumed")
	}
}

func TestFailedNodeStillFinishesWaveWithoutExit(t *testing.T) {
	b := graph.NewBuilder()
	must(t, b.AddNode(&graph.Node{ID: "request", Kind: "implicit", OutputPorts: []string{"body"}}))
	must(t, b.AddNode(&graph.Node{
		ID: "broken", InputPorts: []string{"in"}, Sync: failingSync{in: []string{"in"}},
	}))
	b.AddLink(graph.Port{Node: "request", Name: "body"}, graph.Port{Node: "broken", Name: "in"})
	g, err := b.Build()
	must(t, err)

	bindings := map[string]graph.SyncKind{
		"request": constSync{out: []string{"body"}, publish: map[string]value.V{"body": value.String("x")}},
	}
	s := New(g, bindings, fakeDispatcher{}, nil)
	res, err := s.RunWave(context.Background(), graph.PhaseRequest)
	must(t, err)
	if !res.Finished {
		t.Fatal("expected the wave to finish even though a node failed")
	}
	if res.Exit != nil {
		t.Fatal("a failed non-exit node must not produce an exit result")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
