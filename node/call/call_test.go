package call

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/value"
)

// recordingDispatcher runs the dispatch synchronously against a real
// httptest.Server, standing in for the host's async resumption for test
// purposes, and records the result for the test to pass into Finish.
type recordingDispatcher struct {
	server     *httptest.Server
	lastResult host.DispatchResult
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, req host.DispatchRequest) (host.CorrelationID, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, d.server.URL, nil)
	if err != nil {
		return host.CorrelationID{}, err
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	resp, err := d.server.Client().Do(httpReq)
	if err != nil {
		return host.CorrelationID{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	d.lastResult = host.DispatchResult{StatusCode: resp.StatusCode, Headers: map[string][]string(resp.Header), Body: body}
	return host.NewCorrelationID(), nil
}

func TestStartAndFinishRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n, err := New(srv.URL, "", 0)
	require.NoError(t, err)

	disp := &recordingDispatcher{server: srv}
	_, err = n.Start(context.Background(), graph.Inputs{}, disp)
	require.NoError(t, err)

	res, err := n.Finish(context.Background(), disp.lastResult)
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, res.Outputs["body"].Kind())
	ok, _ := res.Outputs["body"].ObjectField("ok")
	b, _ := ok.Bool()
	assert.True(t, b)
}

func TestFinishPropagatesDispatchError(t *testing.T) {
	n, err := New("http://example.invalid", "GET", time.Second)
	require.NoError(t, err)

	_, err = n.Finish(context.Background(), host.DispatchResult{Err: assert.AnError})
	assert.Error(t, err)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("", "GET", 0)
	assert.Error(t, err)
}
