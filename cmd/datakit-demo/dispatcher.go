package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/log"
)

// dispatchOutcome is delivered back to the owning request goroutine once a
// pooled worker finishes an upstream call.
type dispatchOutcome struct {
	id     host.CorrelationID
	result host.DispatchResult
}

// dispatchJob is the pooled parameter struct a worker receives, recycled
// through a sync.Pool the way evaluation/service/local/pool.go recycles its
// own inference parameters.
type dispatchJob struct {
	ctx    context.Context
	req    host.DispatchRequest
	id     host.CorrelationID
	client *http.Client
	out    chan<- dispatchOutcome
}

func (j *dispatchJob) reset() {
	j.ctx, j.req, j.id, j.client, j.out = nil, host.DispatchRequest{}, host.CorrelationID{}, nil, nil
}

var jobPool = sync.Pool{New: func() any { return &dispatchJob{} }}

// poolDispatcher implements host.Dispatcher by fanning sub-requests out to a
// bounded ants worker pool and reporting each result on a shared channel,
// so the request's owning goroutine can resume the engine from one place
// without the pool ever touching the single-threaded scheduler directly.
type poolDispatcher struct {
	client *http.Client
	pool   *ants.PoolWithFunc
}

func newPoolDispatcher(size int) (*poolDispatcher, error) {
	d := &poolDispatcher{client: &http.Client{}}
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		job := args.(*dispatchJob)
		result := doDispatch(job.ctx, job.client, job.req)
		job.out <- dispatchOutcome{id: job.id, result: result}
		job.reset()
		jobPool.Put(job)
	})
	if err != nil {
		return nil, err
	}
	d.pool = pool
	return d, nil
}

// dispatch submits req to the pool, reporting its eventual outcome on out.
// This is the per-request entry point; Dispatch below adapts it to
// host.Dispatcher for a single fixed outcome channel.
func (d *poolDispatcher) dispatch(ctx context.Context, req host.DispatchRequest, out chan<- dispatchOutcome) (host.CorrelationID, error) {
	id := host.NewCorrelationID()
	job := jobPool.Get().(*dispatchJob)
	job.ctx, job.req, job.id, job.client, job.out = ctx, req, id, d.client, out
	if err := d.pool.Invoke(job); err != nil {
		job.reset()
		jobPool.Put(job)
		return host.CorrelationID{}, err
	}
	return id, nil
}

func (d *poolDispatcher) release() { d.pool.Release() }

// requestDispatcher binds a poolDispatcher to one request's outcome channel,
// satisfying host.Dispatcher for that request's Filter.
type requestDispatcher struct {
	pool *poolDispatcher
	out  chan dispatchOutcome
}

func (r *requestDispatcher) Dispatch(ctx context.Context, req host.DispatchRequest) (host.CorrelationID, error) {
	return r.pool.dispatch(ctx, req, r.out)
}

func doDispatch(ctx context.Context, client *http.Client, req host.DispatchRequest) host.DispatchResult {
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return host.DispatchResult{Err: err}
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return host.DispatchResult{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warnf("datakit-demo: reading sub-dispatch response body: %v", err)
		return host.DispatchResult{Err: err}
	}
	return host.DispatchResult{
		StatusCode: resp.StatusCode,
		Headers:    map[string][]string(resp.Header),
		Body:       body,
	}
}
