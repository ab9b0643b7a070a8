// Command datakit-demo is a reference proxy harness: it terminates an HTTP
// connection, runs the DataKit filter over the exchange, forwards whatever
// survives to a configured upstream, and runs the filter again over the
// upstream's response before writing it back to the client. It exists to
// exercise every host.* interface against real net/http plumbing rather
// than a test double.
package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/dkengine/datakit/config"
	"github.com/dkengine/datakit/filter"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/log"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a DataKit filter configuration (YAML or JSON)")
		upstream   = flag.String("upstream", "", "base URL of the service this proxy fronts")
		addr       = flag.String("addr", ":8080", "address the proxy listens on")
		debugAddr  = flag.String("debug-addr", ":8081", "address the debug/introspection API listens on")
		poolSize   = flag.Int("dispatch-pool-size", 32, "bounded worker count for the call-node dispatch pool")
	)
	flag.Parse()

	if *configPath == "" || *upstream == "" {
		log.Errorf("datakit-demo: both -config and -upstream are required")
		os.Exit(2)
	}

	doc, err := config.NewParser().ParseFile(*configPath)
	if err != nil {
		log.Errorf("datakit-demo: %v", err)
		os.Exit(1)
	}
	g, err := config.Build(doc)
	if err != nil {
		log.Errorf("datakit-demo: %v", err)
		os.Exit(1)
	}

	dispatcher, err := newPoolDispatcher(*poolSize)
	if err != nil {
		log.Errorf("datakit-demo: starting dispatch pool: %v", err)
		os.Exit(1)
	}
	defer dispatcher.release()

	srv := &server{
		graph:      g,
		upstream:   *upstream,
		client:     &http.Client{Timeout: 30 * time.Second},
		dispatcher: dispatcher,
	}

	proxySrv := &http.Server{Addr: *addr, Handler: srv}
	debugSrv := &http.Server{Addr: *debugAddr, Handler: newDebugHandler(g, doc)}

	go func() {
		log.Infof("datakit-demo: proxy listening on %s, forwarding to %s", *addr, *upstream)
		if err := proxySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("datakit-demo: proxy server: %v", err)
		}
	}()
	go func() {
		log.Infof("datakit-demo: debug API listening on %s", *debugAddr)
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("datakit-demo: debug server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = proxySrv.Shutdown(ctx)
	_ = debugSrv.Shutdown(ctx)
}

// server drives one shared configuration graph across every proxied
// request; graph and dispatcher are safe for concurrent use, one
// filter.Filter and one requestDispatcher are created per request.
type server struct {
	graph      *graph.Graph
	upstream   string
	client     *http.Client
	dispatcher *poolDispatcher
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reqAcc := newRequestAccessor(r.Header.Clone(), body)
	respAcc := newResponseAccessor()
	rd := &requestDispatcher{pool: s.dispatcher, out: make(chan dispatchOutcome, 4)}
	f := filter.New(s.graph, host.Exchange{Request: reqAcc, Response: respAcc, Dispatch: rd})

	outcome, err := f.OnRequestHeaders(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}
	if outcome, err = f.OnRequestBody(ctx); err != nil {
		s.fail(w, err)
		return
	}
	if outcome, err = drainPending(ctx, f, rd, outcome); err != nil {
		s.fail(w, err)
		return
	}

	if !outcome.ShortCircuit {
		upHeaders, upBody := reqAcc.upstream()
		status, respHeaders, respBody, err := s.forward(ctx, r.Method, upHeaders, upBody)
		if err != nil {
			s.fail(w, err)
			return
		}
		respAcc.setUpstream(respHeaders, respBody)
		_ = respAcc.SetStatus(ctx, status)

		if outcome, err = f.OnResponseHeaders(ctx); err != nil {
			s.fail(w, err)
			return
		}
		if outcome, err = f.OnResponseBody(ctx); err != nil {
			s.fail(w, err)
			return
		}
		if _, err = drainPending(ctx, f, rd, outcome); err != nil {
			s.fail(w, err)
			return
		}
	}

	respAcc.write(w)
}

// drainPending waits on rd's outcome channel for every call node the last
// hook call suspended, resuming the engine from this single goroutine as
// each one resolves, including any further calls those resumptions
// themselves suspend ( "Suspension" is recursive: a jq node fed by
// one call's output may feed another call).
func drainPending(ctx context.Context, f *filter.Filter, rd *requestDispatcher, outcome filter.Outcome) (filter.Outcome, error) {
	outstanding := len(outcome.Pending)
	for outstanding > 0 && !outcome.ShortCircuit {
		select {
		case out := <-rd.out:
			outstanding--
			next, err := f.OnDispatchResponse(ctx, out.id, out.result)
			if err != nil {
				return next, err
			}
			outstanding += len(next.Pending)
			outcome = next
		case <-ctx.Done():
			return outcome, ctx.Err()
		}
	}
	return outcome, nil
}

func (s *server) forward(ctx context.Context, method string, headers http.Header, body []byte) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.upstream, bodyReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header = headers
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

func (s *server) fail(w http.ResponseWriter, err error) {
	log.Errorf("datakit-demo: %v", err)
	http.Error(w, "internal error", http.StatusBadGateway)
}

// newDebugHandler exposes read-only introspection over the loaded
// configuration: the routing is gorilla/mux (named routes keep the handler
// table declarative the way a larger embedding host's admin API would), and
// rs/cors permits browser-based tooling (a local trace viewer, a graph
// visualizer) to call it cross-origin without the host needing its own CORS
// layer.
func newDebugHandler(g *graph.Graph, doc *config.Document) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/debug/graph", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, graphSummary(g))
	}).Methods(http.MethodGet)
	r.HandleFunc("/debug/config", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, doc)
	}).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"content-type"},
	}).Handler(r)
}
