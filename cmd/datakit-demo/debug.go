package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/log"
)

func bodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("datakit-demo: encoding debug response: %v", err)
	}
}

// nodeSummary and linkSummary give the debug API a stable, dependency-free
// view of the graph rather than exposing graph.Node/graph.Link (whose Sync/
// Async fields aren't meaningfully serializable).
type nodeSummary struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Phase       int      `json:"phase"`
	InputPorts  []string `json:"input_ports"`
	OutputPorts []string `json:"output_ports"`
}

type linkSummary struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type graphDump struct {
	Nodes []nodeSummary `json:"nodes"`
	Links []linkSummary `json:"links"`
}

func graphSummary(g *graph.Graph) graphDump {
	var dump graphDump
	for _, n := range g.Nodes() {
		dump.Nodes = append(dump.Nodes, nodeSummary{
			ID:          n.ID,
			Kind:        n.Kind,
			Phase:       int(n.Phase),
			InputPorts:  n.InputPorts,
			OutputPorts: n.OutputPorts,
		})
	}
	for _, l := range g.Links() {
		dump.Links = append(dump.Links, linkSummary{
			From: l.From.Node + "." + l.From.Name,
			To:   l.To.Node + "." + l.To.Name,
		})
	}
	return dump
}
