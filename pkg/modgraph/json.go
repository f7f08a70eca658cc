package modgraph

import (
	"encoding/json"
	"fmt"
	"io"
)

type jsonGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// WriteJSON encodes g as indented JSON with nodes and edges in sorted order.
func WriteJSON(g *Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonGraph{Nodes: g.Nodes(), Edges: g.Edges()}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
