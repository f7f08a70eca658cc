package modgraph

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"

	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/module"
)

// Node is one module in the graph.
type Node struct {
	Address   module.Address   `json:"address"`
	Namespace module.Namespace `json:"namespace"`
	Bytes     int              `json:"bytes"`
}

// Edge is one import statement.
type Edge struct {
	From module.Address `json:"from"`
	To   module.Address `json:"to"`

	// Kind is the import form, e.g. "import-statement" or "require-call".
	Kind string `json:"kind"`
}

// Graph is a directed import graph. The zero value is not usable; call [New].
type Graph struct {
	nodes map[module.Address]Node
	edges map[[2]module.Address]Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[module.Address]Node),
		edges: make(map[[2]module.Address]Edge),
	}
}

// AddNode adds n, replacing any node with the same address.
func (g *Graph) AddNode(n Node) { g.nodes[n.Address] = n }

// AddEdge adds e. Endpoints missing from the graph are added as remote nodes.
// Duplicate edges between the same pair keep the first kind.
func (g *Graph) AddEdge(e Edge) {
	for _, a := range []module.Address{e.From, e.To} {
		if _, ok := g.nodes[a]; !ok {
			g.nodes[a] = Node{Address: a, Namespace: module.NamespaceRemote}
		}
	}
	key := [2]module.Address{e.From, e.To}
	if _, ok := g.edges[key]; !ok {
		g.edges[key] = e
	}
}

// Node returns the node at addr.
func (g *Graph) Node(addr module.Address) (Node, bool) {
	n, ok := g.nodes[addr]
	return n, ok
}

// Nodes returns all nodes sorted by address.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Node) int { return cmp.Compare(a.Address, b.Address) })
	return out
}

// Edges returns all edges sorted by source, then target.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Edge) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

type metafile struct {
	Inputs map[string]metafileInput `json:"inputs"`
}

type metafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []metafileImport `json:"imports"`
}

type metafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// FromMetafile builds a graph from an esbuild metafile.
func FromMetafile(data []byte) (*Graph, error) {
	var meta metafile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeInternal, err, "parse metafile")
	}

	g := New()
	for path, in := range meta.Inputs {
		addr, ns := splitPath(path)
		g.AddNode(Node{Address: addr, Namespace: ns, Bytes: in.Bytes})
	}
	for path, in := range meta.Inputs {
		from, _ := splitPath(path)
		for _, imp := range in.Imports {
			if imp.External {
				continue
			}
			to, _ := splitPath(imp.Path)
			g.AddEdge(Edge{From: from, To: to, Kind: imp.Kind})
		}
	}
	return g, nil
}

// splitPath undoes esbuild's "namespace:path" naming of plugin modules.
func splitPath(p string) (module.Address, module.Namespace) {
	if prefix, rest, ok := strings.Cut(p, ":"); ok {
		if ns := module.Namespace(prefix); ns.Valid() {
			return module.Address(rest), ns
		}
	}
	return module.Address(p), module.NamespaceRemote
}
