// Package modgraph builds and renders the import graph of a bundle.
//
// The graph is read from the engine's metafile: every input module becomes a
// node tagged with its namespace and size, every import an edge. [ToDOT]
// emits Graphviz DOT and [RenderSVG] renders it with the embedded Graphviz
// build from github.com/goccy/go-graphviz.
package modgraph
