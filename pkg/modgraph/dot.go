package modgraph

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/livebundle/pkg/module"
)

// Options configures DOT output.
type Options struct {
	// TrimPrefix is removed from remote addresses in labels, typically the
	// registry base URL.
	TrimPrefix string

	// Sizes appends each module's byte size to its label.
	Sizes bool
}

// ToDOT converts g to Graphviz DOT format. Render the result with [RenderSVG].
//
// The entry module is drawn bold, stub modules dashed.
func ToDOT(g *Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := fmtAttrs(n, fmtLabel(n, opts))
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Address, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if e.Kind == "require-call" {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n Node, opts Options) string {
	label := string(n.Address)
	switch n.Namespace {
	case module.NamespaceEntry:
		label = module.EntryName
	case module.NamespaceRemote:
		if opts.TrimPrefix != "" {
			if trimmed := strings.TrimPrefix(label, opts.TrimPrefix); trimmed != "" {
				label = trimmed
			}
		}
	}
	if opts.Sizes {
		label += "\n" + fmtBytes(n.Bytes)
	}
	return label
}

func fmtAttrs(n Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch n.Namespace {
	case module.NamespaceEntry:
		attrs = append(attrs, "penwidth=2", "fillcolor=\"#e8f0fe\"")
	case module.NamespaceStub:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

func fmtBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the SVG scales from a zero
// origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
