// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image"
	"io"
	"os"
	"sort"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"

	"github.com/jportal/trace/matcher/method"
)

// dejaVuPath is where cmd/memheat's own font-rendering code expects to
// find a usable TrueType font; --call-graph-svg reuses the same fixed
// path rather than adding a font-discovery flag nobody asked for.
const dejaVuPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"

const (
	svgNodeHeight  = 22.0
	svgNodePadding = 8.0
	svgRowGap      = 14.0
	svgFontSize    = 11.0
)

// svgWriter emits the handful of SVG primitives renderCallGraphSVG
// needs: nodes, connecting lines and labels. It does not attempt the
// general path/clip/tooltip machinery cmd/memheat's renderer has,
// since a call-graph diagram only ever draws boxes, lines and text.
type svgWriter struct {
	w   io.Writer
	err error
}

func newSVGWriter(w io.Writer, width, height float64) *svgWriter {
	s := &svgWriter{w: w}
	s.printf("<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%g\" height=\"%g\" font-family=\"sans-serif\">\n", width, height)
	return s
}

func (s *svgWriter) printf(format string, a ...interface{}) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, a...)
}

func (s *svgWriter) rect(x, y, w, h float64, fill, stroke string) {
	s.printf("<rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\" stroke=\"%s\"/>\n", x, y, w, h, fill, stroke)
}

func (s *svgWriter) line(x1, y1, x2, y2 float64) {
	s.printf("<line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"#888\" marker-end=\"url(#arrow)\"/>\n", x1, y1, x2, y2)
}

func (s *svgWriter) text(x, y float64, label string) {
	s.printf("<text x=\"%g\" y=\"%g\" font-size=\"%g\">%s</text>\n", x, y, svgFontSize, escapeSVGText(label))
}

func (s *svgWriter) defs() {
	s.printf(`<defs><marker id="arrow" markerWidth="8" markerHeight="8" refX="6" refY="3" orient="auto"><path d="M0,0 L0,6 L6,3 z" fill="#888"/></marker></defs>` + "\n")
}

func (s *svgWriter) done() error {
	s.printf("</svg>")
	return s.err
}

func escapeSVGText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

// textWidth measures label as it would be drawn at svgFontSize under
// face, the way cmd/memanim sizes its own freetype-drawn labels before
// placing them: draw into a throwaway context and look at how far the
// pen advanced.
func textWidth(face *truetype.Font, label string) float64 {
	ctx := freetype.NewContext()
	ctx.SetFont(face)
	ctx.SetFontSize(svgFontSize)
	ctx.SetDPI(72)
	ctx.SetDst(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	ctx.SetSrc(image.Black)
	ctx.SetClip(image.Rect(0, 0, 1, 1))
	start := freetype.Pt(0, 0)
	end, err := ctx.DrawString(label, start)
	if err != nil {
		return float64(len(label)) * svgFontSize * 0.6
	}
	return float64(end.X-start.X) / 64
}

// renderCallGraphSVG lays every method that appears in at least one
// static call-graph edge out in arena order, one row apiece, and draws
// an arrow from each caller's row to each callee's row. Width is sized
// to the longest label using the same font cmd/memanim rasterizes its
// own labels with.
func renderCallGraphSVG(path string, prog *method.Program) error {
	fontData, err := os.ReadFile(dejaVuPath)
	if err != nil {
		return fmt.Errorf("reading %s for call-graph SVG: %w", dejaVuPath, err)
	}
	face, err := freetype.ParseFont(fontData)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", dejaVuPath, err)
	}

	type edge struct{ caller, callee method.MethodID }
	var edges []edge
	seen := make(map[method.MethodID]bool)
	for _, callee := range prog.AllMethods() {
		for _, e := range prog.Callers(callee) {
			edges = append(edges, edge{e.Caller, e.Callee})
			seen[e.Caller] = true
			seen[e.Callee] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}

	nodes := make([]method.MethodID, 0, len(seen))
	for id := range seen {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	row := make(map[method.MethodID]int, len(nodes))
	labels := make(map[method.MethodID]string, len(nodes))
	maxWidth := 0.0
	for i, id := range nodes {
		row[id] = i
		m := prog.Method(id)
		label := fmt.Sprintf("%s.%s", m.Class.Name, m.Name)
		labels[id] = label
		if w := textWidth(face, label); w > maxWidth {
			maxWidth = w
		}
	}

	nodeWidth := maxWidth + 2*svgNodePadding
	height := float64(len(nodes))*(svgNodeHeight+svgRowGap) + svgRowGap
	width := nodeWidth + 120

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	s := newSVGWriter(f, width, height)
	s.defs()
	for _, id := range nodes {
		y := svgRowGap + float64(row[id])*(svgNodeHeight+svgRowGap)
		s.rect(0, y, nodeWidth, svgNodeHeight, "#eef", "#446")
		s.text(svgNodePadding, y+svgNodeHeight-7, labels[id])
	}
	for _, e := range edges {
		fromY := svgRowGap + float64(row[e.caller])*(svgNodeHeight+svgRowGap) + svgNodeHeight/2
		toY := svgRowGap + float64(row[e.callee])*(svgNodeHeight+svgRowGap) + svgNodeHeight/2
		s.line(nodeWidth, fromY, nodeWidth, toY)
	}
	return s.done()
}
