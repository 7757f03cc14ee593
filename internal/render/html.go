package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"pdf-translator/internal/layout"
)

// estimatedCharWidth approximates the advance of one glyph as a share of the
// font size when no font metrics are available.
const estimatedCharWidth = 0.6

// Span is one styled text run of a page as reported by the rendering engine.
// BBox is set when the engine reported the line geometry; otherwise only
// Origin (the baseline start) is known.
type Span struct {
	Text    string
	BBox    *layout.Rect
	Origin  *layout.Point
	Advance float64 // measured width of Text in points
	Size    float64
	Font    string
	Bold    bool
	Italic  bool

	line int     // index of the engine line the run belongs to
	left float64 // left edge of that line
}

// ParseHTMLSpans reads the HTML text layout produced by MuPDF. Every <p> is a
// positioned line (top, left, line-height in pt) and every <span> inside it a
// styled run (font-family, font-size).
func ParseHTMLSpans(r io.Reader) ([]Span, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing page html: %w", err)
	}

	var spans []Span
	line := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			spans = append(spans, lineSpans(n, line)...)
			line++
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return spans, nil
}

// lineSpans lays the runs of one line out from its left edge, each advancing
// by its width in the closest core font.
func lineSpans(p *html.Node, line int) []Span {
	style := parseStyle(attr(p, "style"))
	top, hasTop := points(style["top"])
	left, hasLeft := points(style["left"])
	lineHeight, hasHeight := points(style["line-height"])
	if !hasTop || !hasLeft {
		return nil
	}

	type runStyle struct {
		size         float64
		font         string
		bold, italic bool
	}

	var spans []Span
	x := left
	var visit func(n *html.Node, rs runStyle)
	visit = func(n *html.Node, rs runStyle) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "b", "strong":
				rs.bold = true
			case "i", "em":
				rs.italic = true
			case "tt":
				rs.font = "Courier"
			case "span":
				s := parseStyle(attr(n, "style"))
				if v, ok := points(s["font-size"]); ok && v > 0 {
					rs.size = v
				}
				if f := s["font-family"]; f != "" {
					rs.font = strings.Trim(strings.SplitN(f, ",", 2)[0], `'" `)
				}
			}
		}
		if n.Type == html.TextNode {
			text := n.Data
			width := coreMetrics.Width(text, rs.font, rs.bold, rs.italic, rs.size)
			if strings.TrimSpace(text) != "" {
				span := Span{
					Text:    text,
					Advance: width,
					Size:    rs.size,
					Font:    rs.font,
					Bold:    rs.bold,
					Italic:  rs.italic,
					line:    line,
					left:    left,
				}
				if hasHeight && lineHeight > 0 {
					span.BBox = &layout.Rect{X0: x, Y0: top, X1: x + width, Y1: top + lineHeight}
				} else {
					span.Origin = &layout.Point{X: x, Y: top + rs.size}
				}
				spans = append(spans, span)
			}
			x += width
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, rs)
		}
	}
	visit(p, runStyle{})
	return spans
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseStyle(style string) map[string]string {
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		props[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return props
}

// points parses CSS lengths such as "12pt" or "12.5".
func points(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
