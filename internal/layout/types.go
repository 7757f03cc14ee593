// Package layout holds the page geometry model and the pure layout algorithms:
// grouping of text units, color inference from rendered pixels, and text fitting.
package layout

import (
	"math"
	"strings"
)

const (
	// CanonicalFont is the single font family every extracted unit is normalized to.
	CanonicalFont = "Helvetica"

	// DefaultFontSize is used when a source does not report a usable size.
	DefaultFontSize = 11.0
)

// Point is a position in page space (points, origin top-left).
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle (x0,y0,x1,y1) in page space.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// NewRect builds a rectangle with ordered corners.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X0: math.Min(x0, x1),
		Y0: math.Min(y0, y1),
		X1: math.Max(x0, x1),
		Y1: math.Max(y0, y1),
	}
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Union returns the min/max envelope of both rectangles.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Scale multiplies every coordinate by f.
func (r Rect) Scale(f float64) Rect {
	return Rect{X0: r.X0 * f, Y0: r.Y0 * f, X1: r.X1 * f, Y1: r.Y1 * f}
}

// TextUnit is one atomic run of text at a position.
type TextUnit struct {
	Text     string  `json:"text"`
	BBox     Rect    `json:"bbox"`
	FontSize float64 `json:"font_size"`
	FontName string  `json:"font_name"`
}

// NewTextUnit trims the text and normalizes bbox, size and font name.
// It reports false when the trimmed text is empty.
func NewTextUnit(text string, bbox Rect, fontSize float64) (TextUnit, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TextUnit{}, false
	}
	if fontSize <= 0 || math.IsNaN(fontSize) || math.IsInf(fontSize, 0) {
		fontSize = DefaultFontSize
	}
	return TextUnit{
		Text:     text,
		BBox:     NewRect(bbox.X0, bbox.Y0, bbox.X1, bbox.Y1),
		FontSize: fontSize,
		FontName: CanonicalFont,
	}, true
}

// TextGroup is a spatially merged run of units, translated and laid out as one block.
type TextGroup struct {
	Text     string     `json:"text"`
	BBox     Rect       `json:"bbox"`
	FontSize float64    `json:"font_size"`
	FontName string     `json:"font_name"`
	Members  []TextUnit `json:"members"`
}

// newTextGroup closes a run of members into a group.
func newTextGroup(members []TextUnit) TextGroup {
	texts := make([]string, len(members))
	bbox := members[0].BBox
	for i, m := range members {
		texts[i] = m.Text
		bbox = bbox.Union(m.BBox)
	}
	return TextGroup{
		Text:     strings.Join(texts, " "),
		BBox:     bbox,
		FontSize: members[0].FontSize,
		FontName: members[0].FontName,
		Members:  members,
	}
}

// TranslatedGroup is a TextGroup with its translation attached.
type TranslatedGroup struct {
	TextGroup
	TranslatedText string `json:"translated_text"`
	PassThrough    bool   `json:"pass_through"`
}

// PageContent is the ordered groups of one source page.
type PageContent struct {
	Index  int               `json:"index"`
	Groups []TranslatedGroup `json:"groups"`
}

// Document has exactly one PageContent per source page.
type Document struct {
	Pages []PageContent `json:"pages"`
}

// TotalGroups counts the groups over all pages.
func (d Document) TotalGroups() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Groups)
	}
	return n
}
