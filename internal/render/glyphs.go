package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdf-translator/internal/layout"
)

// glyph is one shown character in display space: X the origin, Y the
// baseline, W the advance taken from the font's width table.
type glyph struct {
	X, Y, W float64
	Size    float64
	S       string
}

// glyphRun is a horizontal stretch of glyphs sharing a baseline.
type glyphRun struct {
	X0, X1   float64
	Baseline float64
	Size     float64
}

// glyphRuns reads the shown glyphs of a page with their advances. Only
// unrotated pages are read; MuPDF and the content stream disagree on axes otherwise.
func (d *Document) glyphRuns(page int) (runs []glyphRun, err error) {
	d.glyphMu.Lock()
	defer d.glyphMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error reading glyphs of page %d: %v", page, r)
			if d.glyphs == nil {
				d.glyphErr = err
			}
		}
	}()

	if d.glyphs == nil && d.glyphErr == nil {
		d.glyphFile, d.glyphs, d.glyphErr = pdf.Open(d.path)
	}
	if d.glyphErr != nil {
		return nil, d.glyphErr
	}

	p := d.glyphs.Page(page + 1)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", page)
	}
	if rot := inherited(p.V, "Rotate").Int64() % 360; rot != 0 {
		return nil, fmt.Errorf("page %d is rotated by %d degrees", page, rot)
	}
	box, ok := pageBox(p.V)
	if !ok {
		return nil, fmt.Errorf("page %d has no usable page box", page)
	}

	content := p.Content()
	glyphs := make([]glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, glyph{
			X:    t.X - box.X0,
			Y:    box.Y1 - t.Y,
			W:    t.W,
			Size: t.FontSize,
			S:    t.S,
		})
	}
	return buildRuns(glyphs), nil
}

// buildRuns chains glyphs in content order. A run containing a visible glyph
// without a width is dropped: its font has no width table, so every later
// origin in it is wrong too.
func buildRuns(glyphs []glyph) []glyphRun {
	var runs []glyphRun
	var cur *glyphRun
	valid := true
	flush := func() {
		if cur != nil && valid && cur.X1 > cur.X0 {
			runs = append(runs, *cur)
		}
		cur = nil
		valid = true
	}

	for _, g := range glyphs {
		if g.Size <= 0 {
			flush()
			continue
		}
		if cur != nil {
			gap := g.X - cur.X1
			if math.Abs(g.Y-cur.Baseline) > 0.3*cur.Size || gap < -0.5*cur.Size || gap > cur.Size {
				flush()
			}
		}
		if cur == nil {
			cur = &glyphRun{X0: g.X, X1: g.X, Baseline: g.Y, Size: g.Size}
		}
		if g.W <= 0 && strings.TrimSpace(g.S) != "" {
			valid = false
		}
		cur.X1 = math.Max(cur.X1, g.X+g.W)
		cur.Size = math.Max(cur.Size, g.Size)
	}
	flush()
	return runs
}

// fitToRuns rescales the runs of every engine line so the line ends where its
// glyphs end. Lines without a matching glyph run keep their metric widths.
func fitToRuns(spans []Span, runs []glyphRun) {
	for start := 0; start < len(spans); {
		end := start + 1
		for end < len(spans) && spans[end].line == spans[start].line {
			end++
		}
		fitLine(spans[start:end], runs)
		start = end
	}
}

func fitLine(line []Span, runs []glyphRun) {
	first, last := line[0].BBox, line[len(line)-1].BBox
	if first == nil || last == nil {
		return
	}
	left := line[0].left
	size := first.Height()
	baseline := first.Y0 + 0.8*size

	for _, r := range runs {
		if math.Abs(r.Baseline-baseline) > 0.3*size || math.Abs(r.X0-left) > 0.5*size {
			continue
		}
		measured := last.X1 - left
		actual := r.X1 - left
		if measured <= 0 || actual <= 0 {
			return
		}
		k := actual / measured
		if k < 0.5 || k > 2 {
			return
		}
		for i := range line {
			if line[i].BBox == nil {
				continue
			}
			bb := *line[i].BBox
			bb.X0 = left + (bb.X0-left)*k
			bb.X1 = left + (bb.X1-left)*k
			line[i].BBox = &bb
			line[i].Advance *= k
		}
		return
	}
}

// inherited looks key up on a page node and then on its ancestors.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// pageBox is the visible area of the page, the crop box when set.
func pageBox(page pdf.Value) (layout.Rect, bool) {
	for _, key := range []string{"CropBox", "MediaBox"} {
		v := inherited(page, key)
		if v.Kind() != pdf.Array || v.Len() != 4 {
			continue
		}
		r := layout.NewRect(v.Index(0).Float64(), v.Index(1).Float64(), v.Index(2).Float64(), v.Index(3).Float64())
		if r.Width() > 0 && r.Height() > 0 {
			return r, true
		}
	}
	return layout.Rect{}, false
}
