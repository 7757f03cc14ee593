package layout

// Alignment is the horizontal alignment of every line of a block.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// ClassifyAlignment derives the alignment of a block from where its original box
// sits on the page. It is evaluated once per block and never per line.
func ClassifyAlignment(bbox Rect, pageWidth float64) Alignment {
	switch {
	case bbox.X0 > pageWidth*0.6:
		return AlignRight
	case bbox.X0 > pageWidth*0.3 && bbox.X1 < pageWidth*0.7:
		return AlignCenter
	default:
		return AlignLeft
	}
}

// PlacedWord is a word with its pen position.
type PlacedWord struct {
	Text string
	X    float64
}

// PlacedLine is one line ready to be drawn at Baseline.
type PlacedLine struct {
	Baseline float64
	Words    []PlacedWord
}

// Place positions the fitted lines inside bbox. The block is centered
// vertically when it is shorter than the box, otherwise it starts at the top.
func (l FittedLayout) Place(bbox Rect, align Alignment) []PlacedLine {
	if len(l.Lines) == 0 {
		return nil
	}

	total := l.Height()
	yStart := bbox.Y0 + l.FontSize
	if total < bbox.Height() {
		yStart = bbox.Y0 + (bbox.Height()-total)/2 + l.FontSize
	}

	placed := make([]PlacedLine, 0, len(l.Lines))
	for i, line := range l.Lines {
		var x float64
		switch align {
		case AlignRight:
			x = bbox.X1 - line.Width
		case AlignCenter:
			x = bbox.X0 + (bbox.Width()-line.Width)/2
		default:
			x = bbox.X0
		}

		pl := PlacedLine{Baseline: yStart + float64(i)*l.LineHeight}
		for _, w := range line.Words {
			pl.Words = append(pl.Words, PlacedWord{Text: w.Text, X: x})
			x += w.Width + l.SpaceWidth
		}
		placed = append(placed, pl)
	}
	return placed
}
