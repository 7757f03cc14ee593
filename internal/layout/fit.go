package layout

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// LineHeightFactor converts a font size into the distance between baselines.
	LineHeightFactor = 1.2
	// WidthSafety is the share of the box width usable for text.
	WidthSafety = 0.98
	// MaxFitAttempts bounds the number of packing attempts of a single Fit call.
	MaxFitAttempts = 10

	shrinkFactor        = 0.9
	relaxedShrinkFactor = 0.8
	minFontSize         = 6.0
	floorRatio          = 0.6
	estimatedCharWidth  = 0.6
)

// ErrUnmeasurable is returned by measurers that cannot size a text run.
var ErrUnmeasurable = errors.New("text width cannot be measured")

// Measurer reports the rendered width of text at a font size.
type Measurer interface {
	TextWidth(text string, size float64) (float64, error)
}

// WordSpan is one word with its measured width.
type WordSpan struct {
	Text  string  `json:"text"`
	Width float64 `json:"width"`
}

// Line is a packed line of words; Width includes the inner spaces.
type Line struct {
	Words []WordSpan `json:"words"`
	Width float64    `json:"width"`
}

// FittedLayout is the chosen wrapping and size for one block of text.
type FittedLayout struct {
	Lines      []Line  `json:"lines"`
	FontSize   float64 `json:"font_size"`
	LineHeight float64 `json:"line_height"`
	SpaceWidth float64 `json:"space_width"`
	Attempts   int     `json:"attempts"`
	// Overflow is set when no size down to the floor satisfied both constraints
	// and the best-effort single line was used.
	Overflow bool `json:"overflow"`
}

// Height is the vertical extent of all lines.
func (l FittedLayout) Height() float64 {
	return float64(len(l.Lines)) * l.LineHeight
}

// FloorSize is the smallest font size Fit will shrink to for the given start size.
func FloorSize(initialSize float64) float64 {
	return math.Min(initialSize, math.Max(minFontSize, initialSize*floorRatio))
}

// Fit wraps text greedily into lines no wider than maxWidth and shrinks the font
// until the lines fit into maxHeight.
//
// The size shrinks by 10% per attempt (20% after a measurement failure) down to
// FloorSize. One more attempt is made at the floor itself; if that still does not
// fit, the result is a single line holding as many words as fit at the floor size
// and Overflow is set. No call makes more than MaxFitAttempts packing attempts.
func Fit(m Measurer, text string, maxWidth, maxHeight, initialSize float64) FittedLayout {
	if initialSize <= 0 || math.IsNaN(initialSize) || math.IsInf(initialSize, 0) {
		initialSize = DefaultFontSize
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return FittedLayout{FontSize: initialSize, LineHeight: initialSize * LineHeightFactor}
	}

	floor := FloorSize(initialSize)
	size := initialSize
	attempts := 0

	for attempts < MaxFitAttempts-1 && size >= floor {
		attempts++
		lines, space, err := pack(m, words, size, maxWidth)
		if err != nil {
			size *= relaxedShrinkFactor
			continue
		}
		if fits(lines, size, maxHeight) {
			return FittedLayout{
				Lines:      lines,
				FontSize:   size,
				LineHeight: size * LineHeightFactor,
				SpaceWidth: space,
				Attempts:   attempts,
			}
		}
		size *= shrinkFactor
	}

	attempts++
	lines, space, err := pack(m, words, floor, maxWidth)
	if err == nil && fits(lines, floor, maxHeight) {
		return FittedLayout{
			Lines:      lines,
			FontSize:   floor,
			LineHeight: floor * LineHeightFactor,
			SpaceWidth: space,
			Attempts:   attempts,
		}
	}

	line, space := singleLine(m, words, floor, maxWidth)
	return FittedLayout{
		Lines:      []Line{line},
		FontSize:   floor,
		LineHeight: floor * LineHeightFactor,
		SpaceWidth: space,
		Attempts:   attempts,
		Overflow:   true,
	}
}

func fits(lines []Line, size, maxHeight float64) bool {
	return float64(len(lines))*size*LineHeightFactor <= maxHeight
}

// pack is the greedy word wrap at one size. A word wider than maxWidth gets a
// line of its own.
func pack(m Measurer, words []string, size, maxWidth float64) ([]Line, float64, error) {
	space, err := m.TextWidth(" ", size)
	if err != nil {
		return nil, 0, err
	}

	var lines []Line
	var current Line
	for _, word := range words {
		w, err := m.TextWidth(word, size)
		if err != nil {
			return nil, 0, err
		}
		if len(current.Words) > 0 && current.Width+w > maxWidth {
			lines = append(lines, current)
			current = Line{}
		}
		if len(current.Words) == 0 {
			current.Width = w
		} else {
			current.Width += space + w
		}
		current.Words = append(current.Words, WordSpan{Text: word, Width: w})
	}
	if len(current.Words) > 0 {
		lines = append(lines, current)
	}
	return lines, space, nil
}

// singleLine keeps as many leading words as fit into maxWidth, at least one.
// Widths the measurer cannot provide are estimated from the character count.
func singleLine(m Measurer, words []string, size, maxWidth float64) (Line, float64) {
	width := func(s string) float64 {
		w, err := m.TextWidth(s, size)
		if err != nil || w <= 0 {
			return float64(utf8.RuneCountInString(s)) * size * estimatedCharWidth
		}
		return w
	}
	space := width(" ")

	var line Line
	for _, word := range words {
		w := width(word)
		next := w
		if len(line.Words) > 0 {
			next = line.Width + space + w
		}
		if len(line.Words) > 0 && next > maxWidth {
			break
		}
		line.Words = append(line.Words, WordSpan{Text: word, Width: w})
		line.Width = next
	}
	return line, space
}
