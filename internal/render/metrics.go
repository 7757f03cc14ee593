package render

import (
	"strings"
	"sync"
	"unicode"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// Metrics measures text with the widths of the PDF core fonts, picking the
// core font closest to a source font name.
type Metrics struct {
	mu  sync.Mutex
	pdf *fpdf.Fpdf
}

func NewMetrics() *Metrics {
	return &Metrics{pdf: fpdf.New("P", "pt", "", "")}
}

var coreMetrics = NewMetrics()

// Width returns the advance of text in points. bold and italic come from the
// markup around the run and add to what the font name says.
func (m *Metrics) Width(text, font string, bold, italic bool, size float64) float64 {
	family, style := CoreFont(font)
	if bold && !strings.Contains(style, "B") {
		style = "B" + style
	}
	if italic && !strings.Contains(style, "I") {
		style += "I"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFont(family, style, size)
	if m.pdf.Err() {
		m.pdf.ClearError()
		return float64(len([]rune(text))) * size * estimatedCharWidth
	}
	return m.pdf.GetStringWidth(CP1252(text))
}

// CoreFont maps a font name such as "ABCDEF+Arial-BoldMT" to a core font
// family and fpdf style.
func CoreFont(name string) (family, style string) {
	if _, rest, ok := strings.Cut(name, "+"); ok {
		name = rest
	}
	lower := strings.ToLower(name)

	family = "Helvetica"
	switch {
	case containsAny(lower, "courier", "mono", "consol", "typewriter"):
		family = "Courier"
	case containsAny(lower, "times", "georgia", "garamond", "cambria", "minion", "roman", "book antiqua", "palatino"),
		strings.Contains(lower, "serif") && !strings.Contains(lower, "sans"):
		family = "Times"
	}

	if containsAny(lower, "bold", "black", "heavy", "semibold", "demi") {
		style += "B"
	}
	if containsAny(lower, "italic", "oblique") {
		style += "I"
	}
	return family, style
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CP1252 encodes text for the core PDF fonts. Runes outside Windows-1252 lose
// their diacritics when that makes them encodable and become '?' otherwise.
func CP1252(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		if c, ok := baseLetter(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

func baseLetter(r rune) (byte, bool) {
	switch r {
	case 'ı':
		return 'i', true
	case 'ł':
		return 'l', true
	case 'Ł':
		return 'L', true
	}
	decomposed := []rune(norm.NFD.String(string(r)))
	if len(decomposed) < 2 {
		return 0, false
	}
	for _, mark := range decomposed[1:] {
		if !unicode.Is(unicode.Mn, mark) {
			return 0, false
		}
	}
	return charmap.Windows1252.EncodeRune(decomposed[0])
}
