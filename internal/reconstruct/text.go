package reconstruct

import (
	"strings"

	"codeberg.org/go-pdf/fpdf"

	"pdf-translator/internal/layout"
)

// encoder maps text to what the current font can show.
type encoder func(string) string

func identity(s string) string { return s }

// fpdfMeasurer measures text with the font currently selected in pdf.
type fpdfMeasurer struct {
	pdf    *fpdf.Fpdf
	encode encoder
}

var _ layout.Measurer = fpdfMeasurer{}

func (m fpdfMeasurer) TextWidth(text string, size float64) (float64, error) {
	if m.pdf.Err() {
		return 0, m.pdf.Error()
	}
	m.pdf.SetFontSize(size)
	w := m.pdf.GetStringWidth(m.encode(text))
	if m.pdf.Err() {
		return 0, m.pdf.Error()
	}
	if w <= 0 && strings.TrimSpace(text) != "" {
		return 0, layout.ErrUnmeasurable
	}
	return w, nil
}
