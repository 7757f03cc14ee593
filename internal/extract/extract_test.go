package extract

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"pdf-translator/internal/layout"
	"pdf-translator/internal/render"
	"pdf-translator/internal/stage"
	"pdf-translator/ocr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	width, height float64
	spans         []render.Span
	spansErr      error
	plain         string
	rasterDPI     float64
}

func (f *fakeSource) PageSize(page int) (float64, float64, error) {
	return f.width, f.height, nil
}

func (f *fakeSource) Spans(page int) ([]render.Span, error) {
	return f.spans, f.spansErr
}

func (f *fakeSource) PlainText(page int) (string, error) {
	return f.plain, nil
}

func (f *fakeSource) Raster(page int, dpi float64) (*image.RGBA, error) {
	f.rasterDPI = dpi
	scale := dpi / 72
	return image.NewRGBA(image.Rect(0, 0, int(f.width*scale), int(f.height*scale))), nil
}

type fakeOCR struct {
	unavailable error
	words       []ocr.Word
	imageWidth  int
	err         error
	checks      atomic.Int32
	calls       atomic.Int32
}

func (f *fakeOCR) Available(ctx context.Context) error {
	f.checks.Add(1)
	return f.unavailable
}

func (f *fakeOCR) ProcessImage(ctx context.Context, img []byte, pageNumber int) (*ocr.OCRResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.OCRResult{Words: f.words, ImageWidth: f.imageWidth}, nil
}

func rect(x0, y0, x1, y1 float64) *layout.Rect {
	return &layout.Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func texts(units []layout.TextUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Text
	}
	return out
}

func TestFromSpans(t *testing.T) {
	spans := []render.Span{
		{Text: "Merhaba", BBox: rect(100, 100, 200, 120), Size: 12, Font: "Times-Bold"},
		{Text: "   ", BBox: rect(0, 0, 10, 10), Size: 12},
		{Text: "Dünya", Origin: &layout.Point{X: 50, Y: 300}, Size: 10},
		{Text: "Kayıp", Size: 0},
		{Text: "Toplam", Origin: &layout.Point{X: 20, Y: 40}, Advance: 37.5, Size: 10},
	}

	units := FromSpans(spans)
	require.Len(t, units, 4, "blank spans are dropped")

	assert.Equal(t, layout.Rect{X0: 100, Y0: 100, X1: 200, Y1: 120}, units[0].BBox)
	assert.Equal(t, 12.0, units[0].FontSize)
	assert.Equal(t, layout.CanonicalFont, units[0].FontName, "font families are normalized")

	origin := units[1].BBox
	assert.InDelta(t, 50, origin.X0, 1e-9)
	assert.InDelta(t, 290, origin.Y0, 1e-9)
	assert.InDelta(t, 50+5*10*0.6, origin.X1, 1e-9)
	assert.InDelta(t, 303, origin.Y1, 1e-9)

	assert.Equal(t, placeholderBox, units[2].BBox)
	assert.Equal(t, layout.DefaultFontSize, units[2].FontSize)

	assert.InDelta(t, 57.5, units[3].BBox.X1, 1e-9, "a measured advance replaces the estimate")
}

func TestFromWords(t *testing.T) {
	words := []ocr.Word{
		{Text: "Fatura", Left: 300, Top: 600, Width: 250, Height: 50},
		{Text: " ", Left: 0, Top: 0, Width: 5, Height: 5},
	}
	units := FromWords(words, 72.0/300)
	require.Len(t, units, 1)
	assert.InDelta(t, 72, units[0].BBox.X0, 1e-9)
	assert.InDelta(t, 144, units[0].BBox.Y0, 1e-9)
	assert.InDelta(t, 132, units[0].BBox.X1, 1e-9)
	assert.Equal(t, OCRFontSize, units[0].FontSize)
}

func TestPageVectorPath(t *testing.T) {
	src := &fakeSource{
		width: 612, height: 792,
		spans: []render.Span{{Text: "Merhaba", BBox: rect(100, 100, 200, 120), Size: 12}},
		plain: "Merhaba",
	}
	provider := &fakeOCR{}
	e := New(src, provider, Options{})

	units, outcome := e.Page(context.Background(), 0)
	assert.Equal(t, []string{"Merhaba"}, texts(units))
	assert.Equal(t, stage.Extracted, outcome.Status)
	assert.Zero(t, provider.calls.Load(), "OCR is not used when the text layer has text")
}

func TestPagePlainTextFallback(t *testing.T) {
	src := &fakeSource{width: 612, height: 792, plain: "  Sayfa metni  \n"}
	e := New(src, nil, Options{})

	units, outcome := e.Page(context.Background(), 0)
	require.Len(t, units, 1)
	assert.Equal(t, "Sayfa metni", units[0].Text)
	assert.Equal(t, layout.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}, units[0].BBox)
	assert.Equal(t, PlainTextFontSize, units[0].FontSize)
	assert.Equal(t, stage.Extracted, outcome.Status)
}

func TestPageOCRRequested(t *testing.T) {
	src := &fakeSource{
		width: 612, height: 792,
		spans: []render.Span{{Text: "ignored", BBox: rect(0, 0, 10, 10), Size: 12}},
	}
	provider := &fakeOCR{
		words: []ocr.Word{{Text: "Taranmış", Left: 600, Top: 300, Width: 300, Height: 60}},
	}
	e := New(src, provider, Options{UseOCR: true, OCRDPI: 144})

	units, outcome := e.Page(context.Background(), 0)
	require.Len(t, units, 1)
	assert.Equal(t, "Taranmış", units[0].Text)
	assert.InDelta(t, 300, units[0].BBox.X0, 1e-9, "pixels at 144 dpi map to half as many points")
	assert.InDelta(t, 150, units[0].BBox.Y0, 1e-9)
	assert.Equal(t, 144.0, src.rasterDPI)
	assert.Equal(t, stage.Extracted, outcome.Status)
}

func TestPageOCRUsesReportedImageWidth(t *testing.T) {
	src := &fakeSource{width: 600, height: 800}
	provider := &fakeOCR{
		words:      []ocr.Word{{Text: "Metin", Left: 100, Top: 100, Width: 100, Height: 20}},
		imageWidth: 1200,
	}
	e := New(src, provider, Options{UseOCR: true, OCRDPI: 72})

	units, _ := e.Page(context.Background(), 0)
	require.Len(t, units, 1)
	assert.InDelta(t, 50, units[0].BBox.X0, 1e-9)
}

func TestPageOCRUnavailableDegrades(t *testing.T) {
	src := &fakeSource{
		width: 612, height: 792,
		spans: []render.Span{{Text: "Merhaba", BBox: rect(100, 100, 200, 120), Size: 12}},
	}
	provider := &fakeOCR{unavailable: errors.New("tesseract not installed")}
	e := New(src, provider, Options{UseOCR: true})

	for page := 0; page < 3; page++ {
		units, outcome := e.Page(context.Background(), page)
		assert.Equal(t, []string{"Merhaba"}, texts(units))
		assert.Equal(t, stage.Degraded, outcome.Status)
		assert.Contains(t, outcome.Reason, "OCR unavailable")
	}
	assert.Equal(t, int32(1), provider.checks.Load(), "availability is checked once per job")
	assert.Zero(t, provider.calls.Load())
}

func TestPageOCRFailureDegrades(t *testing.T) {
	src := &fakeSource{
		width: 612, height: 792,
		spans: []render.Span{{Text: "Merhaba", BBox: rect(100, 100, 200, 120), Size: 12}},
	}
	e := New(src, &fakeOCR{err: errors.New("timeout")}, Options{UseOCR: true, OCRDPI: 72})

	units, outcome := e.Page(context.Background(), 0)
	assert.Equal(t, []string{"Merhaba"}, texts(units))
	assert.Equal(t, stage.Degraded, outcome.Status)
	assert.Contains(t, outcome.Reason, "timeout")
}

func TestPageAutomaticOCR(t *testing.T) {
	src := &fakeSource{width: 612, height: 792}
	provider := &fakeOCR{words: []ocr.Word{{Text: "Tarama", Left: 0, Top: 0, Width: 300, Height: 50}}}
	e := New(src, provider, Options{OCRDPI: 72})

	units, outcome := e.Page(context.Background(), 0)
	assert.Equal(t, []string{"Tarama"}, texts(units))
	assert.Equal(t, stage.Extracted, outcome.Status)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestPageTextless(t *testing.T) {
	tests := []struct {
		name     string
		provider ocr.Provider
		useOCR   bool
	}{
		{"no OCR engine", nil, false},
		{"OCR unavailable", &fakeOCR{unavailable: errors.New("missing")}, false},
		{"OCR finds nothing", &fakeOCR{}, false},
		{"OCR requested finds nothing", &fakeOCR{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(&fakeSource{width: 612, height: 792}, tt.provider, Options{UseOCR: tt.useOCR, OCRDPI: 72})
			units, outcome := e.Page(context.Background(), 0)
			assert.Empty(t, units)
			assert.NotEqual(t, stage.Failed, outcome.Status, "a textless page is not an error")
		})
	}
}

func TestPageOCRWithoutWordsUsesTextLayer(t *testing.T) {
	src := &fakeSource{
		width: 612, height: 792,
		spans: []render.Span{{Text: "Merhaba", BBox: rect(100, 100, 200, 120), Size: 12}},
	}
	provider := &fakeOCR{}
	e := New(src, provider, Options{UseOCR: true, OCRDPI: 72})

	units, outcome := e.Page(context.Background(), 0)
	assert.Equal(t, []string{"Merhaba"}, texts(units))
	assert.Equal(t, stage.Extracted, outcome.Status)
	assert.Equal(t, int32(1), provider.calls.Load(), "no second OCR pass")
}

func TestPageSpanErrorFallsBack(t *testing.T) {
	src := &fakeSource{width: 612, height: 792, spansErr: errors.New("broken html"), plain: "Düz metin"}
	e := New(src, nil, Options{})

	units, outcome := e.Page(context.Background(), 0)
	assert.Equal(t, []string{"Düz metin"}, texts(units))
	assert.Equal(t, stage.Degraded, outcome.Status)
}
