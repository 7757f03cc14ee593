// Package render wraps the MuPDF page renderer: page geometry, rasterization
// and positioned text of a source document.
package render

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogLevel sets the logging level for the render package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

// Document is an open source document. It is safe for concurrent use; calls
// into libmupdf are serialized.
type Document struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string

	// content stream reader for glyph advances, opened on first use
	glyphMu   sync.Mutex
	glyphFile *os.File
	glyphs    *pdf.Reader
	glyphErr  error
}

// Open opens the document at path.
func Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	log.WithFields(logrus.Fields{
		"path":  path,
		"pages": doc.NumPage(),
	}).Debug("Opened document")
	return &Document{doc: doc, path: path}, nil
}

// Path returns the file the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// NumPage returns the page count.
func (d *Document) NumPage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.NumPage()
}

// PageSize returns the page width and height in points, as displayed (rotation applied).
func (d *Document) PageSize(page int) (float64, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.doc.Bound(page)
	if err != nil {
		return 0, 0, fmt.Errorf("error reading bounds of page %d: %w", page, err)
	}
	return float64(b.Dx()), float64(b.Dy()), nil
}

// Raster renders the page at the given resolution.
func (d *Document) Raster(page int, dpi float64) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("error rendering page %d at %.0f dpi: %w", page, dpi, err)
	}
	return img, nil
}

// PlainText returns the unpositioned text of the page.
func (d *Document) PlainText(page int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, err := d.doc.Text(page)
	if err != nil {
		return "", fmt.Errorf("error reading text of page %d: %w", page, err)
	}
	return text, nil
}

// Spans returns the positioned text runs of the page in engine order. Run
// widths come from the glyph advances of the content stream when the fonts
// carry width tables, and from core font metrics otherwise.
func (d *Document) Spans(page int) ([]Span, error) {
	d.mu.Lock()
	markup, err := d.doc.HTML(page, false)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("error reading text layout of page %d: %w", page, err)
	}
	spans, err := ParseHTMLSpans(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	runs, err := d.glyphRuns(page)
	if err != nil {
		log.WithError(err).WithField("page", page).Debug("Glyph advances unavailable, using font metrics")
		return spans, nil
	}
	fitToRuns(spans, runs)
	return spans, nil
}

// Close releases the underlying document.
func (d *Document) Close() error {
	d.glyphMu.Lock()
	if d.glyphFile != nil {
		d.glyphFile.Close()
		d.glyphFile, d.glyphs = nil, nil
	}
	d.glyphMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}
