// Package reconstruct composes the output document: every source page is
// imported unchanged and each translated group is painted over with its
// inferred background and redrawn with the fitted translation.
package reconstruct

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	fpdi "github.com/phpdave11/gofpdi"
	"github.com/sirupsen/logrus"

	"pdf-translator/internal/layout"
	"pdf-translator/internal/render"
	"pdf-translator/internal/stage"
)

var log = logrus.New()

// SetLogLevel sets the logging level for the reconstruct package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

const (
	DefaultColorDPI = 72.0

	fontFamily = "Translated"
)

// Source is the part of the rendering engine the reconstructor needs.
type Source interface {
	NumPage() int
	PageSize(page int) (float64, float64, error)
	Raster(page int, dpi float64) (*image.RGBA, error)
}

// Options controls how pages are drawn.
type Options struct {
	// ColorDPI is the resolution of the raster sampled for colors.
	ColorDPI float64
	// FontPath is an optional TrueType font with full Unicode coverage.
	// The core Helvetica font with Windows-1252 text is used otherwise.
	FontPath string
}

// Report summarizes what was drawn.
type Report struct {
	Pages     int             `json:"pages"`
	Groups    int             `json:"groups"`
	Overflows int             `json:"overflows"`
	Outcomes  []stage.Outcome `json:"outcomes,omitempty"`
}

// Reconstruct writes the translated document to out. sourceData is the
// original PDF, src renders it. Pages are emitted in document order and the
// context is checked between pages.
func Reconstruct(ctx context.Context, sourceData []byte, src Source, doc layout.Document, opts Options, out io.Writer) (report Report, err error) {
	if opts.ColorDPI <= 0 {
		opts.ColorDPI = DefaultColorDPI
	}

	// The page importer panics on malformed input
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page composition failed: %v", r)
		}
	}()

	pdf, encode := newPDF(opts.FontPath)
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(sourceData))
	measurer := fpdfMeasurer{pdf: pdf, encode: encode}
	box := importBox(sourceData)

	sourcePages := src.NumPage()
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logger := log.WithField("page", page.Index)
		if page.Index < 0 || page.Index >= sourcePages {
			logger.WithField("source_pages", sourcePages).Warn("Page beyond the source document, skipping")
			report.Outcomes = append(report.Outcomes, stage.Degrade(stage.Reconstruct, page.Index, "page beyond source page count %d", sourcePages))
			continue
		}

		width, height, err := src.PageSize(page.Index)
		if err != nil {
			return report, err
		}

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
		tpl := importer.ImportPageFromStream(pdf, &rs, page.Index+1, box)
		importer.UseImportedTemplate(pdf, tpl, 0, 0, width, height)
		report.Pages++

		if len(page.Groups) == 0 {
			logger.Debug("No text on page, keeping it as is")
			report.Outcomes = append(report.Outcomes, stage.Ok(stage.Reconstruct, page.Index))
			continue
		}

		var raster image.Image
		if img, err := src.Raster(page.Index, opts.ColorDPI); err != nil {
			logger.WithError(err).Warn("Could not render page for color sampling, using white background")
			report.Outcomes = append(report.Outcomes, stage.Degrade(stage.Reconstruct, page.Index, "no raster for colors: %v", err))
		} else {
			raster = img
		}

		overflows := 0
		for i, group := range page.Groups {
			fitted, err := drawGroup(pdf, measurer, encode, raster, opts.ColorDPI/72, width, group)
			if err != nil {
				return report, fmt.Errorf("error drawing group %d of page %d: %w", i, page.Index, err)
			}
			if fitted.Overflow {
				overflows++
				logger.WithFields(logrus.Fields{
					"group":     i,
					"font_size": fitted.FontSize,
				}).Warn("Translation does not fit its box, drawn as a single line")
			}
		}
		report.Groups += len(page.Groups)
		report.Overflows += overflows

		if overflows > 0 {
			report.Outcomes = append(report.Outcomes, stage.Degrade(stage.Layout, page.Index, "%d of %d groups overflow their box", overflows, len(page.Groups)))
		} else {
			report.Outcomes = append(report.Outcomes, stage.Ok(stage.Layout, page.Index))
		}
		logger.WithFields(logrus.Fields{
			"groups":    len(page.Groups),
			"overflows": overflows,
		}).Debug("Page reconstructed")
	}

	if pdf.Err() {
		return report, fmt.Errorf("error composing document: %w", pdf.Error())
	}
	if err := pdf.Output(out); err != nil {
		return report, fmt.Errorf("error writing document: %w", err)
	}
	return report, nil
}

// importBox picks the page box matching the page sizes reported by the
// renderer, the crop box when the source sets one. The importer reads the
// boxes of the first page for every page.
func importBox(sourceData []byte) string {
	rs := io.ReadSeeker(bytes.NewReader(sourceData))
	reader := fpdi.NewImporter()
	reader.SetSourceStream(&rs)
	crop := reader.GetPageSizes()[1]["/CropBox"]
	if crop["w"] > 0 && crop["h"] > 0 {
		return "/CropBox"
	}
	return "/MediaBox"
}

// newPDF creates the output document with the font used for translations.
func newPDF(fontPath string) (*fpdf.Fpdf, encoder) {
	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err == nil {
			pdf := fpdf.New("P", "pt", "", "")
			pdf.AddUTF8FontFromBytes(fontFamily, "", data)
			pdf.SetFont(fontFamily, "", layout.DefaultFontSize)
			if !pdf.Err() {
				pdf.SetAutoPageBreak(false, 0)
				return pdf, identity
			}
			err = pdf.Error()
		}
		log.WithError(err).WithField("font_path", fontPath).Warn("Could not load font, using Helvetica")
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetFont(layout.CanonicalFont, "", layout.DefaultFontSize)
	pdf.SetAutoPageBreak(false, 0)
	return pdf, render.CP1252
}

func drawGroup(pdf *fpdf.Fpdf, m layout.Measurer, encode encoder, raster image.Image, scale, pageWidth float64, group layout.TranslatedGroup) (layout.FittedLayout, error) {
	bbox := group.BBox
	palette := layout.InferColors(raster, bbox, scale)
	align := layout.ClassifyAlignment(bbox, pageWidth)
	fitted := layout.Fit(m, group.TranslatedText, bbox.Width()*layout.WidthSafety, bbox.Height(), group.FontSize)

	r, g, b := palette.Background.RGB255()
	pdf.SetFillColor(int(r), int(g), int(b))
	pdf.Rect(bbox.X0, bbox.Y0, bbox.Width(), bbox.Height(), "F")

	r, g, b = palette.Foreground.RGB255()
	pdf.SetTextColor(int(r), int(g), int(b))
	pdf.SetFontSize(fitted.FontSize)
	for _, line := range fitted.Place(bbox, align) {
		for _, word := range line.Words {
			pdf.Text(word.X, line.Baseline, encode(word.Text))
		}
	}

	if pdf.Err() {
		return fitted, pdf.Error()
	}
	return fitted, nil
}
