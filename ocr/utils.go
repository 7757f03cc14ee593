package ocr

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// isImageMIMEType reports whether the OCR engines accept the given type
func isImageMIMEType(mimeType string) bool {
	supportedTypes := map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/tiff": true,
		"image/bmp":  true,
	}
	return supportedTypes[mimeType]
}

// PreprocessImage converts a page raster to a grayscale PNG for recognition.
func PreprocessImage(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to preprocess")
	}
	gray := imaging.Grayscale(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("error encoding page image: %w", err)
	}
	return buf.Bytes(), nil
}
