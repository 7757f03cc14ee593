package ocr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Word is one recognized word in pixel space of the submitted image.
type Word struct {
	Text       string
	Left       float64
	Top        float64
	Width      float64
	Height     float64
	Confidence float64
}

// OCRResult holds the output from OCR processing
type OCRResult struct {
	// Plain text output
	Text string

	// Recognized words with their boxes, in reading order
	Words []Word

	// Size of the processed image in pixels, when the provider reports it
	ImageWidth  int
	ImageHeight int

	// Additional provider-specific metadata
	Metadata map[string]string
}

// Provider defines the interface for OCR processing
type Provider interface {
	ProcessImage(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error)

	// Available fails fast when the engine is not installed or not reachable.
	Available(ctx context.Context) error
}

// Config holds the OCR provider configuration
type Config struct {
	// Provider type ("tesseract", "ios_ocr", "azure", "google_docai")
	Provider string

	// Tesseract settings
	TesseractLanguage string // Optional, defaults to "tur"; several languages joined with "+"

	// iOS-OCR-Server settings
	IOSOCRServerURL string

	// Google Document AI settings
	GoogleProjectID   string
	GoogleLocation    string
	GoogleProcessorID string

	// Azure Document Intelligence settings
	AzureEndpoint string
	AzureAPIKey   string
	AzureModelID  string // Optional, defaults to "prebuilt-read"
	AzureTimeout  int    // Optional, defaults to 120 seconds
}

// NewProvider creates a new OCR provider based on configuration
func NewProvider(config Config) (Provider, error) {
	log.Info("Initializing OCR provider: ", config.Provider)

	switch config.Provider {
	case "tesseract", "":
		log.WithField("language", config.TesseractLanguage).Info("Using Tesseract provider")
		return newTesseractProvider(config)

	case "google_docai":
		if config.GoogleProjectID == "" || config.GoogleLocation == "" || config.GoogleProcessorID == "" {
			return nil, fmt.Errorf("missing required Google Document AI configuration")
		}
		log.WithFields(logrus.Fields{
			"location":     config.GoogleLocation,
			"processor_id": config.GoogleProcessorID,
		}).Info("Using Google Document AI provider")
		return newGoogleDocAIProvider(config)

	case "azure":
		if config.AzureEndpoint == "" || config.AzureAPIKey == "" {
			return nil, fmt.Errorf("missing required Azure Document Intelligence configuration")
		}
		return newAzureProvider(config)

	case "ios_ocr":
		if config.IOSOCRServerURL == "" {
			return nil, fmt.Errorf("missing required iOS-OCR-Server configuration (IOS_OCR_SERVER_URL)")
		}
		log.WithField("url", config.IOSOCRServerURL).Info("Using iOS-OCR-Server provider")
		return newIOSOCRProvider(config)

	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", config.Provider)
	}
}

// SetLogLevel sets the logging level for the OCR package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}
