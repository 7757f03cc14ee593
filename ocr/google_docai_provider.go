package ocr

import (
	"context"
	"fmt"
	"math"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GoogleDocAIProvider implements OCR using Google Document AI
type GoogleDocAIProvider struct {
	projectID   string
	location    string
	processorID string
	client      *documentai.DocumentProcessorClient
}

func newGoogleDocAIProvider(config Config) (*GoogleDocAIProvider, error) {
	logger := log.WithFields(logrus.Fields{
		"location":     config.GoogleLocation,
		"processor_id": config.GoogleProcessorID,
	})
	logger.Info("Creating new Google Document AI provider")

	ctx := context.Background()
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.GoogleLocation)

	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		logger.WithError(err).Error("Failed to create Document AI client")
		return nil, fmt.Errorf("error creating Document AI client: %w", err)
	}

	return &GoogleDocAIProvider{
		projectID:   config.GoogleProjectID,
		location:    config.GoogleLocation,
		processorID: config.GoogleProcessorID,
		client:      client,
	}, nil
}

func (p *GoogleDocAIProvider) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", p.projectID, p.location, p.processorID)
}

// Available looks up the configured processor.
func (p *GoogleDocAIProvider) Available(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("document AI client not initialized")
	}
	_, err := p.client.GetProcessor(ctx, &documentaipb.GetProcessorRequest{Name: p.processorName()})
	if err != nil {
		return fmt.Errorf("document AI processor %s is not available: %w", p.processorID, err)
	}
	return nil
}

func (p *GoogleDocAIProvider) ProcessImage(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	logger := log.WithFields(logrus.Fields{
		"project_id":   p.projectID,
		"processor_id": p.processorID,
		"page_number":  pageNumber,
	})
	logger.Debug("Starting Document AI processing")

	mtype := mimetype.Detect(imageContent)
	if !isImageMIMEType(mtype.String()) {
		logger.WithField("mime_type", mtype.String()).Error("Unsupported file type")
		return nil, fmt.Errorf("unsupported file type: %s", mtype.String())
	}

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  imageContent,
				MimeType: mtype.String(),
			},
		},
	}

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		logger.WithError(err).Error("Failed to process document")
		return nil, fmt.Errorf("error processing document: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return nil, fmt.Errorf("received nil response or document from Document AI")
	}
	if resp.Document.Error != nil {
		return nil, fmt.Errorf("document processing error: %s", resp.Document.Error.Message)
	}

	result := &OCRResult{
		Text: resp.Document.GetText(),
		Metadata: map[string]string{
			"provider":     "google_docai",
			"mime_type":    mtype.String(),
			"page_count":   fmt.Sprintf("%d", len(resp.Document.GetPages())),
			"processor_id": p.processorID,
		},
	}
	if pages := resp.Document.GetPages(); len(pages) > 0 {
		page := pages[0]
		result.ImageWidth = int(page.GetDimension().GetWidth())
		result.ImageHeight = int(page.GetDimension().GetHeight())
		result.Words = documentWords(resp.Document.GetText(), page)
		if langs := page.GetDetectedLanguages(); len(langs) > 0 {
			result.Metadata["lang_code"] = langs[0].GetLanguageCode()
		}
	}

	logger.WithField("num_words", len(result.Words)).Info("Successfully processed document")
	return result, nil
}

// documentWords converts the tokens of a page into words. Token vertices are
// normalized to [0,1] and scaled by the page dimension.
func documentWords(text string, page *documentaipb.Document_Page) []Word {
	width := float64(page.GetDimension().GetWidth())
	height := float64(page.GetDimension().GetHeight())

	var words []Word
	for _, token := range page.GetTokens() {
		layout := token.GetLayout()
		var sb strings.Builder
		for _, seg := range layout.GetTextAnchor().GetTextSegments() {
			start, end := seg.GetStartIndex(), seg.GetEndIndex()
			if start < 0 || end > int64(len(text)) || start >= end {
				continue
			}
			sb.WriteString(text[start:end])
		}
		tokenText := strings.TrimSpace(sb.String())
		if tokenText == "" {
			continue
		}

		vertices := layout.GetBoundingPoly().GetNormalizedVertices()
		if len(vertices) == 0 {
			continue
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, v := range vertices {
			minX = math.Min(minX, float64(v.GetX()))
			maxX = math.Max(maxX, float64(v.GetX()))
			minY = math.Min(minY, float64(v.GetY()))
			maxY = math.Max(maxY, float64(v.GetY()))
		}
		words = append(words, Word{
			Text:       tokenText,
			Left:       minX * width,
			Top:        minY * height,
			Width:      (maxX - minX) * width,
			Height:     (maxY - minY) * height,
			Confidence: float64(layout.GetConfidence()) * 100,
		})
	}
	return words
}

// Close releases resources used by the provider
func (p *GoogleDocAIProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
