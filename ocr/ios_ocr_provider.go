package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// IOSOCRProvider implements OCR using iOS-OCR-Server
type IOSOCRProvider struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// newIOSOCRProvider creates a new iOS-OCR-Server provider
func newIOSOCRProvider(config Config) (*IOSOCRProvider, error) {
	logger := log.WithFields(logrus.Fields{
		"url": config.IOSOCRServerURL,
	})
	logger.Info("Creating new iOS-OCR-Server provider")

	if config.IOSOCRServerURL == "" {
		logger.Error("Missing required iOS-OCR-Server URL")
		return nil, fmt.Errorf("missing required iOS-OCR-Server URL")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Logger = logger

	return &IOSOCRProvider{
		baseURL:    strings.TrimRight(config.IOSOCRServerURL, "/"),
		httpClient: client,
	}, nil
}

// Available checks that the server answers at all.
func (p *IOSOCRProvider) Available(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", p.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("iOS-OCR-Server is not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("iOS-OCR-Server returned status %d", resp.StatusCode)
	}
	return nil
}

// ProcessImage sends the image content to the iOS-OCR-Server for OCR
func (p *IOSOCRProvider) ProcessImage(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	logger := log.WithFields(logrus.Fields{
		"provider":    "ios_ocr",
		"url":         p.baseURL,
		"page_number": pageNumber,
		"data_size":   len(imageContent),
	})
	logger.Debug("Starting iOS-OCR-Server processing")

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", fmt.Sprintf("page-%d.png", pageNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err = io.Copy(part, bytes.NewReader(imageContent)); err != nil {
		return nil, fmt.Errorf("failed to copy image content: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", p.baseURL+"/ocr", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Error("Failed to send request to iOS-OCR-Server")
		return nil, fmt.Errorf("error sending request to iOS-OCR-Server: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(respBodyBytes),
		}).Error("iOS-OCR-Server returned non-200 status")
		return nil, fmt.Errorf("iOS-OCR-Server returned status %d: %s", resp.StatusCode, string(respBodyBytes))
	}

	var ocrResponse iosOCRResponse
	if err = json.Unmarshal(respBodyBytes, &ocrResponse); err != nil {
		logger.WithError(err).WithField("response", string(respBodyBytes)).Error("Failed to parse iOS-OCR-Server response")
		return nil, fmt.Errorf("failed to parse iOS-OCR-Server response: %w", err)
	}

	if !ocrResponse.Success {
		logger.WithField("message", ocrResponse.Message).Error("iOS-OCR-Server processing failed")
		return nil, fmt.Errorf("iOS-OCR-Server processing failed: %s", ocrResponse.Message)
	}

	result := &OCRResult{
		Text:        ocrResponse.OCRResult,
		Words:       ocrResponse.words(),
		ImageWidth:  ocrResponse.ImageWidth,
		ImageHeight: ocrResponse.ImageHeight,
		Metadata: map[string]string{
			"provider":     "ios_ocr",
			"image_width":  fmt.Sprintf("%d", ocrResponse.ImageWidth),
			"image_height": fmt.Sprintf("%d", ocrResponse.ImageHeight),
			"num_boxes":    fmt.Sprintf("%d", len(ocrResponse.OCRBoxes)),
		},
	}

	logger.WithFields(logrus.Fields{
		"text_length": len(result.Text),
		"num_words":   len(result.Words),
	}).Info("Successfully processed image with iOS-OCR-Server")
	return result, nil
}

// iosOCRResponse is the JSON body of a POST /ocr
type iosOCRResponse struct {
	Message     string      `json:"message"`
	ImageWidth  int         `json:"image_width"`
	OCRResult   string      `json:"ocr_result"`
	OCRBoxes    []iosOCRBox `json:"ocr_boxes"`
	Success     bool        `json:"success"`
	ImageHeight int         `json:"image_height"`
}

// iosOCRBox is one recognized line with its box in image pixels or image fractions
type iosOCRBox struct {
	Text string  `json:"text"`
	W    float64 `json:"w"`
	X    float64 `json:"x"`
	H    float64 `json:"h"`
	Y    float64 `json:"y"`
}

// words converts the boxes to pixel space. Boxes given as fractions of the
// image (every coordinate within [0,1]) are scaled by the image size.
func (r iosOCRResponse) words() []Word {
	normalized := len(r.OCRBoxes) > 0 && r.ImageWidth > 0 && r.ImageHeight > 0
	for _, b := range r.OCRBoxes {
		if b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1 {
			normalized = false
			break
		}
	}
	sx, sy := 1.0, 1.0
	if normalized {
		sx, sy = float64(r.ImageWidth), float64(r.ImageHeight)
	}

	words := make([]Word, 0, len(r.OCRBoxes))
	for _, b := range r.OCRBoxes {
		words = append(words, Word{
			Text:   b.Text,
			Left:   b.X * sx,
			Top:    b.Y * sy,
			Width:  b.W * sx,
			Height: b.H * sy,
		})
	}
	return words
}
