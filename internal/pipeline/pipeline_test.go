package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/render"
	"pdf-translator/internal/stage"
)

type stubTranslator struct {
	mu        sync.Mutex
	calls     int
	failCalls map[int]bool
	words     map[string]string
}

func (s *stubTranslator) Translate(ctx context.Context, sourceLang, targetLang string, texts []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failCalls[s.calls] {
		return nil, fmt.Errorf("service unavailable on call %d", s.calls)
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		if t, ok := s.words[text]; ok {
			out[i] = t
		} else {
			out[i] = strings.ToUpper(text)
		}
	}
	return out, nil
}

type line struct {
	text string
	x, y float64
}

// writePDF writes an A4 document with the given lines on its first page and
// blank further pages.
func writePDF(t *testing.T, dir string, pages int, lines []line) string {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for p := 0; p < pages; p++ {
		pdf.AddPage()
		if p == 0 {
			for _, l := range lines {
				pdf.Text(l.x, l.y, l.text)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	path := filepath.Join(dir, "belge.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PacingDelay = -1
	return cfg
}

func pageText(t *testing.T, path string, page int) string {
	t.Helper()
	doc, err := render.Open(path)
	require.NoError(t, err)
	defer doc.Close()
	text, err := doc.PlainText(page)
	require.NoError(t, err)
	return text
}

func TestRunTranslatesDocument(t *testing.T) {
	dir := t.TempDir()
	input := writePDF(t, dir, 1, []line{{"Merhaba", 100, 112}})
	translator := &stubTranslator{words: map[string]string{"Merhaba": "Hello"}}

	var progress [][2]int
	result, err := New(translator, nil, testConfig()).Run(context.Background(), Request{
		InputPath:  input,
		SourceLang: "TR",
		TargetLang: "EN",
		OutputDir:  filepath.Join(dir, "out"),
		Progress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out", "translated_belge.pdf"), result.OutputPath)
	assert.Equal(t, ModeTranslated, result.Mode)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 1, result.Groups)
	assert.Zero(t, result.Overflows)
	assert.Equal(t, [][2]int{{1, 1}}, progress)

	info, err := os.Stat(result.OutputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(1000))
	assert.Contains(t, pageText(t, result.OutputPath, 0), "Hello")

	leftovers, err := filepath.Glob(filepath.Join(dir, "out", ".translated-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files are removed")
}

func TestRunCoversWholeSourceLine(t *testing.T) {
	dir := t.TempDir()
	input := writePDF(t, dir, 1, []line{{"Merhaba dunya WWWWWWWW", 100, 110}})
	translator := &stubTranslator{words: map[string]string{"Merhaba dunya WWWWWWWW": "Hi"}}

	result, err := New(translator, nil, testConfig()).Run(context.Background(), Request{
		InputPath:  input,
		SourceLang: "TR",
		TargetLang: "EN",
		OutputDir:  filepath.Join(dir, "out"),
	})
	require.NoError(t, err)
	require.Equal(t, ModeTranslated, result.Mode)

	doc, err := render.Open(result.OutputPath)
	require.NoError(t, err)
	defer doc.Close()
	img, err := doc.Raster(0, 72)
	require.NoError(t, err)

	// The wide glyphs end at x=277.3; "Hi" ends long before x=200.
	var dark int
	for y := 96; y < 116; y++ {
		for x := 200; x < 300; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				dark++
			}
		}
	}
	assert.Zero(t, dark, "source glyphs remain visible to the right of the translation")
	assert.Contains(t, pageText(t, result.OutputPath, 0), "Hi")
}

func TestRunBatchFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	input := writePDF(t, dir, 1, []line{
		{"Birinci", 72, 100},
		{"Ikinci", 72, 300},
	})
	translator := &stubTranslator{
		failCalls: map[int]bool{1: true},
		words:     map[string]string{"Birinci": "First", "Ikinci": "Second"},
	}
	cfg := testConfig()
	cfg.BatchSize = 1

	result, err := New(translator, nil, cfg).Run(context.Background(), Request{
		InputPath:  input,
		SourceLang: "TR",
		TargetLang: "EN",
		OutputDir:  dir,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, translator.calls)
	assert.Equal(t, ModeTranslated, result.Mode)
	assert.Equal(t, stage.Degraded, result.Status)
	assert.Contains(t, result.Conditions, ErrorTranslationService)

	text := pageText(t, result.OutputPath, 0)
	assert.Contains(t, text, "Birinci", "failed batch keeps the original text")
	assert.Contains(t, text, "Second")
	assert.NotContains(t, text, "First")
}

func TestRunTextlessDocumentIsCopied(t *testing.T) {
	dir := t.TempDir()
	input := writePDF(t, dir, 2, nil)
	translator := &stubTranslator{}

	result, err := New(translator, nil, testConfig()).Run(context.Background(), Request{
		InputPath:  input,
		SourceLang: "TR",
		TargetLang: "EN",
		OutputDir:  dir,
	})
	require.NoError(t, err)
	assert.Equal(t, ModeCopied, result.Mode)
	assert.Equal(t, []ErrorCode{ErrorExtractionEmpty}, result.Conditions)
	assert.Zero(t, translator.calls)

	want, err := os.ReadFile(input)
	require.NoError(t, err)
	got, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, want, got, "output is a byte-for-byte copy")
}

func TestRunInvalidOutputFallsBackToCopy(t *testing.T) {
	dir := t.TempDir()
	input := writePDF(t, dir, 1, []line{{"Merhaba", 100, 112}})
	cfg := testConfig()
	cfg.MinOutputSize = 1 << 30

	result, err := New(&stubTranslator{}, nil, cfg).Run(context.Background(), Request{
		InputPath:  input,
		SourceLang: "TR",
		TargetLang: "EN",
		OutputDir:  dir,
	})
	require.NoError(t, err)
	assert.Equal(t, ModeCopied, result.Mode)
	assert.Equal(t, stage.Failed, result.Status)
	assert.Contains(t, result.Conditions, ErrorOutputInvalid)

	want, err := os.ReadFile(input)
	require.NoError(t, err)
	got, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunSourceUnreadable(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	text := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(text, []byte("just some notes, not a document"), 0644))

	tests := []struct {
		name  string
		input string
	}{
		{"missing file", filepath.Join(dir, "missing.pdf")},
		{"empty file", empty},
		{"not a pdf", text},
		{"directory", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&stubTranslator{}, nil, testConfig()).TranslateDocument(
				context.Background(), tt.input, "TR", "EN", filepath.Join(dir, "out"), false)
			require.Error(t, err)
			assert.Equal(t, ErrorSourceUnreadable, CodeOf(err))

			_, statErr := os.Stat(filepath.Join(dir, "out", "translated_"+filepath.Base(tt.input)))
			assert.True(t, os.IsNotExist(statErr), "no output is written")
		})
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	input := writePDF(t, dir, 3, []line{{"Merhaba", 100, 112}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&stubTranslator{}, nil, testConfig()).TranslateDocument(ctx, input, "TR", "EN", dir, false)
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(OutputPath(input, dir))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRequiresLanguages(t *testing.T) {
	_, err := New(&stubTranslator{}, nil, testConfig()).TranslateDocument(context.Background(), "x.pdf", "", "EN", t.TempDir(), false)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "translated_rapor.pdf"), OutputPath("/tmp/uploads/rapor.pdf", "out"))
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("job failed: %w", NewSourceUnreadableError("a.pdf", errors.New("gone")))
	assert.Equal(t, ErrorSourceUnreadable, CodeOf(err))
	assert.Contains(t, err.Error(), "SOURCE_UNREADABLE")
	assert.Contains(t, err.Error(), "gone")
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestConditions(t *testing.T) {
	outcomes := []stage.Outcome{
		stage.Degrade(stage.Extract, 0, "OCR unavailable, using the text layer: missing"),
		stage.Degrade(stage.Extract, 1, "text layer unreadable"),
		stage.Degrade(stage.Translate, 0, "1 of 2 batches fell back"),
		stage.Degrade(stage.Translate, 1, "1 of 1 batches fell back"),
		stage.Ok(stage.Layout, 0),
		stage.Degrade(stage.Layout, 1, "1 of 3 groups overflow their box"),
	}
	assert.Equal(t, []ErrorCode{ErrorOCRUnavailable, ErrorTranslationService, ErrorLayoutOverflow}, conditions(outcomes))
	assert.Empty(t, conditions([]stage.Outcome{stage.Ok(stage.Extract, 0)}))
}

func TestCopySource(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "translated_a.pdf")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0644))

	require.NoError(t, copySource([]byte("%PDF-1.4 new"), target))
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 new", string(got))

	err = copySource([]byte("data"), filepath.Join(dir, "missing", "out.pdf"))
	assert.Error(t, err)
}
