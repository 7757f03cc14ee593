package layout

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fittedText joins the laid out words back together.
func fittedText(l FittedLayout) string {
	var words []string
	for _, line := range l.Lines {
		for _, w := range line.Words {
			words = append(words, w.Text)
		}
	}
	return strings.Join(words, " ")
}

// charMeasurer measures every rune as ratio*size wide.
type charMeasurer struct {
	ratio float64
}

func (m charMeasurer) TextWidth(text string, size float64) (float64, error) {
	return float64(utf8.RuneCountInString(text)) * size * m.ratio, nil
}

type failingMeasurer struct{}

func (failingMeasurer) TextWidth(string, float64) (float64, error) {
	return 0, ErrUnmeasurable
}

// flakyMeasurer fails for sizes above a threshold.
type flakyMeasurer struct {
	charMeasurer
	failAbove float64
	calls     int
}

func (m *flakyMeasurer) TextWidth(text string, size float64) (float64, error) {
	m.calls++
	if size > m.failAbove {
		return 0, fmt.Errorf("glyph metrics unavailable at %.2f", size)
	}
	return m.charMeasurer.TextWidth(text, size)
}

func TestFit(t *testing.T) {
	m := charMeasurer{ratio: 0.5}

	tests := []struct {
		name         string
		text         string
		maxWidth     float64
		maxHeight    float64
		initialSize  float64
		wantSize     float64
		wantLines    []string
		wantOverflow bool
	}{
		{
			name:        "fits at the initial size",
			text:        "Hello",
			maxWidth:    100 * WidthSafety,
			maxHeight:   20,
			initialSize: 12,
			wantSize:    12,
			wantLines:   []string{"Hello"},
		},
		{
			name:        "wraps into two lines",
			text:        "aaaa bbbb cccc",
			maxWidth:    45,
			maxHeight:   30,
			initialSize: 10,
			wantSize:    10,
			wantLines:   []string{"aaaa bbbb", "cccc"},
		},
		{
			name:        "shrinks once",
			text:        "aaaa bbbb cccc",
			maxWidth:    45,
			maxHeight:   22,
			initialSize: 10,
			wantSize:    9,
			wantLines:   []string{"aaaa bbbb", "cccc"},
		},
		{
			name:        "wide word stays alone",
			text:        "Donaudampfschifffahrtsgesellschaft ab",
			maxWidth:    40,
			maxHeight:   100,
			initialSize: 10,
			wantSize:    10,
			wantLines:   []string{"Donaudampfschifffahrtsgesellschaft", "ab"},
		},
		{
			name:         "overflow falls back to one line at the floor",
			text:         "aaaa bbbb cccc dddd eeee ffff",
			maxWidth:     30,
			maxHeight:    5,
			initialSize:  10,
			wantSize:     6,
			wantLines:    []string{"aaaa bbbb"},
			wantOverflow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(m, tt.text, tt.maxWidth, tt.maxHeight, tt.initialSize)
			assert.InDelta(t, tt.wantSize, got.FontSize, 1e-9)
			assert.InDelta(t, tt.wantSize*LineHeightFactor, got.LineHeight, 1e-9)
			assert.Equal(t, tt.wantOverflow, got.Overflow)

			lines := make([]string, len(got.Lines))
			for i, l := range got.Lines {
				words := make([]string, len(l.Words))
				for j, w := range l.Words {
					words[j] = w.Text
				}
				lines[i] = strings.Join(words, " ")
			}
			assert.Equal(t, tt.wantLines, lines)
			assert.LessOrEqual(t, got.Attempts, MaxFitAttempts)
		})
	}
}

func TestFitLongerTranslationShrinks(t *testing.T) {
	m := charMeasurer{ratio: 0.5}
	original := "Merhaba dünya"
	translated := strings.Repeat("Hallo schöne Welt ", 3)
	bbox := Rect{100, 100, 100 + float64(utf8.RuneCountInString(original))*12*0.5, 124}

	got := Fit(m, translated, bbox.Width()*WidthSafety, bbox.Height(), 12)

	assert.Less(t, got.FontSize, 12.0)
	assert.GreaterOrEqual(t, got.FontSize, FloorSize(12))
	if !got.Overflow {
		assert.LessOrEqual(t, got.Height(), bbox.Height())
		assert.Equal(t, strings.Join(strings.Fields(translated), " "), fittedText(got))
	} else {
		assert.Len(t, got.Lines, 1)
		assert.InDelta(t, FloorSize(12), got.FontSize, 1e-9)
	}
}

func TestFitUnmeasurable(t *testing.T) {
	got := Fit(failingMeasurer{}, "eins zwei drei vier", 60, 100, 10)

	require.True(t, got.Overflow)
	require.Len(t, got.Lines, 1)
	assert.InDelta(t, 6.0, got.FontSize, 1e-9)
	assert.NotEmpty(t, got.Lines[0].Words)
	// estimated at 0.6*size per rune, so three words take 50.4pt of the 60pt
	assert.Equal(t, "eins zwei drei", fittedText(got))
	assert.LessOrEqual(t, got.Attempts, MaxFitAttempts)
}

func TestFitRelaxedShrinkOnMeasurementError(t *testing.T) {
	m := &flakyMeasurer{charMeasurer: charMeasurer{ratio: 0.5}, failAbove: 9}
	got := Fit(m, "kurz", 100, 100, 12)

	assert.False(t, got.Overflow)
	// 12 fails, 12*0.8 = 9.6 fails, 9.6*0.8 = 7.68 is measurable and above the floor of 7.2
	assert.InDelta(t, 7.68, got.FontSize, 1e-9)
	assert.Equal(t, 3, got.Attempts)
}

func TestFitEmptyText(t *testing.T) {
	got := Fit(charMeasurer{ratio: 0.5}, "   ", 100, 100, 12)
	assert.Empty(t, got.Lines)
	assert.Equal(t, 12.0, got.FontSize)
	assert.False(t, got.Overflow)
}

func TestFitTerminates(t *testing.T) {
	m := charMeasurer{ratio: 0.55}
	texts := []string{
		"a",
		"Bitte überweisen Sie den Betrag innerhalb von vierzehn Tagen",
		strings.Repeat("Wort ", 200),
	}
	sizes := []float64{0.5, 4, 6, 11, 36, 200}
	boxes := [][2]float64{{1, 1}, {20, 8}, {100, 14}, {500, 700}}

	for _, text := range texts {
		for _, size := range sizes {
			for _, box := range boxes {
				got := Fit(m, text, box[0], box[1], size)
				assert.LessOrEqual(t, got.Attempts, MaxFitAttempts)
				assert.Greater(t, got.FontSize, 0.0)
				assert.LessOrEqual(t, got.FontSize, size)
				assert.NotEmpty(t, got.Lines)
			}
		}
	}
}

func TestFitMonotonicInHeight(t *testing.T) {
	m := charMeasurer{ratio: 0.5}
	text := "Sehr geehrte Damen und Herren, anbei erhalten Sie die Rechnung"

	prev := MaxFitAttempts + 1
	for height := 5.0; height <= 200; height += 5 {
		got := Fit(m, text, 80, height, 14)
		assert.LessOrEqual(t, got.Attempts, prev, "height %.0f", height)
		prev = got.Attempts
	}
}

func TestFloorSize(t *testing.T) {
	assert.InDelta(t, 7.2, FloorSize(12), 1e-9)
	assert.InDelta(t, 6, FloorSize(8), 1e-9)
	assert.InDelta(t, 4, FloorSize(4), 1e-9)
	assert.InDelta(t, 24, FloorSize(40), 1e-9)
}
