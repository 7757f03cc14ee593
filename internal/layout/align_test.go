package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAlignment(t *testing.T) {
	const pageWidth = 600.0
	tests := []struct {
		name string
		bbox Rect
		want Alignment
	}{
		{"left column", Rect{50, 100, 250, 120}, AlignLeft},
		{"right column", Rect{400, 100, 560, 120}, AlignRight},
		{"centered title", Rect{200, 50, 400, 80}, AlignCenter},
		{"starts in the middle but runs to the edge", Rect{200, 100, 500, 120}, AlignLeft},
		{"boundary at 60 percent is not right", Rect{360, 100, 400, 120}, AlignCenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAlignment(tt.bbox, pageWidth))
		})
	}
}

func TestPlace(t *testing.T) {
	layout := FittedLayout{
		Lines: []Line{
			{Words: []WordSpan{{"Hello", 25}, {"you", 15}}, Width: 45},
		},
		FontSize:   10,
		LineHeight: 12,
		SpaceWidth: 5,
	}
	bbox := Rect{100, 100, 200, 120}

	tests := []struct {
		align  Alignment
		wantX0 float64
	}{
		{AlignLeft, 100},
		{AlignCenter, 127.5},
		{AlignRight, 155},
	}
	for _, tt := range tests {
		t.Run(tt.align.String(), func(t *testing.T) {
			placed := layout.Place(bbox, tt.align)
			require.Len(t, placed, 1)
			// centered vertically: 100 + (20-12)/2 + 10
			assert.InDelta(t, 114, placed[0].Baseline, 1e-9)
			require.Len(t, placed[0].Words, 2)
			assert.InDelta(t, tt.wantX0, placed[0].Words[0].X, 1e-9)
			assert.InDelta(t, tt.wantX0+30, placed[0].Words[1].X, 1e-9)
		})
	}
}

func TestPlaceTallBlockStartsAtTop(t *testing.T) {
	layout := FittedLayout{
		Lines: []Line{
			{Words: []WordSpan{{"a", 5}}, Width: 5},
			{Words: []WordSpan{{"b", 5}}, Width: 5},
		},
		FontSize:   10,
		LineHeight: 12,
	}
	placed := layout.Place(Rect{0, 50, 100, 60}, AlignLeft)
	require.Len(t, placed, 2)
	assert.InDelta(t, 60, placed[0].Baseline, 1e-9)
	assert.InDelta(t, 72, placed[1].Baseline, 1e-9)
}

func TestPlaceScenarioSingleUnit(t *testing.T) {
	bbox := Rect{100, 100, 200, 120}
	fitted := Fit(charMeasurer{ratio: 0.5}, "Hello", bbox.Width()*WidthSafety, bbox.Height(), 12)
	align := ClassifyAlignment(bbox, 612)

	assert.Equal(t, AlignLeft, align)
	assert.LessOrEqual(t, fitted.FontSize, 12.0)
	placed := fitted.Place(bbox, align)
	require.Len(t, placed, 1)
	assert.Equal(t, "Hello", placed[0].Words[0].Text)
	assert.InDelta(t, 100, placed[0].Words[0].X, 1e-9)
}

func TestPlaceEmpty(t *testing.T) {
	assert.Nil(t, FittedLayout{}.Place(Rect{0, 0, 10, 10}, AlignLeft))
}
