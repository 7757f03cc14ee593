package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(text string, x0, y0, x1, y1, size float64) TextUnit {
	u, _ := NewTextUnit(text, Rect{x0, y0, x1, y1}, size)
	return u
}

// regroup groups already-grouped output again, treating every group as one unit.
func regroup(groups []TextGroup, maxDistance float64) []TextGroup {
	units := make([]TextUnit, len(groups))
	for i, g := range groups {
		units[i] = TextUnit{Text: g.Text, BBox: g.BBox, FontSize: g.FontSize, FontName: g.FontName}
	}
	return Group(units, maxDistance)
}

func TestGroup(t *testing.T) {
	tests := []struct {
		name      string
		units     []TextUnit
		wantTexts []string
	}{
		{
			name:      "empty input",
			units:     nil,
			wantTexts: []string{},
		},
		{
			name:      "single unit",
			units:     []TextUnit{unit("Merhaba", 100, 100, 200, 120, 12)},
			wantTexts: []string{"Merhaba"},
		},
		{
			name: "same line merge",
			units: []TextUnit{
				unit("Merhaba", 10, 100, 50, 112, 12),
				unit("dünya", 55, 101, 90, 113, 12),
			},
			wantTexts: []string{"Merhaba dünya"},
		},
		{
			name: "next line merge",
			units: []TextUnit{
				unit("Birinci satır", 10, 100, 80, 112, 12),
				unit("ikinci satır", 12, 115, 70, 127, 12),
			},
			wantTexts: []string{"Birinci satır ikinci satır"},
		},
		{
			name: "distant units stay apart",
			units: []TextUnit{
				unit("Başlık", 10, 100, 80, 112, 12),
				unit("Dipnot", 300, 400, 360, 410, 8),
			},
			wantTexts: []string{"Başlık", "Dipnot"},
		},
		{
			name: "gap too wide on the same line",
			units: []TextUnit{
				unit("Sol", 10, 100, 40, 112, 12),
				unit("Sağ", 400, 100, 440, 112, 12),
			},
			wantTexts: []string{"Sol", "Sağ"},
		},
		{
			name: "previous unit decides, not the group",
			units: []TextUnit{
				unit("A", 10, 100, 50, 112, 12),
				unit("B", 60, 100, 100, 112, 12),
				// aligned with A but compared against B
				unit("C", 12, 116, 50, 128, 12),
			},
			wantTexts: []string{"A B", "C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Group(tt.units, DefaultMaxDistance)
			require.NotNil(t, groups)
			texts := make([]string, len(groups))
			for i, g := range groups {
				texts[i] = g.Text
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestGroupEnvelopeAndProvenance(t *testing.T) {
	units := []TextUnit{
		unit("Fatura", 50, 40, 120, 58, 18),
		unit("Tarih", 52, 60, 90, 72, 10),
		unit("12.03.2024", 95, 61, 160, 73, 10),
		unit("Toplam", 400, 700, 450, 712, 11),
		unit("1.250,00", 400, 715, 450, 725, 11),
	}

	groups := Group(units, DefaultMaxDistance)
	require.Len(t, groups, 2)

	total := 0
	for _, g := range groups {
		require.NotEmpty(t, g.Members)
		env := g.Members[0].BBox
		texts := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			env = env.Union(m.BBox)
			texts = append(texts, m.Text)
		}
		assert.Equal(t, env, g.BBox, "bbox must be the exact member envelope")
		assert.Equal(t, strings.Join(texts, " "), g.Text, "text must round-trip from members")
		assert.Equal(t, g.Members[0].FontSize, g.FontSize, "font size comes from the first member")
		assert.Equal(t, CanonicalFont, g.FontName)
		total += len(g.Members)
	}
	assert.Equal(t, len(units), total)
	assert.Equal(t, Rect{50, 40, 160, 73}, groups[0].BBox)
	assert.Equal(t, 18.0, groups[0].FontSize)
}

func TestRegroupIsIdempotent(t *testing.T) {
	units := []TextUnit{
		unit("Sayın", 50, 100, 90, 112, 11),
		unit("müşterimiz,", 95, 100, 160, 112, 11),
		unit("Ödeme", 300, 300, 350, 312, 11),
		unit("bilgileri", 302, 314, 360, 326, 11),
		unit("Sayfa 1", 500, 780, 560, 790, 8),
	}

	first := Group(units, DefaultMaxDistance)
	second := regroup(first, DefaultMaxDistance)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].BBox, second[i].BBox)
	}
}

func TestNewTextUnit(t *testing.T) {
	_, ok := NewTextUnit("   ", Rect{0, 0, 10, 10}, 12)
	assert.False(t, ok)

	u, ok := NewTextUnit("  Merhaba ", Rect{20, 30, 10, 5}, 0)
	require.True(t, ok)
	assert.Equal(t, "Merhaba", u.Text)
	assert.Equal(t, Rect{10, 5, 20, 30}, u.BBox)
	assert.Equal(t, DefaultFontSize, u.FontSize)
	assert.Equal(t, CanonicalFont, u.FontName)
}

func TestDocumentTotalGroups(t *testing.T) {
	doc := Document{Pages: []PageContent{
		{Index: 0, Groups: make([]TranslatedGroup, 2)},
		{Index: 1},
		{Index: 2, Groups: make([]TranslatedGroup, 3)},
	}}
	assert.Equal(t, 5, doc.TotalGroups())
	assert.Equal(t, 0, Document{}.TotalGroups())
}
