package layout

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	colorTolerance  = 30
	edgeOffset      = 2
	stripOverhang   = 5
	samplesPerStrip = 15
)

var (
	White = colorful.Color{R: 1, G: 1, B: 1}
	Black = colorful.Color{R: 0, G: 0, B: 0}
)

// Palette is the inferred pair of colors for one region.
type Palette struct {
	Background colorful.Color
	Foreground colorful.Color
}

type rgb [3]int

func (c rgb) diff(o rgb) int {
	return abs(c[0]-o[0]) + abs(c[1]-o[1]) + abs(c[2]-o[2])
}

func (c rgb) color() colorful.Color {
	return colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// InferColors samples the rendered page around and inside bbox.
// bbox is in page points; scale converts points to pixels (dpi/72).
func InferColors(img image.Image, bbox Rect, scale float64) Palette {
	if img == nil {
		return Palette{Background: White, Foreground: Black}
	}
	if scale <= 0 {
		scale = 1
	}
	b := img.Bounds()
	if b.Empty() {
		return Palette{Background: White, Foreground: Black}
	}

	px := bbox.Scale(scale)
	x0 := clampInt(int(px.X0), b.Min.X, b.Max.X-1)
	y0 := clampInt(int(px.Y0), b.Min.Y, b.Max.Y-1)
	x1 := clampInt(int(px.X1), b.Min.X, b.Max.X-1)
	y1 := clampInt(int(px.Y1), b.Min.Y, b.Max.Y-1)

	bg, ok := backgroundColor(img, b, x0, y0, x1, y1)
	bgColor := White
	if ok {
		bgColor = bg.color()
	} else {
		bg = rgb{255, 255, 255}
	}

	return Palette{
		Background: bgColor,
		Foreground: foregroundColor(img, b, x0, y0, x1, y1, bg, bgColor),
	}
}

func backgroundColor(img image.Image, b image.Rectangle, x0, y0, x1, y1 int) (rgb, bool) {
	var samples []rgb

	strideX := max(1, (x1-x0)/samplesPerStrip)
	strideY := max(1, (y1-y0)/samplesPerStrip)

	horizontal := func(y int) {
		for x := max(b.Min.X, x0-stripOverhang); x < min(b.Max.X, x1+stripOverhang); x += strideX {
			if in(b, x, y) {
				samples = append(samples, pixel(img, x, y))
			}
		}
	}
	vertical := func(x int) {
		for y := max(b.Min.Y, y0-stripOverhang); y < min(b.Max.Y, y1+stripOverhang); y += strideY {
			if in(b, x, y) {
				samples = append(samples, pixel(img, x, y))
			}
		}
	}

	horizontal(max(b.Min.Y, y0-edgeOffset))
	horizontal(min(b.Max.Y-1, y1+edgeOffset))
	vertical(max(b.Min.X, x0-edgeOffset))
	vertical(min(b.Max.X-1, x1+edgeOffset))

	if len(samples) == 0 {
		return rgb{}, false
	}
	return dominant(samples), true
}

// dominant clusters samples incrementally. A sample joins the first cluster whose
// representative is within the tolerance; the representative of the largest
// cluster wins, earliest cluster on ties.
func dominant(samples []rgb) rgb {
	type cluster struct {
		rep   rgb
		count int
	}
	var clusters []cluster
	for _, s := range samples {
		joined := false
		for i := range clusters {
			if s.diff(clusters[i].rep) < colorTolerance {
				clusters[i].count++
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, cluster{rep: s, count: 1})
		}
	}

	best := clusters[0]
	for _, c := range clusters[1:] {
		if c.count > best.count {
			best = c
		}
	}
	return best.rep
}

func foregroundColor(img image.Image, b image.Rectangle, x0, y0, x1, y1 int, bg rgb, bgColor colorful.Color) colorful.Color {
	cx, cy := (x0+x1)/2, (y0+y1)/2
	qx, qy := (x1-x0)/4, (y1-y0)/4
	points := [][2]int{
		{cx, cy},
		{cx - qx, cy},
		{cx + qx, cy},
		{cx, cy - qy},
		{cx, cy + qy},
	}

	maxDiff := 0
	var farthest *rgb
	for _, p := range points {
		if !in(b, p[0], p[1]) {
			continue
		}
		s := pixel(img, p[0], p[1])
		if d := s.diff(bg); d > maxDiff {
			maxDiff = d
			farthest = &s
		}
	}
	if farthest != nil && maxDiff > colorTolerance {
		return farthest.color()
	}
	return contrastColor(bgColor)
}

// contrastColor picks black on light backgrounds and white on dark ones.
func contrastColor(bg colorful.Color) colorful.Color {
	if Luminance(bg) > 0.5 {
		return Black
	}
	return White
}

// Luminance is the Rec. 601 weighted sum of the channels in [0,1].
func Luminance(c colorful.Color) float64 {
	return 0.299*c.R + 0.587*c.G + 0.114*c.B
}

func pixel(img image.Image, x, y int) rgb {
	if rgba, ok := img.(*image.RGBA); ok {
		c := rgba.RGBAAt(x, y)
		return rgb{int(c.R), int(c.G), int(c.B)}
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return rgb{int(r >> 8), int(g >> 8), int(b >> 8)}
}

func in(b image.Rectangle, x, y int) bool {
	return image.Pt(x, y).In(b)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
