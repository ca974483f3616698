package media

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-labeler/pkg/types"
)

// fallback colors for tags without a parsable color
var palette = []color.NRGBA{
	{0, 255, 0, 255},
	{255, 204, 0, 255},
	{255, 0, 0, 255},
	{0, 170, 255, 255},
	{255, 0, 255, 255},
	{0, 255, 255, 255},
}

// ParseColor parses "#rgb" or "#rrggbb" colors
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

func tagColor(name string, tags []types.Tag) color.NRGBA {
	for i, t := range tags {
		if t.Name != name {
			continue
		}
		if c, ok := ParseColor(t.Color); ok {
			return c
		}
		return palette[i%len(palette)]
	}
	return palette[0]
}

// RenderRegions returns a copy of img with every region outlined in the
// color of its first tag. Rectangles draw their bounding box; polygons and
// polylines draw their point path.
func RenderRegions(img image.Image, regions []types.Region, tags []types.Tag) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side

	for _, r := range regions {
		c := palette[0]
		if len(r.Tags) > 0 {
			c = tagColor(r.Tags[0], tags)
		}
		switch {
		case (r.Type == types.RegionTypePolygon || r.Type == types.RegionTypePolyline) && len(r.Points) > 1:
			drawPath(nrgba, r.Points, r.Type == types.RegionTypePolygon, c, stroke)
		case r.Type == types.RegionTypePoint && len(r.Points) > 0:
			px, py := round(r.Points[0].X), round(r.Points[0].Y)
			cross := int(math.Max(4, 0.01*float64(min(w, h))))
			drawHLine(nrgba, py, px-cross, px+cross, c)
			drawVLine(nrgba, px, py-cross, py+cross, c)
		default:
			drawBox(nrgba, r.Bounds(), c, stroke)
		}
	}
	return nrgba
}

func round(v float64) int { return int(math.Floor(v + 0.5)) }

func drawBox(img *image.NRGBA, box types.BoundingBox, c color.NRGBA, stroke int) {
	x0, y0 := round(box.Left), round(box.Top)
	x1, y1 := round(box.Right()), round(box.Bottom())
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawPath(img *image.NRGBA, pts []types.Point, closed bool, c color.NRGBA, stroke int) {
	for i := 1; i < len(pts); i++ {
		drawLine(img, pts[i-1], pts[i], c, stroke)
	}
	if closed && len(pts) > 2 {
		drawLine(img, pts[len(pts)-1], pts[0], c, stroke)
	}
}

// drawLine walks the segment with Bresenham and stamps a square pen
func drawLine(img *image.NRGBA, a, b types.Point, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := round(a.X), round(a.Y), round(b.X), round(b.Y)
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	half := stroke / 2
	e := dx + dy
	for {
		for s := -half; s < stroke-half; s++ {
			drawHLine(img, y0+s, x0-half, x0+stroke-half, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func setPixel(img *image.NRGBA, i int, c color.NRGBA) {
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		setPixel(img, i, c)
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		setPixel(img, i, c)
		i += img.Stride
	}
}
