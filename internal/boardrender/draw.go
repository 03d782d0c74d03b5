package boardrender

import (
	"image"
	"image/color"
	imagedraw "image/draw"
	"math"

	"github.com/park285/chessfen/internal/domain"
)

type pointF struct {
	X float64
	Y float64
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	if img == nil {
		return
	}
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// drawArrow fills a single arrow polygon so no pixel is blended twice.
func drawArrow(img *image.RGBA, mv domain.Move, squareSize int, origin image.Point, o domain.Orientation, clr color.Color) {
	if img == nil || mv.From == mv.To {
		return
	}
	startRect := squareRect(mv.From, squareSize, origin, o)
	endRect := squareRect(mv.To, squareSize, origin, o)
	start := pointF{
		X: float64(startRect.Min.X) + float64(squareSize)/2,
		Y: float64(startRect.Min.Y) + float64(squareSize)/2,
	}
	end := pointF{
		X: float64(endRect.Min.X) + float64(squareSize)/2,
		Y: float64(endRect.Min.Y) + float64(squareSize)/2,
	}

	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX := dx / length
	dirY := dy / length
	perpX := -dirY
	perpY := dirX

	sq := float64(squareSize)
	headLength := sq * 0.45
	if headLength > length*0.6 {
		headLength = length * 0.6
	}
	halfWidth := sq * 0.1
	headHalfWidth := sq * 0.3

	base := pointF{X: end.X - dirX*headLength, Y: end.Y - dirY*headLength}
	poly := []pointF{
		{X: start.X - perpX*halfWidth, Y: start.Y - perpY*halfWidth},
		{X: base.X - perpX*halfWidth, Y: base.Y - perpY*halfWidth},
		{X: base.X - perpX*headHalfWidth, Y: base.Y - perpY*headHalfWidth},
		end,
		{X: base.X + perpX*headHalfWidth, Y: base.Y + perpY*headHalfWidth},
		{X: base.X + perpX*halfWidth, Y: base.Y + perpY*halfWidth},
		{X: start.X + perpX*halfWidth, Y: start.Y + perpY*halfWidth},
	}
	fillPolygon(img, poly, clr)
}

func fillPolygon(img *image.RGBA, poly []pointF, clr color.Color) {
	if len(poly) < 3 {
		return
	}
	minX, maxX := poly[0].X, poly[0].X
	minY, maxY := poly[0].Y, poly[0].Y
	for _, p := range poly[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	for y := int(math.Floor(minY)); y <= int(math.Ceil(maxY)); y++ {
		for x := int(math.Floor(minX)); x <= int(math.Ceil(maxX)); x++ {
			if pointInPolygon(float64(x)+0.5, float64(y)+0.5, poly) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

// pointInPolygon uses the even-odd rule.
func pointInPolygon(x, y float64, poly []pointF) bool {
	inside := false
	j := len(poly) - 1
	for i := range poly {
		a, b := poly[i], poly[j]
		if (a.Y > y) != (b.Y > y) {
			cross := (b.X-a.X)*(y-a.Y)/(b.Y-a.Y) + a.X
			if x < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}

	sr, sg, sb, sa := clr.RGBA()
	srcA := float64(sa) / 65535.0
	if srcA <= 0 {
		return
	}
	// RGBA() is alpha-premultiplied.
	srcR := float64(sr) / 65535.0
	srcG := float64(sg) / 65535.0
	srcB := float64(sb) / 65535.0

	dst := img.RGBAAt(x, y)
	dstA := float64(dst.A) / 255.0
	inv := 1 - srcA

	img.SetRGBA(x, y, color.RGBA{
		R: floatToUint8((srcR + float64(dst.R)/255.0*inv) * 255.0),
		G: floatToUint8((srcG + float64(dst.G)/255.0*inv) * 255.0),
		B: floatToUint8((srcB + float64(dst.B)/255.0*inv) * 255.0),
		A: floatToUint8((srcA + dstA*inv) * 255.0),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
