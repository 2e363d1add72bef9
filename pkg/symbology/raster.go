package symbology

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

const superSample = 4

// Rasterize draws a marker symbol into a px by px bitmap on a
// transparent background. The shape is drawn oversized and scaled down
// so edges come out smooth.
func Rasterize(sym Symbol, px int) *image.RGBA {
	if px <= 0 {
		px = 16
	}
	big := px * superSample
	col := parseRGBA(sym.Color, sym.Opacity)
	src := image.NewRGBA(image.Rect(0, 0, big, big))

	c := float64(big) / 2
	r := float64(big)/2 - 1
	for y := 0; y < big; y++ {
		for x := 0; x < big; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			dx, dy := fx-c, fy-c
			inside := false
			switch sym.Shape {
			case "square":
				inside = math.Abs(dx) <= r && math.Abs(dy) <= r
			case "diamond":
				inside = math.Abs(dx)+math.Abs(dy) <= r
			case "triangle":
				// Apex up, base across the bottom.
				inside = fy >= c-r && fy <= c+r &&
					math.Abs(dx) <= r*(fy-(c-r))/(2*r)
			default:
				inside = dx*dx+dy*dy <= r*r
			}
			if inside {
				src.SetRGBA(x, y, col)
			}
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, px, px))
	xdraw.CatmullRom.Scale(out, out.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return out
}
