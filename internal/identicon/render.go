package identicon

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Label is the text drawn inside the badge.
const Label = "CIVIC ID"

// kappa places cubic control points for a quarter-circle arc.
const kappa = 0.5522847498

var (
	background = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	badgeFill  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 204} // 0.8 alpha
	labelColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

var labelFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// rasterize draws p onto a new size x size image.
func rasterize(p Pattern, size int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	z := vector.NewRasterizer(size, size)
	cell := float32(size) / GridSize

	fills := [2]image.Image{
		Primary:   image.NewUniform(p.Color(Primary)),
		Secondary: image.NewUniform(p.Color(Secondary)),
	}

	for i := range GridSize {
		for j := range GridSize {
			c := p.Cells[i][j]
			if !c.Filled {
				continue
			}
			z.Reset(size, size)
			tracePath(z, c.Shape, float32(j)*cell, float32(i)*cell, cell)
			z.Draw(img, img.Bounds(), fills[c.Tone], image.Point{})
		}
	}

	half := float32(size) / 2
	z.Reset(size, size)
	traceCircle(z, half, half, float32(size)/4)
	z.Draw(img, img.Bounds(), image.NewUniform(badgeFill), image.Point{})

	if err := drawLabel(img, size); err != nil {
		return nil, err
	}

	return img, nil
}

// tracePath adds the outline of shape s filling the cell at (x, y).
func tracePath(z *vector.Rasterizer, s Shape, x, y, cell float32) {
	mid := cell / 2
	switch s {
	case Square:
		z.MoveTo(x, y)
		z.LineTo(x+cell, y)
		z.LineTo(x+cell, y+cell)
		z.LineTo(x, y+cell)
	case Circle:
		traceCircle(z, x+mid, y+mid, mid)
		return
	case Triangle:
		z.MoveTo(x+mid, y)
		z.LineTo(x+cell, y+cell)
		z.LineTo(x, y+cell)
	case Diamond:
		z.MoveTo(x+mid, y)
		z.LineTo(x+cell, y+mid)
		z.LineTo(x+mid, y+cell)
		z.LineTo(x, y+mid)
	}
	z.ClosePath()
}

func traceCircle(z *vector.Rasterizer, cx, cy, r float32) {
	k := r * kappa
	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	z.ClosePath()
}

// drawLabel centres Label on the image, baseline placed so the em box
// middle sits on the image centre.
func drawLabel(img *image.RGBA, size int) error {
	f, err := labelFont()
	if err != nil {
		return &RenderError{Op: "parse font", Err: err}
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size) / 10,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return &RenderError{Op: "font face", Err: err}
	}
	defer face.Close()

	centre := fixed.I(size) / 2
	advance := font.MeasureString(face, Label)
	m := face.Metrics()

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: centre - advance/2,
			Y: centre + (m.Ascent-m.Descent)/2,
		},
	}
	d.DrawString(Label)
	return nil
}
