package identicon

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// GridSize is the number of cells per side.
const GridSize = 8

const (
	saturation = 0.8
	lightness  = 0.6
)

// Shape is the figure drawn in a filled cell.
type Shape int

const (
	Square Shape = iota
	Circle
	Triangle
	Diamond
)

func (s Shape) String() string {
	switch s {
	case Square:
		return "square"
	case Circle:
		return "circle"
	case Triangle:
		return "triangle"
	case Diamond:
		return "diamond"
	}
	return "unknown"
}

// Tone selects one of the two pattern colours.
type Tone int

const (
	Primary Tone = iota
	Secondary
)

// Cell is one grid position.
type Cell struct {
	Shape  Shape
	Tone   Tone
	Filled bool
	// Source is the stream byte at this cell's own offset.
	Source byte
}

// Pattern is the full 8x8 grid plus its colour pair.
type Pattern struct {
	Hue   int
	Cells [GridSize][GridSize]Cell
}

// NewPattern derives the grid from a digest.
//
// Shape and tone always come from the cell's own byte. The fill flag of a
// right-half cell (col >= 4) is the fill flag of its mirror (row, 7-col), so
// the left half is built first and the right half reads it back.
func NewPattern(d Digest) Pattern {
	p := Pattern{Hue: d.Hue()}

	half := GridSize / 2
	for i := range GridSize {
		for j := range half {
			b := d.At(i*GridSize + j)
			p.Cells[i][j] = Cell{
				Shape:  shapeOf(b),
				Tone:   toneOf(b),
				Filled: b%2 == 0,
				Source: b,
			}
		}
		for j := half; j < GridSize; j++ {
			b := d.At(i*GridSize + j)
			p.Cells[i][j] = Cell{
				Shape:  shapeOf(b),
				Tone:   toneOf(b),
				Filled: p.Cells[i][GridSize-1-j].Filled,
				Source: b,
			}
		}
	}

	return p
}

func shapeOf(b byte) Shape {
	return Shape(b % 4)
}

func toneOf(b byte) Tone {
	if b%8 < 4 {
		return Primary
	}
	return Secondary
}

// SecondaryHue is the complement of the primary hue.
func (p Pattern) SecondaryHue() int {
	return (p.Hue + 180) % 360
}

// Color returns the RGB colour for a tone.
func (p Pattern) Color(t Tone) color.RGBA {
	h := p.Hue
	if t == Secondary {
		h = p.SecondaryHue()
	}
	return hsl(h)
}

func hsl(hue int) color.RGBA {
	r, g, b := colorful.Hsl(float64(hue), saturation, lightness).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
