// Package identicon renders deterministic geometric avatars from addresses.
//
// An address is hashed with Keccak-256 and the digest drives an 8x8 grid of
// shapes that is mirror-symmetric in its fill pattern. The same address and
// size always give the same pixels.
package identicon

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/zarlcorp/civicid/internal/address"
)

const (
	// DefaultSize is the side length in pixels used when none is given.
	DefaultSize = 400
	// MinSize is one pixel per grid cell.
	MinSize = GridSize
	// MaxSize caps memory per render.
	MaxSize = 4096
)

// ErrInvalidSize is returned for sizes outside [MinSize, MaxSize].
var ErrInvalidSize = errors.New("invalid image size")

// RenderError reports a rasterisation or encoding failure. Rendering is
// deterministic, so retrying the same input gives the same error.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Render draws the identicon for a as a size x size image.
func Render(a address.Address, size int) (*image.RGBA, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidSize, size, MinSize, MaxSize)
	}
	return rasterize(NewPattern(Sum(a)), size)
}

// Generate renders the identicon for a and encodes it as PNG.
func Generate(a address.Address, size int) ([]byte, error) {
	img, err := Render(a, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &RenderError{Op: "encode png", Err: err}
	}
	return buf.Bytes(), nil
}
