// File: internal/campus/captcha/solver.go

// Package captcha solves the portal's slider puzzle by template matching.
// It is pure computation: two PNGs in, one horizontal offset out. No network,
// no state, no randomness; identical inputs always produce identical output.
package captcha

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // the portal occasionally serves JPEG-encoded slides
	_ "image/png"
)

// CanvasLength is the logical width of the slider widget. The portal's
// verification endpoint expects offsets scaled to this canvas regardless of
// the actual pixel width of the served images.
const CanvasLength = 280

// ErrImageDecode reports that one of the challenge images could not be
// decoded. No partial solution is produced.
var ErrImageDecode = errors.New("captcha: image decode failed")

// Solution carries the parameters the verification endpoint expects.
type Solution struct {
	CanvasLength int `json:"canvasLength"`
	MoveLength   int `json:"moveLength"`
}

// Solve computes the horizontal slide offset for a challenge pair.
//
// The small image's puzzle-piece outline is drawn in pure white. Those
// coordinates form a fixed template; for every candidate offset the big image
// is sampled at the template shifted right, summing 255-channel over the RGB
// channels. The outline cut into the background is the brightest match, so
// the offset minimizing the sum is the alignment. Ties resolve to the
// leftmost offset.
func Solve(bigImage, smallImage []byte) (Solution, error) {
	big, err := decodeRGBA(bigImage)
	if err != nil {
		return Solution{}, fmt.Errorf("%w: big image: %v", ErrImageDecode, err)
	}
	small, err := decodeRGBA(smallImage)
	if err != nil {
		return Solution{}, fmt.Errorf("%w: small image: %v", ErrImageDecode, err)
	}

	bigWidth := big.Rect.Dx()
	span := bigWidth - small.Rect.Dx()
	if span <= 0 {
		return Solution{}, fmt.Errorf("captcha: big image (%dpx) not wider than small image (%dpx)", bigWidth, small.Rect.Dx())
	}

	outline := whiteOutline(small)
	if len(outline) == 0 {
		return Solution{}, errors.New("captcha: small image has no white outline pixels")
	}

	bestOffset := 0
	bestScore := int64(-1)
	for offset := 0; offset < span; offset++ {
		var score int64
		for _, p := range outline {
			i := big.PixOffset(p.X+offset, p.Y)
			score += int64(255-big.Pix[i]) + int64(255-big.Pix[i+1]) + int64(255-big.Pix[i+2])
		}
		if bestScore < 0 || score < bestScore {
			bestScore = score
			bestOffset = offset
		}
	}

	return Solution{
		CanvasLength: CanvasLength,
		// Integer truncation matches the widget's own floor behavior.
		MoveLength: bestOffset * CanvasLength / bigWidth,
	}, nil
}

// decodeRGBA decodes an image and normalizes it to RGBA with a zero-based
// rectangle; the alpha channel is carried along but never sampled.
func decodeRGBA(data []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Rect, src, bounds.Min, draw.Src)
	return dst, nil
}

// whiteOutline collects the coordinates of every pure-white pixel. The small
// image encodes the puzzle-piece border as exact (255,255,255) values, which
// survive PNG round-trips bit-for-bit.
func whiteOutline(img *image.RGBA) []image.Point {
	var points []image.Point
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			i := img.PixOffset(x, y)
			if img.Pix[i] == 255 && img.Pix[i+1] == 255 && img.Pix[i+2] == 255 {
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}
	return points
}
