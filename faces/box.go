package faces

import (
	"fmt"
	"image"
)

// DefaultPaddingRatio is the share of the box width/height added on each side
// before the face region is cropped for embedding.
const DefaultPaddingRatio = 0.05

// ValidateBox checks that the box is well-formed and lies within bounds.
func ValidateBox(box BoundingBox, bounds image.Rectangle) error {
	if box.X1 >= box.X2 || box.Y1 >= box.Y2 {
		return fmt.Errorf("%w: degenerate box [%d,%d,%d,%d]", ErrInvalidBox, box.X1, box.Y1, box.X2, box.Y2)
	}
	if box.X1 < bounds.Min.X || box.Y1 < bounds.Min.Y || box.X2 > bounds.Max.X || box.Y2 > bounds.Max.Y {
		return fmt.Errorf("%w: box [%d,%d,%d,%d] outside image %dx%d",
			ErrInvalidBox, box.X1, box.Y1, box.X2, box.Y2, bounds.Dx(), bounds.Dy())
	}
	return nil
}

// PadBox grows a valid box by ratio of its width/height on each side, clamped to bounds.
func PadBox(box BoundingBox, ratio float64, bounds image.Rectangle) BoundingBox {
	padX := int(float64(box.Width()) * ratio)
	padY := int(float64(box.Height()) * ratio)
	return BoundingBox{
		X1: max(bounds.Min.X, box.X1-padX),
		Y1: max(bounds.Min.Y, box.Y1-padY),
		X2: min(bounds.Max.X, box.X2+padX),
		Y2: min(bounds.Max.Y, box.Y2+padY),
	}
}
