package faces

import (
	"errors"
	"image"
)

type fakeDetector struct {
	detections []RawDetection
	err        error
	calls      int
}

func (d *fakeDetector) Detect(image.Image) ([]RawDetection, error) {
	d.calls++
	return d.detections, d.err
}

// fakeEmbedder encodes the crop size so tests can tell crops apart.
type fakeEmbedder struct {
	failWidth int
	empty     bool
	crops     []image.Rectangle
	closed    bool
}

func (e *fakeEmbedder) Embed(face image.Image) (Embedding, error) {
	b := face.Bounds()
	e.crops = append(e.crops, b)
	if e.failWidth > 0 && b.Dx() == e.failWidth {
		return nil, errors.New("embedding model failed")
	}
	if e.empty {
		return Embedding{}, nil
	}
	return Embedding{float32(b.Dx()), float32(b.Dy())}, nil
}

func (e *fakeEmbedder) Close() error {
	e.closed = true
	return nil
}

func conf(v float64) *float64 { return &v }
