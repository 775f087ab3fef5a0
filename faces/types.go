// Package faces holds the identity resolution core: the embedding gallery, the
// matcher, the detector/embedder adapter and the serialization formats used at
// the persistence boundary. It has no dependency on a concrete model runtime;
// the gocv-backed implementations live in the media package.
package faces

import (
	"errors"
	"image"
)

var (
	ErrInvalidThreshold  = errors.New("similarity threshold must be within (0, 2.0)")
	ErrInvalidBox        = errors.New("invalid bounding box")
	ErrNoFaceDetected    = errors.New("no face detected in image")
	ErrNoEmbedding       = errors.New("no embedding could be extracted")
	ErrEngineNotReady    = errors.New("face engine is not ready")
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
)

// Embedding is a fixed-length face feature vector produced by a recognition model.
type Embedding []float32

// Point is a facial landmark in pixel space.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// BoundingBox is a face rectangle in pixel space, x2/y2 exclusive.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

func (b BoundingBox) Width() int  { return b.X2 - b.X1 }
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// RawDetection is what a detector reports before validation and embedding.
type RawDetection struct {
	Box        BoundingBox
	Landmarks  []Point
	Confidence *float64
}

// Observation is a validated detection with its embedding.
type Observation struct {
	Box        BoundingBox
	Landmarks  []Point
	Confidence *float64
	Embedding  Embedding
}

// Detector finds faces in a decoded image.
type Detector interface {
	Detect(img image.Image) ([]RawDetection, error)
}

// Embedder turns a cropped face region into an embedding.
type Embedder interface {
	Embed(face image.Image) (Embedding, error)
}
