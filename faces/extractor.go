package faces

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/camden-git/facesys/logger"
)

// Extractor turns an image into validated, embedded face observations.
//
// The underlying models are not safe for concurrent use, so every Extract and
// ExtractBest call holds mu for its whole detect and embed pass.
type Extractor struct {
	mu           sync.Mutex
	detector     Detector
	embedder     Embedder
	paddingRatio float64
	log          *logger.Logger
}

func NewExtractor(detector Detector, embedder Embedder, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		detector:     detector,
		embedder:     embedder,
		paddingRatio: DefaultPaddingRatio,
		log:          log,
	}
}

// Extract detects every face in img and embeds each valid one. Invalid boxes,
// empty crops and failed embeddings are logged and dropped; only a detector
// failure is returned as an error.
func (x *Extractor) Extract(img image.Image) ([]Observation, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	detections, err := x.detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}

	observations := make([]Observation, 0, len(detections))
	for i, det := range detections {
		obs, err := x.embedOne(img, det)
		if err != nil {
			x.log.Warn("extractor: discarding detection", "index", i, "error", err)
			continue
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// ExtractBest embeds the detection with the highest confidence. Detections
// without a confidence rank below any scored one; on equal scores the first
// wins. A failure to embed the chosen face is ErrNoEmbedding.
func (x *Extractor) ExtractBest(img image.Image) (Observation, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	detections, err := x.detector.Detect(img)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to detect faces: %w", err)
	}
	if len(detections) == 0 {
		return Observation{}, ErrNoFaceDetected
	}

	best := detections[0]
	for _, det := range detections[1:] {
		if confidenceOf(det.Confidence) > confidenceOf(best.Confidence) {
			best = det
		}
	}

	obs, err := x.embedOne(img, best)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: %w", ErrNoEmbedding, err)
	}
	return obs, nil
}

// embedOne validates, pads and crops one detection and embeds the crop.
func (x *Extractor) embedOne(img image.Image, det RawDetection) (Observation, error) {
	bounds := img.Bounds()
	if err := ValidateBox(det.Box, bounds); err != nil {
		return Observation{}, err
	}

	padded := PadBox(det.Box, x.paddingRatio, bounds)
	roi := imaging.Crop(img, padded.Rect())
	if roi.Bounds().Empty() {
		return Observation{}, fmt.Errorf("empty face region %v", padded)
	}

	emb, err := x.embedder.Embed(roi)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to embed face: %w", err)
	}
	if len(emb) == 0 {
		return Observation{}, fmt.Errorf("embedder returned an empty vector")
	}

	return Observation{
		Box:        det.Box,
		Landmarks:  det.Landmarks,
		Confidence: det.Confidence,
		Embedding:  emb,
	}, nil
}

func confidenceOf(c *float64) float64 {
	if c == nil {
		return -1
	}
	return *c
}
