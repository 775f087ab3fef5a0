package faces

import (
	"encoding/json"
	"fmt"
)

// MarshalEmbedding serializes an embedding as a JSON array of numbers.
func MarshalEmbedding(e Embedding) ([]byte, error) {
	if len(e) == 0 {
		return nil, fmt.Errorf("cannot serialize empty embedding")
	}
	data, err := json.Marshal([]float32(e))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize embedding: %w", err)
	}
	return data, nil
}

// ParseEmbedding decodes a stored JSON embedding. Empty or non-array payloads are errors.
func ParseEmbedding(data []byte) (Embedding, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty embedding payload")
	}
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("malformed embedding payload: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("embedding payload has no values")
	}
	return Embedding(values), nil
}

// MarshalFacialArea serializes a box as the JSON 4-tuple [x1,y1,x2,y2].
func MarshalFacialArea(box BoundingBox) ([]byte, error) {
	return json.Marshal([4]int{box.X1, box.Y1, box.X2, box.Y2})
}

// ParseFacialArea is the inverse of MarshalFacialArea.
func ParseFacialArea(data []byte) (BoundingBox, error) {
	var area []int
	if err := json.Unmarshal(data, &area); err != nil {
		return BoundingBox{}, fmt.Errorf("malformed facial area payload: %w", err)
	}
	if len(area) != 4 {
		return BoundingBox{}, fmt.Errorf("facial area must have 4 coordinates, got %d", len(area))
	}
	return BoundingBox{X1: area[0], Y1: area[1], X2: area[2], Y2: area[3]}, nil
}

// MarshalLandmarks serializes landmarks unchanged; nil when there are none.
func MarshalLandmarks(points []Point) ([]byte, error) {
	if len(points) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize landmarks: %w", err)
	}
	return data, nil
}
