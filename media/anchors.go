package media

import (
	"math"
	"sort"

	"github.com/camden-git/facesys/faces"
)

// PriorBox is an anchor in normalized coordinates (center x/y, width, height).
type PriorBox struct {
	Cx, Cy, W, H float32
}

var (
	retinaMinSizes = [][]int{{16, 32}, {64, 128}, {256, 512}}
	retinaSteps    = []int{8, 16, 32}
	// center and size variances of the box encoding
	retinaVariances = [2]float32{0.1, 0.2}
)

// GenerateRetinaFacePriors builds the anchor grid for a RetinaFace input of imgW x imgH.
func GenerateRetinaFacePriors(imgW, imgH int) []PriorBox {
	var priors []PriorBox
	for k, step := range retinaSteps {
		fmH, fmW := imgH/step, imgW/step
		for i := 0; i < fmH; i++ {
			for j := 0; j < fmW; j++ {
				for _, minSize := range retinaMinSizes[k] {
					priors = append(priors, PriorBox{
						Cx: (float32(j) + 0.5) * float32(step) / float32(imgW),
						Cy: (float32(i) + 0.5) * float32(step) / float32(imgH),
						W:  float32(minSize) / float32(imgW),
						H:  float32(minSize) / float32(imgH),
					})
				}
			}
		}
	}
	return priors
}

// DecodeBox turns a [dx, dy, dw, dh] prediction into normalized corners.
func DecodeBox(raw [4]float32, prior PriorBox, variances [2]float32) [4]float32 {
	cx := prior.Cx + raw[0]*variances[0]*prior.W
	cy := prior.Cy + raw[1]*variances[0]*prior.H
	w := prior.W * float32(math.Exp(float64(raw[2]*variances[1])))
	h := prior.H * float32(math.Exp(float64(raw[3]*variances[1])))
	return [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2}
}

// DecodeLandmark turns a [dx, dy] landmark prediction into normalized coordinates.
func DecodeLandmark(dx, dy float32, prior PriorBox, variances [2]float32) (float32, float32) {
	return prior.Cx + dx*variances[0]*prior.W, prior.Cy + dy*variances[0]*prior.H
}

// IoU is the intersection over union of two boxes.
func IoU(a, b faces.BoundingBox) float64 {
	x1, y1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	x2, y2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := float64((x2 - x1) * (y2 - y1))
	union := float64(a.Width()*a.Height()+b.Width()*b.Height()) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NonMaxSuppression keeps the most confident detection of every overlapping
// group. The result is ordered by descending confidence.
func NonMaxSuppression(dets []faces.RawDetection, iouThreshold float64) []faces.RawDetection {
	if len(dets) == 0 {
		return dets
	}
	sorted := append([]faces.RawDetection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})

	kept := make([]faces.RawDetection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && IoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func score(d faces.RawDetection) float64 {
	if d.Confidence == nil {
		return 0
	}
	return *d.Confidence
}
