package media

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
)

const (
	retinaInputSize     = 640
	retinaLandmarkCount = 5
)

// RetinaFaceDetector runs an ONNX RetinaFace model and reports boxes with five landmarks.
type RetinaFaceDetector struct {
	net           gocv.Net
	priors        []PriorBox
	meanVal       gocv.Scalar
	confThreshold float32
	iouThreshold  float64
	log           *logger.Logger
}

// NewRetinaFaceDetector loads the RetinaFace model from modelPath.
func NewRetinaFaceDetector(modelPath string, log *logger.Logger) (*RetinaFaceDetector, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load retinaface model %s", modelPath)
	}
	selectBackend(&net, "retinaface", log)

	return &RetinaFaceDetector{
		net:           net,
		priors:        GenerateRetinaFacePriors(retinaInputSize, retinaInputSize),
		meanVal:       gocv.NewScalar(104.0, 117.0, 123.0, 0),
		confThreshold: 0.5,
		iouThreshold:  0.4,
		log:           log,
	}, nil
}

func (r *RetinaFaceDetector) Close() error {
	return r.net.Close()
}

// Detect implements faces.Detector.
func (r *RetinaFaceDetector) Detect(img image.Image) ([]faces.RawDetection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image for retinaface: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, nil
	}

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(retinaInputSize, retinaInputSize), r.meanVal, false, false)
	defer blob.Close()
	r.net.SetInput(blob, "input")

	outputs := r.net.ForwardLayers([]string{"bbox", "confidence", "landmark"})
	defer func() {
		for _, m := range outputs {
			m.Close()
		}
	}()
	if len(outputs) < 3 {
		return nil, fmt.Errorf("retinaface: expected 3 outputs, got %d", len(outputs))
	}

	boxes, err := outputs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("retinaface: failed to read boxes: %w", err)
	}
	scores, err := outputs[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("retinaface: failed to read scores: %w", err)
	}
	landmarks, err := outputs[2].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("retinaface: failed to read landmarks: %w", err)
	}

	n := len(r.priors)
	if len(boxes) < n*4 || len(scores) < n*2 || len(landmarks) < n*retinaLandmarkCount*2 {
		return nil, fmt.Errorf("retinaface: output size does not match %d priors", n)
	}

	width, height := float32(mat.Cols()), float32(mat.Rows())
	var detections []faces.RawDetection
	for i, prior := range r.priors {
		faceScore := scores[i*2+1]
		if faceScore < r.confThreshold {
			continue
		}

		var raw [4]float32
		copy(raw[:], boxes[i*4:i*4+4])
		decoded := DecodeBox(raw, prior, retinaVariances)
		box := faces.BoundingBox{
			X1: int(max(0, decoded[0]*width)),
			Y1: int(max(0, decoded[1]*height)),
			X2: int(min(width, decoded[2]*width)),
			Y2: int(min(height, decoded[3]*height)),
		}
		if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
			continue
		}

		points := make([]faces.Point, 0, retinaLandmarkCount)
		for j := 0; j < retinaLandmarkCount; j++ {
			off := i*retinaLandmarkCount*2 + j*2
			lx, ly := DecodeLandmark(landmarks[off], landmarks[off+1], prior, retinaVariances)
			points = append(points, faces.Point{X: lx * width, Y: ly * height})
		}

		confidence := float64(faceScore)
		detections = append(detections, faces.RawDetection{
			Box:        box,
			Landmarks:  points,
			Confidence: &confidence,
		})
	}

	kept := NonMaxSuppression(detections, r.iouThreshold)
	r.log.Debug("detection(retinaface): detected faces", "candidates", len(detections), "kept", len(kept))
	return kept, nil
}

// selectBackend prefers CUDA and falls back to the default CPU backend.
func selectBackend(net *gocv.Net, name string, log *logger.Logger) {
	backendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	targetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if backendErr == nil && targetErr == nil {
		log.Info("media: using CUDA backend", "model", name)
		return
	}
	_ = net.SetPreferableBackend(gocv.NetBackendDefault)
	_ = net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Info("media: using CPU backend", "model", name, "cuda_backend_error", backendErr, "cuda_target_error", targetErr)
}
