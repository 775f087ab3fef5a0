package media

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
)

// SSDFaceDetector runs the Caffe res10 SSD face model. It reports no landmarks.
type SSDFaceDetector struct {
	net           gocv.Net
	inputSize     int
	meanVal       gocv.Scalar
	confThreshold float32
	log           *logger.Logger
}

// NewSSDFaceDetector loads the network from its prototxt config and caffemodel weights.
func NewSSDFaceDetector(configPath, modelPath string, log *logger.Logger) (*SSDFaceDetector, error) {
	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load ssd face model: config=%s, model=%s", configPath, modelPath)
	}
	selectBackend(&net, "ssd", log)

	return &SSDFaceDetector{
		net:           net,
		inputSize:     300,
		meanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		confThreshold: 0.5,
		log:           log,
	}, nil
}

func (d *SSDFaceDetector) Close() error {
	return d.net.Close()
}

// Detect implements faces.Detector.
func (d *SSDFaceDetector) Detect(img image.Image) ([]faces.RawDetection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image for ssd: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, nil
	}

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(d.inputSize, d.inputSize), d.meanVal, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	// output is [1, 1, N, 7]: image id, class, confidence, x1, y1, x2, y2
	sizes := out.Size()
	if len(sizes) != 4 || sizes[3] != 7 {
		return nil, fmt.Errorf("ssd: unexpected output dimensions %v", sizes)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("ssd: failed to read output: %w", err)
	}

	width, height := float32(mat.Cols()), float32(mat.Rows())
	var detections []faces.RawDetection
	for i := 0; i < sizes[2]; i++ {
		row := data[i*7 : i*7+7]
		if row[2] <= d.confThreshold {
			continue
		}
		box := faces.BoundingBox{
			X1: int(max(0, row[3]*width)),
			Y1: int(max(0, row[4]*height)),
			X2: int(min(width, row[5]*width)),
			Y2: int(min(height, row[6]*height)),
		}
		if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
			continue
		}
		confidence := float64(row[2])
		detections = append(detections, faces.RawDetection{Box: box, Confidence: &confidence})
	}

	d.log.Debug("detection(ssd): detected faces", "count", len(detections))
	return detections, nil
}
