package media

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
)

const (
	RecognitionArcFace = "arcface"
	RecognitionFaceNet = "facenet"
)

// RecognitionModel produces L2-normalized face embeddings with ArcFace or FaceNet.
type RecognitionModel struct {
	net       gocv.Net
	modelName string
	inputSize image.Point
	mean      gocv.Scalar
	std       float64
	log       *logger.Logger
}

// NewRecognitionModel loads an ONNX recognition model. Unknown names use the ArcFace input layout.
func NewRecognitionModel(modelPath, modelName string, log *logger.Logger) (*RecognitionModel, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load %s recognition model %s", modelName, modelPath)
	}
	selectBackend(&net, modelName, log)

	inputSize := image.Pt(112, 112)
	if modelName == RecognitionFaceNet {
		inputSize = image.Pt(160, 160)
	}

	return &RecognitionModel{
		net:       net,
		modelName: modelName,
		inputSize: inputSize,
		mean:      gocv.NewScalar(127.5, 127.5, 127.5, 0),
		std:       128.0,
		log:       log,
	}, nil
}

func (f *RecognitionModel) Name() string {
	return f.modelName
}

func (f *RecognitionModel) Close() error {
	return f.net.Close()
}

// Embed implements faces.Embedder.
func (f *RecognitionModel) Embed(face image.Image) (faces.Embedding, error) {
	region, err := gocv.ImageToMatRGB(face)
	if err != nil {
		return nil, fmt.Errorf("failed to convert face region: %w", err)
	}
	defer region.Close()
	if region.Empty() {
		return nil, fmt.Errorf("recognition: empty face region")
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(region, &rgb, gocv.ColorBGRToRGB)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, f.inputSize, 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0/f.std, f.inputSize, f.mean, false, false)
	defer blob.Close()

	f.net.SetInput(blob, "")
	output := f.net.Forward("")
	defer output.Close()

	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("recognition: failed to read output: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("recognition: %s returned an empty embedding", f.modelName)
	}

	return normalize(values), nil
}

// normalize returns a unit-length copy of v; a zero vector is returned unchanged.
func normalize(v []float32) faces.Embedding {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make(faces.Embedding, len(v))
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
