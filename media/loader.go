package media

import (
	"fmt"
	"os"

	"github.com/camden-git/facesys/config"
	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
)

// NewLoader returns a faces.Loader that builds the configured detector and
// recognition model. Missing or empty model files fail the load.
func NewLoader(cfg *config.Config, log *logger.Logger) faces.Loader {
	return func() (faces.Detector, faces.Embedder, error) {
		if err := checkModelFile(cfg.RecognitionModelPath); err != nil {
			return nil, nil, err
		}

		var detector interface {
			faces.Detector
			Close() error
		}
		switch cfg.FaceDetector {
		case config.DetectorSSD:
			if err := checkModelFile(cfg.FaceDNNNetConfigPath); err != nil {
				return nil, nil, err
			}
			if err := checkModelFile(cfg.FaceDNNNetModelPath); err != nil {
				return nil, nil, err
			}
			ssd, err := NewSSDFaceDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath, log)
			if err != nil {
				return nil, nil, err
			}
			detector = ssd
		default:
			if err := checkModelFile(cfg.RetinaFaceModelPath); err != nil {
				return nil, nil, err
			}
			retina, err := NewRetinaFaceDetector(cfg.RetinaFaceModelPath, log)
			if err != nil {
				return nil, nil, err
			}
			detector = retina
		}

		recognition, err := NewRecognitionModel(cfg.RecognitionModelPath, cfg.RecognitionModelName, log)
		if err != nil {
			_ = detector.Close()
			return nil, nil, err
		}

		log.Info("media: face models loaded", "detector", cfg.FaceDetector, "recognition", cfg.RecognitionModelName)
		return detector, recognition, nil
	}
}

func checkModelFile(path string) error {
	if path == "" {
		return fmt.Errorf("model path is not configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat model file %s: %w", path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("model file %s is empty or not a regular file", path)
	}
	return nil
}
