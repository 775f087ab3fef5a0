package faces

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// only still images the detector understands; videos and other formats never reach it
var detectableImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
}

// IsDetectableImage checks if the filename has an extension supported for detection
func IsDetectableImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return detectableImageExtensions[ext]
}

// DecodeImageFile reads an image from disk, applying its EXIF orientation.
func DecodeImageFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}
