// Package ingest registers media files found in folders as image records so
// the recognition batch can pick them up.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/models"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
}

// videos are registered but never reach the detector
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true,
}

// ImageRegistrar creates an image record once per unique path.
type ImageRegistrar interface {
	EnsureAlbum(ctx context.Context, name string) (*models.Album, error)
	EnsureImage(ctx context.Context, filePath string, takenAt *int64, location string, albumID *uint) (*models.Image, bool, error)
}

// Result summarizes one import.
type Result struct {
	Seen   int `json:"seen"`
	Added  int `json:"added"`
	Failed int `json:"failed"`
}

type Options struct {
	Recursive bool
	// Album receives new images. Blank means the Default album.
	Album string
	// OnFile is called after each file is registered or fails.
	OnFile func(path string, added bool, err error)
}

type Scanner struct {
	store ImageRegistrar
	log   *logger.Logger
}

func NewScanner(store ImageRegistrar, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{store: store, log: log}
}

// IsMediaFile reports whether the file is an image or video the library tracks.
func IsMediaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return imageExtensions[ext] || videoExtensions[ext]
}

// Import registers every media file in dirs under the album named in opts.
// Missing or unreadable folders are logged and skipped; per-file failures are
// counted. Only a cancelled context or an unusable album stops the import early.
func (s *Scanner) Import(ctx context.Context, dirs []string, opts Options) (Result, error) {
	var res Result
	album, err := s.store.EnsureAlbum(ctx, opts.Album)
	if err != nil {
		return res, fmt.Errorf("failed to resolve album: %w", err)
	}

	for _, dir := range dirs {
		files, err := collectMediaFiles(dir, opts.Recursive)
		if err != nil {
			s.log.Warn("ingest: skipping folder", "dir", dir, "error", err)
			continue
		}
		res.Seen += len(files)

		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			takenAt, location := readMetadata(path, s.log)
			_, created, err := s.store.EnsureImage(ctx, path, takenAt, location, &album.ID)
			if opts.OnFile != nil {
				opts.OnFile(path, created, err)
			}
			if err != nil {
				s.log.Error("ingest: failed to register file", "path", path, "error", err)
				res.Failed++
				continue
			}
			if created {
				res.Added++
			}
		}
	}

	s.log.Info("ingest: import finished", "album", album.Name, "seen", res.Seen, "added", res.Added, "failed", res.Failed)
	return res, nil
}

// collectMediaFiles returns absolute media paths under dir in natural order.
func collectMediaFiles(dir string, recursive bool) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if path != abs && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && IsMediaFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", abs, err)
	}

	natsort.Sort(files)
	return files, nil
}

// readMetadata returns the capture time and "lat,lon" location of a file.
// The capture time falls back to the modification time; location stays empty
// without GPS tags.
func readMetadata(path string, log *logger.Logger) (*int64, string) {
	var takenAt *int64
	if info, err := os.Stat(path); err == nil {
		ts := info.ModTime().Unix()
		takenAt = &ts
	}

	if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return takenAt, ""
	}

	f, err := os.Open(path)
	if err != nil {
		return takenAt, ""
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// most PNGs and edited files carry no EXIF block
		log.Debug("ingest: no EXIF data", "path", path, "error", err)
		return takenAt, ""
	}

	if dt, err := x.DateTime(); err == nil {
		ts := dt.Unix()
		takenAt = &ts
	}

	location := ""
	if lat, long, err := x.LatLong(); err == nil {
		location = fmt.Sprintf("%.6f,%.6f", lat, long)
	}
	return takenAt, location
}
