package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/models"
	"github.com/camden-git/facesys/repository"
)

// DefaultYieldEvery is how many images a run visits between OnYield calls.
const DefaultYieldEvery = 10

// image outcomes reported to metrics
const (
	outcomeProcessed = "processed"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Progress is the state of a run passed to OnYield.
type Progress struct {
	Total       int    `json:"total"`
	Visited     int    `json:"visited"`
	Processed   int    `json:"processed"`
	Detected    int    `json:"detected"`
	CurrentPath string `json:"current_path,omitempty"`
}

// ProcessOptions tunes a single run.
type ProcessOptions struct {
	// YieldEvery overrides the service default when positive.
	YieldEvery int
	// OnYield is called every YieldEvery visited images. It runs on the
	// processing goroutine while the gallery lock is held and must not call
	// back into the service.
	OnYield func(Progress)
}

// RunResult is the outcome of a run: images marked processed and faces persisted.
type RunResult struct {
	Processed int `json:"processed"`
	Detected  int `json:"detected"`
}

// ProcessImages runs detection and identity resolution over every unprocessed image.
//
// The faces of an image and its processed flag are written in one transaction,
// so an image is either fully recorded or retried by a later run. Per-face and
// per-image failures are logged and skipped. Only setup failures
// (model loading, the initial gallery load, listing images) abort the run. The
// context is checked between images; on cancellation the partial result is
// returned together with ctx.Err().
func (s *FaceRecognitionService) ProcessImages(ctx context.Context, opts ProcessOptions) (result RunResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		status := "completed"
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = "cancelled"
		case err != nil:
			status = "failed"
		}
		s.metrics.RecordBatch(status)
		s.metrics.SetGallerySize(s.gallery.Len(), s.gallery.Size())
	}()

	extractor, err := s.engine.EnsureReady()
	if err != nil {
		return result, fmt.Errorf("failed to initialize face models: %w", err)
	}
	if err := s.ensureGalleryLocked(ctx); err != nil {
		return result, err
	}

	images, err := s.store.ListUnprocessedImages(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list unprocessed images: %w", err)
	}
	if len(images) == 0 {
		s.log.Info("recognition: no unprocessed images")
		return result, nil
	}

	yieldEvery := s.yieldEvery
	if opts.YieldEvery > 0 {
		yieldEvery = opts.YieldEvery
	}

	s.log.Info("recognition: starting batch", "images", len(images), "threshold", s.matcher.Threshold())
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			s.log.Warn("recognition: batch cancelled", "processed", result.Processed, "detected", result.Detected)
			return result, err
		}

		start := time.Now()
		outcome, faceCount := s.processImage(ctx, extractor, img)
		if outcome == outcomeProcessed {
			result.Processed++
			result.Detected += faceCount
		}
		s.metrics.RecordImage(outcome, faceCount, time.Since(start))

		if opts.OnYield != nil && (i+1)%yieldEvery == 0 {
			opts.OnYield(Progress{
				Total:       len(images),
				Visited:     i + 1,
				Processed:   result.Processed,
				Detected:    result.Detected,
				CurrentPath: img.FilePath,
			})
		}
	}

	s.log.Info("recognition: batch finished", "processed", result.Processed, "detected", result.Detected)
	return result, nil
}

// pendingFace is a resolved face waiting to be persisted.
type pendingFace struct {
	res    faces.Resolution
	row    repository.NewFace
	staged bool
}

// processImage handles one image and returns its outcome with the number of
// faces persisted. Images that cannot be read are skipped and left unprocessed
// so a later run retries them.
//
// New identities are inserted into the gallery as soon as they are resolved so
// later faces of the same image can match them. They are staged: if the faces
// of the image are not persisted, the staged identities are removed again.
func (s *FaceRecognitionService) processImage(ctx context.Context, extractor *faces.Extractor, img models.Image) (outcome string, faceCount int) {
	// an image that has started persisting faces is finished even if the run is cancelled
	ctx = context.WithoutCancel(ctx)

	var (
		pending   []pendingFace
		persisted bool
	)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recognition: panic while processing image", "image", img.FilePath, "panic", r)
			if persisted {
				return
			}
			s.discardStaged(pending)
			outcome, faceCount = outcomeFailed, 0
		}
	}()

	if _, err := os.Stat(img.FilePath); err != nil {
		s.log.Warn("recognition: skipping missing file", "image", img.FilePath, "error", err)
		return outcomeSkipped, 0
	}
	if !faces.IsDetectableImage(img.FilePath) {
		s.log.Debug("recognition: skipping unsupported file type", "image", img.FilePath)
		return outcomeSkipped, 0
	}

	decoded, err := faces.DecodeImageFile(img.FilePath)
	if err != nil {
		s.log.Warn("recognition: skipping undecodable image", "image", img.FilePath, "error", err)
		return outcomeSkipped, 0
	}

	observations, err := extractor.Extract(decoded)
	if err != nil {
		s.log.Warn("recognition: face detection failed", "image", img.FilePath, "error", err)
		return outcomeFailed, 0
	}

	for i, obs := range observations {
		pf, err := s.resolveFace(obs)
		if err != nil {
			s.log.Warn("recognition: skipping face", "image", img.FilePath, "face", i, "error", err)
			continue
		}
		pending = append(pending, pf)
	}

	rows := make([]repository.NewFace, len(pending))
	for i, pf := range pending {
		rows[i] = pf.row
	}
	faceErrs, err := s.store.SaveImageFaces(ctx, img.ID, rows)
	if err != nil {
		s.log.Error("recognition: failed to persist faces", "image", img.FilePath, "error", err)
		s.discardStaged(pending)
		return outcomeFailed, 0
	}
	persisted = true

	kept := make(map[string]bool, len(pending))
	for i, pf := range pending {
		if faceErrs[i] != nil {
			s.log.Warn("recognition: skipping face", "image", img.FilePath, "label", pf.res.Label, "error", faceErrs[i])
			continue
		}
		kept[pf.res.Label] = true
		s.metrics.RecordMatch(pf.res.Tier.String())
		s.log.Debug("recognition: face resolved", "image", img.FilePath, "label", pf.res.Label, "tier", pf.res.Tier, "distance", pf.res.Distance)
		faceCount++
	}
	// a staged identity whose faces all failed to persist must not linger
	for _, pf := range pending {
		if pf.staged && !kept[pf.res.Label] {
			s.gallery.Remove(pf.res.Label)
		}
	}

	return outcomeProcessed, faceCount
}

// discardStaged removes the identities staged for an image that was not persisted.
func (s *FaceRecognitionService) discardStaged(pending []pendingFace) {
	for _, pf := range pending {
		if pf.staged {
			s.gallery.Remove(pf.res.Label)
		}
	}
}

// resolveFace decides the identity of one face and serializes it for storage.
// A new identity is staged in the gallery.
func (s *FaceRecognitionService) resolveFace(obs faces.Observation) (pf pendingFace, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while resolving face: %v", r)
		}
	}()

	res := s.matcher.Resolve(obs.Embedding)

	embedding, err := faces.MarshalEmbedding(obs.Embedding)
	if err != nil {
		return pf, err
	}
	area, err := faces.MarshalFacialArea(obs.Box)
	if err != nil {
		return pf, fmt.Errorf("failed to serialize facial area: %w", err)
	}
	landmarks, err := faces.MarshalLandmarks(obs.Landmarks)
	if err != nil {
		return pf, err
	}

	if err := s.matcher.Commit(res, obs.Embedding); err != nil {
		return pf, fmt.Errorf("failed to add %s to gallery: %w", res.Label, err)
	}
	return pendingFace{
		res: res,
		row: repository.NewFace{
			PersonName: res.Label,
			Embedding:  embedding,
			FacialArea: area,
			Landmarks:  landmarks,
			Confidence: obs.Confidence,
		},
		staged: res.Tier == faces.TierNew,
	}, nil
}
