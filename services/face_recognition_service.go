package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/metrics"
	"github.com/camden-git/facesys/repository"
)

// ErrInvalidLabel is returned for empty or whitespace-only identity labels.
var ErrInvalidLabel = errors.New("identity label must not be empty")

// Options configures a FaceRecognitionService.
type Options struct {
	SimilarityThreshold float64
	YieldEvery          int
	Metrics             *metrics.PipelineMetrics
	Logger              *logger.Logger
}

// FaceRecognitionService drives the recognition pipeline: it owns the model
// engine, the in-memory gallery and the matcher, and writes through a FaceStore.
//
// The gallery is guarded by mu. A batch run holds mu for its whole duration, so
// gallery reads and writes issued meanwhile wait for the run to finish. AddPerson
// and SearchByImage run their detect and embed pass before taking mu; the
// models themselves are serialized by the Extractor, so such a pass interleaves
// with the batch image by image but never runs the models concurrently.
type FaceRecognitionService struct {
	store      repository.FaceStore
	engine     *faces.Engine
	gallery    *faces.Gallery
	matcher    *faces.Matcher
	metrics    *metrics.PipelineMetrics
	log        *logger.Logger
	yieldEvery int

	mu            sync.Mutex
	galleryLoaded bool
}

// NewFaceRecognitionService creates a new face recognition service. An invalid
// threshold is logged and the default threshold is used instead.
func NewFaceRecognitionService(store repository.FaceStore, engine *faces.Engine, opts Options) *FaceRecognitionService {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	yieldEvery := opts.YieldEvery
	if yieldEvery <= 0 {
		yieldEvery = DefaultYieldEvery
	}

	gallery := faces.NewGallery(log)
	matcher, err := faces.NewMatcher(gallery, opts.SimilarityThreshold, log)
	if err != nil {
		log.Warn("recognition: using default similarity threshold", "threshold", matcher.Threshold(), "error", err)
	}

	return &FaceRecognitionService{
		store:      store,
		engine:     engine,
		gallery:    gallery,
		matcher:    matcher,
		metrics:    opts.Metrics,
		log:        log,
		yieldEvery: yieldEvery,
	}
}

// LoadGallery rebuilds the gallery from every persisted face.
func (s *FaceRecognitionService) LoadGallery(ctx context.Context) (loaded, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadGalleryLocked(ctx)
}

func (s *FaceRecognitionService) loadGalleryLocked(ctx context.Context) (int, int, error) {
	stored, err := s.store.ListFaces(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load gallery: %w", err)
	}

	records := make([]faces.GalleryRecord, len(stored))
	for i, f := range stored {
		records[i] = faces.GalleryRecord{FaceID: f.ID, Label: f.PersonName, Embedding: f.Embedding}
	}
	loaded, skipped := s.gallery.Load(records)
	s.galleryLoaded = true
	s.metrics.SetGallerySize(s.gallery.Len(), s.gallery.Size())
	return loaded, skipped, nil
}

// ensureGalleryLocked loads the gallery once per session.
func (s *FaceRecognitionService) ensureGalleryLocked(ctx context.Context) error {
	if s.galleryLoaded {
		return nil
	}
	_, _, err := s.loadGalleryLocked(ctx)
	return err
}

// SetThreshold changes the similarity threshold; invalid values keep the current one.
func (s *FaceRecognitionService) SetThreshold(t float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matcher.SetThreshold(t)
}

func (s *FaceRecognitionService) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matcher.Threshold()
}

// EngineState reports whether the face models are loaded.
func (s *FaceRecognitionService) EngineState() faces.EngineState {
	return s.engine.State()
}

// GalleryStats returns the number of identities and embeddings in memory.
func (s *FaceRecognitionService) GalleryStats() (identities, embeddings int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gallery.Len(), s.gallery.Size()
}

// Close releases the face models.
func (s *FaceRecognitionService) Close() error {
	return s.engine.Close()
}
