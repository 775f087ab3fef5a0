package services

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/models"
)

// SearchResult is the best gallery match for one face found in a query image.
type SearchResult struct {
	Box        faces.BoundingBox `json:"box"`
	Label      string            `json:"label,omitempty"`
	Distance   float64           `json:"distance"`
	Confidence float64           `json:"confidence"`
	Matched    bool              `json:"matched"`
}

// PersonSummary is one identity with the number of faces stored under it.
type PersonSummary struct {
	Name      string `json:"name"`
	FaceCount int    `json:"face_count"`
	Unknown   bool   `json:"unknown"`
}

func normalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", ErrInvalidLabel
	}
	return label, nil
}

// AddPerson embeds the most confident face of a reference image and adds it to
// the gallery under label. Nothing is persisted.
func (s *FaceRecognitionService) AddPerson(ctx context.Context, label string, img image.Image) (faces.Observation, error) {
	label, err := normalizeLabel(label)
	if err != nil {
		return faces.Observation{}, err
	}

	extractor, err := s.engine.EnsureReady()
	if err != nil {
		return faces.Observation{}, err
	}
	obs, err := extractor.ExtractBest(img)
	if err != nil {
		return faces.Observation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureGalleryLocked(ctx); err != nil {
		return faces.Observation{}, err
	}
	if err := s.gallery.Insert(label, obs.Embedding); err != nil {
		return faces.Observation{}, err
	}
	s.metrics.SetGallerySize(s.gallery.Len(), s.gallery.Size())
	s.log.Info("recognition: added reference face", "label", label)
	return obs, nil
}

// SearchByImage reports the closest identity for every face in img without persisting anything.
func (s *FaceRecognitionService) SearchByImage(ctx context.Context, img image.Image) ([]SearchResult, error) {
	extractor, err := s.engine.EnsureReady()
	if err != nil {
		return nil, err
	}
	observations, err := extractor.Extract(img)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureGalleryLocked(ctx); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(observations))
	for _, obs := range observations {
		r := SearchResult{Box: obs.Box}
		if match, ok := s.gallery.LookupBestMatch(obs.Embedding); ok {
			r.Label = match.Label
			r.Distance = match.Distance
			r.Confidence = faces.ConfidencePercent(match.Distance)
			r.Matched = s.matcher.TierFor(match.Distance) != faces.TierNew
		}
		results = append(results, r)
	}
	return results, nil
}

// RenamePerson relabels every stored face of oldName and mirrors the change in
// the gallery. If newName already exists the identities are merged.
func (s *FaceRecognitionService) RenamePerson(ctx context.Context, oldName, newName string) (int64, error) {
	oldName, err := normalizeLabel(oldName)
	if err != nil {
		return 0, err
	}
	newName, err = normalizeLabel(newName)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	affected, err := s.store.UpdatePersonName(ctx, oldName, newName)
	if err != nil {
		return 0, fmt.Errorf("failed to rename %s to %s: %w", oldName, newName, err)
	}
	moved := s.gallery.Rename(oldName, newName)
	s.metrics.SetGallerySize(s.gallery.Len(), s.gallery.Size())
	s.log.Info("recognition: renamed identity", "from", oldName, "to", newName, "faces", affected, "gallery_embeddings", moved)
	return affected, nil
}

// MergePeople folds source into target. It is the same operation as RenamePerson.
func (s *FaceRecognitionService) MergePeople(ctx context.Context, source, target string) (int64, error) {
	return s.RenamePerson(ctx, source, target)
}

// ListPeople returns every stored identity, named people first, then by face count.
func (s *FaceRecognitionService) ListPeople(ctx context.Context) ([]PersonSummary, error) {
	counts, err := s.store.GetFaceCountByPerson(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}

	people := make([]PersonSummary, 0, len(counts))
	for name, n := range counts {
		people = append(people, PersonSummary{Name: name, FaceCount: n, Unknown: faces.IsUnknownLabel(name)})
	}
	sort.Slice(people, func(i, j int) bool {
		a, b := people[i], people[j]
		if a.Unknown != b.Unknown {
			return !a.Unknown
		}
		if a.FaceCount != b.FaceCount {
			return a.FaceCount > b.FaceCount
		}
		return a.Name < b.Name
	})
	return people, nil
}

// ImagesByPerson returns up to limit images showing the given person.
func (s *FaceRecognitionService) ImagesByPerson(ctx context.Context, name string, limit int) ([]models.Image, error) {
	name, err := normalizeLabel(name)
	if err != nil {
		return nil, err
	}
	return s.store.ListImagesByPerson(ctx, name, limit)
}
