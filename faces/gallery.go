package faces

import (
	"fmt"
	"strings"

	"github.com/camden-git/facesys/logger"
)

// GalleryRecord is one persisted face as seen by Gallery.Load.
type GalleryRecord struct {
	FaceID    uint
	Label     string
	Embedding []byte
}

// Match is the closest gallery entry for a query embedding.
type Match struct {
	Label    string
	Distance float64
}

// Gallery is the in-memory identity index: label -> embeddings of that identity.
//
// It is a cache of the persisted face records, rebuilt with Load at session
// start. Labels are iterated in first-insertion order, which is also the
// tie-break order for equal distances. A Gallery is not safe for concurrent use.
type Gallery struct {
	order   []string
	vectors map[string][]Embedding
	log     *logger.Logger
}

func NewGallery(log *logger.Logger) *Gallery {
	if log == nil {
		log = logger.Nop()
	}
	return &Gallery{
		vectors: make(map[string][]Embedding),
		log:     log,
	}
}

// Load replaces the gallery contents with the given records. Records with an
// empty label or an unreadable embedding are logged and skipped.
func (g *Gallery) Load(records []GalleryRecord) (loaded, skipped int) {
	g.order = nil
	g.vectors = make(map[string][]Embedding)

	for _, rec := range records {
		if strings.TrimSpace(rec.Label) == "" {
			g.log.Warn("gallery: skipping face without label", "face_id", rec.FaceID)
			skipped++
			continue
		}
		emb, err := ParseEmbedding(rec.Embedding)
		if err != nil {
			g.log.Warn("gallery: skipping face with malformed embedding", "face_id", rec.FaceID, "label", rec.Label, "error", err)
			skipped++
			continue
		}
		g.append(rec.Label, emb)
		loaded++
	}

	g.log.Info("gallery: loaded", "identities", len(g.order), "embeddings", loaded, "skipped", skipped)
	return loaded, skipped
}

// Insert appends an embedding to label, creating the identity if absent. All
// embeddings of one identity share a dimension.
func (g *Gallery) Insert(label string, e Embedding) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("gallery: label must not be empty")
	}
	if len(e) == 0 {
		return fmt.Errorf("gallery: %w for %s", ErrNoEmbedding, label)
	}
	if known := g.vectors[label]; len(known) > 0 && len(known[0]) != len(e) {
		return fmt.Errorf("gallery: %w for %s: have %d, got %d", ErrDimensionMismatch, label, len(known[0]), len(e))
	}
	g.append(label, e)
	return nil
}

func (g *Gallery) append(label string, e Embedding) {
	if _, ok := g.vectors[label]; !ok {
		g.order = append(g.order, label)
	}
	g.vectors[label] = append(g.vectors[label], append(Embedding(nil), e...))
}

// LookupBestMatch scans every embedding of every identity and returns the closest
// one. ok is false when the gallery is empty or holds no vector with a matching
// dimension. On equal distances the first one in iteration order wins.
func (g *Gallery) LookupBestMatch(e Embedding) (match Match, ok bool) {
	g.each(func(label string, embeddings []Embedding) bool {
		for _, known := range embeddings {
			d, comparable := EuclideanDistance(e, known)
			if !comparable {
				continue
			}
			if !ok || d < match.Distance {
				match = Match{Label: label, Distance: d}
				ok = true
			}
		}
		return true
	})
	return match, ok
}

// Rename moves every embedding of oldLabel under newLabel. When newLabel already
// exists the two collections are unioned, so this is also the merge operation.
// oldLabel no longer exists afterwards. Returns the number of embeddings moved.
func (g *Gallery) Rename(oldLabel, newLabel string) int {
	moved, ok := g.vectors[oldLabel]
	if !ok || oldLabel == newLabel {
		return 0
	}
	delete(g.vectors, oldLabel)

	if _, exists := g.vectors[newLabel]; exists {
		g.vectors[newLabel] = append(g.vectors[newLabel], moved...)
		g.removeFromOrder(oldLabel)
	} else {
		g.vectors[newLabel] = moved
		for i, l := range g.order {
			if l == oldLabel {
				g.order[i] = newLabel
				break
			}
		}
	}
	return len(moved)
}

// Merge folds source into target; it is Rename(source, target). Merging an
// already merged source is a no-op.
func (g *Gallery) Merge(source, target string) int {
	return g.Rename(source, target)
}

// Remove drops label and all its embeddings. Returns the number removed.
func (g *Gallery) Remove(label string) int {
	removed, ok := g.vectors[label]
	if !ok {
		return 0
	}
	delete(g.vectors, label)
	g.removeFromOrder(label)
	return len(removed)
}

func (g *Gallery) removeFromOrder(label string) {
	for i, l := range g.order {
		if l == label {
			g.order = append(g.order[:i], g.order[i+1:]...)
			return
		}
	}
}

// each visits identities in iteration order until fn returns false.
func (g *Gallery) each(fn func(label string, embeddings []Embedding) bool) {
	for _, label := range g.order {
		if !fn(label, g.vectors[label]) {
			return
		}
	}
}

func (g *Gallery) Has(label string) bool {
	_, ok := g.vectors[label]
	return ok
}

// Labels returns the identity labels in iteration order.
func (g *Gallery) Labels() []string {
	return append([]string(nil), g.order...)
}

// Len is the number of identities.
func (g *Gallery) Len() int {
	return len(g.order)
}

// Size is the total number of embeddings across identities.
func (g *Gallery) Size() int {
	n := 0
	for _, embs := range g.vectors {
		n += len(embs)
	}
	return n
}

// Embeddings returns a copy of the embeddings stored for label.
func (g *Gallery) Embeddings(label string) []Embedding {
	src := g.vectors[label]
	out := make([]Embedding, len(src))
	for i, e := range src {
		out[i] = append(Embedding(nil), e...)
	}
	return out
}
