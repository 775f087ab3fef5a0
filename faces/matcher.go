package faces

import (
	"fmt"

	"github.com/camden-git/facesys/logger"
)

const (
	DefaultSimilarityThreshold = 0.6
	// relaxed matches are accepted up to this multiple of the threshold
	relaxedFactor = 1.2
	maxThreshold  = 2.0
)

// Tier is how a resolution was reached.
type Tier int

const (
	TierNew Tier = iota
	TierStrict
	TierRelaxed
)

func (t Tier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierRelaxed:
		return "relaxed"
	default:
		return "new"
	}
}

// Resolution is the identity decided for one embedding. Distance is meaningless
// for TierNew when the gallery had no comparable vector.
type Resolution struct {
	Label    string
	Distance float64
	Tier     Tier
}

// Matcher assigns identities to embeddings against a Gallery.
type Matcher struct {
	gallery   *Gallery
	threshold float64
	newLabel  func() string
	log       *logger.Logger
}

func NewMatcher(gallery *Gallery, threshold float64, log *logger.Logger) (*Matcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	m := &Matcher{
		gallery:   gallery,
		threshold: DefaultSimilarityThreshold,
		newLabel:  NewUnknownLabel,
		log:       log,
	}
	if err := m.SetThreshold(threshold); err != nil {
		return m, err
	}
	return m, nil
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func (m *Matcher) Gallery() *Gallery {
	return m.gallery
}

// SetThreshold changes the strict distance threshold. Values outside (0, 2.0)
// are rejected and the current threshold stays in effect.
func (m *Matcher) SetThreshold(t float64) error {
	if t <= 0 || t >= maxThreshold {
		m.log.Warn("matcher: rejecting similarity threshold", "value", t, "current", m.threshold)
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	m.threshold = t
	return nil
}

// Resolve decides the identity of e without modifying the gallery.
//
// Identities are scanned in gallery order; the first one holding a vector
// closer than the threshold wins outright. Otherwise the global best decides
// between a relaxed match and a freshly generated Unknown_ label.
func (m *Matcher) Resolve(e Embedding) Resolution {
	var (
		best  Match
		found bool
	)
	m.gallery.each(func(label string, embeddings []Embedding) bool {
		for _, known := range embeddings {
			d, ok := EuclideanDistance(e, known)
			if !ok {
				continue
			}
			if !found || d < best.Distance {
				best = Match{Label: label, Distance: d}
				found = true
			}
		}
		return !(found && best.Distance < m.threshold)
	})

	if found {
		if tier := m.TierFor(best.Distance); tier != TierNew {
			return Resolution{Label: best.Label, Distance: best.Distance, Tier: tier}
		}
	}

	label := m.newLabel()
	for m.gallery.Has(label) {
		label = m.newLabel()
	}
	return Resolution{Label: label, Distance: best.Distance, Tier: TierNew}
}

// TierFor classifies a distance against the current threshold.
func (m *Matcher) TierFor(distance float64) Tier {
	switch {
	case distance < m.threshold:
		return TierStrict
	case distance < m.threshold*relaxedFactor:
		return TierRelaxed
	default:
		return TierNew
	}
}

// Commit mirrors a persisted resolution into the gallery. Only new identities
// are inserted; matches never grow the gallery.
func (m *Matcher) Commit(res Resolution, e Embedding) error {
	if res.Tier != TierNew {
		return nil
	}
	return m.gallery.Insert(res.Label, e)
}
