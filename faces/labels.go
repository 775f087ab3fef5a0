package faces

import (
	"strings"

	"github.com/google/uuid"
)

// UnknownLabelPrefix marks labels the pipeline generated for unrecognized faces.
const UnknownLabelPrefix = "Unknown_"

// NewUnknownLabel returns Unknown_ followed by 8 lowercase hex characters.
func NewUnknownLabel() string {
	return UnknownLabelPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// IsUnknownLabel reports whether label was autogenerated.
func IsUnknownLabel(label string) bool {
	return strings.HasPrefix(label, UnknownLabelPrefix)
}
