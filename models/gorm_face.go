package models

import "gorm.io/datatypes"

// Face represents a detected face in an image, labelled with a person identity.
// It corresponds to the 'faces' table.
type Face struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ImageID    uint           `gorm:"not null;index" json:"image_id"`
	PersonName string         `gorm:"not null;index;size:255" json:"person_name"`
	Embedding  datatypes.JSON `gorm:"not null" json:"embedding"`                  // JSON array of floats
	FacialArea datatypes.JSON `gorm:"" json:"facial_area,omitempty"`              // JSON [x1,y1,x2,y2]
	Landmarks  datatypes.JSON `gorm:"" json:"landmarks,omitempty"`                // Nullable, opaque JSON
	Confidence *float64       `gorm:"" json:"confidence,omitempty"`               // Nullable, detector score
	CreatedAt  int64          `gorm:"not null" json:"created_at"`                 // Stored as INTEGER, Unix timestamp
	UpdatedAt  int64          `gorm:"not null" json:"updated_at"`                 // Stored as INTEGER, Unix timestamp

	Image *Image `gorm:"foreignKey:ImageID" json:"image,omitempty"` // Belongs to Image
}

// TableName explicitly sets the table name for GORM.
func (Face) TableName() string {
	return "faces"
}
