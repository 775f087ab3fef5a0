package models

// Image represents an image record in the database using GORM.
// It corresponds to the 'images' table.
type Image struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FilePath  string `gorm:"not null;uniqueIndex;size:768" json:"file_path"`
	TakenAt   *int64 `gorm:"index" json:"taken_at,omitempty"` // Nullable, Unix timestamp
	Location  string `gorm:"not null;default:'';size:512" json:"location"`
	AlbumID   *uint  `gorm:"index" json:"album_id,omitempty"` // Nullable
	Processed bool   `gorm:"not null;default:false;index" json:"processed"`
	FaceCount int    `gorm:"not null;default:0" json:"face_count"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Stored as INTEGER, Unix timestamp
	UpdatedAt int64  `gorm:"not null" json:"updated_at"` // Stored as INTEGER, Unix timestamp

	// Relationships
	// an image exclusively owns its faces
	Faces []Face `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"faces,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
