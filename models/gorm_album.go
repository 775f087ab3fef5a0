package models

// DefaultAlbumName is the album imports land in when none is named.
const DefaultAlbumName = "Default"

// Album groups imported images. It corresponds to the 'albums' table.
type Album struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null;uniqueIndex;size:255" json:"name"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64  `gorm:"not null" json:"updated_at"` // Unix timestamp

	// ImageCount is filled by listing queries only.
	ImageCount int `gorm:"-" json:"image_count"`

	Images []Image `gorm:"foreignKey:AlbumID;constraint:OnDelete:SET NULL" json:"images,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Album) TableName() string {
	return "albums"
}
