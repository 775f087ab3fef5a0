package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/models"
)

// DefaultAlbumImageLimit caps ListImages when no limit is given.
const DefaultAlbumImageLimit = 50

// ErrInvalidAlbumName is returned for blank album names.
var ErrInvalidAlbumName = errors.New("album name must not be empty")

type albumRow struct {
	ID         uint
	Name       string
	CreatedAt  int64
	UpdatedAt  int64
	ImageCount int
}

// AlbumRepository handles database operations for Album entities
type AlbumRepository struct {
	DB *gorm.DB
}

// NewAlbumRepository creates a new instance of AlbumRepository
func NewAlbumRepository(db *gorm.DB) *AlbumRepository {
	return &AlbumRepository{DB: db}
}

// Ensure returns the album called name, creating it first if needed.
func (r *AlbumRepository) Ensure(ctx context.Context, name string) (*models.Album, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidAlbumName
	}
	now := time.Now().Unix()
	album := models.Album{Name: name, CreatedAt: now, UpdatedAt: now}

	if err := r.DB.WithContext(ctx).Where(models.Album{Name: name}).FirstOrCreate(&album).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure album %s: %w", name, err)
	}
	return &album, nil
}

// GetByID retrieves an album by its ID
func (r *AlbumRepository) GetByID(ctx context.Context, id uint) (*models.Album, error) {
	var album models.Album
	err := r.DB.WithContext(ctx).First(&album, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get album by ID %d: %w", id, err)
	}
	return &album, nil
}

// GetByName retrieves an album by its name
func (r *AlbumRepository) GetByName(ctx context.Context, name string) (*models.Album, error) {
	var album models.Album
	err := r.DB.WithContext(ctx).Where("name = ?", name).First(&album).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get album by name %s: %w", name, err)
	}
	return &album, nil
}

// ListAll returns every album ordered by name, with ImageCount filled in
func (r *AlbumRepository) ListAll(ctx context.Context) ([]models.Album, error) {
	query, args, err := sq.Select(
		"albums.id", "albums.name", "albums.created_at", "albums.updated_at",
		"COUNT(images.id) AS image_count",
	).
		From("albums").
		LeftJoin("images ON images.album_id = albums.id").
		GroupBy("albums.id", "albums.name", "albums.created_at", "albums.updated_at").
		OrderBy("albums.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for album list: %w", err)
	}

	var rows []albumRow
	if err := r.DB.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}

	albums := make([]models.Album, len(rows))
	for i, row := range rows {
		albums[i] = models.Album{
			ID:         row.ID,
			Name:       row.Name,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
			ImageCount: row.ImageCount,
		}
	}
	return albums, nil
}

// ListImages returns the images of one album in import order
func (r *AlbumRepository) ListImages(ctx context.Context, albumID uint, limit int) ([]models.Image, error) {
	if limit <= 0 {
		limit = DefaultAlbumImageLimit
	}
	var images []models.Image
	err := r.DB.WithContext(ctx).
		Where("album_id = ?", albumID).
		Order("id ASC").
		Limit(limit).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for album %d: %w", albumID, err)
	}
	return images, nil
}
