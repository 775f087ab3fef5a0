package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/models"
)

// DefaultPersonImageLimit caps ListByPerson when no limit is given.
const DefaultPersonImageLimit = 50

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// GetByID retrieves an image by its ID
func (r *ImageRepository) GetByID(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.WithContext(ctx).First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by ID %d: %w", id, err)
	}
	return &image, nil
}

// GetByPath retrieves an image by its file path
func (r *ImageRepository) GetByPath(ctx context.Context, filePath string) (*models.Image, error) {
	var image models.Image
	err := r.DB.WithContext(ctx).Where("file_path = ?", filepath.ToSlash(filePath)).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by path %s: %w", filePath, err)
	}
	return &image, nil
}

// EnsureExists creates an unprocessed image record if none exists for the path.
// An existing record keeps its album. Returns the record and whether it was created.
func (r *ImageRepository) EnsureExists(ctx context.Context, filePath string, takenAt *int64, location string, albumID *uint) (*models.Image, bool, error) {
	cleanPath := filepath.ToSlash(filePath)
	now := time.Now().Unix()
	image := models.Image{
		FilePath:  cleanPath,
		TakenAt:   takenAt,
		Location:  location,
		AlbumID:   albumID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result := r.DB.WithContext(ctx).Where(models.Image{FilePath: cleanPath}).FirstOrCreate(&image)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to ensure image record for %s: %w", cleanPath, result.Error)
	}
	return &image, result.RowsAffected > 0, nil
}

// ListUnprocessed returns images not yet run through recognition, oldest first
func (r *ImageRepository) ListUnprocessed(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.WithContext(ctx).Where("processed = ?", false).Order("id ASC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed images: %w", err)
	}
	return images, nil
}

// UpdateProcessedStatus sets the processed flag and face count of an image
func (r *ImageRepository) UpdateProcessedStatus(ctx context.Context, id uint, processed bool, faceCount int) (*models.Image, error) {
	updates := map[string]interface{}{
		"processed":  processed,
		"face_count": faceCount,
		"updated_at": time.Now().Unix(),
	}

	result := r.DB.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update processed status for image %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

// ListByPerson returns the distinct images containing a face labelled personName
func (r *ImageRepository) ListByPerson(ctx context.Context, personName string, limit int) ([]models.Image, error) {
	if limit <= 0 {
		limit = DefaultPersonImageLimit
	}

	query, args, err := sq.Select("images.*").
		Distinct().
		From("images").
		Join("faces ON faces.image_id = images.id").
		Where(sq.Eq{"faces.person_name": personName}).
		OrderBy("images.id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for images by person: %w", err)
	}

	var images []models.Image
	if err := r.DB.WithContext(ctx).Raw(query, args...).Scan(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to list images for person %s: %w", personName, err)
	}
	return images, nil
}
