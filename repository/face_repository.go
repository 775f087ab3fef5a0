package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/models"
)

// PersonCount is one row of the per-person face aggregate.
type PersonCount struct {
	PersonName string
	FaceCount  int
}

// FaceRepository handles database operations for Face entities
type FaceRepository struct {
	DB *gorm.DB
}

// NewFaceRepository creates a new instance of FaceRepository
func NewFaceRepository(db *gorm.DB) *FaceRepository {
	return &FaceRepository{DB: db}
}

// Create creates a new face record in the database
func (r *FaceRepository) Create(ctx context.Context, face *models.Face) error {
	now := time.Now().Unix()
	if face.CreatedAt == 0 {
		face.CreatedAt = now
	}
	face.UpdatedAt = now

	if err := r.DB.WithContext(ctx).Create(face).Error; err != nil {
		return fmt.Errorf("failed to create face for image %d: %w", face.ImageID, err)
	}
	return nil
}

// ListAll returns every face in insertion order
func (r *FaceRepository) ListAll(ctx context.Context) ([]models.Face, error) {
	var faces []models.Face
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&faces).Error; err != nil {
		return nil, fmt.Errorf("failed to list faces: %w", err)
	}
	return faces, nil
}

// ListByImageID returns the faces detected in one image
func (r *FaceRepository) ListByImageID(ctx context.Context, imageID uint) ([]models.Face, error) {
	var faces []models.Face
	err := r.DB.WithContext(ctx).Where("image_id = ?", imageID).Order("id ASC").Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list faces for image %d: %w", imageID, err)
	}
	return faces, nil
}

// UpdatePersonName relabels every face of oldName. Returns the number of rows changed.
func (r *FaceRepository) UpdatePersonName(ctx context.Context, oldName, newName string) (int64, error) {
	updates := map[string]interface{}{
		"person_name": newName,
		"updated_at":  time.Now().Unix(),
	}
	result := r.DB.WithContext(ctx).Model(&models.Face{}).Where("person_name = ?", oldName).Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to rename person %s to %s: %w", oldName, newName, result.Error)
	}
	return result.RowsAffected, nil
}

// CountByPerson aggregates faces per person, most frequent first
func (r *FaceRepository) CountByPerson(ctx context.Context) ([]PersonCount, error) {
	query, args, err := sq.Select("person_name", "COUNT(*) AS face_count").
		From("faces").
		GroupBy("person_name").
		OrderBy("face_count DESC", "person_name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for face counts: %w", err)
	}

	var counts []PersonCount
	if err := r.DB.WithContext(ctx).Raw(query, args...).Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count faces by person: %w", err)
	}
	return counts, nil
}
