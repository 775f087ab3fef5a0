package repository

import (
	"context"

	"github.com/camden-git/facesys/models"
)

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	GetByID(ctx context.Context, id uint) (*models.Image, error)
	GetByPath(ctx context.Context, filePath string) (*models.Image, error)
	EnsureExists(ctx context.Context, filePath string, takenAt *int64, location string, albumID *uint) (*models.Image, bool, error)
	ListUnprocessed(ctx context.Context) ([]models.Image, error)
	UpdateProcessedStatus(ctx context.Context, id uint, processed bool, faceCount int) (*models.Image, error)
	ListByPerson(ctx context.Context, personName string, limit int) ([]models.Image, error)
}

// FaceRepositoryInterface defines the methods for face data operations
type FaceRepositoryInterface interface {
	Create(ctx context.Context, face *models.Face) error
	ListAll(ctx context.Context) ([]models.Face, error)
	ListByImageID(ctx context.Context, imageID uint) ([]models.Face, error)
	UpdatePersonName(ctx context.Context, oldName, newName string) (int64, error)
	CountByPerson(ctx context.Context) ([]PersonCount, error)
}

// AlbumRepositoryInterface defines the methods for album data operations
type AlbumRepositoryInterface interface {
	Ensure(ctx context.Context, name string) (*models.Album, error)
	GetByID(ctx context.Context, id uint) (*models.Album, error)
	GetByName(ctx context.Context, name string) (*models.Album, error)
	ListAll(ctx context.Context) ([]models.Album, error)
	ListImages(ctx context.Context, albumID uint, limit int) ([]models.Image, error)
}

// NewFace is a face to persist, with its payloads already serialized.
type NewFace struct {
	PersonName string
	Embedding  []byte
	FacialArea []byte
	Landmarks  []byte
	Confidence *float64
}

// FaceStore is everything the recognition pipeline needs from persistence.
// Embedding, facial area and landmarks are passed in their serialized form.
type FaceStore interface {
	ListFaces(ctx context.Context) ([]models.Face, error)
	ListUnprocessedImages(ctx context.Context) ([]models.Image, error)
	SaveImageFaces(ctx context.Context, imageID uint, faces []NewFace) ([]error, error)
	UpdatePersonName(ctx context.Context, oldName, newName string) (int64, error)
	GetFaceCountByPerson(ctx context.Context) (map[string]int, error)
	ListImagesByPerson(ctx context.Context, personName string, limit int) ([]models.Image, error)
	EnsureImage(ctx context.Context, filePath string, takenAt *int64, location string, albumID *uint) (*models.Image, bool, error)
}
