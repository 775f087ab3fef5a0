package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/models"
)

// Store implements FaceStore on top of the image and face repositories.
type Store struct {
	Images ImageRepositoryInterface
	Faces  FaceRepositoryInterface
	Albums AlbumRepositoryInterface
	db     *gorm.DB
}

var _ FaceStore = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{
		Images: NewImageRepository(db),
		Faces:  NewFaceRepository(db),
		Albums: NewAlbumRepository(db),
		db:     db,
	}
}

func newFaceRecord(imageID uint, f NewFace) *models.Face {
	face := &models.Face{
		ImageID:    imageID,
		PersonName: f.PersonName,
		Embedding:  datatypes.JSON(f.Embedding),
		FacialArea: datatypes.JSON(f.FacialArea),
		Confidence: f.Confidence,
	}
	if len(f.Landmarks) > 0 {
		face.Landmarks = datatypes.JSON(f.Landmarks)
	}
	return face
}

func (s *Store) ListFaces(ctx context.Context) ([]models.Face, error) {
	return s.Faces.ListAll(ctx)
}

func (s *Store) ListUnprocessedImages(ctx context.Context) ([]models.Image, error) {
	return s.Images.ListUnprocessed(ctx)
}

func (s *Store) AddFace(ctx context.Context, imageID uint, personName string, embedding, facialArea, landmarks []byte, confidence *float64) (*models.Face, error) {
	face := newFaceRecord(imageID, NewFace{
		PersonName: personName,
		Embedding:  embedding,
		FacialArea: facialArea,
		Landmarks:  landmarks,
		Confidence: confidence,
	})
	if err := s.Faces.Create(ctx, face); err != nil {
		return nil, err
	}
	return face, nil
}

// SaveImageFaces stores the faces of one image and marks it processed in a
// single transaction. Each face is written under its own savepoint: a face
// that fails is rolled back alone and reported in faceErrs at its index, and
// face_count only counts the stored ones. err is set when the transaction as
// a whole failed, in which case nothing was written.
func (s *Store) SaveImageFaces(ctx context.Context, imageID uint, faces []NewFace) (faceErrs []error, err error) {
	faceErrs = make([]error, len(faces))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored := 0
		for i, f := range faces {
			faceErrs[i] = tx.Transaction(func(sp *gorm.DB) error {
				return NewFaceRepository(sp).Create(ctx, newFaceRecord(imageID, f))
			})
			if faceErrs[i] == nil {
				stored++
			}
		}
		if _, err := NewImageRepository(tx).UpdateProcessedStatus(ctx, imageID, true, stored); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save faces of image %d: %w", imageID, err)
	}
	return faceErrs, nil
}

func (s *Store) UpdateImageProcessedStatus(ctx context.Context, imageID uint, processed bool, faceCount int) (*models.Image, error) {
	return s.Images.UpdateProcessedStatus(ctx, imageID, processed, faceCount)
}

func (s *Store) UpdatePersonName(ctx context.Context, oldName, newName string) (int64, error) {
	return s.Faces.UpdatePersonName(ctx, oldName, newName)
}

func (s *Store) GetFaceCountByPerson(ctx context.Context) (map[string]int, error) {
	rows, err := s.Faces.CountByPerson(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.PersonName] = row.FaceCount
	}
	return counts, nil
}

func (s *Store) ListImagesByPerson(ctx context.Context, personName string, limit int) ([]models.Image, error) {
	return s.Images.ListByPerson(ctx, personName, limit)
}

func (s *Store) EnsureImage(ctx context.Context, filePath string, takenAt *int64, location string, albumID *uint) (*models.Image, bool, error) {
	return s.Images.EnsureExists(ctx, filePath, takenAt, location, albumID)
}

// EnsureAlbum returns the album called name, or the Default album when name is blank.
func (s *Store) EnsureAlbum(ctx context.Context, name string) (*models.Album, error) {
	if strings.TrimSpace(name) == "" {
		name = models.DefaultAlbumName
	}
	return s.Albums.Ensure(ctx, name)
}

func (s *Store) ListAlbums(ctx context.Context) ([]models.Album, error) {
	return s.Albums.ListAll(ctx)
}

func (s *Store) GetAlbum(ctx context.Context, id uint) (*models.Album, error) {
	return s.Albums.GetByID(ctx, id)
}

func (s *Store) GetAlbumByName(ctx context.Context, name string) (*models.Album, error) {
	return s.Albums.GetByName(ctx, name)
}

func (s *Store) ListAlbumImages(ctx context.Context, albumID uint, limit int) ([]models.Image, error) {
	return s.Albums.ListImages(ctx, albumID, limit)
}
