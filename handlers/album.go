package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/models"
	"github.com/camden-git/facesys/repository"
)

// AlbumStore is the album read side the HTTP API uses.
type AlbumStore interface {
	ListAlbums(ctx context.Context) ([]models.Album, error)
	GetAlbum(ctx context.Context, id uint) (*models.Album, error)
	ListAlbumImages(ctx context.Context, albumID uint, limit int) ([]models.Image, error)
}

type AlbumHandler struct {
	Store AlbumStore
	Log   *logger.Logger
}

func (ah *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := ah.Store.ListAlbums(r.Context())
	if err != nil {
		writeServiceError(w, ah.Log, "retrieve albums", err)
		return
	}
	if albums == nil {
		albums = []models.Album{}
	}
	writeJSON(w, http.StatusOK, albums)
}

// ListAlbumImages returns {"album": ..., "images": [...]} for /albums/{id}/images.
func (ah *AlbumHandler) ListAlbumImages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "album id must be a positive integer")
		return
	}
	limit, ok := parseLimit(w, r, repository.DefaultAlbumImageLimit)
	if !ok {
		return
	}

	album, err := ah.Store.GetAlbum(r.Context(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Album not found")
		return
	}
	if err != nil {
		writeServiceError(w, ah.Log, "retrieve album", err)
		return
	}

	images, err := ah.Store.ListAlbumImages(r.Context(), album.ID, limit)
	if err != nil {
		writeServiceError(w, ah.Log, "retrieve album images", err)
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"album": album, "images": images})
}
