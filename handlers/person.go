package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/models"
	"github.com/camden-git/facesys/repository"
	"github.com/camden-git/facesys/services"
)

const maxUploadSize = 32 << 20

// IdentityService is the part of the recognition service the HTTP API uses.
type IdentityService interface {
	ListPeople(ctx context.Context) ([]services.PersonSummary, error)
	ImagesByPerson(ctx context.Context, name string, limit int) ([]models.Image, error)
	AddPerson(ctx context.Context, label string, img image.Image) (faces.Observation, error)
	SearchByImage(ctx context.Context, img image.Image) ([]services.SearchResult, error)
	RenamePerson(ctx context.Context, oldName, newName string) (int64, error)
	MergePeople(ctx context.Context, source, target string) (int64, error)
}

type PersonHandler struct {
	Service IdentityService
	Log     *logger.Logger
}

func (ph *PersonHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := ph.Service.ListPeople(r.Context())
	if err != nil {
		writeServiceError(w, ph.Log, "retrieve people", err)
		return
	}
	if people == nil {
		people = []services.PersonSummary{}
	}
	writeJSON(w, http.StatusOK, people)
}

func (ph *PersonHandler) ListPersonImages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit, ok := parseLimit(w, r, repository.DefaultPersonImageLimit)
	if !ok {
		return
	}

	images, err := ph.Service.ImagesByPerson(r.Context(), name, limit)
	if err != nil {
		writeServiceError(w, ph.Log, "retrieve images", err)
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	writeJSON(w, http.StatusOK, images)
}

// AddPerson takes a multipart form with a "name" field and an "image" file.
func (ph *PersonHandler) AddPerson(w http.ResponseWriter, r *http.Request) {
	img, ok := readUploadedImage(w, r)
	if !ok {
		return
	}
	name := r.FormValue("name")

	obs, err := ph.Service.AddPerson(r.Context(), name, img)
	if err != nil {
		writeServiceError(w, ph.Log, "add person", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"name":       strings.TrimSpace(name),
		"box":        obs.Box,
		"confidence": obs.Confidence,
	})
}

func (ph *PersonHandler) RenamePerson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	name := chi.URLParam(r, "name")
	affected, err := ph.Service.RenamePerson(r.Context(), name, req.NewName)
	if err != nil {
		writeServiceError(w, ph.Log, "rename person", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": strings.TrimSpace(req.NewName), "faces_updated": affected})
}

func (ph *PersonHandler) MergePerson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	name := chi.URLParam(r, "name")
	affected, err := ph.Service.MergePeople(r.Context(), name, req.Target)
	if err != nil {
		writeServiceError(w, ph.Log, "merge people", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": strings.TrimSpace(req.Target), "faces_updated": affected})
}

// readUploadedImage decodes the "image" file of a multipart request. On
// failure the error response is already written.
func readUploadedImage(w http.ResponseWriter, r *http.Request) (image.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid multipart form: "+err.Error())
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing required file: image")
		return nil, false
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidImage, fmt.Sprintf("Could not decode %s", header.Filename))
		return nil, false
	}
	return img, true
}

// parseLimit reads the optional ?limit= query value, writing a 400 when it is invalid.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}
