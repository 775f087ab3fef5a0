package handlers

import (
	"net/http"

	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/services"
)

type SearchHandler struct {
	Service IdentityService
	Log     *logger.Logger
}

// SearchFaces reports the closest known identity for every face in the uploaded image.
func (sh *SearchHandler) SearchFaces(w http.ResponseWriter, r *http.Request) {
	img, ok := readUploadedImage(w, r)
	if !ok {
		return
	}

	results, err := sh.Service.SearchByImage(r.Context(), img)
	if err != nil {
		writeServiceError(w, sh.Log, "search faces", err)
		return
	}
	if results == nil {
		results = []services.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"faces": results})
}
