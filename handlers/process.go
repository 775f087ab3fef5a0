package handlers

import (
	"net/http"

	"github.com/camden-git/facesys/workers"
)

// ProcessController is the background batch runner.
type ProcessController interface {
	Enqueue(reason string) bool
	Status() workers.RunStatus
}

type ProcessHandler struct {
	Runner ProcessController
}

// StartProcessing queues a batch over all unprocessed images. A request made
// while a batch is already waiting is accepted but not queued twice.
func (ph *ProcessHandler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	queued := ph.Runner.Enqueue("api")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued": queued,
		"status": ph.Runner.Status(),
	})
}

func (ph *ProcessHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ph.Runner.Status())
}
