package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recoverops/dunning/internal/catalog"
	"github.com/recoverops/dunning/model"
)

// workflowListResponse is the JSON shape of GET /workflows.
type workflowListResponse struct {
	Workflows []model.WorkflowDefinition `json:"workflows"`
	Checksum  string                     `json:"checksum"`
}

// handleListWorkflows serves the loaded workflow catalog for operator
// inspection. The catalog is immutable after startup, so no locking.
func handleListWorkflows(registry *catalog.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, workflowListResponse{
			Workflows: registry.Workflows(),
			Checksum:  registry.Checksum(),
		})
	}
}

// handleGetWorkflow serves a single workflow definition by ID.
func handleGetWorkflow(registry *catalog.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "workflowID")
		wf, ok := registry.Get(id)
		if !ok {
			WriteNotFound(w, "workflow not found: "+id)
			return
		}
		WriteJSON(w, http.StatusOK, wf)
	}
}
