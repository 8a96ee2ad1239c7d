package api

import (
	"net/http"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
)

// SchemaDependencies exposes the registered schema id.
type SchemaDependencies interface {
	// SchemaID returns false until startup registration has completed.
	SchemaID() (model.SchemaID, bool)
}

// SchemaHandler handles schema requests.
type SchemaHandler struct {
	deps SchemaDependencies
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(deps SchemaDependencies) *SchemaHandler {
	return &SchemaHandler{deps: deps}
}

type schemaResponse struct {
	SchemaID string `json:"schemaId"`
}

// HandleGetSchema handles GET /schema requests.
func (h *SchemaHandler) HandleGetSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, ok := h.deps.SchemaID()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "schema_not_ready", model.ErrSchemaNotReady)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{SchemaID: id.String()})
}
