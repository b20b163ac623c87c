package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
	"github.com/phonologic/brain-engine/pkg/services"
)

// EntriesListResponse for GET /api/entries
type EntriesListResponse struct {
	Entries []*models.KnowledgeEntry `json:"entries"`
	Total   int                      `json:"total"`
}

// EntryAuditResponse for GET /api/entries/{category}/{field}/audit
type EntryAuditResponse struct {
	Trail []*models.AuditLogEntry `json:"trail"`
	Total int                     `json:"total"`
}

// EntriesHandler handles direct knowledge store reads and admin deletes.
type EntriesHandler struct {
	knowledgeRepo repositories.KnowledgeRepository
	auditService  services.AuditService
	logger        *zap.Logger
}

// NewEntriesHandler creates a new entries handler.
func NewEntriesHandler(knowledgeRepo repositories.KnowledgeRepository, auditService services.AuditService, logger *zap.Logger) *EntriesHandler {
	return &EntriesHandler{
		knowledgeRepo: knowledgeRepo,
		auditService:  auditService,
		logger:        logger,
	}
}

// RegisterRoutes registers the entries handler's routes on the given mux.
// Reads require authentication; deleting entries requires admin.
func (h *EntriesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/entries", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/entries/{category}/{field}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("GET /api/entries/{category}/{field}/audit", authMiddleware.RequireAuth(h.Audit))
	mux.HandleFunc("DELETE /api/entries/{category}/{field}", authMiddleware.RequireAdmin(h.Delete))
}

// List handles GET /api/entries with an optional ?category= filter.
func (h *EntriesHandler) List(w http.ResponseWriter, r *http.Request) {
	var category *models.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		parsed, err := models.ParseCategory(raw)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		category = &parsed
	}

	entries, err := h.knowledgeRepo.List(r.Context(), category)
	if err != nil {
		h.logger.Error("Failed to list entries", zap.Error(err))
		h.writeServiceError(w, err)
		return
	}

	response := EntriesListResponse{Entries: entries, Total: len(entries)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode entries response", zap.Error(err))
	}
}

// Get handles GET /api/entries/{category}/{field}, returning the entry with
// its full version history and notes.
func (h *EntriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	category, field, ok := h.parsePath(w, r)
	if !ok {
		return
	}

	entry, err := h.knowledgeRepo.GetWithHistory(r.Context(), category, field)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, entry); err != nil {
		h.logger.Error("Failed to encode entry response", zap.Error(err))
	}
}

// Audit handles GET /api/entries/{category}/{field}/audit
func (h *EntriesHandler) Audit(w http.ResponseWriter, r *http.Request) {
	category, field, ok := h.parsePath(w, r)
	if !ok {
		return
	}

	trail, err := h.auditService.EntryTrail(r.Context(), category, field, 100)
	if err != nil {
		h.logger.Error("Failed to load audit trail",
			zap.String("category", category.String()),
			zap.String("field", field),
			zap.Error(err))
		h.writeServiceError(w, err)
		return
	}

	response := EntryAuditResponse{Trail: trail, Total: len(trail)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode audit response", zap.Error(err))
	}
}

// Delete handles DELETE /api/entries/{category}/{field}
func (h *EntriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	category, field, ok := h.parsePath(w, r)
	if !ok {
		return
	}

	actor := auth.GetActorFromContext(r.Context())

	if err := h.knowledgeRepo.Delete(r.Context(), category, field); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.auditService.RecordEntryChange(r.Context(), models.AuditActionDelete, category, field, nil, nil, nil, actor)
	h.logger.Info("Deleted knowledge entry",
		zap.String("category", category.String()),
		zap.String("field", field),
		zap.String("actor", actor))
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntriesHandler) parsePath(w http.ResponseWriter, r *http.Request) (models.Category, string, bool) {
	category, err := models.ParseCategory(r.PathValue("category"))
	if err != nil {
		h.writeServiceError(w, err)
		return "", "", false
	}

	field := r.PathValue("field")
	if field == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "field is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", "", false
	}
	return category, field, true
}

func (h *EntriesHandler) writeServiceError(w http.ResponseWriter, err error) {
	if werr := WriteServiceError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}
