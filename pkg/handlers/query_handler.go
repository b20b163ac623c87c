package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/services"
)

// QueryRequest for POST /api/query
type QueryRequest struct {
	Question string `json:"question"`
	Category string `json:"category,omitempty"`
}

// QueryHandler answers natural-language questions against the brain.
type QueryHandler struct {
	queryService services.QueryService
	logger       *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queryService services.QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/query", authMiddleware.RequireAuth(h.Query))
}

// Query handles POST /api/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	var category *models.Category
	if req.Category != "" {
		parsed, err := models.ParseCategory(req.Category)
		if err != nil {
			if werr := WriteServiceError(w, err); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return
		}
		category = &parsed
	}

	answer, err := h.queryService.Answer(r.Context(), req.Question, category)
	if err != nil {
		h.logger.Error("Failed to answer query", zap.Error(err))
		if werr := WriteServiceError(w, err); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, answer); err != nil {
		h.logger.Error("Failed to encode query response", zap.Error(err))
	}
}

func (h *QueryHandler) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
