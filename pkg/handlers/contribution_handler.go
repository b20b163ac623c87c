package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/services"
)

// ContributeRequest for POST /api/contribute
type ContributeRequest struct {
	Text string `json:"text"`
}

// ResolveRequest for POST /api/resolve
type ResolveRequest struct {
	ContributionID string `json:"contribution_id"`
	Action         string `json:"action"` // update | keep | add_note
}

// PendingContributionsResponse for GET /api/contributions/pending
type PendingContributionsResponse struct {
	Contributions []*models.Contribution `json:"contributions"`
	Total         int                    `json:"total"`
}

// StaleResolutionResponse is the 409 body when every targeted entry
// changed under the resolver. The per-field outcomes say which writes
// lost and to what.
type StaleResolutionResponse struct {
	Error   string                     `json:"error"`
	Message string                     `json:"message"`
	Result  *services.ResolutionResult `json:"result"`
}

// ContributionHandler handles the ingestion and review HTTP surface.
type ContributionHandler struct {
	curationService   services.CurationService
	stagingService    services.StagingService
	resolutionService services.ResolutionService
	logger            *zap.Logger
}

// NewContributionHandler creates a new contribution handler.
func NewContributionHandler(
	curationService services.CurationService,
	stagingService services.StagingService,
	resolutionService services.ResolutionService,
	logger *zap.Logger,
) *ContributionHandler {
	return &ContributionHandler{
		curationService:   curationService,
		stagingService:    stagingService,
		resolutionService: resolutionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the contribution handler's routes on the given mux.
// Contributing and listing require authentication; resolving requires admin.
func (h *ContributionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/contribute", authMiddleware.RequireAuth(h.Contribute))
	mux.HandleFunc("GET /api/contributions/pending", authMiddleware.RequireAuth(h.ListPending))
	mux.HandleFunc("POST /api/resolve", authMiddleware.RequireAdmin(h.Resolve))
}

// Contribute handles POST /api/contribute
func (h *ContributionHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActorFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "acting identity required")
		return
	}

	var req ContributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a text field")
		return
	}

	result, err := h.curationService.Contribute(r.Context(), req.Text, actor)
	if err != nil {
		h.logger.Error("Failed to process contribution",
			zap.String("actor", actor),
			zap.Error(err))
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.ContributionID != nil {
		// Staged for review rather than applied.
		status = http.StatusAccepted
	}
	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to encode contribute response", zap.Error(err))
	}
}

// ListPending handles GET /api/contributions/pending
func (h *ContributionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.stagingService.ListPending(r.Context())
	if err != nil {
		h.logger.Error("Failed to list pending contributions", zap.Error(err))
		h.writeServiceError(w, err)
		return
	}

	response := PendingContributionsResponse{
		Contributions: pending,
		Total:         len(pending),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode pending response", zap.Error(err))
	}
}

// Resolve handles POST /api/resolve
func (h *ContributionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActorFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "acting identity required")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	contributionID, err := uuid.Parse(req.ContributionID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "contribution_id must be a UUID")
		return
	}

	result, err := h.resolutionService.Resolve(r.Context(), contributionID, req.Action, actor)
	if err != nil {
		h.logger.Warn("Resolution failed",
			zap.String("contribution_id", contributionID.String()),
			zap.String("action", req.Action),
			zap.String("actor", actor),
			zap.Error(err))
		// A stale failure still produced per-field outcomes; the admin
		// needs them to see which writes lost the race.
		if result != nil && errors.Is(err, apperrors.ErrStaleResolution) {
			response := StaleResolutionResponse{
				Error:   "stale_resolution",
				Message: err.Error(),
				Result:  result,
			}
			if werr := WriteJSON(w, http.StatusConflict, response); werr != nil {
				h.logger.Error("Failed to encode stale resolution response", zap.Error(werr))
			}
			return
		}
		h.writeServiceError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode resolve response", zap.Error(err))
	}
}

func (h *ContributionHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *ContributionHandler) writeServiceError(w http.ResponseWriter, err error) {
	if werr := WriteServiceError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}
