package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/scitech-admin-api/internal/auth"
	"github.com/redmonkez12/scitech-admin-api/internal/httputil"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ApprovalRequest sets the approval state of an account
type ApprovalRequest struct {
	Approved *bool `json:"approved"`
}

// SetApproval handles account approval changes
// @Summary      Approve or revoke an account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Param        request body ApprovalRequest true "Approval state"
// @Success      200 {object} user.Profile
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /users/{id}/approval [patch]
func (h *Handler) SetApproval(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid user ID", httputil.CodeInvalidInput, http.StatusBadRequest)
		return
	}

	var req ApprovalRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if req.Approved == nil {
		httputil.RespondErrorWithCode(w, "approved is required", httputil.CodeInvalidInput, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"actor_id": actorID, "target_id": targetID})

	updated, err := h.service.SetApproval(r.Context(), actorID, targetID, *req.Approved)
	switch {
	case errors.Is(err, ErrSelfApproval):
		logger.Warn("self approval rejected")
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeForbidden, http.StatusForbidden)
		return
	case errors.Is(err, ErrUserNotFound):
		logger.Warn("approval target not found")
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeNotFound, http.StatusNotFound)
		return
	case err != nil:
		logger.Error("failed to set approval", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("account approval changed", "approved", updated.IsApproved)
	httputil.RespondJSON(w, updated.Profile(), http.StatusOK)
}
