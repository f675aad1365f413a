package project

import (
	"errors"
	"net/http"

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

// CreateRequest represents the project creation body
type CreateRequest struct {
	Title string `json:"title"`
}

// Create handles project creation
// @Summary      Create a project
// @Description  Creates a project and assigns it the next sequential code.
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateRequest true "Project details"
// @Success      201 {object} Project
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /projects [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req CreateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	p, err := h.service.Create(r.Context(), actorID, req.Title)
	if err != nil {
		if errors.Is(err, ErrTitleRequired) || errors.Is(err, ErrTitleTooLong) {
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidInput, http.StatusBadRequest)
			return
		}
		logger.Error("failed to create project", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("project created", "project_id", p.ID, "code", p.Code)
	httputil.RespondJSON(w, p, http.StatusCreated)
}
