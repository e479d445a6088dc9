package roles

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rolewarden/rolewarden/internal/pkg/httputil"
	"golang.org/x/text/cases"
)

// Pagination defaults for history queries.
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// HandlerConfig holds request-boundary settings.
type HandlerConfig struct {
	// ReasonDenylist lists substrings a reason must not contain,
	// case-insensitively.
	ReasonDenylist  []string
	HistoryPageSize int
	HistoryMaxLimit int
}

// Handler handles HTTP requests for role management.
type Handler struct {
	service        *Service
	validator      *validator.Validate
	reasonDenylist []string // pre-folded
	defaultLimit   int
	maxLimit       int
}

// NewHandler creates a new roles handler.
func NewHandler(service *Service, cfg HandlerConfig) *Handler {
	fold := cases.Fold()
	denylist := make([]string, 0, len(cfg.ReasonDenylist))
	for _, entry := range cfg.ReasonDenylist {
		if entry != "" {
			denylist = append(denylist, fold.String(entry))
		}
	}

	defaultLimit := cfg.HistoryPageSize
	if defaultLimit <= 0 {
		defaultLimit = DefaultHistoryLimit
	}
	maxLimit := cfg.HistoryMaxLimit
	if maxLimit <= 0 {
		maxLimit = MaxHistoryLimit
	}

	return &Handler{
		service:        service,
		validator:      validator.New(),
		reasonDenylist: denylist,
		defaultLimit:   defaultLimit,
		maxLimit:       maxLimit,
	}
}

// RegisterRoutes registers all role management routes. Callers must mount
// these behind authentication and an admin gate.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Get("/available", h.AvailableRoles)
		r.Put("/users/{user_id}", h.ChangeUserRole)
		r.Get("/history", h.ChangeHistory)
		r.Get("/history/{user_id}", h.UserChangeHistory)
	})
}

// AvailableRolesResponse lists the assignable roles.
type AvailableRolesResponse struct {
	Roles []string `json:"roles"`
}

// AvailableRoles handles GET /roles/available.
func (h *Handler) AvailableRoles(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, AvailableRolesResponse{
		Roles: h.service.AvailableRoles(),
	})
}

// ChangeRoleRequest is the body of a role change request.
type ChangeRoleRequest struct {
	NewRole string  `json:"new_role" validate:"required"`
	Reason  *string `json:"reason" validate:"omitempty,min=5,max=255"`
}

// ChangeUserRole handles PUT /roles/users/{user_id}.
func (h *Handler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if _, err := uuid.Parse(userID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if req.Reason != nil && !h.reasonAllowed(*req.Reason) {
		httputil.Error(w, http.StatusBadRequest, "reason contains disallowed content")
		return
	}

	actorID := httputil.GetUserID(r.Context())
	if actorID == "" {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.service.ValidateRoleChange(r.Context(), userID, req.NewRole, actorID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	if !result.Valid {
		httputil.Error(w, http.StatusBadRequest, result.Reason)
		return
	}

	change, err := h.service.ChangeUserRole(r.Context(), ChangeInput{
		UserID:      userID,
		NewRole:     req.NewRole,
		ChangedByID: actorID,
		Reason:      req.Reason,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrUserNotFound, Status: http.StatusNotFound},
			{Error: ErrActorNotFound, Status: http.StatusNotFound},
			{Error: ErrInvalidRole, Status: http.StatusBadRequest},
		})
		return
	}

	httputil.Success(w, http.StatusOK, change)
}

// HistoryResponse is a page of the role change history.
type HistoryResponse struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Links  []Link      `json:"links"`
}

// ChangeHistory handles GET /roles/history with an optional user_id filter.
func (h *Handler) ChangeHistory(w http.ResponseWriter, r *http.Request) {
	var userID *string
	if id := r.URL.Query().Get("user_id"); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid user id")
			return
		}
		userID = &id
	}

	h.serveHistory(w, r, userID)
}

// UserChangeHistory handles GET /roles/history/{user_id}.
func (h *Handler) UserChangeHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if _, err := uuid.Parse(userID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	h.serveHistory(w, r, &userID)
}

func (h *Handler) serveHistory(w http.ResponseWriter, r *http.Request, userID *string) {
	limit := h.defaultLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxLimit {
			parsed = h.maxLimit
		}
		limit = parsed
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	records, total := h.service.ChangeHistory(r.Context(), userID, offset, limit)

	httputil.Success(w, http.StatusOK, HistoryResponse{
		Items:  records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Links:  PaginationLinks(r.URL.Path, r.URL.Query(), offset, limit, total),
	})
}

func (h *Handler) reasonAllowed(reason string) bool {
	folded := cases.Fold().String(reason)
	for _, entry := range h.reasonDenylist {
		if strings.Contains(folded, entry) {
			return false
		}
	}
	return true
}
