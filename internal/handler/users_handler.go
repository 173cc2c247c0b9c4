package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/service"
)

// UsersHandler handles administrative user management endpoints.
type UsersHandler struct {
	usersService *service.UsersService
	logger       zerolog.Logger
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(usersService *service.UsersService, logger zerolog.Logger) *UsersHandler {
	return &UsersHandler{
		usersService: usersService,
		logger:       logger.With().Str("handler", "users").Logger(),
	}
}

// RegisterRoutes registers the user management routes. All of them sit
// behind the auth middleware.
func (h *UsersHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/Users", h.handleList)
	r.Get("/api/Users/{id}", h.handleGet)
	r.Post("/api/Users/block", h.handleBlock)
	r.Post("/api/Users/unblock", h.handleUnblock)
	r.Delete("/api/Users/delete", h.handleDelete)
}

// listResponse is one page of users plus paging metadata.
type listResponse struct {
	Items      []domain.Profile `json:"items"`
	TotalCount int64            `json:"totalCount"`
	PageNumber int              `json:"pageNumber"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

func (h *UsersHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListUsersInput{
		SortBy:     query.Get("sortBy"),
		SearchTerm: query.Get("searchTerm"),
	}

	if v := query.Get("pageNumber"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, domain.NewValidationError("pageNumber", "must be an integer"))
			return
		}
		input.Page = n
	}
	if v := query.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, domain.NewValidationError("pageSize", "must be an integer"))
			return
		}
		input.PageSize = n
	}
	if v := query.Get("sortDescending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, domain.NewValidationError("sortDescending", "must be a boolean"))
			return
		}
		input.Descending = b
	}
	if v := query.Get("isBlockedFilter"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, domain.NewValidationError("isBlockedFilter", "must be a boolean"))
			return
		}
		input.IsBlocked = &b
	}

	output, err := h.usersService.List(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]domain.Profile, 0, len(output.Users))
	for _, u := range output.Users {
		items = append(items, u.ToProfile())
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:      items,
		TotalCount: output.TotalCount,
		PageNumber: output.Page,
		PageSize:   output.PageSize,
		TotalPages: output.TotalPages,
	})
}

func (h *UsersHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, domain.NewValidationError("id", "invalid user id"))
		return
	}

	user, err := h.usersService.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToProfile())
}

// bulkRequest carries the target user IDs of a bulk operation.
type bulkRequest struct {
	UserIDs []int64 `json:"userIds"`
}

func (h *UsersHandler) handleBlock(w http.ResponseWriter, r *http.Request) {
	h.handleBulk(w, r, h.usersService.BlockMany)
}

func (h *UsersHandler) handleUnblock(w http.ResponseWriter, r *http.Request) {
	h.handleBulk(w, r, h.usersService.UnblockMany)
}

func (h *UsersHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.handleBulk(w, r, h.usersService.DeleteMany)
}

func (h *UsersHandler) handleBulk(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, ids []int64) (*service.BulkResult, error)) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := fn(r.Context(), req.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(result.Skipped) > 0 {
		h.logger.Debug().
			Str("path", strings.TrimPrefix(r.URL.Path, "/api/Users/")).
			Ints64("skipped_ids", result.Skipped).
			Msg("bulk operation skipped unknown ids")
	}

	writeJSON(w, http.StatusNoContent, nil)
}
