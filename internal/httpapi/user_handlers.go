package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"novachat/internal/store"
)

// directoryStore is the slice of *store.Users the directory handlers
// need.
type directoryStore interface {
	List(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, int, error)
	Search(ctx context.Context, query string, limit int) ([]store.UserSummary, error)
}

// UserHandler serves the /api/v1/users* directory group.
type UserHandler struct {
	Protocol
	Users directoryStore
	Log   *slog.Logger
}

func (h *UserHandler) SupportedMethods() []string {
	return []string{http.MethodGet}
}

func (h *UserHandler) Handle(req *Request) *Response {
	switch {
	case strings.HasPrefix(req.Path, "/api/v1/users/search") && req.Method == http.MethodGet:
		return h.handleSearchUsers(req)
	case strings.HasPrefix(req.Path, "/api/v1/users") && req.Method == http.MethodGet:
		return h.handleGetUsers(req)
	default:
		return h.RespondError(http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
	}
}

func (h *UserHandler) handleGetUsers(req *Request) *Response {
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}
	if _, ok := h.ValidateAccessToken(accessToken); !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}

	page := QueryInt(req, "page", 1, 1, 1<<30)
	limit := QueryInt(req, "limit", 50, 1, 100)
	search := req.Query.Get("search")

	ctx := context.Background()
	summaries, totalCount, err := h.Users.List(ctx, search, limit, (page-1)*limit)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("failed to get users", "error", err)
		}
		return h.RespondError(http.StatusInternalServerError, "GET_USERS_FAILED", "Failed to get users")
	}

	totalPages := (totalCount + limit - 1) / limit
	users := make([]map[string]string, 0, len(summaries))
	for _, u := range summaries {
		users = append(users, map[string]string{"user_id": u.UserID, "login": u.Login})
	}

	return h.RespondSuccess(map[string]any{
		"users": users,
		"pagination": map[string]any{
			"page":        page,
			"limit":       limit,
			"total_count": totalCount,
			"total_pages": totalPages,
			"has_next":    page < totalPages,
			"has_prev":    page > 1,
		},
	}, http.StatusOK, "")
}

func (h *UserHandler) handleSearchUsers(req *Request) *Response {
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}
	if _, ok := h.ValidateAccessToken(accessToken); !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}

	query := req.Query.Get("query")
	limit := QueryInt(req, "limit", 20, 1, 50)

	if query == "" {
		return h.RespondError(http.StatusBadRequest, "MISSING_QUERY", "Search query is required")
	}

	ctx := context.Background()
	summaries, err := h.Users.Search(ctx, query, limit)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("failed to search users", "error", err)
		}
		return h.RespondError(http.StatusInternalServerError, "SEARCH_FAILED", "Search failed")
	}

	users := make([]map[string]string, 0, len(summaries))
	for _, u := range summaries {
		users = append(users, map[string]string{"user_id": u.UserID, "login": u.Login})
	}

	return h.RespondSuccess(map[string]any{
		"users": users,
		"meta": map[string]any{
			"query": query,
			"count": len(users),
			"limit": limit,
		},
	}, http.StatusOK, "")
}
