package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"novachat/internal/domain"
	"novachat/internal/metrics"
	"novachat/internal/store"
)

// messageRecipientLookup is the slice of *store.Users the message
// handlers need, just enough to resolve a login to a user.
type messageRecipientLookup interface {
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
}

// messageStore is the slice of *store.Messages the message handlers
// need.
type messageStore interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListForUser(ctx context.Context, userID string, f store.ListFilter) ([]*domain.Message, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
}

// MessageHandler serves the /api/v1/messages* group.
type MessageHandler struct {
	Protocol
	Users    messageRecipientLookup
	Messages messageStore
	Log      *slog.Logger
}

func (h *MessageHandler) SupportedMethods() []string {
	return []string{http.MethodGet, http.MethodPost}
}

func (h *MessageHandler) Handle(req *Request) *Response {
	switch {
	case req.Path == "/api/v1/messages/send" && req.Method == http.MethodPost:
		return h.handleSendMessage(req)
	case req.Path == "/api/v1/messages/read" && req.Method == http.MethodPost:
		return h.handleMarkAsRead(req)
	case req.Path == "/api/v1/messages" && req.Method == http.MethodGet:
		return h.handleGetMessages(req)
	default:
		return h.RespondError(http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
	}
}

type sendMessageRequestBody struct {
	ToLogin string `json:"to_login"`
	Message string `json:"message"`
}

func (h *MessageHandler) handleSendMessage(req *Request) *Response {
	result := "failure"
	defer func() {
		metrics.MessagesSentTotal.WithLabelValues(result).Inc()
	}()
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}
	fromUserID, ok := h.ValidateAccessToken(accessToken)
	if !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}
	if !h.RequireJSONContentType(req) {
		return h.RespondError(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type must be application/json")
	}
	var body sendMessageRequestBody
	if !h.ParseJSONBody(req, &body) {
		return h.RespondError(http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
	}
	if body.ToLogin == "" || body.Message == "" {
		return h.RespondError(http.StatusBadRequest, "MISSING_FIELDS", "to_login and message are required")
	}
	if len(body.Message) > 4096 {
		return h.RespondError(http.StatusBadRequest, "MESSAGE_TOO_LONG", "Message exceeds maximum length of 4096 characters")
	}

	ctx := context.Background()
	recipient, err := h.Users.GetByLogin(ctx, body.ToLogin)
	if err != nil {
		return h.RespondError(http.StatusNotFound, "USER_NOT_FOUND", "Recipient user not found")
	}
	if fromUserID == recipient.ID() {
		return h.RespondError(http.StatusBadRequest, "SELF_MESSAGE", "Cannot send message to yourself")
	}

	msg, err := domain.NewMessage(fromUserID, recipient.ID(), body.Message)
	if err != nil {
		return h.RespondError(http.StatusBadRequest, "MESSAGE_TOO_LONG", err.Error())
	}

	if err := h.Messages.Create(ctx, msg); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return h.RespondError(http.StatusNotFound, "USER_NOT_FOUND", "Recipient user not found")
		}
		if h.Log != nil {
			h.Log.Error("failed to send message", "error", err)
		}
		return h.RespondError(http.StatusInternalServerError, "MESSAGE_SEND_FAILED", "Failed to send message")
	}

	result = "success"
	if h.Log != nil {
		h.Log.Info("message sent", "from_user_id", fromUserID, "to_user_id", recipient.ID())
	}
	return h.RespondSuccess(map[string]string{
		"message_id": msg.ID(),
		"sent_at":    msg.CreatedAt(),
	}, http.StatusCreated, "Message sent successfully")
}

func (h *MessageHandler) handleGetMessages(req *Request) *Response {
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}
	userID, ok := h.ValidateAccessToken(accessToken)
	if !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}

	filter := store.ListFilter{
		UnreadOnly:       req.Query.Get("unread_only") == "true",
		ConversationWith: req.Query.Get("conversation_with"),
		AfterMessageID:   req.Query.Get("after_message_id"),
		BeforeMessageID:  req.Query.Get("before_message_id"),
		Limit:            QueryInt(req, "limit", 50, 1, 200),
	}

	ctx := context.Background()
	messages, err := h.Messages.ListForUser(ctx, userID, filter)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("failed to get messages", "error", err)
		}
		return h.RespondError(http.StatusInternalServerError, "GET_MESSAGES_FAILED", "Failed to get messages")
	}
	unreadCount, err := h.Messages.CountUnread(ctx, userID)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("failed to count unread messages", "error", err)
		}
		return h.RespondError(http.StatusInternalServerError, "GET_MESSAGES_FAILED", "Failed to get messages")
	}

	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{
			"message_id":   m.ID(),
			"from_user_id": m.FromUserID(),
			"to_user_id":   m.ToUserID(),
			"from_login":   m.FromLogin(),
			"to_login":     m.ToLogin(),
			"message_text": m.Text(),
			"timestamp":    m.CreatedAt(),
			"is_read":      m.IsRead(),
		})
	}

	meta := map[string]any{
		"total_count":  len(messages),
		"unread_count": unreadCount,
		"has_more":     len(messages) == filter.Limit,
	}
	if len(messages) > 0 {
		meta["last_message_id"] = messages[len(messages)-1].ID()
	}

	return h.RespondSuccess(map[string]any{
		"messages": out,
		"meta":     meta,
	}, http.StatusOK, "")
}

type markReadRequestBody struct {
	MessageIDs []string `json:"message_ids"`
}

func (h *MessageHandler) handleMarkAsRead(req *Request) *Response {
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}
	userID, ok := h.ValidateAccessToken(accessToken)
	if !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}
	if !h.RequireJSONContentType(req) {
		return h.RespondError(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type must be application/json")
	}
	var body markReadRequestBody
	if !h.ParseJSONBody(req, &body) || body.MessageIDs == nil {
		return h.RespondError(http.StatusBadRequest, "EMPTY_MESSAGE_IDS", "Message IDs array is required")
	}
	if len(body.MessageIDs) == 0 {
		return h.RespondError(http.StatusBadRequest, "EMPTY_MESSAGE_IDS", "Message IDs array cannot be empty")
	}

	ctx := context.Background()
	affected, err := h.Messages.MarkRead(ctx, userID, body.MessageIDs)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("failed to mark messages as read", "error", err)
		}
		return h.RespondError(http.StatusInternalServerError, "MARK_READ_FAILED", "Failed to mark messages as read")
	}

	if h.Log != nil {
		h.Log.Debug("marked messages as read", "affected_count", affected, "user_id", userID)
	}
	// read_count preserves the input cardinality per the documented
	// contract; affected_count carries the true number of rows flipped
	// (see DESIGN.md, open question on read_count semantics).
	return h.RespondSuccess(map[string]any{
		"read_count":     len(body.MessageIDs),
		"affected_count": affected,
	}, http.StatusOK, "Messages marked as read")
}
