package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"novachat/internal/domain"
	"novachat/internal/metrics"
	"novachat/internal/security"
	"novachat/internal/store"
)

// authUserStore is the slice of *store.Users the auth handlers need.
type authUserStore interface {
	Create(ctx context.Context, usr *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, newHash string) error
	Delete(ctx context.Context, id string) error
}

// authRefreshStore is the slice of *store.RefreshTokens the auth
// handlers need.
type authRefreshStore interface {
	Create(ctx context.Context, token, userID string, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (*store.RefreshRecord, error)
	Rotate(ctx context.Context, oldToken, newToken, userID string, newExpiresAt time.Time) error
	DeleteByToken(ctx context.Context, token string) error
}

// tokenIssuer is the full JWT surface the auth handlers need, a
// superset of Protocol's tokenVerifier.
type tokenIssuer interface {
	tokenVerifier
	GenerateAccessToken(userID, login string) (string, error)
	GenerateRefreshToken(userID string) (string, error)
	AddToRevocation(token string)
}

// AuthHandler serves the /api/v1/auth/* group. One instance dispatches
// internally by path+method, mirroring AuthHandlers::handleRequest.
type AuthHandler struct {
	Protocol
	Users              authUserStore
	RefreshTokens      authRefreshStore
	TokenManager       tokenIssuer
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Log                *slog.Logger
}

func (h *AuthHandler) SupportedMethods() []string {
	return []string{http.MethodPost, http.MethodPut, http.MethodDelete}
}

func (h *AuthHandler) Handle(req *Request) *Response {
	switch {
	case req.Path == "/api/v1/auth/register" && req.Method == http.MethodPost:
		return h.handleRegister(req)
	case req.Path == "/api/v1/auth/login" && req.Method == http.MethodPost:
		return h.handleLogin(req)
	case req.Path == "/api/v1/auth/refresh" && req.Method == http.MethodPost:
		return h.handleRefresh(req)
	case req.Path == "/api/v1/auth/logout" && req.Method == http.MethodPost:
		return h.handleLogout(req)
	case req.Path == "/api/v1/auth/password" && req.Method == http.MethodPut:
		return h.handleChangePassword(req)
	case req.Path == "/api/v1/auth/account" && req.Method == http.MethodDelete:
		return h.handleDeleteAccount(req)
	default:
		return h.RespondError(http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
	}
}

type registerRequestBody struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleRegister(req *Request) *Response {
	result := "failure"
	defer func() {
		metrics.AuthRegistrationsTotal.WithLabelValues(result).Inc()
	}()
	if !h.RequireJSONContentType(req) {
		return h.RespondError(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type must be application/json")
	}
	var body registerRequestBody
	if !h.ParseJSONBody(req, &body) {
		return h.RespondError(http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
	}
	if body.Login == "" || body.Password == "" {
		return h.RespondError(http.StatusBadRequest, "MISSING_FIELDS", "Login and password are required")
	}
	if !security.LoginValid(body.Login) {
		return h.RespondError(http.StatusBadRequest, "INVALID_LOGIN", "Login must be 3-50 characters and contain only letters, numbers and underscores")
	}
	if !security.PasswordValid(body.Password) {
		return h.RespondError(http.StatusBadRequest, "INVALID_PASSWORD", "Password must be at least 6 characters and contain at least one letter and one digit")
	}

	user, err := domain.NewUser(body.Login, body.Password)
	if err != nil {
		return h.RespondError(http.StatusBadRequest, "INVALID_LOGIN", err.Error())
	}

	ctx := context.Background()
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrLoginExists) {
			return h.RespondError(http.StatusConflict, "LOGIN_EXISTS", "User with this login already exists")
		}
		h.logError("registration failed", err)
		return h.RespondError(http.StatusInternalServerError, "REGISTRATION_FAILED", "Failed to create user")
	}

	result = "success"
	h.logInfo("user registered", "login", body.Login)
	return h.RespondSuccess(map[string]string{
		"user_id": user.ID(),
		"login":   user.Login(),
	}, http.StatusCreated, "User registered successfully")
}

type loginRequestBody struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleLogin(req *Request) *Response {
	result := "failure"
	defer func() {
		metrics.AuthLoginsTotal.WithLabelValues(result).Inc()
	}()
	if !h.RequireJSONContentType(req) {
		return h.RespondError(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type must be application/json")
	}
	var body loginRequestBody
	if !h.ParseJSONBody(req, &body) {
		return h.RespondError(http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
	}
	if body.Login == "" || body.Password == "" {
		return h.RespondError(http.StatusBadRequest, "MISSING_FIELDS", "Login and password are required")
	}

	ctx := context.Background()
	usr, err := h.Users.GetByLogin(ctx, body.Login)
	if err != nil {
		return h.RespondError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid login or password")
	}
	if !usr.IsPasswordValid(body.Password) {
		return h.RespondError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid login or password")
	}

	issueResult := "failure"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("login", issueResult).Inc()
	}()

	accessToken, err := h.TokenManager.GenerateAccessToken(usr.ID(), usr.Login())
	if err != nil {
		h.logError("access token generation failed", err)
		return h.RespondError(http.StatusInternalServerError, "LOGIN_FAILED", "Login failed")
	}
	refreshToken, err := h.TokenManager.GenerateRefreshToken(usr.ID())
	if err != nil {
		h.logError("refresh token generation failed", err)
		return h.RespondError(http.StatusInternalServerError, "LOGIN_FAILED", "Login failed")
	}
	if err := h.RefreshTokens.Create(ctx, refreshToken, usr.ID(), time.Now().Add(h.RefreshTokenExpiry)); err != nil {
		h.logError("failed to store refresh token", err)
		return h.RespondError(http.StatusInternalServerError, "TOKEN_STORAGE_FAILED", "Failed to store refresh token")
	}

	issueResult = "success"
	result = "success"
	h.logInfo("user logged in", "login", usr.Login())
	return h.RespondSuccess(map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.AccessTokenExpiry.Seconds()),
		"user_id":       usr.ID(),
		"login":         usr.Login(),
	}, http.StatusOK, "Login successful")
}

type refreshRequestBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) handleRefresh(req *Request) *Response {
	result := "failure"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", result).Inc()
	}()
	if !h.RequireJSONContentType(req) {
		return h.RespondError(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type must be application/json")
	}
	var body refreshRequestBody
	if !h.ParseJSONBody(req, &body) {
		return h.RespondError(http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
	}
	if body.RefreshToken == "" {
		return h.RespondError(http.StatusBadRequest, "MISSING_TOKEN", "Refresh token is required")
	}

	payload, err := h.TokenManager.VerifyAndDecode(body.RefreshToken)
	if err != nil || payload.Type != "refresh" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid")
	}

	ctx := context.Background()
	record, err := h.RefreshTokens.Lookup(ctx, body.RefreshToken)
	if err != nil {
		return h.RespondError(http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token not found or expired")
	}

	newAccessToken, err := h.TokenManager.GenerateAccessToken(payload.UserID, record.Login)
	if err != nil {
		h.logError("access token generation failed", err)
		return h.RespondError(http.StatusUnauthorized, "REFRESH_FAILED", "Token refresh failed")
	}
	newRefreshToken, err := h.TokenManager.GenerateRefreshToken(payload.UserID)
	if err != nil {
		h.logError("refresh token generation failed", err)
		return h.RespondError(http.StatusUnauthorized, "REFRESH_FAILED", "Token refresh failed")
	}

	if err := h.RefreshTokens.Rotate(ctx, body.RefreshToken, newRefreshToken, payload.UserID, time.Now().Add(h.RefreshTokenExpiry)); err != nil {
		h.logError("failed to rotate refresh token", err)
		return h.RespondError(http.StatusInternalServerError, "TOKEN_STORAGE_FAILED", "Failed to store refresh token")
	}

	result = "success"
	h.logDebug("tokens refreshed", "user_id", payload.UserID)
	return h.RespondSuccess(map[string]any{
		"access_token":  newAccessToken,
		"refresh_token": newRefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.AccessTokenExpiry.Seconds()),
		"user_id":       payload.UserID,
	}, http.StatusOK, "Tokens refreshed successfully")
}

type logoutRequestBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) handleLogout(req *Request) *Response {
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}
	if !h.RequireJSONContentType(req) {
		return h.RespondError(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type must be application/json")
	}
	var body logoutRequestBody
	if !h.ParseJSONBody(req, &body) {
		return h.RespondError(http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
	}
	if body.RefreshToken == "" {
		return h.RespondError(http.StatusBadRequest, "MISSING_TOKEN", "Refresh token is required")
	}

	userID, ok := h.ValidateAccessToken(accessToken)
	if !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}

	h.TokenManager.AddToRevocation(accessToken)

	ctx := context.Background()
	if err := h.RefreshTokens.DeleteByToken(ctx, body.RefreshToken); err != nil {
		h.logWarn("failed to invalidate refresh token", "user_id", userID)
	}

	h.logInfo("user logged out", "user_id", userID)
	return h.RespondSuccess(nil, http.StatusOK, "Successfully logged out")
}

type changePasswordRequestBody struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) handleChangePassword(req *Request) *Response {
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}
	if !h.RequireJSONContentType(req) {
		return h.RespondError(http.StatusBadRequest, "INVALID_CONTENT_TYPE", "Content-Type must be application/json")
	}
	var body changePasswordRequestBody
	if !h.ParseJSONBody(req, &body) {
		return h.RespondError(http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
	}
	if body.OldPassword == "" || body.NewPassword == "" {
		return h.RespondError(http.StatusBadRequest, "MISSING_FIELDS", "Old password and new password are required")
	}

	userID, ok := h.ValidateAccessToken(accessToken)
	if !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}

	ctx := context.Background()
	usr, err := h.Users.GetByID(ctx, userID)
	if err != nil || !usr.IsPasswordValid(body.OldPassword) {
		return h.RespondError(http.StatusForbidden, "INVALID_PASSWORD", "Current password is incorrect")
	}
	if !security.PasswordValid(body.NewPassword) {
		return h.RespondError(http.StatusBadRequest, "INVALID_PASSWORD", "New password must be at least 6 characters and contain at least one letter and one digit")
	}

	if err := usr.SetPassword(body.NewPassword); err != nil {
		return h.RespondError(http.StatusBadRequest, "INVALID_PASSWORD", err.Error())
	}
	if err := h.Users.UpdatePasswordHash(ctx, userID, usr.PasswordHash()); err != nil {
		h.logError("password change failed", err)
		return h.RespondError(http.StatusInternalServerError, "PASSWORD_CHANGE_FAILED", "Password change failed")
	}

	h.logInfo("password changed", "user_id", userID)
	return h.RespondSuccess(nil, http.StatusOK, "Password changed successfully")
}

func (h *AuthHandler) handleDeleteAccount(req *Request) *Response {
	accessToken := h.ExtractBearer(req)
	if accessToken == "" {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Access token is required")
	}

	userID, ok := h.ValidateAccessToken(accessToken)
	if !ok {
		return h.RespondError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
	}

	ctx := context.Background()
	if err := h.Users.Delete(ctx, userID); err != nil {
		h.logError("account deletion failed", err)
		return h.RespondError(http.StatusInternalServerError, "ACCOUNT_DELETION_FAILED", "Account deletion failed")
	}
	h.TokenManager.AddToRevocation(accessToken)

	h.logInfo("account deleted", "user_id", userID)
	return h.RespondSuccess(nil, http.StatusOK, "Account deleted successfully")
}

func (h *AuthHandler) logInfo(msg string, args ...any) {
	if h.Log != nil {
		h.Log.Info(msg, args...)
	}
}

func (h *AuthHandler) logDebug(msg string, args ...any) {
	if h.Log != nil {
		h.Log.Debug(msg, args...)
	}
}

func (h *AuthHandler) logWarn(msg string, args ...any) {
	if h.Log != nil {
		h.Log.Warn(msg, args...)
	}
}

func (h *AuthHandler) logError(msg string, err error, args ...any) {
	if h.Log != nil {
		h.Log.Error(msg, append([]any{"error", err}, args...)...)
	}
}
