// Package authjwt implements the HS256 access/refresh token issuer,
// verifier, and in-process revocation set (C4).
package authjwt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer is the fixed issuer claim stamped on every token, carried
	// over from the reference implementation's ISSUER constant.
	Issuer = "nova-chat-server"

	// MinSecretKeyLength is only a warn-on-startup threshold, not an
	// enforced minimum: a short key does not fail NewManager.
	MinSecretKeyLength = 32

	// MinAccessTokenExpiry and MaxAccessTokenExpiry bound the access
	// token TTL, expressed in minutes as in the original.
	MinAccessTokenExpiry = 1 * time.Minute
	MaxAccessTokenExpiry = 525600 * time.Minute

	claimTypeAccess  = "access"
	claimTypeRefresh = "refresh"
)

// ErrInvalidToken is returned by VerifyAndDecode for any token that
// fails signature verification, issuer verification, expiry, or has
// been revoked.
var ErrInvalidToken = errors.New("authjwt: invalid token")

// ErrEmptyArgument is returned when a required argument is empty.
var ErrEmptyArgument = errors.New("authjwt: argument cannot be empty")

// TokenPayload is the decoded, verified claim set returned by
// VerifyAndDecode.
type TokenPayload struct {
	UserID    string
	Login     string
	Type      string
	ExpiresAt time.Time
}

// claims is the JWT payload shape shared by access and refresh
// tokens; unlike the teacher's split AccessClaims/RefreshClaims (which
// track a session row), this mirrors the flatter userID/login/type
// triple the reference implementation embeds directly in the token.
type claims struct {
	UserID string `json:"userID"`
	Login  string `json:"login,omitempty"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 tokens and tracks revoked tokens
// in memory, keyed by the raw token string the way the original
// blacklist map is.
type Manager struct {
	secretKey         []byte
	accessTokenExpiry time.Duration
	refreshTokenTTL   time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // token -> expiry
}

// NewManager validates the expiry bounds and returns a Manager. An
// empty secret key is rejected outright; a short-but-nonempty one only
// logs a warning, matching the reference implementation's leniency.
func NewManager(secretKey string, accessTokenExpiry, refreshTokenTTL time.Duration) (*Manager, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("%w: secret key cannot be empty", ErrEmptyArgument)
	}
	if len(secretKey) < MinSecretKeyLength {
		slog.Warn("jwt secret key is shorter than recommended", "minimum", MinSecretKeyLength)
	}
	if accessTokenExpiry < MinAccessTokenExpiry {
		return nil, fmt.Errorf("authjwt: access token expiry too short (min %s)", MinAccessTokenExpiry)
	}
	if accessTokenExpiry > MaxAccessTokenExpiry {
		return nil, fmt.Errorf("authjwt: access token expiry too long (max %s)", MaxAccessTokenExpiry)
	}
	slog.Info("jwt manager initialized",
		"access_token_expiry", accessTokenExpiry, "refresh_token_ttl", refreshTokenTTL)
	return &Manager{
		secretKey:         []byte(secretKey),
		accessTokenExpiry: accessTokenExpiry,
		refreshTokenTTL:   refreshTokenTTL,
		revoked:           make(map[string]time.Time),
	}, nil
}

// GenerateAccessToken signs an access-typed token carrying userID and
// login.
func (m *Manager) GenerateAccessToken(userID, login string) (string, error) {
	if userID == "" || login == "" {
		return "", fmt.Errorf("%w: user id and login cannot be empty", ErrEmptyArgument)
	}
	return m.sign(userID, login, claimTypeAccess, m.accessTokenExpiry)
}

// GenerateRefreshToken signs a refresh-typed token carrying only
// userID; login is intentionally omitted the way the reference
// implementation's generateRefreshToken never sets it.
func (m *Manager) GenerateRefreshToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id cannot be empty", ErrEmptyArgument)
	}
	return m.sign(userID, "", claimTypeRefresh, m.refreshTokenTTL)
}

func (m *Manager) sign(userID, login, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	c := claims{
		UserID: userID,
		Login:  login,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   tokenType,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("authjwt: failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyAndDecode validates signature, algorithm, issuer, and expiry,
// rejects a revoked token, and returns the decoded payload.
func (m *Manager) VerifyAndDecode(token string) (TokenPayload, error) {
	if token == "" {
		return TokenPayload{}, fmt.Errorf("%w: token is empty", ErrEmptyArgument)
	}
	if m.IsRevoked(token) {
		return TokenPayload{}, fmt.Errorf("%w: token is revoked", ErrInvalidToken)
	}

	c := &claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	parsed, err := parser.ParseWithClaims(token, c, func(*jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	})
	if err != nil || !parsed.Valid {
		return TokenPayload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var expiresAt time.Time
	if c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.Time
	}
	return TokenPayload{
		UserID:    c.UserID,
		Login:     c.Login,
		Type:      c.Type,
		ExpiresAt: expiresAt,
	}, nil
}

// GetTokenExpiry parses token without verifying its signature and
// returns its expiry claim, mirroring getTokenExpiry's tolerance for
// decoding an otherwise-untrusted token to find out when it dies.
func (m *Manager) GetTokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	c := &claims{}
	_, _, err := parser.ParseUnverified(token, c)
	if err != nil {
		return time.Time{}, fmt.Errorf("authjwt: failed to parse token: %w", err)
	}
	if c.ExpiresAt == nil {
		return time.Time{}, errors.New("authjwt: token does not have an expiration claim")
	}
	return c.ExpiresAt.Time, nil
}

// AddToRevocation adds token to the in-process revocation set, keyed
// by its own expiry so Sweep can reclaim it once it would have
// expired naturally anyway. A token whose expiry cannot be determined
// is not added.
func (m *Manager) AddToRevocation(token string) {
	if token == "" {
		return
	}
	expiry, err := m.GetTokenExpiry(token)
	if err != nil {
		slog.Warn("failed to revoke token", "error", err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[token] = expiry
}

// IsRevoked reports whether token is present in the revocation set
// and has not yet passed its own recorded expiry.
func (m *Manager) IsRevoked(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.revoked[token]
	if !ok {
		return false
	}
	return expiry.After(time.Now().UTC())
}

// Sweep removes revocation entries whose recorded expiry has already
// passed, returning the number removed. Intended to run on a
// background timer (see internal/server).
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	removed := 0
	for token, expiry := range m.revoked {
		if !expiry.After(now) {
			delete(m.revoked, token)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("cleaned up expired revoked tokens", "removed", removed)
	}
	return removed
}
