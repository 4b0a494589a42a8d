package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"novachat/internal/security"
)

// Message mirrors the original setter-validates-then-mutates model,
// generalized into a Go struct with methods instead of a class
// hierarchy rooted at IModel (see DESIGN.md, REDESIGN FLAGS).
type Message struct {
	id         string
	fromUserID string
	toUserID   string
	fromLogin  string
	toLogin    string
	text       string
	isRead     bool
	createdAt  string
}

// NewMessage validates fromUserID, toUserID, and text, sanitizes text,
// and assigns a fresh UUID.
func NewMessage(fromUserID, toUserID, text string) (*Message, error) {
	m := &Message{}
	m.SetFromUserID(fromUserID)
	m.SetToUserID(toUserID)
	if err := m.SetMessageText(text); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.id = uuid.NewString()
	m.createdAt = time.Now().UTC().Format(time.RFC3339)
	return m, nil
}

func (m *Message) ID() string         { return m.id }
func (m *Message) FromUserID() string { return m.fromUserID }
func (m *Message) ToUserID() string   { return m.toUserID }
func (m *Message) FromLogin() string  { return m.fromLogin }
func (m *Message) ToLogin() string    { return m.toLogin }
func (m *Message) Text() string       { return m.text }
func (m *Message) IsRead() bool       { return m.isRead }
func (m *Message) CreatedAt() string  { return m.createdAt }

func (m *Message) SetID(id string)               { m.id = id }
func (m *Message) SetFromUserID(id string)       { m.fromUserID = id }
func (m *Message) SetToUserID(id string)         { m.toUserID = id }
func (m *Message) SetFromLogin(login string)     { m.fromLogin = login }
func (m *Message) SetToLogin(login string)       { m.toLogin = login }
func (m *Message) SetIsRead(isRead bool)         { m.isRead = isRead }
func (m *Message) SetCreatedAt(timestamp string) { m.createdAt = timestamp }

// SetMessageText validates length, sanitizes the text, and rejects it
// outright if sanitization detects dangerous content — the same
// two-stage check as the original setMessageText.
func (m *Message) SetMessageText(text string) error {
	if !security.MessageTextValid(text) {
		return fmt.Errorf("%w: invalid message length", ErrInvalidArgument)
	}
	cleaned := security.SecurityClean(text)
	if cleaned == "" {
		return fmt.Errorf("%w: message contains dangerous content", ErrInvalidArgument)
	}
	m.text = cleaned
	return nil
}

// MarkAsRead flips the read flag; it never transitions back to unread.
func (m *Message) MarkAsRead() { m.isRead = true }

func (m *Message) IsFromUser(userID string) bool { return m.fromUserID == userID }
func (m *Message) IsToUser(userID string) bool   { return m.toUserID == userID }

type messageJSON struct {
	MessageID  string `json:"message_id,omitempty"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	FromLogin  string `json:"from_login,omitempty"`
	ToLogin    string `json:"to_login,omitempty"`
	Text       string `json:"message_text"`
	IsRead     bool   `json:"is_read"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// ToJSON serializes the message in full; unlike User, there is no
// sensitive field to strip.
func (m *Message) ToJSON() []byte {
	out, _ := json.Marshal(messageJSON{
		MessageID:  m.id,
		FromUserID: m.fromUserID,
		ToUserID:   m.toUserID,
		FromLogin:  m.fromLogin,
		ToLogin:    m.toLogin,
		Text:       m.text,
		IsRead:     m.isRead,
		CreatedAt:  m.createdAt,
	})
	return out
}

type messageWireJSON struct {
	MessageID  *string `json:"message_id"`
	FromUserID *string `json:"from_user_id"`
	ToUserID   *string `json:"to_user_id"`
	FromLogin  *string `json:"from_login"`
	ToLogin    *string `json:"to_login"`
	Text       *string `json:"message_text"`
	IsRead     *bool   `json:"is_read"`
	CreatedAt  *string `json:"created_at"`
}

// MessageFromJSON parses raw into a Message, field by field, then
// requires Validate() to pass.
func MessageFromJSON(raw []byte) (*Message, error) {
	var w messageWireJSON
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	m := &Message{}
	if w.MessageID != nil {
		m.id = *w.MessageID
	}
	if w.FromUserID != nil {
		m.fromUserID = *w.FromUserID
	}
	if w.ToUserID != nil {
		m.toUserID = *w.ToUserID
	}
	if w.FromLogin != nil {
		m.fromLogin = *w.FromLogin
	}
	if w.ToLogin != nil {
		m.toLogin = *w.ToLogin
	}
	if w.Text != nil {
		if err := m.SetMessageText(*w.Text); err != nil {
			return nil, err
		}
	}
	if w.IsRead != nil {
		m.isRead = *w.IsRead
	}
	if w.CreatedAt != nil {
		m.createdAt = *w.CreatedAt
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports the same invariants as the original isValid:
// well-formed, distinct sender/recipient UUIDs (and, when both logins
// are populated, distinct logins), and a valid text length.
func (m *Message) Validate() error {
	if !security.UUIDValid(m.fromUserID) {
		return fmt.Errorf("%w: invalid from_user_id", ErrInvalidModel)
	}
	if !security.UUIDValid(m.toUserID) {
		return fmt.Errorf("%w: invalid to_user_id", ErrInvalidModel)
	}
	if m.fromUserID == m.toUserID {
		return fmt.Errorf("%w: cannot send a message to yourself", ErrInvalidModel)
	}
	if m.fromLogin != "" && m.toLogin != "" && m.fromLogin == m.toLogin {
		return fmt.Errorf("%w: cannot send a message to yourself", ErrInvalidModel)
	}
	if !security.MessageTextValid(m.text) {
		return fmt.Errorf("%w: invalid message length", ErrInvalidModel)
	}
	return nil
}

// MessageRow is the shape a store row is decoded into before being
// promoted to a validated Message via MessageFromRow.
type MessageRow struct {
	MessageID  string
	FromUserID string
	ToUserID   string
	FromLogin  string
	ToLogin    string
	Text       string
	IsRead     bool
	CreatedAt  string
}

// MessageFromRow promotes a raw database row into a Message, requiring
// Validate() to pass the way fromDatabaseRow does.
func MessageFromRow(row MessageRow) (*Message, error) {
	m := &Message{
		id:         row.MessageID,
		fromUserID: row.FromUserID,
		toUserID:   row.ToUserID,
		fromLogin:  row.FromLogin,
		toLogin:    row.ToLogin,
		text:       row.Text,
		isRead:     row.IsRead,
		createdAt:  row.CreatedAt,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid message row: %v", ErrInvalidModel, err)
	}
	return m, nil
}

// GenerateInsertSQL is a test-only hook retained from the legacy model;
// internal/store always binds parameters instead (DESIGN.md, Open
// Question b).
func (m *Message) GenerateInsertSQL() string {
	sql := "INSERT INTO messages (from_user_id, to_user_id, message_text"
	if m.id != "" {
		sql += ", message_id"
	}
	sql += ", is_read) VALUES ('" + m.fromUserID + "', '" + m.toUserID + "', '" + m.text + "'"
	if m.id != "" {
		sql += ", '" + m.id + "'"
	}
	if m.isRead {
		sql += ", TRUE)"
	} else {
		sql += ", FALSE)"
	}
	return sql
}

// GenerateUpdateSQL is the update-statement analogue of
// GenerateInsertSQL; also test-only.
func (m *Message) GenerateUpdateSQL() (string, error) {
	if m.id == "" {
		return "", fmt.Errorf("%w: cannot generate update SQL without id", ErrInvalidArgument)
	}
	sql := "UPDATE messages SET from_user_id = '" + m.fromUserID + "'"
	sql += ", to_user_id = '" + m.toUserID + "'"
	sql += ", message_text = '" + m.text + "'"
	if m.isRead {
		sql += ", is_read = TRUE"
	} else {
		sql += ", is_read = FALSE"
	}
	sql += " WHERE message_id = '" + m.id + "'"
	return sql, nil
}
