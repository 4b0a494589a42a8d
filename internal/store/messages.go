package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"novachat/internal/domain"
)

// Messages repositories operations against the messages table,
// generalized from the teacher's gorm-backed message store
// (services/messages/internal/store/message.go) to pgx calls binding
// parameters instead of building `IN` clauses via ORM helpers.
type Messages struct{ pool *Pool }

func (p *Pool) Messages() *Messages { return &Messages{pool: p} }

// ErrUserNotFound is returned when a message references a login or
// user ID that does not resolve to an existing user; the schema-level
// before-insert trigger described in §6 is mirrored here at the
// application layer for a friendlier error.
var ErrUserNotFound = errors.New("store: user not found")

// Create inserts a new message row. m must already carry a generated
// ID and sanitized text (see domain.NewMessage).
func (m *Messages) Create(ctx context.Context, msg *domain.Message) error {
	return m.pool.Execute(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO messages (message_id, from_user_id, to_user_id, message_text, is_read, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			msg.ID(), msg.FromUserID(), msg.ToUserID(), msg.Text(), msg.IsRead(), msg.CreatedAt())
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
}

const pgForeignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == pgForeignKeyViolation
	}
	return false
}

// ListFilter narrows the ListForUser query.
type ListFilter struct {
	UnreadOnly       bool
	ConversationWith string // user ID, empty = no filter
	AfterMessageID   string // cursor: strictly newer than this message
	BeforeMessageID  string // cursor: strictly older than this message
	Limit            int
}

// ListForUser returns messages where userID is either sender or
// recipient, most recent first, applying the requested cursor and
// filters. Cursors key off the (created_at, message_id) tuple of the
// referenced message rather than lexical message-ID comparison
// (DESIGN.md, Open Question d), while keeping the wire parameter
// names after_message_id/before_message_id unchanged.
func (m *Messages) ListForUser(ctx context.Context, userID string, f ListFilter) ([]*domain.Message, error) {
	var out []*domain.Message
	err := m.pool.Execute(ctx, func(tx pgx.Tx) error {
		var b strings.Builder
		args := []interface{}{userID}
		b.WriteString(`SELECT m.message_id, m.from_user_id, m.to_user_id,
			fu.login, tu.login, m.message_text, m.is_read, m.created_at
			FROM messages m
			JOIN users fu ON fu.user_id = m.from_user_id
			JOIN users tu ON tu.user_id = m.to_user_id
			WHERE (m.from_user_id = $1 OR m.to_user_id = $1)`)

		if f.UnreadOnly {
			b.WriteString(` AND m.to_user_id = $1 AND m.is_read = false`)
		}
		if f.ConversationWith != "" {
			args = append(args, f.ConversationWith)
			b.WriteString(` AND (m.from_user_id = $`)
			b.WriteString(placeholderIndex(len(args)))
			b.WriteString(` OR m.to_user_id = $`)
			b.WriteString(placeholderIndex(len(args)))
			b.WriteString(`)`)
		}
		if f.AfterMessageID != "" {
			args = append(args, f.AfterMessageID)
			b.WriteString(` AND (m.created_at, m.message_id) > (
				SELECT created_at, message_id FROM messages WHERE message_id = $`)
			b.WriteString(placeholderIndex(len(args)))
			b.WriteString(`)`)
		}
		if f.BeforeMessageID != "" {
			args = append(args, f.BeforeMessageID)
			b.WriteString(` AND (m.created_at, m.message_id) < (
				SELECT created_at, message_id FROM messages WHERE message_id = $`)
			b.WriteString(placeholderIndex(len(args)))
			b.WriteString(`)`)
		}
		b.WriteString(` ORDER BY m.created_at DESC, m.message_id DESC LIMIT $`)
		args = append(args, f.Limit)
		b.WriteString(placeholderIndex(len(args)))

		rows, err := tx.Query(ctx, b.String(), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var row domain.MessageRow
			if err := rows.Scan(&row.MessageID, &row.FromUserID, &row.ToUserID,
				&row.FromLogin, &row.ToLogin, &row.Text, &row.IsRead, &row.CreatedAt); err != nil {
				return err
			}
			msg, err := domain.MessageFromRow(row)
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func placeholderIndex(n int) string {
	return "$" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// CountUnread returns the number of unread messages where userID is
// the recipient.
func (m *Messages) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := m.pool.Execute(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT count(*) FROM messages WHERE to_user_id = $1 AND is_read = false`, userID,
		).Scan(&count)
	})
	return count, err
}

// MarkRead sets is_read = true for every message ID in ids where
// userID is the recipient; other IDs are silently ignored. It returns
// the number of rows actually updated (affected_count), distinct from
// the input cardinality the wire contract calls read_count
// (DESIGN.md, Open Question c).
func (m *Messages) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int
	err := m.pool.Execute(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE messages SET is_read = true WHERE to_user_id = $1 AND message_id = ANY($2)`,
			userID, ids)
		if err != nil {
			return err
		}
		affected = int(tag.RowsAffected())
		return nil
	})
	return affected, err
}
