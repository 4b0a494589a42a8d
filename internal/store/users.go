package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"novachat/internal/domain"
)

// Users repositories operations against the users table, generalized
// from the teacher's gorm-backed UserStore to parameter-bound pgx
// calls (see DESIGN.md, Open Question b).
type Users struct{ pool *Pool }

func (p *Pool) Users() *Users { return &Users{pool: p} }

// ErrLoginExists is returned by Create when the login uniqueness
// constraint is violated.
var ErrLoginExists = errors.New("store: login already exists")

const pgUniqueViolation = "23505"

// Create inserts a new user row. u must already carry a generated ID
// and hashed password (see domain.NewUser).
func (u *Users) Create(ctx context.Context, usr *domain.User) error {
	return u.pool.Execute(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (user_id, login, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
			usr.ID(), usr.Login(), usr.PasswordHash(), usr.CreatedAt())
		if err != nil {
			if isUniqueViolation(err) {
				return ErrLoginExists
			}
			return err
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == pgUniqueViolation
	}
	return false
}

// GetByID returns the user with the given ID, or ErrRecordNotFound.
func (u *Users) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return u.scanOne(ctx, `SELECT user_id, login, password_hash, created_at FROM users WHERE user_id = $1`, id)
}

// GetByLogin returns the user with the given login, or
// ErrRecordNotFound.
func (u *Users) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	return u.scanOne(ctx, `SELECT user_id, login, password_hash, created_at FROM users WHERE login = $1`, login)
}

func (u *Users) scanOne(ctx context.Context, query, arg string) (*domain.User, error) {
	var row domain.UserRow
	err := u.pool.Execute(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, arg).Scan(&row.UserID, &row.Login, &row.PasswordHash, &row.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		var qe *QueryError
		if errors.As(err, &qe) && errors.Is(qe.Err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return domain.UserFromRow(row)
}

// UpdatePasswordHash overwrites the stored hash for id.
func (u *Users) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	return u.pool.Execute(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE user_id = $2`, newHash, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// Delete removes the user row; ON DELETE CASCADE at the schema level
// takes care of messages and refresh tokens (§6).
func (u *Users) Delete(ctx context.Context, id string) error {
	return u.pool.Execute(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// UserSummary is the {user_id, login} projection returned by list and
// search.
type UserSummary struct {
	UserID string
	Login  string
}

// List returns a page of users ordered by created_at descending, plus
// the total matching count honoring an optional case-insensitive
// login substring filter.
func (u *Users) List(ctx context.Context, search string, limit, offset int) ([]UserSummary, int, error) {
	var (
		summaries []UserSummary
		total     int
	)
	err := u.pool.Execute(ctx, func(tx pgx.Tx) error {
		filter := "%" + search + "%"
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM users WHERE ($1 = '' OR login ILIKE $2)`, search, filter,
		).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx,
			`SELECT user_id, login FROM users WHERE ($1 = '' OR login ILIKE $2)
			 ORDER BY created_at DESC LIMIT $3 OFFSET $4`, search, filter, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s UserSummary
			if err := rows.Scan(&s.UserID, &s.Login); err != nil {
				return err
			}
			summaries = append(summaries, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// Search returns up to limit users whose login contains query
// (case-insensitive), ordered by login ascending.
func (u *Users) Search(ctx context.Context, query string, limit int) ([]UserSummary, error) {
	var summaries []UserSummary
	err := u.pool.Execute(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT user_id, login FROM users WHERE login ILIKE $1 ORDER BY login ASC LIMIT $2`,
			"%"+query+"%", limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s UserSummary
			if err := rows.Scan(&s.UserID, &s.Login); err != nil {
				return err
			}
			summaries = append(summaries, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
