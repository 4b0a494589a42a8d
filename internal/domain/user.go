package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"novachat/internal/security"
)

// User is a plain struct with validating setters, mirroring the
// setter-validates-then-mutates shape of the original model classes
// rather than the teacher's ORM-tagged struct (there is no separate
// gorm layer here; see internal/store for the persistence mapping).
type User struct {
	id           string
	login        string
	passwordHash string
	passwordSalt string
	createdAt    string
}

// NewUser validates login and password, hashes the password, and
// assigns a fresh UUID. It never returns a User with an empty ID.
func NewUser(login, password string) (*User, error) {
	u := &User{}
	if err := u.SetLogin(login); err != nil {
		return nil, err
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	u.id = uuid.NewString()
	u.createdAt = time.Now().UTC().Format(time.RFC3339)
	return u, nil
}

func (u *User) ID() string           { return u.id }
func (u *User) Login() string        { return u.login }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) PasswordSalt() string { return u.passwordSalt }
func (u *User) CreatedAt() string    { return u.createdAt }

func (u *User) SetID(id string) { u.id = id }

// SetLogin validates login against LoginValid before assigning it.
func (u *User) SetLogin(login string) error {
	if !security.LoginValid(login) {
		return fmt.Errorf("%w: invalid login format", ErrInvalidArgument)
	}
	u.login = login
	return nil
}

// SetPassword validates password against PasswordValid and stores its
// hash. No salt is generated: matching User::setPassword in the
// original model, this always takes security.Hash's unsalted MD5
// branch, since the users table (spec.md §6) has no password_salt
// column to persist one in. The plaintext is never retained.
func (u *User) SetPassword(password string) error {
	if !security.PasswordValid(password) {
		return fmt.Errorf("%w: invalid password format", ErrInvalidArgument)
	}
	hash, err := security.Hash(password, "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	u.passwordHash = hash
	u.passwordSalt = ""
	return nil
}

// SetPasswordHash assigns a precomputed hash/salt pair without
// validation. Used when loading rows out of the store.
func (u *User) SetPasswordHash(hash, salt string) {
	u.passwordHash = hash
	u.passwordSalt = salt
}

func (u *User) SetCreatedAt(timestamp string) { u.createdAt = timestamp }

// IsPasswordValid reports whether password matches the stored hash.
func (u *User) IsPasswordValid(password string) bool {
	return security.Verify(password, u.passwordHash, u.passwordSalt)
}

// userJSON is the wire shape for User. password_hash and salt are
// never emitted; ToJSON excludes them the way the original toJson()
// excludes passwordHash_.
type userJSON struct {
	UserID    string `json:"user_id,omitempty"`
	Login     string `json:"login"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ToJSON serializes the public projection of the user: id, login, and
// creation timestamp. It never fails.
func (u *User) ToJSON() []byte {
	out, _ := json.Marshal(userJSON{
		UserID:    u.id,
		Login:     u.login,
		CreatedAt: u.createdAt,
	})
	return out
}

// userWireJSON additionally accepts a plaintext password and/or a
// precomputed hash on the way in, mirroring fromJson's tolerance for
// either field.
type userWireJSON struct {
	UserID       *string `json:"user_id"`
	Login        *string `json:"login"`
	Password     *string `json:"password"`
	PasswordHash *string `json:"password_hash"`
	CreatedAt    *string `json:"created_at"`
}

// UserFromJSON parses raw into a User, applying the same field-by-field
// validation the setters apply, then requires Validate() to pass.
func UserFromJSON(raw []byte) (*User, error) {
	var w userWireJSON
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	u := &User{}
	if w.UserID != nil {
		u.id = *w.UserID
	}
	if w.Login != nil {
		if err := u.SetLogin(*w.Login); err != nil {
			return nil, err
		}
	}
	if w.Password != nil {
		if err := u.SetPassword(*w.Password); err != nil {
			return nil, err
		}
	}
	if w.PasswordHash != nil {
		u.passwordHash = *w.PasswordHash
	}
	if w.CreatedAt != nil {
		u.createdAt = *w.CreatedAt
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate reports the same invariants as the original isValid: login
// must be well formed and a password hash must be present.
func (u *User) Validate() error {
	if !security.LoginValid(u.login) {
		return fmt.Errorf("%w: invalid login", ErrInvalidModel)
	}
	if u.passwordHash == "" {
		return fmt.Errorf("%w: password hash is empty", ErrInvalidModel)
	}
	return nil
}

// UserRow is the shape a store row is decoded into before being
// promoted to a validated User via UserFromRow.
type UserRow struct {
	UserID       string
	Login        string
	PasswordHash string
	PasswordSalt string
	CreatedAt    string
}

// UserFromRow promotes a raw database row into a User, requiring the
// id, login, and created-at columns to be populated the way
// fromDatabaseRow does.
func UserFromRow(row UserRow) (*User, error) {
	if row.UserID == "" || row.Login == "" || row.CreatedAt == "" {
		return nil, fmt.Errorf("%w: incomplete user row", ErrParse)
	}
	u := &User{
		id:           row.UserID,
		login:        row.Login,
		passwordHash: row.PasswordHash,
		passwordSalt: row.PasswordSalt,
		createdAt:    row.CreatedAt,
	}
	return u, nil
}

// GenerateInsertSQL is a test-only hook retained from the legacy model
// to document the exact literal-embedding statement the schema used to
// require; internal/store never calls this and always binds
// parameters instead (see DESIGN.md, Open Question b).
func (u *User) GenerateInsertSQL() string {
	sql := "INSERT INTO users (login, password_hash"
	if u.id != "" {
		sql += ", user_id"
	}
	sql += ") VALUES ('" + u.login + "', '" + u.passwordHash + "'"
	if u.id != "" {
		sql += ", '" + u.id + "'"
	}
	sql += ")"
	return sql
}

// GenerateUpdateSQL is the update-statement analogue of
// GenerateInsertSQL; also test-only, see the same DESIGN.md entry.
func (u *User) GenerateUpdateSQL() (string, error) {
	if u.id == "" {
		return "", fmt.Errorf("%w: cannot generate update SQL without id", ErrInvalidArgument)
	}
	sql := "UPDATE users SET login = '" + u.login + "'"
	sql += ", password_hash = '" + u.passwordHash + "'"
	sql += " WHERE user_id = '" + u.id + "'"
	return sql, nil
}
