package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUserAssignsIDAndHashesPassword(t *testing.T) {
	u, err := NewUser("alice", "s3cret1")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if u.ID() == "" {
		t.Fatalf("expected a generated id")
	}
	if u.PasswordHash() == "" || u.PasswordHash() == "s3cret1" {
		t.Fatalf("expected password to be hashed, got %q", u.PasswordHash())
	}
	if !u.IsPasswordValid("s3cret1") {
		t.Fatalf("expected the original password to verify")
	}
	if u.IsPasswordValid("wrong") {
		t.Fatalf("did not expect an incorrect password to verify")
	}
}

func TestNewUserRejectsInvalidLogin(t *testing.T) {
	if _, err := NewUser("a", "s3cret1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for short login, got %v", err)
	}
}

func TestNewUserRejectsInvalidPassword(t *testing.T) {
	if _, err := NewUser("alice", "short"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for weak password, got %v", err)
	}
}

func TestUserToJSONExcludesPasswordHash(t *testing.T) {
	u, err := NewUser("alice", "s3cret1")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	out := string(u.ToJSON())
	if strings.Contains(out, u.PasswordHash()) {
		t.Fatalf("ToJSON leaked the password hash: %s", out)
	}
	if !strings.Contains(out, `"login":"alice"`) {
		t.Fatalf("expected login in output, got %s", out)
	}
}

func TestUserFromJSONRoundTrip(t *testing.T) {
	original, err := NewUser("bob123", "letmein1")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	raw := []byte(`{"user_id":"` + original.ID() + `","login":"bob123","password_hash":"` +
		original.PasswordHash() + `","created_at":"` + original.CreatedAt() + `"}`)
	parsed, err := UserFromJSON(raw)
	if err != nil {
		t.Fatalf("UserFromJSON: %v", err)
	}
	if parsed.ID() != original.ID() || parsed.Login() != original.Login() {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, original)
	}
}

func TestUserFromJSONRejectsInvalidLogin(t *testing.T) {
	if _, err := UserFromJSON([]byte(`{"login":"x","password_hash":"deadbeef"}`)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestUserFromJSONRejectsMalformedPayload(t *testing.T) {
	if _, err := UserFromJSON([]byte(`not json`)); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestUserFromRowRequiresCompleteRow(t *testing.T) {
	if _, err := UserFromRow(UserRow{Login: "alice"}); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for missing id/created_at, got %v", err)
	}
	u, err := UserFromRow(UserRow{
		UserID: "123e4567-e89b-12d3-a456-426614174000", Login: "alice",
		PasswordHash: "deadbeef", CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("UserFromRow: %v", err)
	}
	if u.Login() != "alice" {
		t.Fatalf("expected login alice, got %q", u.Login())
	}
}

func TestUserGenerateInsertSQLEmbedsLiterals(t *testing.T) {
	u, err := NewUser("alice", "s3cret1")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	sql := u.GenerateInsertSQL()
	if !strings.Contains(sql, "INSERT INTO users") || !strings.Contains(sql, u.Login()) {
		t.Fatalf("unexpected insert sql: %s", sql)
	}
}

func TestUserGenerateUpdateSQLRequiresID(t *testing.T) {
	u := &User{}
	if err := u.SetLogin("alice"); err != nil {
		t.Fatalf("SetLogin: %v", err)
	}
	if _, err := u.GenerateUpdateSQL(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without an id, got %v", err)
	}
}
