package security

import "testing"

func TestHashUnsaltedIsMD5(t *testing.T) {
	got, err := Hash("hunter2", "")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	// md5("hunter2")
	want := "2ab96390c7dbe3439de74d0c9b0b1767"
	if got != want {
		t.Fatalf("Hash(no salt) = %q, want %q", got, want)
	}
}

func TestHashSaltedIsSHA256(t *testing.T) {
	got, err := Hash("hunter2", "pepper")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars for sha256, got %d", len(got))
	}
	again, _ := Hash("hunter2", "pepper")
	if got != again {
		t.Fatalf("Hash is not deterministic for the same salt")
	}
}

func TestHashEmptyPassword(t *testing.T) {
	if _, err := Hash("", "salt"); err != ErrEmptyPassword {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	for _, salt := range []string{"", "some-salt"} {
		hash, err := Hash("correct horse", salt)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		if !Verify("correct horse", hash, salt) {
			t.Fatalf("Verify failed to accept the correct password (salt=%q)", salt)
		}
		if Verify("wrong password", hash, salt) {
			t.Fatalf("Verify accepted an incorrect password (salt=%q)", salt)
		}
	}
}

func TestVerifyEmptyInputsFailClosed(t *testing.T) {
	if Verify("", "somehash", "") {
		t.Fatalf("Verify accepted an empty password")
	}
	if Verify("password", "", "") {
		t.Fatalf("Verify accepted an empty stored hash")
	}
}

func TestFingerprintRefreshTokenIsSHA256(t *testing.T) {
	fp := FingerprintRefreshToken("some.refresh.token")
	if len(fp) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(fp))
	}
	if fp != FingerprintRefreshToken("some.refresh.token") {
		t.Fatalf("fingerprint is not deterministic")
	}
	if fp == FingerprintRefreshToken("other.token") {
		t.Fatalf("fingerprint collided across distinct inputs")
	}
}
