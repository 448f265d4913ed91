package storage

import (
	"testing"

	"github.com/atinyakov/chemora/internal/models"
)

func TestNewCodecFromSecret_Deterministic(t *testing.T) {
	c1, err := NewCodecFromSecret([]byte("profile-secret"))
	if err != nil {
		t.Fatalf("derive codec failed: %v", err)
	}
	c2, err := NewCodecFromSecret([]byte("profile-secret"))
	if err != nil {
		t.Fatalf("derive codec second time: %v", err)
	}

	// same secret => same keys, so we can seal with c1 and open with c2
	sealed, err := c1.Seal("auth", models.Credential{Username: "admin", Password: "admin"})
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	var got models.Credential
	if err := c2.Open("auth", sealed, &got); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if got.Username != "admin" || got.Password != "admin" {
		t.Errorf("unexpected credential: %+v", got)
	}
}

func TestCodec_WrongSecretOrName(t *testing.T) {
	c1, _ := NewCodecFromSecret([]byte("one"))
	c2, _ := NewCodecFromSecret([]byte("two"))

	sealed, err := c1.Seal("auth", "value")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	var s string
	if err := c2.Open("auth", sealed, &s); err == nil {
		t.Error("expected open with another secret to fail")
	}
	if err := c1.Open("registeredUsers", sealed, &s); err == nil {
		t.Error("expected open under another name to fail")
	}
}

func TestNewCodecFromSecret_Empty(t *testing.T) {
	if _, err := NewCodecFromSecret(nil); err == nil {
		t.Error("expected error for empty secret")
	}
}
