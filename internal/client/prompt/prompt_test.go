package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/atinyakov/chemora/internal/client/session"
	"github.com/atinyakov/chemora/internal/models"
)

func TestCredential(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("  admin \nadmin\n"), &out)

	c, err := p.Credential()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.Credential{Username: "admin", Password: "admin"}
	if c != want {
		t.Errorf("Credential() = %+v; want %+v", c, want)
	}
	if !strings.Contains(out.String(), "Username: ") || !strings.Contains(out.String(), "Password: ") {
		t.Errorf("prompts missing from output %q", out.String())
	}
}

func TestCredential_Closed(t *testing.T) {
	p := New(strings.NewReader("admin\n"), &bytes.Buffer{})
	if _, err := p.Credential(); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSignup(t *testing.T) {
	input := "ada\nada@example.com\nAda\nLovelace\nsecret1\nsecret1\n"
	p := New(strings.NewReader(input), &bytes.Buffer{})

	f, err := p.Signup()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := session.SignupForm{
		Username:  "ada",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "secret1",
		Confirm:   "secret1",
	}
	if f != want {
		t.Errorf("Signup() = %+v; want %+v", f, want)
	}
}

func TestLine_Sequence(t *testing.T) {
	p := New(strings.NewReader("one\ntwo\n"), &bytes.Buffer{})
	for _, want := range []string{"one", "two"} {
		got, err := p.Line("> ")
		if err != nil || got != want {
			t.Fatalf("Line() = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := p.Line("> "); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
