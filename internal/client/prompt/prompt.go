// Package prompt reads forms from a line-oriented terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/chemora/internal/client/session"
	"github.com/atinyakov/chemora/internal/models"
)

// ErrClosed is returned when input ends before a form is complete.
var ErrClosed = errors.New("prompt: input closed")

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// New reads answers from in and writes labels to out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Line prints label and returns the next input line without surrounding
// spaces.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", ErrClosed
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Credential asks for a username and password.
func (p *Prompter) Credential() (models.Credential, error) {
	var c models.Credential
	var err error
	if c.Username, err = p.Line("Username: "); err != nil {
		return c, err
	}
	if c.Password, err = p.Line("Password: "); err != nil {
		return c, err
	}
	return c, nil
}

// Signup asks for the account creation form.
func (p *Prompter) Signup() (session.SignupForm, error) {
	var f session.SignupForm
	fields := []struct {
		label string
		dst   *string
	}{
		{"Username: ", &f.Username},
		{"Email: ", &f.Email},
		{"First name: ", &f.FirstName},
		{"Last name: ", &f.LastName},
		{"Password: ", &f.Password},
		{"Confirm password: ", &f.Confirm},
	}
	for _, fl := range fields {
		v, err := p.Line(fl.label)
		if err != nil {
			return f, err
		}
		*fl.dst = v
	}
	return f, nil
}
