// Package navigation holds the page state machine of the client.
package navigation

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/atinyakov/chemora/internal/client/session"
)

// Page is a screen of the client.
type Page int

const (
	Home Page = iota
	Login
	Signup
	Dashboard
)

func (p Page) String() string {
	switch p {
	case Home:
		return "home"
	case Login:
		return "login"
	case Signup:
		return "signup"
	case Dashboard:
		return "dashboard"
	default:
		return fmt.Sprintf("Page(%d)", int(p))
	}
}

// ParsePage maps a page name to a Page, ignoring case.
func ParsePage(s string) (Page, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home":
		return Home, nil
	case "login":
		return Login, nil
	case "signup":
		return Signup, nil
	case "dashboard":
		return Dashboard, nil
	}
	return Home, fmt.Errorf("unknown page %q", s)
}

// Sessioner is the part of the session manager navigation depends on.
type Sessioner interface {
	State() session.State
	Subscribe(func(session.Change))
}

// Controller tracks the current page. The dashboard is only reachable
// while authenticated.
type Controller struct {
	sess Sessioner

	mu      sync.Mutex
	current Page
	subs    []func(Page)
}

// NewController starts at Home and follows session transitions: logging in
// lands on the dashboard, logging out returns home. A restored session
// stays where it is.
func NewController(sess Sessioner) *Controller {
	c := &Controller{sess: sess, current: Home}
	sess.Subscribe(func(ch session.Change) {
		switch ch.Reason {
		case session.LoggedIn:
			c.set(Dashboard)
		case session.LoggedOut:
			c.set(Home)
		}
	})
	return c
}

// Current returns the page being shown.
func (c *Controller) Current() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnChange registers fn to be called with every new page.
func (c *Controller) OnChange(fn func(Page)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Navigate moves to target and returns the resulting page. An anonymous
// request for the dashboard is redirected to the login page.
func (c *Controller) Navigate(target Page) Page {
	if target == Dashboard && !c.sess.State().Authenticated {
		target = Login
	}
	c.set(target)
	return target
}

func (c *Controller) set(p Page) {
	c.mu.Lock()
	c.current = p
	subs := slices.Clone(c.subs)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(p)
	}
}
