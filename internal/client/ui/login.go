package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrBusy               = errors.New("sign-in already in progress")
)

const DefaultLoginDelay = 800 * time.Millisecond

// LoginView is a simulated sign-in form. Credentials are only checked for
// presence and are dropped once the delay elapses.
type LoginView struct {
	delay           time.Duration
	onAuthenticated func()

	mu       sync.Mutex
	busy     bool
	email    string
	password string

	afterFunc func(d time.Duration, f func())
}

func NewLoginView(delay time.Duration, onAuthenticated func()) *LoginView {
	if delay <= 0 {
		delay = DefaultLoginDelay
	}
	return &LoginView{
		delay:           delay,
		onAuthenticated: onAuthenticated,
		afterFunc:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

func (v *LoginView) Delay() time.Duration {
	return v.delay
}

func (v *LoginView) SetEmail(email string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.email = email
}

func (v *LoginView) SetPassword(password string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.password = password
}

func (v *LoginView) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy
}

func (v *LoginView) SubmitEnabled() bool {
	return !v.Busy()
}

// Submit starts the simulated sign-in. After the delay the form leaves the
// busy state and OnAuthenticated runs once. The timer cannot be cancelled.
func (v *LoginView) Submit() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.busy {
		return ErrBusy
	}
	if v.email == "" || v.password == "" {
		return ErrMissingCredentials
	}

	v.busy = true
	v.afterFunc(v.delay, v.complete)
	return nil
}

func (v *LoginView) complete() {
	v.mu.Lock()
	v.busy = false
	v.password = ""
	cb := v.onAuthenticated
	v.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (v *LoginView) Render(w io.Writer) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintln(w, "Sign in")
	fmt.Fprintf(w, "  Email:    %s\n", v.email)
	fmt.Fprintf(w, "  Password: %s\n", mask(v.password))
	if v.busy {
		fmt.Fprintln(w, "  Signing in...")
	} else {
		fmt.Fprintln(w, "  [Sign in]")
	}
}

func mask(s string) string {
	return strings.Repeat("*", utf8.RuneCountInString(s))
}
