// Package session tracks the signed-in identity.
//
// The snippet controller and the CLI only ever read the current user and a
// bearer credential through Service. Remote talks to a sharebin server and
// keeps the credential in the local store; Noop is used when no server is
// configured and fails every mutating call closed.
package session

import (
	"context"
	"sync"

	"github.com/sakif/sharebin/internal/apperror"
)

// User is the signed-in identity as the client sees it.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Provider  string `json:"provider"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Service is the session collaborator consumed by the controller and CLI.
type Service interface {
	Login(ctx context.Context, email, password string) (*User, error)
	Register(ctx context.Context, username, email, password string) (*User, error)
	GoogleLogin(ctx context.Context) (*User, error)
	Logout(ctx context.Context) error
	CurrentUser() *User
	IsAuthenticated() bool
	// OnChange registers fn to run after every sign-in or sign-out. fn gets
	// nil on sign-out.
	OnChange(fn func(*User)) (unsubscribe func())
	// Token returns the bearer credential or an ErrUnauthenticated error.
	Token(ctx context.Context) (string, error)
}

var errSignedOut = apperror.Unauthenticated("not signed in")

// Noop is a Service with no provider behind it.
type Noop struct{}

var _ Service = Noop{}

func (Noop) Login(context.Context, string, string) (*User, error) {
	return nil, errSignedOut
}

func (Noop) Register(context.Context, string, string, string) (*User, error) {
	return nil, errSignedOut
}

func (Noop) GoogleLogin(context.Context) (*User, error) {
	return nil, errSignedOut
}

func (Noop) Logout(context.Context) error { return nil }

func (Noop) CurrentUser() *User { return nil }

func (Noop) IsAuthenticated() bool { return false }

func (Noop) OnChange(func(*User)) func() { return func() {} }

func (Noop) Token(context.Context) (string, error) {
	return "", errSignedOut
}

// listeners is an ordered set of change callbacks.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    []listener
}

type listener struct {
	id int
	fn func(*User)
}

func (l *listeners) add(fn func(*User)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.fns = append(l.fns, listener{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, ls := range l.fns {
				if ls.id == id {
					l.fns = append(l.fns[:i:i], l.fns[i+1:]...)
					return
				}
			}
		})
	}
}

// notify calls every listener outside the lock.
func (l *listeners) notify(u *User) {
	l.mu.Lock()
	fns := make([]func(*User), len(l.fns))
	for i, ls := range l.fns {
		fns[i] = ls.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
