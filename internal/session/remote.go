package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/apperror"
)

// TokenKey is the local store key holding the signed-in credential.
const TokenKey = "sharebin_token"

// Backend is the slice of api.Client that Remote needs.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	GoogleSignIn(ctx context.Context, accessToken string) (*api.AuthResponse, error)
}

// Store persists the credential between runs.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// AccessTokenSource obtains a Google access token, usually by walking the
// user through a device authorization flow.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// credential is the JSON document stored under TokenKey.
type credential struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Remote is a Service backed by a sharebin server.
type Remote struct {
	backend Backend
	store   Store
	google  AccessTokenSource
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	token   string
	user    *User
	expires time.Time // zero when the token carries no exp claim

	listeners listeners
}

var _ Service = (*Remote)(nil)

// NewRemote builds a Remote and restores any credential left in store by a
// previous run. google may be nil, in which case GoogleLogin is refused.
func NewRemote(ctx context.Context, backend Backend, store Store, google AccessTokenSource, logger *slog.Logger) *Remote {
	r := &Remote{
		backend: backend,
		store:   store,
		google:  google,
		logger:  logger,
		now:     time.Now,
	}
	r.restore(ctx)
	return r
}

func (r *Remote) restore(ctx context.Context) {
	data, err := r.store.Get(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			r.logger.Debug("credential restore failed", slog.String("error", err.Error()))
		}
		return
	}

	var cred credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.Token == "" {
		r.logger.Debug("discarding unreadable credential")
		r.forget(ctx)
		return
	}

	expires := tokenExpiry(cred.Token)
	if !expires.IsZero() && !r.now().Before(expires) {
		r.logger.Debug("stored credential has expired", slog.Time("expired_at", expires))
		r.forget(ctx)
		return
	}

	user := cred.User
	r.token, r.user, r.expires = cred.Token, &user, expires
}

// tokenExpiry reads the exp claim without verifying the signature. The
// server still verifies every request; this only avoids presenting a
// credential we already know is dead.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (r *Remote) Login(ctx context.Context, email, password string) (*User, error) {
	res, err := r.backend.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return r.adopt(ctx, res), nil
}

func (r *Remote) Register(ctx context.Context, username, email, password string) (*User, error) {
	res, err := r.backend.Register(ctx, api.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return r.adopt(ctx, res), nil
}

// GoogleLogin obtains a Google access token and exchanges it for a
// sharebin credential.
func (r *Remote) GoogleLogin(ctx context.Context) (*User, error) {
	if r.google == nil {
		return nil, apperror.ValidationFailed("google", "Google sign-in is not configured")
	}
	accessToken, err := r.google.AccessToken(ctx)
	if err != nil {
		return nil, apperror.Unauthenticated("Google sign-in failed: " + err.Error())
	}
	res, err := r.backend.GoogleSignIn(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return r.adopt(ctx, res), nil
}

func (r *Remote) Logout(ctx context.Context) error {
	r.mu.Lock()
	wasSignedIn := r.token != ""
	r.token, r.user, r.expires = "", nil, time.Time{}
	r.mu.Unlock()

	r.forget(ctx)
	if wasSignedIn {
		r.listeners.notify(nil)
	}
	return nil
}

func (r *Remote) CurrentUser() *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.validLocked() {
		return nil
	}
	u := *r.user
	return &u
}

func (r *Remote) IsAuthenticated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validLocked()
}

func (r *Remote) OnChange(fn func(*User)) func() {
	return r.listeners.add(fn)
}

// Token returns the bearer credential. A credential found to have expired
// signs the session out.
func (r *Remote) Token(ctx context.Context) (string, error) {
	r.mu.RLock()
	token, valid := r.token, r.validLocked()
	r.mu.RUnlock()

	if valid {
		return token, nil
	}
	if token != "" {
		r.logger.Info("credential expired, signing out")
		_ = r.Logout(ctx)
	}
	return "", errSignedOut
}

func (r *Remote) validLocked() bool {
	if r.token == "" {
		return false
	}
	return r.expires.IsZero() || r.now().Before(r.expires)
}

func (r *Remote) adopt(ctx context.Context, res *api.AuthResponse) *User {
	user := User{
		ID:        res.User.ID,
		Username:  res.User.Username,
		Email:     res.User.Email,
		Provider:  res.User.Provider,
		AvatarURL: res.User.AvatarURL,
	}

	r.mu.Lock()
	r.token, r.user, r.expires = res.Token, &user, tokenExpiry(res.Token)
	r.mu.Unlock()

	data, err := json.Marshal(credential{Token: res.Token, User: user})
	if err == nil {
		err = r.store.Put(ctx, TokenKey, data)
	}
	if err != nil {
		// The session still works for this run.
		r.logger.Debug("credential not persisted", slog.String("error", err.Error()))
	}

	r.logger.Info("signed in", slog.String("user_id", user.ID), slog.String("provider", user.Provider))
	out := user
	r.listeners.notify(&out)
	return &user
}

func (r *Remote) forget(ctx context.Context) {
	if err := r.store.Delete(ctx, TokenKey); err != nil {
		r.logger.Debug("credential delete failed", slog.String("error", err.Error()))
	}
}
