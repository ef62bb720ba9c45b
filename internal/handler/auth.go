package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/auth"
	"github.com/sakif/sharebin/internal/model"
	"github.com/sakif/sharebin/internal/service"
)

// AuthHandler serves sign-in and account endpoints.
//
// Every sign-in answers with the token in the body (the CLI stores it) and
// also sets it as an HttpOnly cookie, which auth.OptionalAuth accepts for
// browser clients.
type AuthHandler struct {
	auth     *service.AuthService
	tokenTTL time.Duration
	secure   bool
	logger   *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, tokenTTL time.Duration, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, tokenTTL: tokenTTL, secure: secure, logger: logger}
}

// HandleRegister creates a password account.
//
// HTTP: POST /api/auth/register {username, email, password}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signedIn(w, http.StatusCreated, res)
}

// HandleLogin checks email and password.
//
// HTTP: POST /api/auth/login {email, password}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signedIn(w, http.StatusOK, res)
}

// HandleGoogle trades a Google access token for a sharebin token.
//
// HTTP: POST /api/auth/oauth/google {accessToken}
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req api.OAuthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.LoginGoogle(r.Context(), req.AccessToken)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signedIn(w, http.StatusOK, res)
}

// HandleLogout clears the cookie. Tokens are stateless, so a copied bearer
// token stays valid until it expires.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in account.
//
// HTTP: GET /api/me (Bearer)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, status int, res *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, api.AuthResponse{Token: res.Token, User: toUserResponse(res.User)})
}

func toUserResponse(u *model.User) api.UserResponse {
	return api.UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Provider:  u.Provider,
		AvatarURL: u.AvatarURL,
	}
}
