// Package api is the HTTP contract between sharebin clients and the server.
//
// types.go holds the wire shapes, shared by the client in this package and
// the server handlers, so both sides of the contract are compiled against
// the same definitions.
package api

// SnippetResponse is returned by GET and PUT /api/snippets/{id}.
type SnippetResponse struct {
	ID       string `json:"id,omitempty"`
	Content  string `json:"content"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Editing  bool   `json:"editing"`
	OwnerID  string `json:"owner_id,omitempty"`
}

// SnippetListResponse is returned by GET /api/me/snippets.
type SnippetListResponse struct {
	Snippets []SnippetResponse `json:"snippets"`
}

// CreateSnippetRequest is the body of POST /api/snippets.
type CreateSnippetRequest struct {
	Content  string `json:"content"`
	Name     string `json:"name"`
	Language string `json:"language"`
	CustomID string `json:"customId,omitempty"`
	Editing  bool   `json:"editing"`
}

// CreateSnippetResponse carries the id and the shareable link.
type CreateSnippetResponse struct {
	SnippetID string `json:"snippetId"`
	URL       string `json:"url"`
}

// UpdateSnippetRequest is the body of PUT /api/snippets/{id}.
type UpdateSnippetRequest struct {
	Content  string `json:"content"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// EditingBody is both the request and the response of
// PATCH /api/snippets/{id}/editing.
type EditingBody struct {
	Editing bool `json:"editing"`
}

// UploadedFile describes one stored upload.
type UploadedFile struct {
	FileID        string `json:"fileId"`
	FileName      string `json:"fileName"`
	ShareableLink string `json:"shareableLink"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Files []UploadedFile `json:"files"`
}

// ErrorResponse is the failure body for every endpoint.
// Error is machine-readable ("not_found"); Message is for people.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthRequest hands a provider access token to the server, which resolves
// it to a profile and issues its own credential.
type OAuthRequest struct {
	AccessToken string `json:"accessToken"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Provider  string `json:"provider"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// AuthResponse is returned by every sign-in endpoint.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
