package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/sharebin/internal/apperror"
)

// DefaultTimeout bounds a single request when the caller's context has no
// deadline of its own.
const DefaultTimeout = 30 * time.Second

// Client talks to a sharebin server.
//
// Every method translates non-2xx replies into apperror values:
//
//	404 → ErrNotFound    410 → ErrExpired     401 → ErrUnauthenticated
//	403 → ErrForbidden   409 → ErrConflict    400 → ErrValidation
//	anything else, and transport failures → ErrServer
//
// The server's {"message": ...} text is kept as AppError.Message.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a Client for baseURL ("https://share.example").
// A nil httpClient uses one with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// BaseURL returns the server origin the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetSnippet fetches a snippet by id.
func (c *Client) GetSnippet(ctx context.Context, id string) (*SnippetResponse, error) {
	var out SnippetResponse
	if err := c.do(ctx, http.MethodGet, "/api/snippets/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

// CreateSnippet saves a new snippet. token is the bearer credential.
func (c *Client) CreateSnippet(ctx context.Context, token string, req CreateSnippetRequest) (*CreateSnippetResponse, error) {
	var out CreateSnippetResponse
	if err := c.do(ctx, http.MethodPost, "/api/snippets", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSnippet replaces the content of an existing snippet. The contract
// does not require a credential here.
func (c *Client) UpdateSnippet(ctx context.Context, id string, req UpdateSnippetRequest) (*SnippetResponse, error) {
	var out SnippetResponse
	if err := c.do(ctx, http.MethodPut, "/api/snippets/"+url.PathEscape(id), "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetEditing asks the server to set the editing flag and returns the value
// the server settled on.
func (c *Client) SetEditing(ctx context.Context, token, id string, editing bool) (bool, error) {
	var out EditingBody
	path := "/api/snippets/" + url.PathEscape(id) + "/editing"
	if err := c.do(ctx, http.MethodPatch, path, token, EditingBody{Editing: editing}, &out); err != nil {
		return false, err
	}
	return out.Editing, nil
}

// MySnippets lists the snippets owned by the account behind token.
func (c *Client) MySnippets(ctx context.Context, token string, limit, offset int) ([]SnippetResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var out SnippetListResponse
	if err := c.do(ctx, http.MethodGet, "/api/me/snippets?"+q.Encode(), token, nil, &out); err != nil {
		return nil, err
	}
	return out.Snippets, nil
}

// UploadFile is one file to send to POST /api/upload.
type UploadFile struct {
	Name string
	Data io.Reader
}

// Upload sends files as one multipart request under the "files" field.
func (c *Client) Upload(ctx context.Context, files []UploadFile) ([]UploadedFile, error) {
	if len(files) == 0 {
		return nil, apperror.ValidationFailed("files", "no files to upload")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("api: creating form part for %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Data); err != nil {
			return nil, fmt.Errorf("api: reading %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("api: building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Register creates an email/password account and signs it in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleSignIn exchanges a Google access token for a sharebin credential.
func (c *Client) GoogleSignIn(ctx context.Context, accessToken string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/oauth/google", "", OAuthRequest{AccessToken: accessToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the account behind token.
func (c *Client) Me(ctx context.Context, token string) (*UserResponse, error) {
	var out UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: building %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return apperror.Server("could not reach server: "+err.Error(), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Server("invalid response from server", err)
	}
	return nil
}

// decodeError maps a failed response to an apperror.
func decodeError(resp *http.Response) error {
	var body ErrorResponse
	// Error bodies are best effort: a proxy may answer with HTML.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	msg := body.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = apperror.ErrNotFound
	case http.StatusGone:
		sentinel = apperror.ErrExpired
	case http.StatusUnauthorized:
		sentinel = apperror.ErrUnauthenticated
	case http.StatusForbidden:
		sentinel = apperror.ErrForbidden
	case http.StatusConflict:
		sentinel = apperror.ErrConflict
	case http.StatusBadRequest:
		sentinel = apperror.ErrValidation
	default:
		return apperror.Server(msg, fmt.Errorf("status %d", resp.StatusCode))
	}
	return &apperror.AppError{Err: sentinel, Message: msg}
}
