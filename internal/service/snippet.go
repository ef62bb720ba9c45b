// Package service contains the business logic of the sharebin server.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (rules)    → validates, enforces ownership and expiry
//	Repository (data)  → reads/writes SQLite
//
// Services accept primitives and return domain errors (apperror). They know
// nothing about HTTP, so the same rules hold for every caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/metrics"
	"github.com/sakif/sharebin/internal/model"
	"github.com/sakif/sharebin/internal/repository"
	"github.com/sakif/sharebin/internal/route"
)

// Validation limits.
const (
	MaxSnippetNameLength = 100
	DefaultMaxContent    = 100000 // bytes
	DefaultListLimit     = 20
	MaxListLimit         = 100
	DefaultLanguage      = "plaintext"
)

// customIDPattern is what a user-chosen id must look like. Anything else
// would not survive the trip through a URL path segment.
var customIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// serverPaths are first path segments the server itself answers on.
// A snippet with one of these ids could never be opened by path.
var serverPaths = map[string]bool{
	"api":     true,
	"files":   true,
	"metrics": true,
	"healthz": true,
	"static":  true,
	"s":       true,
	"room":    true,
}

// SnippetCache is the read-through cache in front of the repository.
// *cache.Snippets satisfies it.
type SnippetCache interface {
	Get(ctx context.Context, id string, load func(context.Context) (*model.Snippet, error)) (*model.Snippet, error)
	Invalidate(id string)
}

// SnippetConfig carries the knobs SnippetService reads from config.
type SnippetConfig struct {
	BaseURL    string        // prefix of share links, no trailing slash
	TTL        time.Duration // zero means snippets never expire
	MaxContent int
}

// SnippetService handles business logic for shared snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	cache  SnippetCache // may be nil
	cfg    SnippetConfig
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewSnippetService wires a SnippetService. cache may be nil.
func NewSnippetService(repo repository.SnippetRepository, cache SnippetCache, cfg SnippetConfig, logger *slog.Logger) *SnippetService {
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = DefaultMaxContent
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SnippetService{
		repo:   repo,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return xid.New().String() },
	}
}

// CreateInput is everything a caller may set on a new snippet.
type CreateInput struct {
	Content  string
	Name     string
	Language string
	CustomID string
	Editing  bool
	OwnerID  string
}

// Create validates and stores a new snippet. A blank CustomID gets a
// generated id; a taken one is a conflict.
func (s *SnippetService) Create(ctx context.Context, in CreateInput) (*model.Snippet, error) {
	if err := s.validate(in.Content, in.Name); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(in.CustomID)
	if id != "" {
		if err := validateCustomID(id); err != nil {
			return nil, err
		}
	} else {
		id = s.newID()
	}

	now := s.now()
	snippet := &model.Snippet{
		ID:       id,
		Name:     strings.TrimSpace(in.Name),
		Content:  in.Content,
		Language: languageOr(in.Language),
		Editing:  in.Editing,
		OwnerID:  in.OwnerID,
	}
	if s.cfg.TTL > 0 {
		snippet.ExpiresAt = now.Add(s.cfg.TTL)
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		if errors.Is(err, apperror.ErrConflict) && in.CustomID != "" {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: fmt.Sprintf("id %s is already taken", id),
				Field:   "customId",
			}
		}
		s.logger.Error("failed to create snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	metrics.SnippetsCreated.Inc()
	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.Bool("custom", in.CustomID != ""),
		slog.Bool("anonymous", snippet.Anonymous()),
	)
	return snippet, nil
}

// ShareURL is the link handed back to the author.
func (s *SnippetService) ShareURL(id string) string {
	return s.cfg.BaseURL + "/" + route.Route{Page: route.Editor, SnippetID: id}.Fragment()
}

// Get returns the snippet, or apperror.ErrExpired once it is past its
// expiry. Expired rows stay until the sweeper removes them.
func (s *SnippetService) Get(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.fetch(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			metrics.SnippetReads.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}
	if snippet.Expired(s.now()) {
		metrics.SnippetReads.WithLabelValues("expired").Inc()
		return nil, apperror.Expired("snippet", id)
	}
	metrics.SnippetReads.WithLabelValues("ok").Inc()
	return snippet, nil
}

// UpdateInput replaces the editable fields of a snippet.
type UpdateInput struct {
	Content  string
	Name     string
	Language string
}

// Update overwrites content, name and language. Anyone holding the link may
// update while editing is on; no credential is involved.
func (s *SnippetService) Update(ctx context.Context, id string, in UpdateInput) (*model.Snippet, error) {
	snippet, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snippet.Editing {
		return nil, apperror.Forbidden("editing is disabled for this snippet")
	}
	if err := s.validate(in.Content, in.Name); err != nil {
		return nil, err
	}

	snippet.Content = in.Content
	if name := strings.TrimSpace(in.Name); name != "" {
		snippet.Name = name
	}
	if in.Language != "" {
		snippet.Language = in.Language
	}

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", snippet.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}
	s.invalidate(snippet.ID)

	metrics.SnippetUpdates.Inc()
	s.logger.Debug("snippet updated", slog.String("id", snippet.ID))
	return snippet, nil
}

// SetEditing turns editing on or off. userID must be signed in; when the
// snippet has an owner only that owner may change it.
func (s *SnippetService) SetEditing(ctx context.Context, userID, id string, editing bool) (bool, error) {
	if userID == "" {
		return false, apperror.Unauthenticated("sign in to change editing")
	}
	snippet, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !snippet.Anonymous() && snippet.OwnerID != userID {
		return false, apperror.Forbidden("only the owner can change editing")
	}

	if err := s.repo.SetEditing(ctx, id, editing); err != nil {
		return false, fmt.Errorf("setting editing: %w", err)
	}
	s.invalidate(id)

	metrics.EditingToggles.WithLabelValues(strconv.FormatBool(editing)).Inc()
	s.logger.Info("snippet editing changed",
		slog.String("id", id),
		slog.String("userID", userID),
		slog.Bool("editing", editing),
	)
	return editing, nil
}

// ListByOwner pages through a user's snippets, newest first. Expired ones
// are left out.
func (s *SnippetService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Snippet, error) {
	if ownerID == "" {
		return nil, apperror.Unauthenticated("sign in to list your snippets")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	all, err := s.repo.List(ctx, repository.ListOptions{OwnerID: ownerID, Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	now := s.now()
	live := all[:0]
	for _, sn := range all {
		if !sn.Expired(now) {
			live = append(live, sn)
		}
	}
	return live, nil
}

// SweepExpired deletes snippets past their expiry.
func (s *SnippetService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired snippets: %w", err)
	}
	if n > 0 {
		metrics.ExpiredSwept.Add(float64(n))
		s.logger.Info("expired snippets swept", slog.Int64("count", n))
	}
	return n, nil
}

func (s *SnippetService) fetch(ctx context.Context, id string) (*model.Snippet, error) {
	if s.cache == nil {
		return s.repo.GetByID(ctx, id)
	}
	return s.cache.Get(ctx, id, func(ctx context.Context) (*model.Snippet, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *SnippetService) invalidate(id string) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
}

func (s *SnippetService) validate(content, name string) error {
	if len(content) > s.cfg.MaxContent {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d bytes or less", s.cfg.MaxContent))
	}
	if len(strings.TrimSpace(name)) > MaxSnippetNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("snippet name must be %d characters or less", MaxSnippetNameLength))
	}
	return nil
}

func validateCustomID(id string) error {
	if !customIDPattern.MatchString(id) {
		return apperror.ValidationFailed("customId",
			"custom id must be 3-64 letters, digits, '-' or '_'")
	}
	if route.IsReserved(id) || serverPaths[strings.ToLower(id)] {
		return apperror.ValidationFailed("customId",
			fmt.Sprintf("%q is reserved", id))
	}
	return nil
}

func languageOr(lang string) string {
	if lang = strings.TrimSpace(lang); lang != "" {
		return lang
	}
	return DefaultLanguage
}
