// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlite implements all of them on one
// *sqlite.DB; tests substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/sharebin/internal/model"
)

type ListOptions struct {
	OwnerID string
	Limit   int
	Offset  int
}

// SnippetRepository stores snippets. Create expects s.ID to be set and
// returns apperror.ErrConflict when it is taken.
type SnippetRepository interface {
	Create(ctx context.Context, s *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, s *model.Snippet) error
	SetEditing(ctx context.Context, id string, editing bool) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository stores accounts. CreateUser returns apperror.ErrConflict
// when the email or username is taken.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertOAuthUser finds the account for (u.Provider, u.ProviderID),
	// creating it on first sign-in, and refreshes its profile fields.
	UpsertOAuthUser(ctx context.Context, u *model.User) error
}

// FileRepository stores uploaded files.
type FileRepository interface {
	// CreateFiles stores a batch atomically: either every file is saved or
	// none is.
	CreateFiles(ctx context.Context, files []*model.File) error
	GetFile(ctx context.Context, id string) (*model.File, error)
}
