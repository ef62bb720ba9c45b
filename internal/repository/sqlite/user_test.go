package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/model"
)

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	u := &model.User{
		Username:     "ada",
		Email:        "ada@example.com",
		PasswordHash: "$2a$hash",
		Provider:     model.ProviderPassword,
	}

	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID == "" {
		t.Fatal("CreateUser() did not set ID")
	}

	got, err := db.GetUserByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "$2a$hash" {
		t.Errorf("GetUserByEmail() = %+v", got)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ada")

	err := db.CreateUser(context.Background(), &model.User{
		Username: "other", Email: "ada@example.com", Provider: model.ProviderPassword,
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() error = %v, want ErrConflict", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetUserByID(context.Background(), "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByEmail(context.Background(), "nope@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUpsertOAuthUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{
		Username:   "ada",
		Email:      "ada@example.com",
		Provider:   model.ProviderGoogle,
		ProviderID: "g-123",
		AvatarURL:  "https://img/1",
	}
	if err := db.UpsertOAuthUser(ctx, first); err != nil {
		t.Fatalf("first UpsertOAuthUser() error = %v", err)
	}

	again := &model.User{
		Username:   "ignored",
		Email:      "ada@new.example.com",
		Provider:   model.ProviderGoogle,
		ProviderID: "g-123",
		AvatarURL:  "https://img/2",
	}
	if err := db.UpsertOAuthUser(ctx, again); err != nil {
		t.Fatalf("second UpsertOAuthUser() error = %v", err)
	}

	if again.ID != first.ID {
		t.Errorf("returning user got a new id: %s != %s", again.ID, first.ID)
	}
	if again.Username != "ada" {
		t.Errorf("Username = %q, want the original", again.Username)
	}
	if again.Email != "ada@new.example.com" || again.AvatarURL != "https://img/2" {
		t.Errorf("profile not refreshed: %+v", again)
	}
}
