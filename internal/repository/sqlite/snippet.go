package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/model"
	"github.com/sakif/sharebin/internal/repository"
)

// Compile-time check that *DB implements repository.SnippetRepository.
var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, name, content, language, editing, owner_id, created_at, updated_at, expires_at`

// Create inserts s. The caller chooses s.ID (generated or custom); a taken
// id is reported as apperror.ErrConflict rather than a driver error.
func (db *DB) Create(ctx context.Context, s *model.Snippet) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.Name,
		s.Content,
		s.Language,
		s.Editing,
		nullString(s.OwnerID),
		s.CreatedAt,
		s.UpdatedAt,
		nullTime(s.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("snippet", s.ID)
		}
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

// GetByID returns the snippet whether or not it has expired; expiry is a
// service decision.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)

	s, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return s, nil
}

// List returns snippets newest first, optionally for one owner.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	query := `SELECT ` + snippetColumns + ` FROM snippets`
	args := []any{}
	if opts.OwnerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, opts.OwnerID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}
	return snippets, nil
}

// Update replaces name, content and language. id, owner, editing and the
// timestamps other than updated_at are left alone.
func (db *DB) Update(ctx context.Context, s *model.Snippet) error {
	s.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET name = ?, content = ?, language = ?, updated_at = ?
		 WHERE id = ?`,
		s.Name,
		s.Content,
		s.Language,
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", s.ID, err)
	}
	return requireRow(result, "snippet", s.ID)
}

// SetEditing stores the editing flag.
func (db *DB) SetEditing(ctx context.Context, id string, editing bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET editing = ?, updated_at = ? WHERE id = ?`,
		editing, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting editing on snippet %s: %w", id, err)
	}
	return requireRow(result, "snippet", id)
}

// DeleteExpired removes every snippet whose expiry is at or before now and
// reports how many went.
func (db *DB) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired snippets: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(sc scanner) (*model.Snippet, error) {
	var (
		s       model.Snippet
		owner   sql.NullString
		expires sql.NullTime
	)
	if err := sc.Scan(
		&s.ID,
		&s.Name,
		&s.Content,
		&s.Language,
		&s.Editing,
		&owner,
		&s.CreatedAt,
		&s.UpdatedAt,
		&expires,
	); err != nil {
		return nil, err
	}
	s.OwnerID = owner.String
	if expires.Valid {
		s.ExpiresAt = expires.Time
	}
	return &s, nil
}

func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Times are stored in UTC so that string comparison in SQL orders them.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
