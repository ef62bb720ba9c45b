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

var _ repository.FileRepository = (*DB)(nil)

// CreateFile stores a single upload. f.ID is chosen by the caller.
func (db *DB) CreateFile(ctx context.Context, f *model.File) error {
	return db.CreateFiles(ctx, []*model.File{f})
}

// CreateFiles stores a batch of uploads in one transaction.
func (db *DB) CreateFiles(ctx context.Context, files []*model.File) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning upload batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, f := range files {
		f.CreatedAt = now
		f.Size = int64(len(f.Data))

		_, err := tx.ExecContext(ctx,
			`INSERT INTO files (id, name, content_type, size, data, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.ID, f.Name, f.ContentType, f.Size, f.Data, f.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("file", f.ID)
			}
			return fmt.Errorf("sqlite: creating file %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing upload batch: %w", err)
	}
	return nil
}

// GetFile returns the file including its bytes.
func (db *DB) GetFile(ctx context.Context, id string) (*model.File, error) {
	var f model.File
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, content_type, size, data, created_at FROM files WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.ContentType, &f.Size, &f.Data, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("file", id)
		}
		return nil, fmt.Errorf("sqlite: getting file %s: %w", id, err)
	}
	return &f, nil
}
