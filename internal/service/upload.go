package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/metrics"
	"github.com/sakif/sharebin/internal/model"
	"github.com/sakif/sharebin/internal/repository"
)

// UploadService stores uploaded files and hands out links to them.
type UploadService struct {
	repo    repository.FileRepository
	baseURL string
	maxSize int64
	logger  *slog.Logger
}

func NewUploadService(repo repository.FileRepository, baseURL string, maxSize int64, logger *slog.Logger) *UploadService {
	return &UploadService{
		repo:    repo,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Upload is one file as received.
type Upload struct {
	Name string
	Data []byte
}

// Store saves every upload and returns them in the same order. Every file
// is checked first and the batch is written atomically, so a failure leaves
// nothing behind.
func (s *UploadService) Store(ctx context.Context, uploads []Upload) ([]model.File, error) {
	if len(uploads) == 0 {
		return nil, apperror.ValidationFailed("files", "no files uploaded")
	}

	files := make([]*model.File, 0, len(uploads))
	for _, up := range uploads {
		if s.maxSize > 0 && int64(len(up.Data)) > s.maxSize {
			return nil, apperror.ValidationFailed("files",
				fmt.Sprintf("%s is larger than %d bytes", up.Name, s.maxSize))
		}
		files = append(files, &model.File{
			ID:          uuid.NewString(),
			Name:        cleanName(up.Name),
			ContentType: http.DetectContentType(up.Data),
			Data:        up.Data,
		})
	}

	if err := s.repo.CreateFiles(ctx, files); err != nil {
		return nil, fmt.Errorf("storing uploads: %w", err)
	}

	stored := make([]model.File, 0, len(files))
	for _, f := range files {
		metrics.FilesUploaded.Inc()
		metrics.UploadBytes.Add(float64(f.Size))
		s.logger.Info("file uploaded",
			slog.String("fileID", f.ID),
			slog.String("name", f.Name),
			slog.Int64("size", f.Size),
		)
		stored = append(stored, *f)
	}
	return stored, nil
}

// Get returns a stored file with its bytes.
func (s *UploadService) Get(ctx context.Context, id string) (*model.File, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, apperror.NotFound("file", id)
	}
	return s.repo.GetFile(ctx, id)
}

// Link is the public URL of a stored file.
func (s *UploadService) Link(id string) string {
	return s.baseURL + "/files/" + id
}

// cleanName drops any directory part a client sent along.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
