package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
)

// Submitter accepts jobs for processing.
type Submitter interface {
	Submit(job domain.Job) error
}

// Intake moves uploaded files into the upload directory under a generated
// name and submits a job for them.
type Intake struct {
	pipeline  Submitter
	uploadDir string
}

func NewIntake(pipeline Submitter, uploadDir string) *Intake {
	return &Intake{pipeline: pipeline, uploadDir: uploadDir}
}

// StoredName returns a collision free name keeping the original extension.
func StoredName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("upload_%d_%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}

// Accept takes ownership of tempPath. On any error the file is removed.
func (s *Intake) Accept(tempPath, originalName, additionalArgs string) (domain.Job, error) {
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		_ = os.Remove(tempPath)
		logger.Error.Printf("failed to create upload directory: %v", err)
		return domain.Job{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	uploadPath := filepath.Join(s.uploadDir, StoredName(originalName))
	if err := os.Rename(tempPath, uploadPath); err != nil {
		_ = os.Remove(tempPath)
		logger.Error.Printf("failed to save upload %s: %v", logger.SanitizeForLog(originalName), err)
		return domain.Job{}, fmt.Errorf("failed to save upload: %w", err)
	}

	job := domain.NewJob(uploadPath, originalName, additionalArgs)
	if err := s.pipeline.Submit(job); err != nil {
		_ = os.Remove(uploadPath)
		return domain.Job{}, err
	}

	logger.Info.Printf("upload accepted: %s stored as %s", logger.SanitizeForLog(originalName), job.StoredName)
	return job, nil
}
