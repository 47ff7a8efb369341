package files

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/basit/shifter/models"
)

// Download describes who fetched a file.
type Download struct {
	IPAddress string
	UserAgent string
	User      *uuid.UUID
}

// RecordDownload appends to the file's download history.
func (s *Store) RecordDownload(ctx context.Context, file *models.File, d Download) error {
	event := &models.DownloadEvent{
		FileID:    file.ID,
		IPAddress: d.IPAddress,
		UserAgent: d.UserAgent,
		UserID:    d.User,
		CreatedAt: s.Now(),
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to record download of %s: %w", file.PublicToken, err)
	}
	return nil
}

func (s *Store) DownloadCount(ctx context.Context, file *models.File) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DownloadEvent{}).Where("file_id = ?", file.ID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return n, nil
}
