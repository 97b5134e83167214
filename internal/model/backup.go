package model

import "time"

const (
	BackupStatusPending   = "pending"
	BackupStatusUploading = "uploading"
	BackupStatusCompleted = "completed"
	BackupStatusFailed    = "failed"
)

type Backup struct {
	ID          int64      `json:"id"`
	Filename    string     `json:"filename"`
	S3Key       string     `json:"-"`
	Status      string     `json:"status"`
	SizeBytes   int64      `json:"size_bytes"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
