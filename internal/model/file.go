package model

import (
	"time"
)

// FileRecord is metadata only. The payload lives in object storage under StoragePath.
type FileRecord struct {
	ID          string    `db:"id" json:"id"`
	ProjectID   string    `db:"project_id" json:"projectId"`
	UploadedBy  *string   `db:"uploaded_by" json:"uploadedBy,omitempty"`
	Name        string    `db:"name" json:"name"`
	StoragePath string    `db:"file_path" json:"-"`
	SizeBytes   *int64    `db:"file_size" json:"sizeBytes,omitempty"`
	MimeType    *string   `db:"mime_type" json:"mimeType,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type CreateFileParams struct {
	ProjectID   string
	UploadedBy  *string
	Name        string
	StoragePath string
	SizeBytes   *int64
	MimeType    *string
}

type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
