package entity

import "time"

// Attachment is metadata for a file held by external storage
type Attachment struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	FileName    string    `json:"file_name"`
	StorageKey  string    `json:"storage_key"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type,omitempty"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
