package media

import "time"

// UploadRequest asks for a presigned image upload
type UploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// UploadResponse is returned by RequestUpload. The client PUTs the file to
// UploadURL and stores PublicURL in the flower's images.
type UploadResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MigrateOptions controls MigrateImages
type MigrateOptions struct {
	DryRun bool
}

// ImageFailure is an image that could not be migrated
type ImageFailure struct {
	FlowerID string `json:"flower_id"`
	URL      string `json:"url"`
	Error    string `json:"error"`
}

// MigrateReport summarises an image migration run
type MigrateReport struct {
	DryRun         bool           `json:"dry_run"`
	Flowers        int            `json:"flowers"`
	Images         int            `json:"images"`
	Migrated       int            `json:"migrated"`
	Skipped        int            `json:"skipped"`
	UpdatedFlowers int            `json:"updated_flowers"`
	Failures       []ImageFailure `json:"failures,omitempty"`
}
