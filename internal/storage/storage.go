package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the interface for object storage operations. The
// application uses it for shared plan snapshots: the server writes a frozen
// JSON export of a plan and hands out a presigned link to it.
type FileStorage interface {
	// UploadObject writes body to objectKey with the given content type.
	UploadObject(ctx context.Context, objectKey string, contentType string, body []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for downloading an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider. Used when
	// cleaning up expired snapshots.
	DeleteObject(ctx context.Context, objectKey string) error
}
