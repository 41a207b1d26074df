package storage

import "context"

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket      string
	KeyPrefix   string
	ContentType string
}

// Object identifies a stored object and its stable URL.
type Object struct {
	Key string
	URL string
}

// Service pushes staged media files to remote object storage.
type Service interface {
	// UploadFile uploads the file at localPath under the given key
	// (prefixed per opts) and returns the stored object's key and URL.
	UploadFile(ctx context.Context, localPath, key string, opts UploadOptions) (Object, error)
	// DeleteObject removes a previously uploaded object. Used to undo
	// uploads when a later pipeline stage fails.
	DeleteObject(ctx context.Context, bucket, key string) error
}
