package media

import (
	"fmt"
	"io"
)

// Payload is one uploaded binary blob handed to the stager. Request-scoped;
// the Reader is consumed exactly once during staging.
type Payload struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type AssetStatus string

const (
	AssetPending  AssetStatus = "pending"
	AssetStaged   AssetStatus = "staged"
	AssetUploaded AssetStatus = "uploaded"
	AssetFailed   AssetStatus = "failed"
	AssetCleaned  AssetStatus = "cleaned"
)

// StagedAsset tracks one upload in flight. Owned by the stager for the
// duration of a single StageAndUpload call; the local copy never outlives
// that call.
type StagedAsset struct {
	Field     string
	LocalPath string
	RemoteKey string
	RemoteURL string
	Status    AssetStatus
}

// FailureKind distinguishes local staging faults from remote upload faults.
type FailureKind string

const (
	FailureStaging FailureKind = "staging"
	FailureUpload  FailureKind = "upload"
)

// StageError reports a failed staging or upload step for one asset.
type StageError struct {
	Kind  FailureKind
	Field string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Field, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
