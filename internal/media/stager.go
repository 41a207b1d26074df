package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"clipvault/internal/storage"
)

// Stager writes an uploaded payload to transient local storage, pushes it to
// remote object storage, and removes the local copy before returning. The
// per-asset state machine is pending → staged → uploaded → cleaned on
// success, with failed branching in when the local write or the remote push
// goes wrong. Cleanup runs on every path.
type Stager struct {
	cfg     Config
	storage storage.Service
}

type Config struct {
	TempDir       string
	UploadTimeout time.Duration
	UploadOptions storage.UploadOptions
	Logger        *logrus.Logger
}

func NewStager(cfg Config, store storage.Service) *Stager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Stager{cfg: cfg, storage: store}
}

// StageAndUpload runs the full lifecycle for one payload and returns the
// asset with its remote key and URL set. The transient local copy is removed
// before this method returns, success or not; a failed removal is logged and
// never masks the primary outcome.
func (s *Stager) StageAndUpload(ctx context.Context, p Payload) (*StagedAsset, error) {
	asset := &StagedAsset{Field: p.Field, Status: AssetPending}
	defer s.cleanup(asset)

	name := uuid.NewString()
	if ext := filepath.Ext(p.Filename); ext != "" && len(ext) <= 16 {
		name += ext
	}

	if err := os.MkdirAll(s.cfg.TempDir, 0o755); err != nil {
		asset.Status = AssetFailed
		return asset, &StageError{Kind: FailureStaging, Field: p.Field, Err: fmt.Errorf("create staging dir: %w", err)}
	}

	// LocalPath is recorded before the write so a partial file from a failed
	// write is still removed by cleanup.
	asset.LocalPath = filepath.Join(s.cfg.TempDir, name)
	if err := writeStaged(asset.LocalPath, p.Reader); err != nil {
		asset.Status = AssetFailed
		return asset, &StageError{Kind: FailureStaging, Field: p.Field, Err: err}
	}
	asset.Status = AssetStaged

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	opts := s.cfg.UploadOptions
	opts.ContentType = p.ContentType
	obj, err := s.storage.UploadFile(uploadCtx, asset.LocalPath, name, opts)
	if err != nil {
		asset.Status = AssetFailed
		return asset, &StageError{Kind: FailureUpload, Field: p.Field, Err: err}
	}
	asset.RemoteKey = obj.Key
	asset.RemoteURL = obj.URL
	asset.Status = AssetUploaded
	return asset, nil
}

// Discard removes the remote copy of a previously uploaded asset. Best
// effort: used to undo uploads when a later pipeline stage fails.
func (s *Stager) Discard(ctx context.Context, asset *StagedAsset) {
	if asset == nil || asset.RemoteKey == "" {
		return
	}
	if err := s.storage.DeleteObject(ctx, s.cfg.UploadOptions.Bucket, asset.RemoteKey); err != nil {
		s.cfg.Logger.Warnf("discard uploaded asset %s: %v", asset.RemoteKey, err)
	}
}

func (s *Stager) cleanup(asset *StagedAsset) {
	defer func() { asset.Status = AssetCleaned }()
	if asset.LocalPath == "" {
		return
	}
	if err := os.Remove(asset.LocalPath); err != nil && !os.IsNotExist(err) {
		s.cfg.Logger.Warnf("remove staged file %s: %v", asset.LocalPath, err)
	}
}

func writeStaged(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create staged file: %w", err)
	}
	_, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("write staged file: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close staged file: %w", closeErr)
	}
	return nil
}
