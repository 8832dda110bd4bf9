package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/domain"
)

// ErrBlobNotFound is returned when a reference has no backing blob.
var ErrBlobNotFound = errors.New("evidence blob not found")

// Upload is one incoming blob.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// BytesUpload wraps an in-memory payload.
func BytesUpload(filename string, data []byte) Upload {
	return Upload{
		Filename: filename,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// BlobStore persists evidence blobs and issues opaque references for them.
type BlobStore interface {
	Save(ctx context.Context, slot domain.EvidenceSlot, upload Upload) (domain.EvidenceRef, error)
	Open(ctx context.Context, ref domain.EvidenceRef) (io.ReadCloser, error)
	Delete(ctx context.Context, ref domain.EvidenceRef) error
}

// LocalStore keeps blobs on a filesystem rooted at the evidence directory.
type LocalStore struct {
	fs         afero.Fs
	compressor *Compressor
	logger     *zap.Logger
}

// NewLocalStore builds a store over fs. A nil compressor disables recompression.
func NewLocalStore(fs afero.Fs, compressor *Compressor, logger *zap.Logger) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{fs: fs, compressor: compressor, logger: logger}
}

// NewDiskStore roots a LocalStore at dir on the OS filesystem.
func NewDiskStore(dir string, compressor *Compressor, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return NewLocalStore(afero.NewBasePathFs(afero.NewOsFs(), dir), compressor, logger), nil
}

// Save writes the upload under <slot>/<uuid><ext> and recompresses it when large.
func (s *LocalStore) Save(ctx context.Context, slot domain.EvidenceSlot, upload Upload) (domain.EvidenceRef, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q: %w", upload.Filename, err)
	}
	defer src.Close()

	if err := s.fs.MkdirAll(string(slot), 0o755); err != nil {
		return "", fmt.Errorf("create slot dir: %w", err)
	}
	name := path.Join(string(slot), uuid.NewString()+safeExt(upload.Filename))
	dst, err := s.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("close blob: %w", err)
	}

	s.logger.Debug("evidence saved", zap.String("blob", name), zap.String("slot", string(slot)))
	if s.compressor != nil {
		s.compressor.CompressFile(s.fs, name)
	}
	return domain.EvidenceRef(name), nil
}

// Open returns a reader over the blob behind ref.
func (s *LocalStore) Open(ctx context.Context, ref domain.EvidenceRef) (io.ReadCloser, error) {
	name, err := blobName(ref)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the blob behind ref.
func (s *LocalStore) Delete(ctx context.Context, ref domain.EvidenceRef) error {
	name, err := blobName(ref)
	if err != nil {
		return err
	}
	if _, err := s.fs.Stat(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrBlobNotFound
		}
		return err
	}
	return s.fs.Remove(name)
}

func blobName(ref domain.EvidenceRef) (string, error) {
	name := path.Clean(string(ref))
	if name == "." || path.IsAbs(name) || strings.HasPrefix(name, "..") {
		return "", fmt.Errorf("invalid evidence reference %q", ref)
	}
	return name, nil
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}
