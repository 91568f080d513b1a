package upload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/ffirst2551/mercil/core"
)

const (
	// urlPrefix is the public path prefix recorded on image records.
	// Remove maps it back to a filename under the store root.
	urlPrefix   = "/uploads/"
	thumbPrefix = "thumb_"
	tempPrefix  = "temp_"

	// defaultThumbSize bounds thumbnails to a square box of this many pixels.
	defaultThumbSize = 256
	thumbQuality     = 90

	dirMode  = 0o755
	fileMode = 0o644
)

// SavedFile describes a stored upload.
type SavedFile struct {
	// URL is the public path recorded on the asset, e.g. /uploads/12_<uuid>.jpg.
	URL string

	// ThumbURL is the public path of the JPEG thumbnail.
	ThumbURL string

	// Path is the file's location on disk.
	Path string

	// Size is the stored byte count.
	Size int64
}

// Store persists uploaded image files. Implementations must tolerate
// concurrent calls.
type Store interface {
	// Save writes data under a unique name derived from the asset id and
	// the original filename's extension, along with a JPEG thumbnail.
	Save(assetID core.ID, originalName string, data []byte) (*SavedFile, error)

	// Remove deletes a stored file and its thumbnail. Removing a file
	// that is already gone is not an error.
	Remove(fileURL string) error

	// WithTemp writes data to a temporary file, invokes fn with its path,
	// and removes the file when fn returns, on every exit path.
	WithTemp(data []byte, fn func(path string) error) error
}

// DiskStore keeps uploads in a flat directory on local disk. Filenames
// embed the asset id and a random UUID, so concurrent saves never collide.
type DiskStore struct {
	root      string
	thumbSize uint
	logger    *slog.Logger
}

var _ Store = (*DiskStore)(nil)

// DiskStoreOption is a functional option for configuring a DiskStore.
type DiskStoreOption func(*DiskStore)

// WithThumbSize sets the bounding box for generated thumbnails.
func WithThumbSize(size uint) DiskStoreOption {
	return func(s *DiskStore) {
		s.thumbSize = size
	}
}

// NewDiskStore creates the root directory if necessary and returns a store
// over it.
func NewDiskStore(root string, opts ...DiskStoreOption) (*DiskStore, error) {
	s := &DiskStore{
		root:      root,
		thumbSize: defaultThumbSize,
		logger:    slog.Default().With("component", "upload_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return s, nil
}

// Save writes data and its thumbnail to disk. Either both files are
// persisted or neither is.
func (s *DiskStore) Save(assetID core.ID, originalName string, data []byte) (*SavedFile, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	name := fmt.Sprintf("%s_%s%s", assetID, uuid.NewString(), ext)
	path := filepath.Join(s.root, name)

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return nil, fmt.Errorf("writing upload: %w", err)
	}

	thumb := thumbName(name)
	if err := s.writeThumb(filepath.Join(s.root, thumb), data); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("failed to remove upload after thumbnail error", "path", path, "error", rmErr)
		}
		return nil, err
	}

	return &SavedFile{
		URL:      urlPrefix + name,
		ThumbURL: urlPrefix + thumb,
		Path:     path,
		Size:     int64(len(data)),
	}, nil
}

// Remove deletes the stored file and its thumbnail. Returns ErrNotStored
// for URLs outside this store's namespace.
func (s *DiskStore) Remove(fileURL string) error {
	name, ok := strings.CutPrefix(fileURL, urlPrefix)
	if !ok || name == "" || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrNotStored, fileURL)
	}

	if err := os.Remove(filepath.Join(s.root, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing upload: %w", err)
	}
	if err := os.Remove(filepath.Join(s.root, thumbName(name))); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove thumbnail", "name", name, "error", err)
	}
	return nil
}

// WithTemp writes data to a scoped temp file in the store root and hands
// its path to fn. The file is removed when fn returns.
func (s *DiskStore) WithTemp(data []byte, fn func(path string) error) error {
	path := filepath.Join(s.root, fmt.Sprintf("%s%s.jpg", tempPrefix, uuid.NewString()))
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("writing temp image: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove temp image", "path", path, "error", err)
		}
	}()
	return fn(path)
}

// writeThumb decodes data, scales it into the thumbnail box with Lanczos
// resampling and writes it as JPEG.
func (s *DiskStore) writeThumb(path string, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image for thumbnail: %w", err)
	}
	small := resize.Thumbnail(s.thumbSize, s.thumbSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return fmt.Errorf("encoding thumbnail: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), fileMode); err != nil {
		return fmt.Errorf("writing thumbnail: %w", err)
	}
	return nil
}

// thumbName derives the thumbnail filename for a stored upload. Thumbnails
// are always JPEG regardless of the source format.
func thumbName(name string) string {
	return thumbPrefix + strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}
