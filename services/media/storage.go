// Package mediasvc stores uploaded files on an afero.Fs.
package mediasvc

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/content"
)

var (
	ErrTooLarge    = errors.New("file is too large")
	ErrUnsupported = errors.New("unsupported file type")

	// allowed content types & the extension files are saved with
	imageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

// Storage keeps files under a root dir and serves them under a base URL.
type Storage struct {
	fs      afero.Fs
	baseURL string
	maxSize int64
}

var _ content.Media = (*Storage)(nil)

// NewStorage returns a Storage over fs, rooted at conf.Media.Root.
func NewStorage(fs afero.Fs, conf *core.Config) (*Storage, error) {
	root := conf.Media.Root
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media root")
	}
	return &Storage{
		fs:      afero.NewBasePathFs(fs, root),
		baseURL: conf.Media.BaseURL,
		maxSize: conf.Media.MaxUploadSize,
	}, nil
}

func (s *Storage) BaseURL() string { return s.baseURL }

func invalidFile(err error) error {
	return core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
}

// Save stores an image read from r. The stored name is random; filename only hints the folder.
func (s *Storage) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > s.maxSize {
		return "", invalidFile(ErrTooLarge)
	}
	ext, ok := imageTypes[http.DetectContentType(data)]
	if !ok {
		return "", invalidFile(ErrUnsupported)
	}

	dir := "gallery"
	name := path.Join(dir, uuid.NewString()+ext)
	if err = s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating media dir")
	}
	if err = afero.WriteFile(s.fs, name, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s (%s)", name, filename)
	}
	return s.baseURL + "/" + name, nil
}

// name returns the stored file name behind url, or "" if url is not served by s.
func (s *Storage) name(url string) string {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	name := path.Clean("/" + strings.TrimPrefix(url, prefix))
	return strings.TrimPrefix(name, "/")
}

func (s *Storage) Remove(_ context.Context, url string) error {
	name := s.name(url)
	if name == "" {
		return nil
	}
	if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", name)
	}
	return nil
}

// Open opens a stored file by name, relative to the root.
func (s *Storage) Open(name string) (afero.File, os.FileInfo, error) {
	name = strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
	if name == "" {
		return nil, nil, os.ErrNotExist
	}
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, os.ErrNotExist
	}
	return f, info, nil
}
