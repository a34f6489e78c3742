package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/watchme/internal/apperror"
)

// Names are the three files of one video, relative to the upload dir.
type Names struct {
	Path    string
	Thumb   string
	Preview string
}

// NamesFor derives the stored names of an upload: "<ownerID>_<base>.mp4",
// "<ownerID>_<base>.png" and "<ownerID>_<base>_preview.webm". Only .mp4
// uploads are accepted, in any letter case.
func NamesFor(ownerID, original string) (Names, error) {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ".mp4") {
		return Names{}, apperror.ValidationFailed("file", "Only mp4 files are allowed!")
	}
	stem := strings.TrimSpace(strings.TrimSuffix(base, ext))
	if stem == "" || stem == "." || stem == ".." {
		return Names{}, apperror.ValidationFailed("file", "file name is empty")
	}

	stored := ownerID + "_" + stem
	return Names{
		Path:    stored + ".mp4",
		Thumb:   stored + ".png",
		Preview: stored + "_preview.webm",
	}, nil
}

// FileStore keeps uploads and generated media in one flat directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: creating upload dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string { return s.dir }

// Save writes r to name. An existing file with that name is a conflict:
// two videos must never share media files.
func (s *FileStore) Save(name string, r io.Reader) (int64, error) {
	full := filepath.Join(s.dir, filepath.Base(name))
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, apperror.Conflict("a video with this file name already exists")
		}
		return 0, fmt.Errorf("media: creating %s: %w", name, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return 0, fmt.Errorf("media: writing %s: %w", name, err)
	}
	return n, nil
}

// Remove deletes the named files. Files that do not exist are skipped;
// other failures are joined into the returned error.
func (s *FileStore) Remove(names ...string) error {
	var errs []error
	for _, name := range names {
		if name == "" {
			continue
		}
		err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("media: removing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
