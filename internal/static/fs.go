package static

import (
	"errors"
	"io"
	"os"
	"time"
)

// ErrRangeUnsupported is returned by FileStore.ReadRange when the store
// cannot do positional reads; the resolver then falls back to reading
// the whole file.
var ErrRangeUnsupported = errors.New("static: positional reads not supported")

// FileInfo describes a stored object. ModTime is the zero time when the
// backing store does not track modification times, which switches the
// fingerprint to its content-hash form.
type FileInfo struct {
	IsFile  bool
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FileStore is the storage surface the resolver reads from. Stat errors
// for missing paths must satisfy errors.Is(err, fs.ErrNotExist).
type FileStore interface {
	Stat(path string) (FileInfo, error)
	ReadFile(path string) ([]byte, error)
	// ReadRange reads length bytes starting at off. A short file yields
	// a short result, not an error.
	ReadRange(path string, off, length int64) ([]byte, error)
}

// OSFileStore serves files from the local filesystem.
type OSFileStore struct{}

func (OSFileStore) Stat(path string) (FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		IsFile:  fi.Mode().IsRegular(),
		IsDir:   fi.IsDir(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}, nil
}

func (OSFileStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileStore) ReadRange(path string, off, length int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
