// Package artifact stores generated export files under timestamped names.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
)

// Info describes a stored artifact.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store persists artifacts by name.
type Store interface {
	// Put writes the content of r under name, replacing any existing artifact.
	Put(ctx context.Context, name string, r io.Reader) error

	// Open returns the content of the named artifact.
	// Returns ErrNotFound if it doesn't exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns all artifacts ordered by name.
	List(ctx context.Context) ([]Info, error)
}

const timestampLayout = "20060102_150405"

// Name returns prefix_YYYYMMDD_HHMMSS.ext for the given time.
func Name(prefix string, now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format(timestampLayout), strings.TrimPrefix(ext, "."))
}

// ValidateName rejects names that could escape the store's namespace.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") || path.Clean(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ContentType returns the MIME type for an artifact name.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}
