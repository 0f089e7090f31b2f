// Package storage keeps uploaded files (client attachments, knowledge documents)
// and hands back an opaque locator that is later used to read or delete them.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Read when the locator points at nothing.
var ErrNotFound = errors.New("stored file not found")

type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Read(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// storedName prefixes a sanitized filename with a uuid so uploads never collide.
func storedName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 32 || r == '/' || r == ':':
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		base = "file"
	}
	return uuid.NewString() + "-" + base
}
