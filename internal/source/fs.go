package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FS resolves identifiers such as "/pdfs/paystub.pdf" below Root.
type FS struct{ Root string }

func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &FS{Root: abs}, nil
}

// Path maps loc to a file below Root. Identifiers with ".." segments are rejected.
func (s *FS) Path(loc Location) (string, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}
	raw := filepath.ToSlash(strings.TrimPrefix(string(loc), "file://"))
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q escapes root", ErrInvalidLocation, loc)
		}
	}
	return filepath.Join(s.Root, filepath.FromSlash(path.Clean("/"+raw))), nil
}

func (s *FS) Check(loc Location) error {
	_, err := s.Path(loc)
	return err
}

func (s *FS) Fetch(ctx context.Context, loc Location) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(loc)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, loc, err)
	}
	return b, nil
}
