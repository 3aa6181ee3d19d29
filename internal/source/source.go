package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidLocation = errors.New("source: invalid location")
	ErrNotFound        = errors.New("source: document not found")
	ErrFetch           = errors.New("source: fetch failed")
	ErrNotAllowed      = errors.New("source: location not allowed")
)

// Location names a document: an http(s) URL or a path under the documents root.
type Location string

func (l Location) String() string { return string(l) }

func (l Location) Validate() error {
	if strings.TrimSpace(string(l)) == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidLocation)
	}
	return nil
}

// Resolver supplies document bytes on demand. Implementations do not cache
// and do not retry.
type Resolver interface {
	Fetch(ctx context.Context, loc Location) ([]byte, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, loc Location) ([]byte, error)

func (f ResolverFunc) Fetch(ctx context.Context, loc Location) ([]byte, error) { return f(ctx, loc) }

// Checker reports whether a location may be fetched, without fetching it.
type Checker interface {
	Check(loc Location) error
}
