package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	KindHTTP = "http"
	KindFile = "file"
)

func DetectKind(loc Location) string {
	u, err := url.Parse(string(loc))
	if err != nil {
		return KindFile
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return KindHTTP
	default:
		return KindFile
	}
}

// Auto dispatches to HTTP for URLs and to Files for everything else.
type Auto struct {
	HTTP  Resolver
	Files Resolver
}

func (a Auto) resolver(loc Location) (Resolver, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if DetectKind(loc) == KindHTTP {
		if a.HTTP == nil {
			return nil, fmt.Errorf("%w: remote documents are disabled", ErrNotAllowed)
		}
		return a.HTTP, nil
	}
	if a.Files == nil {
		return nil, fmt.Errorf("%w: no resolver for %q", ErrInvalidLocation, loc)
	}
	return a.Files, nil
}

// Check validates loc against the resolver it dispatches to, when that
// resolver is a Checker.
func (a Auto) Check(loc Location) error {
	r, err := a.resolver(loc)
	if err != nil {
		return err
	}
	if c, ok := r.(Checker); ok {
		return c.Check(loc)
	}
	return nil
}

func (a Auto) Fetch(ctx context.Context, loc Location) ([]byte, error) {
	r, err := a.resolver(loc)
	if err != nil {
		return nil, err
	}
	return r.Fetch(ctx, loc)
}
