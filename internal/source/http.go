package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxRedirects = 10

// HTTP fetches http(s) identifiers from an allowlist of hosts. The caller's
// context is the only deadline.
type HTTP struct {
	Client *http.Client
	// MaxBytes caps the response body; zero means no cap.
	MaxBytes int64
	// AllowedHosts lists the hosts that may be fetched, matched against the
	// URL's hostname. Empty allows none.
	AllowedHosts []string
}

// NewHTTP returns a fetcher for the given hosts. Redirects are followed only
// while they stay on an allowed host.
func NewHTTP(client *http.Client, allowedHosts ...string) *HTTP {
	h := &HTTP{AllowedHosts: allowedHosts}
	c := http.Client{}
	if client != nil {
		c = *client
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		return h.Check(Location(req.URL.String()))
	}
	h.Client = &c
	return h
}

func (h *HTTP) Check(loc Location) error {
	u, err := url.Parse(string(loc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return fmt.Errorf("%w: scheme %q", ErrNotAllowed, u.Scheme)
	}
	host := u.Hostname()
	for _, allowed := range h.AllowedHosts {
		if strings.EqualFold(allowed, host) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q", ErrNotAllowed, host)
}

func (h *HTTP) Fetch(ctx context.Context, loc Location) ([]byte, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if err := h.Check(loc); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(loc), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	req.Header.Set("Accept", "application/pdf")
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, ErrNotAllowed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, loc, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, loc, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if h.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, h.MaxBytes+1)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, loc, err)
	}
	if h.MaxBytes > 0 && int64(len(b)) > h.MaxBytes {
		return nil, fmt.Errorf("%w: %s: larger than %d bytes", ErrFetch, loc, h.MaxBytes)
	}
	return b, nil
}
