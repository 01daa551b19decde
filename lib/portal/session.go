package portal

import (
	"context"
	"net/http"
	"strings"
)

// Option is one <option> of a <select>.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// placeholder options like "Select District" carry an empty or zero value.
func (o Option) isPlaceholder() bool {
	value := strings.TrimSpace(o.Value)
	if value == "" || value == "0" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(o.Label)), "select")
}

func realOptions(options []Option) []Option {
	out := make([]Option, 0, len(options))
	for _, o := range options {
		if o.isPlaceholder() {
			continue
		}
		out = append(out, o)
	}
	return out
}

func sameOptions(a, b []Option) bool {
	a = realOptions(a)
	b = realOptions(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Session is one isolated browser context driving one lookup. Every blocking
// method must return promptly once ctx is done.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Options waits for the select to exist and returns its options.
	Options(ctx context.Context, selector string) ([]Option, error)
	// WaitOptionsChange blocks until the select's non placeholder options
	// differ from previous and returns them.
	WaitOptionsChange(ctx context.Context, selector string, previous []Option) ([]Option, error)
	// Select sets the select's value and fires the change events the page
	// listens to.
	Select(ctx context.Context, selector, value string) error
	// FillDate drives the date control like a user would and returns the value
	// the control holds afterwards.
	FillDate(ctx context.Context, selector, value string) (string, error)
	Click(ctx context.Context, selector string) error
	// WaitAny blocks until one of the selectors matches and returns its index.
	WaitAny(ctx context.Context, selectors ...string) (int, error)
	OuterHTML(ctx context.Context, selector string) (string, error)
	Location(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	// Close releases every browser resource held by the session.
	Close(ctx context.Context) error
}

type SessionProvider interface {
	Acquire(ctx context.Context) (Session, error)
}
