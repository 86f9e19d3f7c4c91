package identity

import (
	"context"
	"errors"
)

var (
	// ErrMissingIssuer is returned when an OIDC source has no issuer configured
	ErrMissingIssuer = errors.New("issuer URL is required")

	// ErrInvalidUsers is returned for a static user file that cannot be served
	ErrInvalidUsers = errors.New("invalid static users")
)

// DefaultMetadataClaim holds the role metadata the identity provider exposes
const DefaultMetadataClaim = "public_metadata"

// Identity is the caller as the identity provider sees it. Metadata is
// untrusted and may have any shape.
type Identity struct {
	ID       string         `json:"id" yaml:"id"`
	Email    string         `json:"email" yaml:"email"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata"`
}

// Source looks up the identity behind a request. It returns nil, nil when the
// request carries no usable credentials; errors are reserved for provider
// failures.
type Source interface {
	Current(ctx context.Context) (*Identity, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (*Identity, error)

func (f SourceFunc) Current(ctx context.Context) (*Identity, error) {
	return f(ctx)
}

// ExtractEmail finds the primary email in a claim set. Providers disagree on
// where it lives, so several shapes are tried in order; "" means none.
func ExtractEmail(claims map[string]any) string {
	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	if email := firstNested(claims["emailAddresses"], "emailAddress"); email != "" {
		return email
	}
	switch primary := claims["primaryEmailAddress"].(type) {
	case string:
		if primary != "" {
			return primary
		}
	case map[string]any:
		if email, ok := primary["emailAddress"].(string); ok && email != "" {
			return email
		}
	}
	return firstNested(claims["email_addresses"], "email_address")
}

func firstNested(v any, key string) string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	entry, ok := list[0].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := entry[key].(string)
	return s
}
