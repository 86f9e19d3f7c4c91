// Package identity looks up who is calling. It is the boundary to the external
// identity provider and knows nothing about roles or permissions.
//
// # Sources
//
// OIDCSource verifies bearer tokens with go-oidc against the issuer's keys
// and reads role metadata from a configurable claim (public_metadata by
// default). Verified tokens are kept in an expirable LRU until they expire.
//
// StaticSource maps fixed bearer tokens to fixed identities loaded from YAML.
// It is meant for local development and tests.
//
// # Usage
//
//	src, err := identity.NewOIDCSource(ctx, identity.OIDCConfig{
//		IssuerURL: "https://clerk.example.org",
//		ClientID:  "standards-admin",
//	}, logger)
//
//	handler := identity.TokenMiddleware(router)
//
// TokenMiddleware must run before anything that calls Source.Current, since
// sources read the token from the request context.
package identity
