package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/iflastandards/standards-authz/pkg/contextkeys"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"golang.org/x/oauth2"
)

const (
	DefaultTokenCacheSize = 1000
	DefaultTokenCacheTTL  = 5 * time.Minute
)

// OIDCConfig configures bearer token verification
type OIDCConfig struct {
	IssuerURL       string
	ClientID        string // audience; the check is skipped when empty
	SkipIssuerCheck bool
	MetadataClaim   string // defaults to DefaultMetadataClaim
	UserInfo        bool   // ask the userinfo endpoint when the token has no email
	CacheSize       int
	CacheTTL        time.Duration
}

// Validate checks the configuration
func (c *OIDCConfig) Validate() error {
	if c.IssuerURL == "" {
		return ErrMissingIssuer
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	return nil
}

type tokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

type userInfoFunc func(ctx context.Context, accessToken string) (map[string]any, error)

type cachedIdentity struct {
	identity *Identity
	expiry   time.Time
}

// OIDCSource resolves identities from OIDC bearer tokens. Verified tokens are
// remembered until they expire or fall out of the cache.
type OIDCSource struct {
	verifier tokenVerifier
	userInfo userInfoFunc
	claim    string
	tokens   *lru.LRU[string, cachedIdentity]
	logger   *observability.Logger
	now      func() time.Time
}

// NewOIDCSource discovers the issuer and builds a source that verifies
// tokens against its published keys
func NewOIDCSource(ctx context.Context, cfg OIDCConfig, logger *observability.Logger) (*OIDCSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: cfg.ClientID == "",
		SkipIssuerCheck:   cfg.SkipIssuerCheck,
	})

	s := NewOIDCSourceFromVerifier(verifier, cfg, logger)
	if cfg.UserInfo {
		s.userInfo = func(ctx context.Context, accessToken string) (map[string]any, error) {
			info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
			if err != nil {
				return nil, err
			}
			var claims map[string]any
			if err := info.Claims(&claims); err != nil {
				return nil, err
			}
			return claims, nil
		}
	}
	return s, nil
}

// NewOIDCSourceFromVerifier builds a source around an existing verifier,
// for example one backed by a static key set
func NewOIDCSourceFromVerifier(verifier *oidc.IDTokenVerifier, cfg OIDCConfig, logger *observability.Logger) *OIDCSource {
	return newOIDCSource(verifier, cfg, logger)
}

func newOIDCSource(verifier tokenVerifier, cfg OIDCConfig, logger *observability.Logger) *OIDCSource {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.MetadataClaim == "" {
		cfg.MetadataClaim = DefaultMetadataClaim
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultTokenCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultTokenCacheTTL
	}

	return &OIDCSource{
		verifier: verifier,
		claim:    cfg.MetadataClaim,
		tokens:   lru.NewLRU[string, cachedIdentity](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:   logger.WithField("component", "oidc_source"),
		now:      time.Now,
	}
}

// Current implements Source. Tokens that fail verification resolve to no
// identity; a cancelled context or a failing userinfo call is an error.
func (s *OIDCSource) Current(ctx context.Context) (*Identity, error) {
	raw, ok := contextkeys.GetBearerToken(ctx)
	if !ok {
		return nil, nil
	}

	key := hashToken(raw)
	if cached, ok := s.tokens.Get(key); ok {
		if s.now().Before(cached.expiry) {
			return cached.identity, nil
		}
		s.tokens.Remove(key)
	}

	token, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.WithError(err).Debug("rejected bearer token")
		return nil, nil
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	ident := &Identity{
		ID:       token.Subject,
		Email:    ExtractEmail(claims),
		Metadata: s.metadata(claims),
	}

	if ident.Email == "" && s.userInfo != nil {
		info, err := s.userInfo(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
		}
		ident.Email = ExtractEmail(info)
	}

	s.tokens.Add(key, cachedIdentity{identity: ident, expiry: token.Expiry})
	return ident, nil
}

func (s *OIDCSource) metadata(claims map[string]any) map[string]any {
	v, present := claims[s.claim]
	if !present || v == nil {
		return nil
	}
	meta, ok := v.(map[string]any)
	if !ok {
		s.logger.WithField("claim", s.claim).Warn("metadata claim is not an object, ignoring it")
		return nil
	}
	return meta
}

// Forget drops any cached identity for a raw token
func (s *OIDCSource) Forget(raw string) {
	s.tokens.Remove(hashToken(raw))
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
