package identity

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/iflastandards/standards-authz/pkg/contextkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://issuer.example.org"
	testClientID = "standards-admin"
)

type testIssuerKeys struct {
	key    *rsa.PrivateKey
	signer jose.Signer
}

func newTestIssuer(t *testing.T) *testIssuerKeys {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)
	return &testIssuerKeys{key: key, signer: signer}
}

func (k *testIssuerKeys) verifier() *oidc.IDTokenVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&k.key.PublicKey}}
	return oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testClientID})
}

func (k *testIssuerKeys) token(t *testing.T, claims map[string]any) string {
	t.Helper()
	base := map[string]any{
		"iss": testIssuer,
		"aud": testClientID,
		"sub": "user_1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}

	payload, err := json.Marshal(base)
	require.NoError(t, err)
	sig, err := k.signer.Sign(payload)
	require.NoError(t, err)
	raw, err := sig.CompactSerialize()
	require.NoError(t, err)
	return raw
}

type countingVerifier struct {
	inner tokenVerifier
	calls atomic.Int32
}

func (c *countingVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	c.calls.Add(1)
	return c.inner.Verify(ctx, raw)
}

func withToken(raw string) context.Context {
	return contextkeys.WithBearerToken(context.Background(), raw)
}

func TestOIDCSource_VerifiesToken(t *testing.T) {
	issuer := newTestIssuer(t)
	src := NewOIDCSourceFromVerifier(issuer.verifier(), OIDCConfig{IssuerURL: testIssuer}, nil)

	raw := issuer.token(t, map[string]any{
		"email": "editor@example.org",
		"public_metadata": map[string]any{
			"teams": []any{map[string]any{"teamId": "t1", "role": "editor", "reviewGroup": "isbd", "namespaces": []any{"isbd"}}},
		},
	})

	ident, err := src.Current(withToken(raw))
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "user_1", ident.ID)
	assert.Equal(t, "editor@example.org", ident.Email)
	assert.Contains(t, ident.Metadata, "teams")
}

func TestOIDCSource_RejectsBadTokens(t *testing.T) {
	issuer := newTestIssuer(t)
	other := newTestIssuer(t)
	src := NewOIDCSourceFromVerifier(issuer.verifier(), OIDCConfig{IssuerURL: testIssuer}, nil)

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong key", other.token(t, nil)},
		{"expired", issuer.token(t, map[string]any{"exp": time.Now().Add(-time.Hour).Unix()})},
		{"wrong audience", issuer.token(t, map[string]any{"aud": "someone-else"})},
		{"wrong issuer", issuer.token(t, map[string]any{"iss": "https://evil.example.org"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, err := src.Current(withToken(tt.raw))
			assert.NoError(t, err)
			assert.Nil(t, ident)
		})
	}
}

func TestOIDCSource_NoToken(t *testing.T) {
	src := NewOIDCSourceFromVerifier(newTestIssuer(t).verifier(), OIDCConfig{IssuerURL: testIssuer}, nil)
	ident, err := src.Current(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, ident)
}

func TestOIDCSource_CachesVerifiedTokens(t *testing.T) {
	issuer := newTestIssuer(t)
	counter := &countingVerifier{inner: issuer.verifier()}
	src := newOIDCSource(counter, OIDCConfig{IssuerURL: testIssuer}, nil)
	raw := issuer.token(t, map[string]any{"email": "a@example.org"})

	for i := 0; i < 3; i++ {
		ident, err := src.Current(withToken(raw))
		require.NoError(t, err)
		require.NotNil(t, ident)
	}
	assert.Equal(t, int32(1), counter.calls.Load())

	src.Forget(raw)
	_, err := src.Current(withToken(raw))
	require.NoError(t, err)
	assert.Equal(t, int32(2), counter.calls.Load())
}

func TestOIDCSource_CachedTokenExpires(t *testing.T) {
	issuer := newTestIssuer(t)
	counter := &countingVerifier{inner: issuer.verifier()}
	src := newOIDCSource(counter, OIDCConfig{IssuerURL: testIssuer}, nil)
	raw := issuer.token(t, nil)

	_, err := src.Current(withToken(raw))
	require.NoError(t, err)

	src.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	ident, err := src.Current(withToken(raw))
	require.NoError(t, err)
	assert.NotNil(t, ident)
	assert.Equal(t, int32(2), counter.calls.Load(), "stale cache entry is verified again")
}

func TestOIDCSource_MalformedMetadataIgnored(t *testing.T) {
	issuer := newTestIssuer(t)
	src := NewOIDCSourceFromVerifier(issuer.verifier(), OIDCConfig{IssuerURL: testIssuer, MetadataClaim: "roles"}, nil)

	ident, err := src.Current(withToken(issuer.token(t, map[string]any{"roles": "superadmin"})))
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Nil(t, ident.Metadata)
}

func TestOIDCSource_UserInfoFallback(t *testing.T) {
	issuer := newTestIssuer(t)
	src := NewOIDCSourceFromVerifier(issuer.verifier(), OIDCConfig{IssuerURL: testIssuer}, nil)
	src.userInfo = func(ctx context.Context, accessToken string) (map[string]any, error) {
		return map[string]any{"email": "from-userinfo@example.org"}, nil
	}

	ident, err := src.Current(withToken(issuer.token(t, nil)))
	require.NoError(t, err)
	assert.Equal(t, "from-userinfo@example.org", ident.Email)
}

func TestOIDCSource_UserInfoFailurePropagates(t *testing.T) {
	issuer := newTestIssuer(t)
	src := NewOIDCSourceFromVerifier(issuer.verifier(), OIDCConfig{IssuerURL: testIssuer}, nil)
	boom := errors.New("userinfo unavailable")
	src.userInfo = func(ctx context.Context, accessToken string) (map[string]any, error) {
		return nil, boom
	}

	ident, err := src.Current(withToken(issuer.token(t, nil)))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, ident)
}

func TestOIDCConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&OIDCConfig{}).Validate(), ErrMissingIssuer)
	assert.Error(t, (&OIDCConfig{IssuerURL: testIssuer, CacheSize: -1}).Validate())
	assert.NoError(t, (&OIDCConfig{IssuerURL: testIssuer}).Validate())
}

func TestNewOIDCSource_DiscoveryFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewOIDCSource(ctx, OIDCConfig{IssuerURL: "http://127.0.0.1:1"}, nil)
	assert.Error(t, err)

	_, err = NewOIDCSource(ctx, OIDCConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingIssuer)
}
