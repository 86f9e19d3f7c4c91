package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iflastandards/standards-authz/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// echoRoles answers 200 with the user ID of the role set in context, or
// "anonymous"
func echoRoles(w http.ResponseWriter, r *http.Request) {
	roles, ok := RoleSetFromContext(r)
	if !ok {
		w.Write([]byte("anonymous"))
		return
	}
	w.Write([]byte(roles.UserID))
}

func serve(s *testStack, method, target, token string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, withBearer(httptest.NewRequest(method, target, nil), token))
	return rec
}

func TestMiddleware_Require(t *testing.T) {
	s := newTestStack(t, testSource(t))
	s.router.Handle("/namespaces/{namespace}", s.mw.Require(func(r *http.Request) (Request, error) {
		return Namespace(NamespaceUpdate, NamespaceAttrs{NamespaceID: "ns_isbd"}), nil
	})(http.HandlerFunc(echoRoles))).Methods(http.MethodPut)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := serve(s, http.MethodPut, "/namespaces/ns_isbd", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, CodeUnauthenticated, env.Error.Code)
		assert.Equal(t, "Authentication required", env.Error.Message)
		assert.NotEmpty(t, env.Timestamp)
		assert.NotEmpty(t, env.RequestID)
		assert.Nil(t, env.Error.Details)
		assert.NotEmpty(t, rec.Header().Get(ResponseTimeHeader))
	})

	t.Run("denied", func(t *testing.T) {
		rec := serve(s, http.MethodPut, "/namespaces/ns_isbd", tokenPlain)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		env := decodeEnvelope(t, rec)
		assert.Equal(t, CodePermissionDenied, env.Error.Code)
		assert.Equal(t, "You don't have permission to update namespace", env.Error.Message)
	})

	t.Run("allowed", func(t *testing.T) {
		rec := serve(s, http.MethodPut, "/namespaces/ns_isbd", tokenEditor)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user_editor", rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get(ResponseTimeHeader))
	})

	t.Run("superadmin", func(t *testing.T) {
		rec := serve(s, http.MethodPut, "/namespaces/ns_isbd", tokenAdmin)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMiddleware_ErrorDetails(t *testing.T) {
	s := newTestStack(t, testSource(t), WithErrorDetails(true))
	s.router.Handle("/vocabularies", s.mw.RequireRequest(
		Vocabulary(VocabularyDelete, ContentAttrs{NamespaceID: "ns_isbd"}),
	)(http.HandlerFunc(echoRoles)))

	rec := serve(s, http.MethodDelete, "/vocabularies", tokenPlain)
	require.Equal(t, http.StatusForbidden, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "vocabulary", env.Error.Details["resource"])
	assert.Equal(t, "delete", env.Error.Details["action"])
	assert.Equal(t, map[string]any{"namespaceId": "ns_isbd"}, env.Error.Details["attributes"])
	assert.NotEmpty(t, env.Error.Details["reason"])

	rec = serve(s, http.MethodDelete, "/vocabularies", "")
	env = decodeEnvelope(t, rec)
	assert.NotEmpty(t, env.Error.Details["hint"])
}

func TestMiddleware_BuildError(t *testing.T) {
	s := newTestStack(t, testSource(t))
	s.router.Handle("/check", s.mw.Require(func(r *http.Request) (Request, error) {
		return ParseRequest("namespace", "publish", nil)
	})(http.HandlerFunc(echoRoles)))

	rec := serve(s, http.MethodGet, "/check", tokenEditor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, CodeInvalidRequest, env.Error.Code)
	assert.Contains(t, env.Error.Message, "invalid action")
}

func TestMiddleware_ResolverFailure(t *testing.T) {
	source := identity.SourceFunc(func(context.Context) (*identity.Identity, error) {
		return nil, errors.New("provider down")
	})
	s := newTestStack(t, source)
	s.router.Handle("/secure", s.mw.RequireAuthentication()(http.HandlerFunc(echoRoles)))

	rec := serve(s, http.MethodGet, "/secure", tokenEditor)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, CodeAuthContextError, env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "provider down")
}

func TestMiddleware_RequireAuthentication(t *testing.T) {
	s := newTestStack(t, testSource(t))
	s.router.Handle("/me", s.mw.RequireAuthentication()(http.HandlerFunc(echoRoles)))

	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/me", "bogus").Code)

	rec := serve(s, http.MethodGet, "/me", tokenTranslator)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user_translator", rec.Body.String())
}

func TestMiddleware_OptionalAuth(t *testing.T) {
	s := newTestStack(t, testSource(t))
	s.router.Handle("/public", s.mw.OptionalAuth()(http.HandlerFunc(echoRoles)))

	rec := serve(s, http.MethodGet, "/public", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = serve(s, http.MethodGet, "/public", tokenPlain)
	assert.Equal(t, "user_plain", rec.Body.String())
}

func TestMiddleware_RequireSuperadmin(t *testing.T) {
	s := newTestStack(t, testSource(t))
	s.router.Handle("/admin", s.mw.RequireSuperadmin()(http.HandlerFunc(echoRoles)))

	rec := serve(s, http.MethodGet, "/admin", tokenRGAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, CodeInsufficientRole, decodeEnvelope(t, rec).Error.Code)

	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/admin", tokenAdmin).Code)
}

func TestMiddleware_RequireNamespaceAccess(t *testing.T) {
	s := newTestStack(t, testSource(t))
	s.router.Handle("/ns/{namespace}", s.mw.RequireNamespaceAccess("")(http.HandlerFunc(echoRoles)))
	s.router.Handle("/other/{id}", s.mw.RequireNamespaceAccess("ns")(http.HandlerFunc(echoRoles)))

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/ns/ns_isbd", tokenPlain).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/ns/ns_isbd", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/other/ns_isbd", tokenPlain).Code)
}

func TestMiddleware_ChainedResolvesOnce(t *testing.T) {
	s := newTestStack(t, testSource(t))
	handler := s.mw.RequireAuthentication()(
		s.mw.RequireRequest(Namespace(NamespaceRead, NamespaceAttrs{}))(http.HandlerFunc(echoRoles)),
	)
	s.router.Handle("/chained", handler)

	rec := serve(s, http.MethodGet, "/chained", tokenPlain)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{ResolutionBuilt}, s.observer.resolutions)
}
