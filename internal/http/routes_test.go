package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	httpx "github.com/mfigueredo/tokenbridge/internal/http"
	"github.com/mfigueredo/tokenbridge/internal/identity"
	"github.com/mfigueredo/tokenbridge/internal/jwks"
	"github.com/mfigueredo/tokenbridge/internal/store/file"
	"github.com/mfigueredo/tokenbridge/internal/token"
)

// stubService resolves tokens from a fixed map instead of real issuers.
type stubService struct {
	claims  map[string]*token.VerifiedClaims
	bundles map[string]*identity.TokenBundle
	err     error
}

func (s *stubService) VerifyBearer(ctx context.Context, raw string) (*token.VerifiedClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	if c, ok := s.claims[raw]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown token", token.ErrInvalid)
}

func (s *stubService) Exchange(ctx context.Context, kind token.Kind, rawToken, fallbackEmail, fallbackName string) (*identity.TokenBundle, error) {
	if s.err != nil {
		return nil, s.err
	}
	if b, ok := s.bundles[rawToken]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown token", token.ErrInvalid)
}

func newTestServer(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()
	users := file.New(filepath.Join(t.TempDir(), "users.json"))
	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterDeps{
		Auth:  svc,
		Users: users,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validStub() *stubService {
	return &stubService{
		claims: map[string]*token.VerifiedClaims{
			"good-token": {
				Subject: "user-1",
				Email:   "ana@example.com",
				Name:    "Ana",
				Issuer:  "https://pool.example",
			},
		},
		bundles: map[string]*identity.TokenBundle{
			"good-exchange": {AccessToken: "native-access", IDToken: "native-id", ExpiresIn: 3600},
		},
	}
}

func doJSON(t *testing.T, method, url, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealthzOpen(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestPublicMessageNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/messages/public", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "TOKEN_MISSING", body["code"])
	require.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
}

func TestProtectedRouteRejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/users/me", "bad-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "TOKEN_INVALID", body["code"])
}

func TestUpstreamOutageIsNotUnauthorized(t *testing.T) {
	svc := validStub()
	svc.err = fmt.Errorf("wrapped: %w", jwks.ErrUnavailable)
	srv := newTestServer(t, svc)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/users/me", "good-token", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "AUTH_UPSTREAM_UNAVAILABLE", body["code"])
}

func TestMeRecordsUserOnFirstSight(t *testing.T) {
	srv := newTestServer(t, validStub())

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/users/me", "good-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user-1", body["user_id"])
	require.Equal(t, "ana@example.com", body["email"])

	// Second call resolves the stored record, same shape.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/users/me", "good-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user-1", body["user_id"])

	// And the directory now lists exactly one user.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/users", "good-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])
}

func TestGetUnknownUser(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/users/ghost", "good-token", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "USER_NOT_FOUND", body["code"])
}

func TestGoogleExchange(t *testing.T) {
	srv := newTestServer(t, validStub())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/google", "", map[string]string{
		"id_token": "good-exchange",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "native-access", body["access_token"])
	require.Equal(t, "native-id", body["id_token"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/google", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "MISSING_FIELDS", body["code"])
}

func TestAppleExchange(t *testing.T) {
	srv := newTestServer(t, validStub())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/apple", "", map[string]string{
		"identity_token": "good-exchange",
		"email":          "ana@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "native-access", body["access_token"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/apple", "", map[string]string{
		"identity_token": "stale-token",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "TOKEN_INVALID", body["code"])
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t, validStub())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "rid-from-client")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "rid-from-client", resp.Header.Get("X-Request-ID"))

	// Generated when absent.
	resp2, _ := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	require.NotEmpty(t, resp2.Header.Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NOT_FOUND", body["code"])
}

func TestPublicMessagePersonalizedWithToken(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/messages/public", "good-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user-1", body["subject"])
}

func TestPublicMessageIgnoresBadToken(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/messages/public", "bad-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, body, "subject")
}

func postForm(t *testing.T, url string, form neturl.Values) (*http.Response, string) {
	t.Helper()
	resp, err := http.PostForm(url, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestAppleCallbackRedirectsIntoApp(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, page := postForm(t, srv.URL+"/v1/auth/apple/callback", neturl.Values{
		"id_token": {"apple-id-token"},
		"code":     {"auth-code"},
		"user":     {`{"email":"ana@example.com","name":{"firstName":"Ana","lastName":"Lima"}}`},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, page, "awscognito://apple-callback?")
	require.Contains(t, page, "id_token=apple-id-token")
	require.Contains(t, page, "code=auth-code")
	require.Contains(t, page, "email=ana%40example.com")
	require.Contains(t, page, "name=Ana+Lima")
}

func TestAppleCallbackForwardsError(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, page := postForm(t, srv.URL+"/v1/auth/apple/callback", neturl.Values{
		"error":    {"user_cancelled_authorize"},
		"id_token": {"stale-token"},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, page, "awscognito://apple-callback?error=user_cancelled_authorize")
	require.NotContains(t, page, "stale-token")
}

func TestAppleCallbackToleratesBadUserBlob(t *testing.T) {
	srv := newTestServer(t, validStub())
	resp, page := postForm(t, srv.URL+"/v1/auth/apple/callback", neturl.Values{
		"id_token": {"apple-id-token"},
		"user":     {"{not json"},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, page, "id_token=apple-id-token")
	require.NotContains(t, page, "email=")
}
