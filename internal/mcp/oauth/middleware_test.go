package oauth

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/mcp-oauth/storage/memory"

	"github.com/teemow/pushbox/internal/logging"
)

func newUserInfoServer(t *testing.T, wantToken string, userInfo GoogleUserInfo) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(userInfo))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T, userInfoURL string) *Handler {
	t.Helper()

	handler, err := NewHandler(Config{
		Resource:         "https://mcp.example.com",
		UserInfoEndpoint: userInfoURL,
	}, memory.New())
	require.NoError(t, err)
	return handler
}

func TestValidateGoogleTokenLogsThroughConfiguredLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	handler, err := NewHandler(Config{
		Resource:         "https://mcp.example.com",
		UserInfoEndpoint: srv.URL,
		Logger:           logging.NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil))),
	}, memory.New())
	require.NoError(t, err)

	protected := handler.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer rejected-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, buf.String(), "token validation failed")
}

func TestValidateGoogleToken(t *testing.T) {
	srv := newUserInfoServer(t, "valid-token", GoogleUserInfo{
		Sub:           "12345",
		Email:         "jane@example.com",
		EmailVerified: true,
		Name:          "Jane Doe",
	})
	handler := newTestHandler(t, srv.URL)

	var gotUser *GoogleUserInfo
	protected := handler.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = GetUserFromContext(r.Context())
		token, ok := GetGoogleTokenFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "valid-token", token.AccessToken)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotUser)
	assert.Equal(t, "jane@example.com", gotUser.Email)

	// The validated token must be retrievable for Google API access.
	stored, err := handler.Store().GetToken(req.Context(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "valid-token", stored.AccessToken)
}

func TestValidateGoogleTokenMissingHeader(t *testing.T) {
	handler := newTestHandler(t, "http://127.0.0.1:1/userinfo")

	protected := handler.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "resource_metadata")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_token", body.Error)
}

func TestValidateGoogleTokenMalformedHeader(t *testing.T) {
	handler := newTestHandler(t, "http://127.0.0.1:1/userinfo")

	protected := handler.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	for _, header := range []string{"Basic dXNlcg==", "Bearer", "Bearer   "} {
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestValidateGoogleTokenRejectedUpstream(t *testing.T) {
	srv := newUserInfoServer(t, "valid-token", GoogleUserInfo{Email: "jane@example.com"})
	handler := newTestHandler(t, srv.URL)

	protected := handler.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a rejected token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.ErrorDescription, "re-authenticate")
}

func TestValidateGoogleTokenEmptyEmail(t *testing.T) {
	srv := newUserInfoServer(t, "valid-token", GoogleUserInfo{Sub: "12345"})
	handler := newTestHandler(t, srv.URL)

	protected := handler.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an email identity")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
