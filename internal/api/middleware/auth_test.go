package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/accountsvc/internal/api/apierr"
	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/services/identity"
	"github.com/mcoot/accountsvc/internal/testutil"
)

type resolverFunc func(ctx context.Context, token string) (*model.Account, error)

func (f resolverFunc) Resolve(ctx context.Context, token string) (*model.Account, error) {
	return f(ctx, token)
}

func serveAuth(t *testing.T, resolver Resolver, header string) (*httptest.ResponseRecorder, *testutil.LogCapture, *model.Account) {
	t.Helper()
	logger, logs := testutil.CaptureLogger()

	var seen *model.Account
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustGetAccount(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/current", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	Auth(resolver, logger)(next).ServeHTTP(rr, req)
	return rr, logs, seen
}

func decodeCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestAuthPassesResolvedAccount(t *testing.T) {
	alice := &model.Account{Username: "alice"}
	resolver := resolverFunc(func(_ context.Context, token string) (*model.Account, error) {
		if token == "tok-1" {
			return alice, nil
		}
		return nil, identity.ErrUnauthenticated
	})

	rr, _, seen := serveAuth(t, resolver, "Bearer tok-1")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Same(t, alice, seen)
}

func TestAuthMissingToken(t *testing.T) {
	called := false
	resolver := resolverFunc(func(context.Context, string) (*model.Account, error) {
		called = true
		return nil, nil
	})

	rr, _, seen := serveAuth(t, resolver, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
	assert.Nil(t, seen)
}

func TestAuthUnknownTokenNotLogged(t *testing.T) {
	resolver := resolverFunc(func(context.Context, string) (*model.Account, error) {
		return nil, identity.ErrUnauthenticated
	})

	rr, logs, _ := serveAuth(t, resolver, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, logs.Messages())
}

func TestAuthStoreFailureLogsCause(t *testing.T) {
	resolver := resolverFunc(func(context.Context, string) (*model.Account, error) {
		return nil, fmt.Errorf("resolve token: %w", errors.New("redis: connection refused"))
	})

	rr, logs, seen := serveAuth(t, resolver, "Bearer tok-1")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
	assert.Nil(t, seen)

	rec, ok := logs.Find("session resolve failed")
	require.True(t, ok)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "resolve token: redis: connection refused", rec["error"])
	assert.Equal(t, "/api/users/current", rec["path"])

	assert.Equal(t, apierr.CodeInternalError, decodeCode(t, rr))
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"abc", "abc"},
		{"  abc  ", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			assert.Equal(t, tt.want, ExtractToken(req))
		})
	}
}
