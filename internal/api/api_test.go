package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/accountsvc/internal/api"
	"github.com/mcoot/accountsvc/internal/api/apierr"
	"github.com/mcoot/accountsvc/internal/api/response"
	"github.com/mcoot/accountsvc/internal/factory"
	"github.com/mcoot/accountsvc/internal/storage"
	"github.com/mcoot/accountsvc/internal/testutil"
)

// testServer wires the router over a TestApp
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	router := api.NewRouter(api.RouterConfig{
		Logger:          testutil.NopLogger(),
		IdentityService: app.IdentityService,
		Storage:         app.Storage,
		Metrics:         app.Metrics,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		encoded, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(encoded)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var resp response.Data[T]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Data
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Error
}

var testAccount = map[string]any{
	"username":       "Test",
	"fullName":       "Test",
	"privilegeLevel": 1,
	"password":       "Test",
	"email":          "Test@email.com",
}

func registerAndLogin(t *testing.T, ts *testServer, username, password string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/users", map[string]any{
		"username": username,
		"fullName": "Full " + username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, "/api/users/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decodeData[response.Token](t, rr).Token
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestReadiness(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/ready", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ready")
}

type downStore struct {
	storage.Accounts
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadinessStoreDown(t *testing.T) {
	app := factory.NewTestApp()
	router := api.NewRouter(api.RouterConfig{
		Logger:          testutil.NopLogger(),
		IdentityService: app.IdentityService,
		Storage:         downStore{app.Storage},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/users", testAccount, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	profile := decodeData[response.Profile](t, rr)
	assert.Equal(t, "Test", profile.Username)
	assert.Equal(t, "Test", profile.FullName)
	assert.Equal(t, 1, profile.PrivilegeLevel)
	require.NotNil(t, profile.Email)
	assert.Equal(t, "Test@email.com", *profile.Email)

	assert.NotContains(t, rr.Body.String(), "password")
	assert.NotContains(t, rr.Body.String(), "token")
}

func TestRegisterDuplicate(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/users", testAccount, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/users", testAccount, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, apierr.CodeUsernameExists, apiErr.Code)
	assert.Equal(t, "Username already exists", apiErr.Message)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/users", map[string]any{
		"username": strings.Repeat("u", 31),
		"fullName": "",
		"password": "pw",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, apierr.CodeValidationFailed, apiErr.Code)

	fields := map[string]string{}
	for _, d := range apiErr.Details {
		fields[d.Field] = d.Rule
	}
	assert.Equal(t, map[string]string{"username": "max", "fullName": "required"}, fields)
}

func TestRegisterMultiBytePasswordRejected(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/users", map[string]any{
		"username": "emoji",
		"fullName": "Emoji",
		"password": strings.Repeat("😀", 32),
	}, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	apiErr := decodeError(t, rr)
	assert.Equal(t, apierr.CodeValidationFailed, apiErr.Code)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, "password", apiErr.Details[0].Field)
	assert.Equal(t, "maxbytes", apiErr.Details[0].Rule)
}

func TestUpdateMultiBytePasswordRejected(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice", "secret")

	rr := ts.request(http.MethodPatch, "/api/users/current", map[string]any{
		"password": strings.Repeat("😀", 32),
	}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Equal(t, apierr.CodeValidationFailed, decodeError(t, rr).Code)
}

func TestRegisterMultiBytePasswordWithinByteLimit(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "accent", strings.Repeat("é", 32))
}

func TestRegisterMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/users", `{"username":`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	apiErr := decodeError(t, rr)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, "body", apiErr.Details[0].Field)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockIssuer.QueueTokens("tok-abc")

	rr := ts.request(http.MethodPost, "/api/users", testAccount, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/users/login", `{"username":"Test","password":"Test"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"token":"tok-abc"}}`, rr.Body.String())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "alice", "secret")

	wrong := ts.request(http.MethodPost, "/api/users/login", `{"username":"alice","password":"nope"}`, "")
	unknown := ts.request(http.MethodPost, "/api/users/login", `{"username":"nobody","password":"nope"}`, "")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Username or password wrong", decodeError(t, wrong).Message)
}

func TestCurrentProfile(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice", "secret")

	rr := ts.request(http.MethodGet, "/api/users/current", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	profile := decodeData[response.Profile](t, rr)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "Full alice", profile.FullName)
	assert.Nil(t, profile.Email)
}

func TestRawTokenAccepted(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice", "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/users/current", nil)
	req.Header.Set("Authorization", token)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users/current"},
		{http.MethodPatch, "/api/users/current"},
		{http.MethodDelete, "/api/users/logout"},
	} {
		rr := ts.request(tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.path)
		assert.Equal(t, apierr.CodeUnauthorized, decodeError(t, rr).Code)

		rr = ts.request(tc.method, tc.path, nil, "made-up")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.path)
	}
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice", "secret")

	rr := ts.request(http.MethodPatch, "/api/users/current", `{"fullName":"Alice Liddell","email":"alice@example.com"}`, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	profile := decodeData[response.Profile](t, rr)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "Alice Liddell", profile.FullName)
	require.NotNil(t, profile.Email)
	assert.Equal(t, "alice@example.com", *profile.Email)
}

func TestUpdatePasswordOnlyKeepsOtherFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/users", testAccount, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodPost, "/api/users/login", `{"username":"Test","password":"Test"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	token := decodeData[response.Token](t, rr).Token

	rr = ts.request(http.MethodPatch, "/api/users/current", `{"password":"rahasialagi"}`, token)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decodeData[response.Profile](t, rr)
	assert.Equal(t, "Test", profile.FullName)
	assert.Equal(t, 1, profile.PrivilegeLevel)
	require.NotNil(t, profile.Email)
	assert.Equal(t, "Test@email.com", *profile.Email)

	rr = ts.request(http.MethodPost, "/api/users/login", `{"username":"Test","password":"Test"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = ts.request(http.MethodPost, "/api/users/login", `{"username":"Test","password":"rahasialagi"}`, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUpdateRenameConflict(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice", "secret")
	registerAndLogin(t, ts, "bob", "secret")

	rr := ts.request(http.MethodPatch, "/api/users/current", `{"username":"bob"}`, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUpdateRejectsUnknownField(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice", "secret")

	rr := ts.request(http.MethodPatch, "/api/users/current", `{"isAdmin":true}`, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeValidationFailed, decodeError(t, rr).Code)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice", "secret")

	rr := ts.request(http.MethodDelete, "/api/users/logout", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":"OK"}`, rr.Body.String())

	rr = ts.request(http.MethodGet, "/api/users/current", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// The revoked token cannot log out again
	rr = ts.request(http.MethodDelete, "/api/users/logout", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginRotatesToken(t *testing.T) {
	ts := newTestServer(t)
	first := registerAndLogin(t, ts, "alice", "secret")

	rr := ts.request(http.MethodPost, "/api/users/login", `{"username":"alice","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeData[response.Token](t, rr).Token
	require.NotEqual(t, first, second)

	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/api/users/current", nil, first).Code)
	assert.Equal(t, http.StatusOK, ts.request(http.MethodGet, "/api/users/current", nil, second).Code)
}

func TestConcurrentLoginsLeaveOneLiveToken(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "alice", "secret")

	const workers = 8
	tokens := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := ts.request(http.MethodPost, "/api/users/login", `{"username":"alice","password":"secret"}`, "")
			if rr.Code == http.StatusOK {
				var resp response.Data[response.Token]
				if json.Unmarshal(rr.Body.Bytes(), &resp) == nil {
					tokens[i] = resp.Data.Token
				}
			}
		}(i)
	}
	wg.Wait()

	live := 0
	for _, tok := range tokens {
		require.NotEmpty(t, tok)
		if ts.request(http.MethodGet, "/api/users/current", nil, tok).Code == http.StatusOK {
			live++
		}
	}
	assert.Equal(t, 1, live)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "alice", "secret")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "accountsvc_registrations_total 1")
	assert.Contains(t, body, `accountsvc_logins_total{result="success"} 1`)
	assert.Contains(t, body, `route="/api/users/login"`)
}
