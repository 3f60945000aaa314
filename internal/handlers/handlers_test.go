package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/gophersession/internal/handlers/httpauth"
	"github.com/nkiryanov/gophersession/internal/logger"
	"github.com/nkiryanov/gophersession/internal/metrics"
	"github.com/nkiryanov/gophersession/internal/repository"
	"github.com/nkiryanov/gophersession/internal/repository/memory"
	"github.com/nkiryanov/gophersession/internal/repository/postgres"
	"github.com/nkiryanov/gophersession/internal/service/auth"
	"github.com/nkiryanov/gophersession/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/gophersession/internal/service/user"
	"github.com/nkiryanov/gophersession/internal/testutil"
)

const testSecretKey = "test-secret"

type testServer struct {
	t       *testing.T
	url     string
	metrics *metrics.Metrics
}

// Run http server with production services on top of memory storage
func startServer(t *testing.T) testServer {
	t.Helper()
	return startServerWith(t, memory.NewStorage())
}

func startServerWith(t *testing.T, storage repository.Storage) testServer {
	t.Helper()

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: testSecretKey})
	require.NoError(t, err, "token manager should be created without errors")

	authService, err := auth.NewService(auth.Config{Hasher: hasher}, tokens, storage.User(), storage.Refresh())
	require.NoError(t, err, "auth service starting error")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := NewRouter(
		authService,
		user.NewService(hasher, storage.User()),
		httpauth.NewRefreshCookie(tokens.RefreshTTL(), false),
		m,
		metrics.Handler(reg),
		logger.NewNoOpLogger(),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return testServer{t: t, url: srv.URL, metrics: m}
}

type requestOption func(r *http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withRefresh(token string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "x_rt", Value: token}) }
}

func withLanguage(lang string) requestOption {
	return func(r *http.Request) { r.Header.Set("Accept-Language", lang) }
}

func (s testServer) do(method string, path string, body string, opts ...requestOption) (*http.Response, string) {
	s.t.Helper()

	req, err := http.NewRequest(method, s.url+path, strings.NewReader(body))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	_ = resp.Body.Close()

	return resp, string(data)
}

func (s testServer) signup(username string, password string) {
	s.t.Helper()

	resp, body := s.do(http.MethodPost, "/auth/signup",
		`{"username": "`+username+`", "password": "`+password+`", "repeatPassword": "`+password+`"}`)
	require.Equalf(s.t, http.StatusOK, resp.StatusCode, "signup failed. Body: %s", body)
}

// Login and return access token and refresh cookie value
func (s testServer) login(username string, password string) (string, string) {
	s.t.Helper()

	resp, body := s.do(http.MethodPost, "/auth/login", `{"username": "`+username+`", "password": "`+password+`"}`)
	require.Equalf(s.t, http.StatusOK, resp.StatusCode, "login failed. Body: %s", body)

	return accessToken(s.t, body), refreshCookie(s.t, resp).Value
}

func accessToken(t *testing.T, body string) string {
	t.Helper()

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))
	require.NotEmpty(t, parsed.AccessToken, "access token should be in body")
	return parsed.AccessToken
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range resp.Cookies() {
		if c.Name == "x_rt" {
			return c
		}
	}
	t.Fatal("refresh cookie is not set")
	return nil
}

func Test_Signup(t *testing.T) {
	t.Parallel()

	t.Run("signup ok", func(t *testing.T) {
		s := startServer(t)

		resp, body := s.do(http.MethodPost, "/auth/signup",
			`{"username": "alice", "password": "pwd", "repeatPassword": "pwd", "email": "alice@example.com"}`)

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"message": "Signed up successfully"}`, body)
		require.Empty(t, resp.Cookies(), "signup does not log in")
	})

	t.Run("signup in chinese", func(t *testing.T) {
		s := startServer(t)

		_, body := s.do(http.MethodPost, "/auth/signup",
			`{"username": "alice", "password": "pwd", "repeatPassword": "pwd"}`, withLanguage("zh-CN"))

		require.JSONEq(t, `{"message": "注册成功"}`, body)
	})

	t.Run("duplicate username", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")

		resp, body := s.do(http.MethodPost, "/auth/signup",
			`{"username": "alice", "password": "other", "repeatPassword": "other"}`)

		require.Equalf(t, http.StatusConflict, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"error": "user_exists", "message": "Username already exists"}`, body)
	})

	t.Run("passwords differ", func(t *testing.T) {
		s := startServer(t)

		resp, body := s.do(http.MethodPost, "/auth/signup",
			`{"username": "alice", "password": "pwd", "repeatPassword": "other"}`)

		require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{
			"error": "validation_failed",
			"message": "Request validation failed",
			"fields": {"repeatPassword": "Value must be equal to 'password'"}
		}`, body)
	})

	t.Run("invalid email", func(t *testing.T) {
		s := startServer(t)

		resp, _ := s.do(http.MethodPost, "/auth/signup",
			`{"username": "alice", "password": "pwd", "repeatPassword": "pwd", "email": "not-email"}`)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func Test_Login(t *testing.T) {
	t.Parallel()

	t.Run("login ok", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")

		resp, body := s.do(http.MethodPost, "/auth/login", `{"username": "alice", "password": "pwd"}`)

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		accessToken(t, body)

		cookie := refreshCookie(t, resp)
		require.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
		require.Equal(t, "/auth", cookie.Path)
		require.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "refresh cookie should be SameSite Strict")
		require.InDelta(t, (7 * 24 * time.Hour).Seconds(), cookie.MaxAge, 1, "max age should be refresh TTL")
		require.NotEmpty(t, cookie.Value, "refresh cookie should not be empty")

		require.InDelta(t, 1, promtestutil.ToFloat64(s.metrics.AuthEvents.WithLabelValues("login", "ok")), 0)
	})

	t.Run("with matching repeat password", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")

		resp, _ := s.do(http.MethodPost, "/auth/login", `{"username": "alice", "password": "pwd", "repeatPassword": "pwd"}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("with different repeat password", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")

		resp, body := s.do(http.MethodPost, "/auth/login", `{"username": "alice", "password": "pwd", "repeatPassword": "other"}`)

		require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
		require.Empty(t, resp.Cookies())
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")

		wrongResp, wrongBody := s.do(http.MethodPost, "/auth/login", `{"username": "alice", "password": "wrong"}`)
		unknownResp, unknownBody := s.do(http.MethodPost, "/auth/login", `{"username": "bob", "password": "pwd"}`)

		require.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
		require.Equal(t, http.StatusUnauthorized, unknownResp.StatusCode)
		require.JSONEq(t, `{"error": "invalid_credentials", "message": "Invalid username or password"}`, wrongBody)
		require.Equal(t, wrongBody, unknownBody)
		require.Empty(t, wrongResp.Cookies(), "no cookies should be set on login error")
		require.InDelta(t, 2, promtestutil.ToFloat64(s.metrics.AuthEvents.WithLabelValues("login", "invalid_credentials")), 0)
	})

	t.Run("invalid json", func(t *testing.T) {
		s := startServer(t)

		resp, _ := s.do(http.MethodPost, "/auth/login", `invalid-json`)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		s := startServer(t)

		resp, _ := s.do(http.MethodGet, "/auth/login", "")

		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func Test_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("refresh ok", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")
		access, refresh := s.login("alice", "pwd")

		resp, body := s.do(http.MethodPost, "/auth/refresh", "", withBearer(access), withRefresh(refresh))

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		newAccess := accessToken(t, body)
		require.NotEqual(t, access, newAccess)
		require.NotEqual(t, refresh, refreshCookie(t, resp).Value, "refresh cookie should be rotated")
	})

	t.Run("replay", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")
		access, refresh := s.login("alice", "pwd")

		resp, _ := s.do(http.MethodPost, "/auth/refresh", "", withBearer(access), withRefresh(refresh))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := s.do(http.MethodPost, "/auth/refresh", "", withBearer(access), withRefresh(refresh))

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, `{"error": "refresh_replayed", "message": "Refresh credential was already used, please log in again"}`, body)
		require.InDelta(t, 1, promtestutil.ToFloat64(s.metrics.AuthEvents.WithLabelValues("refresh", "refresh_replayed")), 0)
	})

	t.Run("replay in chinese", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")
		access, refresh := s.login("alice", "pwd")
		s.do(http.MethodPost, "/auth/refresh", "", withBearer(access), withRefresh(refresh))

		_, body := s.do(http.MethodPost, "/auth/refresh", "", withBearer(access), withRefresh(refresh), withLanguage("zh"))

		require.JSONEq(t, `{"error": "refresh_replayed", "message": "刷新凭证已被使用，请重新登陆"}`, body)
	})

	t.Run("missing cookie", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")
		access, _ := s.login("alice", "pwd")

		resp, body := s.do(http.MethodPost, "/auth/refresh", "", withBearer(access))

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.JSONEq(t, `{"error": "missing_credential", "message": "Credential is missing"}`, body)
	})

	t.Run("malformed cookie", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")
		access, _ := s.login("alice", "pwd")

		resp, body := s.do(http.MethodPost, "/auth/refresh", "", withBearer(access), withRefresh("garbage"))

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.JSONEq(t, `{"error": "malformed_credential", "message": "Credential is invalid"}`, body)
	})
}

func Test_Logout(t *testing.T) {
	t.Parallel()

	t.Run("logout revokes refresh", func(t *testing.T) {
		s := startServer(t)
		s.signup("alice", "pwd")
		access, refresh := s.login("alice", "pwd")

		resp, body := s.do(http.MethodPost, "/auth/logout", "", withBearer(access))

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"message": "Logged out"}`, body)
		cookie := refreshCookie(t, resp)
		require.Empty(t, cookie.Value, "refresh cookie should be cleared")
		require.Equal(t, -1, cookie.MaxAge)

		resp, _ = s.do(http.MethodPost, "/auth/refresh", "", withBearer(access), withRefresh(refresh))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout without token ok", func(t *testing.T) {
		s := startServer(t)

		resp, body := s.do(http.MethodPost, "/auth/logout", "")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"message": "Logged out"}`, body)
	})
}

func Test_UserSelf(t *testing.T) {
	t.Parallel()

	s := startServer(t)
	s.do(http.MethodPost, "/auth/signup",
		`{"username": "alice", "password": "pwd", "repeatPassword": "pwd", "email": "alice@example.com"}`)
	access, _ := s.login("alice", "pwd")

	t.Run("ok", func(t *testing.T) {
		resp, body := s.do(http.MethodGet, "/user/self", "", withBearer(access))

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"id": 1, "username": "alice", "email": "alice@example.com"}`, body)
	})

	t.Run("no token", func(t *testing.T) {
		resp, _ := s.do(http.MethodGet, "/user/self", "")

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp, _ := s.do(http.MethodGet, "/user/self", "", withBearer("garbage"))

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("expired token asks to refresh", func(t *testing.T) {
		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: testSecretKey})
		require.NoError(t, err)
		pair, err := tokens.Issue("1", time.Now().Add(-time.Hour))
		require.NoError(t, err)

		resp, body := s.do(http.MethodGet, "/user/self", "", withBearer(pair.Access.Value))

		require.Equal(t, http.StatusForbidden, resp.StatusCode, "expired access token is not a reason to log in again")
		require.JSONEq(t, `{"error": "token_expired", "message": "Session expired, please refresh the session"}`, body)
	})
}

func Test_NonLatinUsername(t *testing.T) {
	t.Parallel()

	s := startServer(t)
	s.signup("张三", "pwd")
	access, _ := s.login("张三", "pwd")

	resp, body := s.do(http.MethodGet, "/user/self", "", withBearer(access))

	require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
	require.JSONEq(t, `{"id": 1, "username": "张三", "email": null}`, body)
}

func Test_Metrics(t *testing.T) {
	t.Parallel()

	s := startServer(t)
	s.signup("alice", "pwd")

	resp, body := s.do(http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `gophersession_auth_events_total{operation="signup",outcome="ok"} 1`)
	assert.Contains(t, body, "gophersession_http_request_duration_seconds")
}

// Whole session lifecycle over HTTP
func Test_SessionLifecycle(t *testing.T) {
	t.Parallel()

	sessionLifecycle(t, startServer(t))
}

// Same lifecycle with users and sessions in postgres; everything is rolled back after test
func Test_SessionLifecyclePostgres(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
		s := startServerWith(t, postgres.NewStorage(tx))
		sessionLifecycle(t, s)

		resp, body := s.do(http.MethodPost, "/auth/signup",
			`{"username": "alice", "password": "pwd", "repeatPassword": "pwd"}`)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Contains(t, body, "user_exists")
	})
}

func sessionLifecycle(t *testing.T, s testServer) {
	t.Helper()

	s.signup("alice", "pwd")
	a1, r1 := s.login("alice", "pwd")

	resp, body := s.do(http.MethodPost, "/auth/refresh", "", withBearer(a1), withRefresh(r1))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a2, r2 := accessToken(t, body), refreshCookie(t, resp).Value

	resp, _ = s.do(http.MethodPost, "/auth/refresh", "", withBearer(a1), withRefresh(r1))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "first pair is used")

	resp, _ = s.do(http.MethodPost, "/auth/logout", "", withBearer(a2))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/auth/refresh", "", withBearer(a2), withRefresh(r2))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, body, "refresh_replayed")
}
