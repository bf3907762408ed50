package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weblate/abrechnung/internal/pgerr"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	raw, err := tokens.Issue(42)
	require.NoError(t, err)

	id, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	expired := NewTokens(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(1)
	require.NoError(t, err)

	foreign, err := NewTokens([]byte("another secret entirely"), time.Hour).Issue(1)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString(testSecret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"expired":      old,
		"wrong secret": foreign,
		"no user id":   noUser,
		"none alg":     unsigned,
		"garbage":      "not.a.token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(raw)
			assert.Error(t, err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	app := fiber.New(fiber.Config{ErrorHandler: pgerr.ErrorHandler})
	app.Get("/whoami", tokens.Middleware(), func(c *fiber.Ctx) error {
		id, err := RequireUser(c)
		if err != nil {
			return err
		}
		return c.SendString(fmt.Sprint(id))
	})

	valid, err := tokens.Issue(7)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{name: "valid", header: "Bearer " + valid, code: http.StatusOK, body: "7"},
		{name: "lowercase scheme", header: "bearer " + valid, code: http.StatusOK, body: "7"},
		{name: "missing", header: "", code: http.StatusUnauthorized, body: `{"error":"missing token"}`},
		{name: "wrong scheme", header: "Basic " + valid, code: http.StatusUnauthorized, body: `{"error":"invalid token"}`},
		{name: "bad token", header: "Bearer nope", code: http.StatusUnauthorized, body: `{"error":"invalid token"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.body, string(body))
		})
	}
}

type fakeUsers struct {
	users  map[string]User
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]User{}, nextID: 1}
}

func (f *fakeUsers) Register(_ context.Context, email, username, password string) (int64, error) {
	if len(password) < 6 {
		return 0, pgerr.Translate(&pgconn.PgError{Code: "P0001", Message: "password-too-short: passwords need at least 6 characters"})
	}
	if _, ok := f.users[email]; ok {
		return 0, pgerr.Translate(&pgconn.PgError{Code: "P0001", Message: "user-exists: a user with this email or username already exists"})
	}
	u := User{ID: f.nextID, Email: email, Username: username, PasswordHash: password}
	f.users[email] = u
	f.nextID++
	return u.ID, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (User, error) {
	u, ok := f.users[email]
	if !ok || u.PasswordHash != password {
		return User{}, fmt.Errorf("%w: invalid email or password", pgerr.ErrUnauthenticated)
	}
	return u, nil
}

func (f *fakeUsers) Get(_ context.Context, id int64) (User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, pgerr.ErrNotFound
}

func newAuthApp(t *testing.T) (*fiber.App, *Tokens) {
	t.Helper()
	tokens := NewTokens(testSecret, time.Hour)
	h := NewHandler(newFakeUsers(), tokens)

	app := fiber.New(fiber.Config{ErrorHandler: pgerr.ErrorHandler})
	app.Post("/auth/register", h.Register)
	app.Post("/auth/login", h.Login)
	app.Get("/auth/me", tokens.Middleware(), h.Me)
	return app, tokens
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandler_RegisterLoginMe(t *testing.T) {
	app, tokens := newAuthApp(t)

	code, out := post(t, app, "/auth/register", `{"email":"alice@example.com","username":"alice","password":"password"}`)
	require.Equal(t, http.StatusCreated, code, out)
	assert.Equal(t, float64(1), out["user_id"])
	id, err := tokens.Parse(out["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	code, out = post(t, app, "/auth/register", `{"email":"alice@example.com","username":"alice2","password":"password"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "user-exists", out["error"])

	code, out = post(t, app, "/auth/register", `{"email":"bob@example.com","username":"bob","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "password-too-short", out["error"])

	code, out = post(t, app, "/auth/register", `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email, username and password required", out["error"])

	code, out = post(t, app, "/auth/login", `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid credentials", out["error"])

	code, out = post(t, app, "/auth/login", `{"email":"alice@example.com","password":"password"}`)
	require.Equal(t, http.StatusOK, code)
	token := out["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, me, "password_hash")
	assert.NotContains(t, me, "PasswordHash")
}
