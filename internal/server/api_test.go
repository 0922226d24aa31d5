package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func (c *apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *apiClient) form(path, token string, values url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func body(rec *httptest.ResponseRecorder) gjson.Result {
	return gjson.Parse(rec.Body.String())
}

func newAPIClient(t *testing.T) (*apiClient, *testEnv) {
	env := newEnv(t, nil)
	return &apiClient{t: t, handler: env.app.APIHandler()}, env
}

func TestPublicEndpoints(t *testing.T) {
	c, _ := newAPIClient(t)

	rec := c.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body(rec).Get("status").String())

	rec = c.do(http.MethodGet, "/websocket-info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(body(rec).Get("websocket_url").String(), "ws://"))

	rec = c.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterLoginRefresh(t *testing.T) {
	c, _ := newAPIClient(t)

	rec := c.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "reader@example.com", "password": "correct horse", "password_confirm": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reg := body(rec)
	assert.Equal(t, "bearer", reg.Get("token_type").String())
	assert.Equal(t, "user", reg.Get("user.role").String())
	assert.NotEmpty(t, reg.Get("access_token").String())

	rec = c.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "reader@example.com", "password": "correct horse", "password_confirm": "correct horse",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "other@example.com", "password": "correct horse", "password_confirm": "battery staple",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "reader@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "reader@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := body(rec).Get("refresh_token").String()

	rec = c.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, refresh, body(rec).Get("refresh_token").String())

	rotated := body(rec).Get("refresh_token").String()

	// refresh tokens are single-use
	rec = c.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/auth/logout", "", map[string]string{"refresh_token": rotated})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": rotated})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBooksRequireAuth(t *testing.T) {
	c, env := newAPIClient(t)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/books/", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/books/", "not-a-token", nil).Code)

	tokens, err := env.authority.Issue(identity.Subject{ID: 1, Role: identity.RoleUser})
	require.NoError(t, err)
	// a refresh token is not an access token
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/books/", tokens.Refresh, nil).Code)
}

func TestBookLifecycle(t *testing.T) {
	c, env := newAPIClient(t)
	ctx := context.Background()
	owner, err := env.users.Create(ctx, "owner@example.com", "hash", identity.RoleUser)
	require.NoError(t, err)
	stranger, err := env.users.Create(ctx, "stranger@example.com", "hash", identity.RoleUser)
	require.NoError(t, err)
	ownerToken := env.token(t, owner.ID, identity.RoleUser)
	strangerToken := env.token(t, stranger.ID, identity.RoleUser)

	rec := c.do(http.MethodPost, "/books/", ownerToken, map[string]any{
		"title": "Emma", "author": "Jane Austen", "genre": "novel", "rating": 0, "start_date": "2024-01-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	book := body(rec)
	id := book.Get("id").String()
	assert.Equal(t, "PLANNED", book.Get("status").String())
	assert.Equal(t, "2024-01-02", book.Get("start_date").String())
	assert.Equal(t, gjson.Null, book.Get("rating").Type)

	rec = c.do(http.MethodPost, "/books/", ownerToken, map[string]any{"title": "Bad", "author": "x", "genre": "y", "rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/books/"+id, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = c.do(http.MethodGet, "/books/999999", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPatch, "/books/"+id, ownerToken, map[string]any{"status": "READING", "rating": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "READING", body(rec).Get("status").String())
	assert.Equal(t, "Emma", body(rec).Get("title").String())

	rec = c.do(http.MethodPut, "/books/"+id, ownerToken, map[string]any{"end_date": "2023-12-31"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPatch, "/books/"+id, strangerToken, map[string]any{"title": "Mine now"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.form("/books/", ownerToken, url.Values{
		"title": {"Persuasion"}, "author": {"Jane Austen"}, "genre": {"novel"}, "rating": {""}, "book_status": {"READ"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "READ", body(rec).Get("status").String())

	rec = c.do(http.MethodGet, "/books/", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body(rec).Array(), 2)
	rec = c.do(http.MethodGet, "/books/", strangerToken, nil)
	assert.Len(t, body(rec).Array(), 0)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/books/"+id, strangerToken, nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/books/"+id, ownerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/books/"+id, ownerToken, nil).Code)
}

func TestChatMessagesOverHTTP(t *testing.T) {
	c, env := newAPIClient(t)
	userToken := env.token(t, 7, identity.RoleUser)
	otherToken := env.token(t, 8, identity.RoleUser)
	adminToken := env.token(t, 99, identity.RoleAdmin)

	rec := c.do(http.MethodPost, "/chat/messages", userToken, map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), body(rec).Get("is_admin").Int())
	c.do(http.MethodPost, "/chat/messages", otherToken, map[string]string{"message": "me too"})
	rec = c.do(http.MethodPost, "/chat/messages", adminToken, map[string]string{"message": "broadcast"})
	assert.Equal(t, int64(1), body(rec).Get("is_admin").Int())

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/chat/messages", userToken, map[string]string{"message": " "}).Code)

	rec = c.do(http.MethodGet, "/chat/messages", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := body(rec).Array()
	require.Len(t, own, 1)
	assert.Equal(t, "hello", own[0].Get("message").String())

	rec = c.do(http.MethodGet, "/chat/messages?skip=1&limit=1", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := body(rec).Array()
	require.Len(t, page, 1)
	assert.Equal(t, "me too", page[0].Get("message").String())

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/chat/messages?limit=abc", adminToken, nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	c, _ := newAPIClient(t)
	req := httptest.NewRequest(http.MethodOptions, "/books/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// same-origin and non-browser requests carry no Origin and pass through
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", "", nil).Code)
}
