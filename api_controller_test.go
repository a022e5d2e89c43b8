package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAPIUsersRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{
			name: "no credentials",
			req:  jsonRequest(http.MethodGet, "/api/v1/users", ""),
		},
		{
			name: "wrong token",
			req: func() *http.Request {
				r := jsonRequest(http.MethodGet, "/api/v1/users", "")
				r.Header.Set(HeaderUserEmail, admin.Email)
				r.Header.Set(HeaderUserToken, "not-the-token")
				return r
			}(),
		},
		{
			name: "email without token",
			req: func() *http.Request {
				r := jsonRequest(http.MethodGet, "/api/v1/users", "")
				r.Header.Set(HeaderUserEmail, admin.Email)
				return r
			}(),
		},
		{
			name: "header email mixed with query token",
			req: func() *http.Request {
				q := url.Values{QueryUserToken: {admin.AuthenticationToken}}
				r := jsonRequest(http.MethodGet, "/api/v1/users?"+q.Encode(), "")
				r.Header.Set(HeaderUserEmail, admin.Email)
				return r
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.req)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, MsgUnauthenticated, decodeJSON(t, resp)["error"])
		})
	}
}

func TestAPIUsersIndex(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)
	member := env.createUser(t, "member@example.com", RoleUser)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodGet, "/api/v1/users", ""), admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	assert.Len(t, views, 2)

	listed := env.sink.byType(ActivityUsersListed)
	require.Len(t, listed, 1)
	assert.EqualValues(t, 2, listed[0].Metadata[AttrCount])

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodGet, "/api/v1/users", ""), member))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, MsgAdminRequired, decodeJSON(t, resp)["error"])
}

func TestAPIUsersQueryCredentials(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	q := url.Values{
		QueryUserEmail: {admin.Email},
		QueryUserToken: {admin.AuthenticationToken},
	}
	resp := env.do(t, jsonRequest(http.MethodGet, "/api/v1/users?"+q.Encode(), ""))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, responseCookie(resp, env.module.Sessions.CookieName()))
}

func TestAPIUsersSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	resp := env.do(t, jsonRequest(http.MethodGet, "/api/v1/users", ""), env.sessionCookie(t, admin, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIUsersShow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)
	member := env.createUser(t, "member@example.com", RoleUser)
	other := env.createUser(t, "other@example.com", RoleUser)

	tests := []struct {
		name   string
		caller *User
		target string
		status int
	}{
		{name: "admin reads anyone", caller: admin, target: userPath("/api/v1/users", other, ""), status: http.StatusOK},
		{name: "member reads self", caller: member, target: userPath("/api/v1/users", member, ""), status: http.StatusOK},
		{name: "member reads other", caller: member, target: userPath("/api/v1/users", other, ""), status: http.StatusForbidden},
		{name: "malformed id", caller: admin, target: "/api/v1/users/not-a-uuid", status: http.StatusNotFound},
		{name: "unknown id", caller: admin, target: "/api/v1/users/7f2c8f62-9c1c-4a8e-8d0b-6a3f9d8a1b2c", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tokenHeaders(jsonRequest(http.MethodGet, tt.target, ""), tt.caller))
			require.Equal(t, tt.status, resp.StatusCode)

			body := decodeJSON(t, resp)
			switch tt.status {
			case http.StatusOK:
				assert.NotEmpty(t, body["email"])
				assert.NotContains(t, body, "password_hash")
				assert.NotContains(t, body, "authentication_token")
			case http.StatusForbidden:
				assert.Equal(t, MsgForbidden, body["error"])
			default:
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestAPIUsersCreate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodPost, "/api/v1/users",
		`{"user":{"email":"new@example.com","password":"secret123","role":"user"}}`), admin))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "new@example.com", body["email"])
	assert.Equal(t, "user", body["role"])
	assert.NotEmpty(t, body["id"])
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "authentication_token")

	created := env.sink.byType(ActivityUserCreated)
	require.Len(t, created, 1)
	assert.Equal(t, body["id"], created[0].UserID)
}

func TestAPIUsersCreateFromQueryParams(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	q := url.Values{}
	q.Set(QueryUserEmail, admin.Email)
	q.Set(QueryUserToken, admin.AuthenticationToken)
	q.Set("user[email]", "oprah@example.com")
	q.Set("user[password]", "12345678")
	q.Set("user[password_confirmation]", "12345678")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users?"+q.Encode(), nil)
	req.Header.Set("Accept", "application/json")
	resp := env.do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "oprah@example.com", decodeJSON(t, resp)["email"])

	created, err := env.repo.Users().FindByEmail(context.Background(), "oprah@example.com")
	require.NoError(t, err)
	assert.NoError(t, ComparePasswordAndHash("12345678", created.PasswordHash))
}

func TestAPIUsersCreateFromForm(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	req := tokenHeaders(formRequest(http.MethodPost, "/api/v1/users", url.Values{
		"user[email]":                 {"form@example.com"},
		"user[password]":              {"12345678"},
		"user[password_confirmation]": {"12345678"},
		"user[role]":                  {"admin"},
	}), admin)
	req.Header.Set("Accept", "application/json")
	resp := env.do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "form@example.com", body["email"])
	assert.Equal(t, "admin", body["role"])
}

func TestAPIUsersCreateEmptyConfirmation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodPost, "/api/v1/users",
		`{"user":{"email":"new@example.com","password":"secret123","password_confirmation":""}}`), admin))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	fields, ok := decodeJSON(t, resp)["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "password_confirmation")

	_, err := env.repo.Users().FindByEmail(context.Background(), "new@example.com")
	assert.True(t, IsUserNotFound(err))
}

func TestAPIUsersCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodPost, "/api/v1/users", `{"password":"secret123"}`), admin))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeJSON(t, resp)
	fields, ok := body["errors"].(map[string]any)
	require.True(t, ok, "expected field errors, got %v", body)
	assert.Contains(t, fields, "email")

	list, err := env.repo.Users().ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAPIUsersCreateRejections(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)
	member := env.createUser(t, "member@example.com", RoleUser)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodPost, "/api/v1/users", `{"email":`), admin))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodPost, "/api/v1/users",
		`{"email":"x@example.com","password":"secret123"}`), member))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, MsgAdminRequired, decodeJSON(t, resp)["error"])

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodPost, "/api/v1/users",
		`{"email":"admin@example.com","password":"secret123"}`), admin))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	fields, ok := decodeJSON(t, resp)["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, MsgEmailTaken, fields["email"])
}

func TestAPIUsersUpdate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)
	member := env.createUser(t, "member@example.com", RoleUser)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodPut, userPath("/api/v1/users", member, ""),
		`{"email":"new@example.com"}`), admin))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))

	reloaded, err := env.repo.Users().FindByID(context.Background(), member.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", reloaded.Email)
	assert.Equal(t, member.FirstName, reloaded.FirstName)
	assert.Equal(t, RoleUser, reloaded.Role)
	assert.Len(t, env.sink.byType(ActivityUserUpdated), 1)
}

func TestAPIUsersUpdateAuthorization(t *testing.T) {
	env := newTestEnv(t)
	member := env.createUser(t, "member@example.com", RoleUser)
	other := env.createUser(t, "other@example.com", RoleUser)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodPatch, userPath("/api/v1/users", member, ""),
		`{"first_name":"Self"}`), member))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodPatch, userPath("/api/v1/users", other, ""),
		`{"first_name":"Nope"}`), member))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, MsgForbidden, decodeJSON(t, resp)["error"])

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodPatch, userPath("/api/v1/users", member, ""),
		`{"role":"admin"}`), member))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, MsgAdminRequired, decodeJSON(t, resp)["error"])

	reloaded, err := env.repo.Users().FindByID(context.Background(), member.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Self", reloaded.FirstName)
	assert.Equal(t, RoleUser, reloaded.Role)

	unchanged, err := env.repo.Users().FindByID(context.Background(), other.ID.String())
	require.NoError(t, err)
	assert.Equal(t, other.FirstName, unchanged.FirstName)
}

func TestAPIUsersUpdateBadBody(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)
	member := env.createUser(t, "member@example.com", RoleUser)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodPut, userPath("/api/v1/users", member, ""), `not json`), admin))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodPut, userPath("/api/v1/users", member, ""), `{"email":""}`), admin))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	fields, ok := decodeJSON(t, resp)["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
}

func TestAPIUsersDestroy(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", RoleAdmin)
	member := env.createUser(t, "member@example.com", RoleUser)

	resp := env.do(t, tokenHeaders(jsonRequest(http.MethodDelete, userPath("/api/v1/users", admin, ""), ""), member))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodDelete, userPath("/api/v1/users", member, ""), ""), member))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "members cannot delete themselves")

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodDelete, userPath("/api/v1/users", member, ""), ""), admin))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := env.repo.Users().FindByID(context.Background(), member.ID.String())
	assert.True(t, IsUserNotFound(err))

	destroyed := env.sink.byType(ActivityUserDestroyed)
	require.Len(t, destroyed, 1)
	assert.Equal(t, member.ID.String(), destroyed[0].UserID)

	resp = env.do(t, tokenHeaders(jsonRequest(http.MethodDelete, userPath("/api/v1/users", member, ""), ""), admin))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
