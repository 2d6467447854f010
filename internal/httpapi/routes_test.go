package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/quoridor-client/internal/authtoken"
	"github.com/DoyleJ11/quoridor-client/internal/hub"
	"github.com/DoyleJ11/quoridor-client/internal/store"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

func newServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	users := store.NewMemory()
	srv := httptest.NewServer(SetupRoutes(Deps{
		Hub:    hub.NewHub(ctx, hub.Config{Store: users}),
		Users:  users,
		Tokens: authtoken.NewIssuer("test-secret"),
	}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func call(t *testing.T, c *http.Client, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(b))
}

func TestAuthFlow(t *testing.T) {
	srv, c := newServer(t)

	status, _ := call(t, c, http.MethodGet, srv.URL+"/auth/context/", "")
	assert.Equal(t, http.StatusForbidden, status, "no cookie yet")

	status, body := call(t, c, http.MethodPost, srv.URL+"/auth/register",
		`{"username":"alice","email":"a@x.io","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)
	var uc types.UserContext
	require.NoError(t, json.Unmarshal([]byte(body), &uc))
	assert.Equal(t, "alice", uc.Username)
	assert.NotEmpty(t, uc.AuthToken)
	assert.Nil(t, uc.ActiveMatch)

	status, body = call(t, c, http.MethodPost, srv.URL+"/auth/register",
		`{"username":"ALICE","email":"b@x.io","password":"pw"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"AlreadyTaken"`, body)

	status, body = call(t, c, http.MethodPost, srv.URL+"/auth/register",
		`{"username":"bob","email":"nope","password":"pw"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"UnsupportedDataType":"invalid email"}`, body)

	status, _ = call(t, c, http.MethodPost, srv.URL+"/auth/login", `{"email":"a@x.io","password":"bad"}`)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, c, http.MethodPost, srv.URL+"/auth/login", `{"email":"z@x.io","password":"pw"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, c, http.MethodGet, srv.URL+"/auth/context/", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal([]byte(body), &uc))
	assert.Equal(t, "a@x.io", uc.Email)

	status, body = call(t, c, http.MethodGet, srv.URL+"/auth/stats", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"username":"alice","wins":0,"loses":0}`, body)

	status, _ = call(t, c, http.MethodGet, srv.URL+"/auth/logout", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, c, http.MethodGet, srv.URL+"/auth/context/", "")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestSoloAndQueue(t *testing.T) {
	srv, c := newServer(t)

	status, _ := call(t, c, http.MethodPost, srv.URL+"/auth/guest_login", `{"username":"g"}`)
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, c, http.MethodGet, srv.URL+"/quoridor/solo", "")
	require.Equal(t, http.StatusOK, status)
	var uc types.UserContext
	require.NoError(t, json.Unmarshal([]byte(body), &uc))
	id, ok := uc.Match()
	require.True(t, ok)

	// the running match is handed back, and context reports it
	_, body = call(t, c, http.MethodGet, srv.URL+"/quoridor/solo", "")
	require.NoError(t, json.Unmarshal([]byte(body), &uc))
	again, _ := uc.Match()
	assert.Equal(t, id, again)

	_, body = call(t, c, http.MethodGet, srv.URL+"/auth/context/", "")
	require.NoError(t, json.Unmarshal([]byte(body), &uc))
	active, _ := uc.Match()
	assert.Equal(t, id, active)

	status, body = call(t, c, http.MethodGet, srv.URL+"/quoridor/que", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", body)

	status, _ = call(t, c, http.MethodGet, srv.URL+"/quoridor/que/join/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}
