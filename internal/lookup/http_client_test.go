package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// static token source for tests
type staticSigner struct {
	token string
	err   error
}

func (s *staticSigner) Sign(ctx context.Context) (string, error) {
	return s.token, s.err
}

func TestHTTPClient_AccountLookup(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"identifier":"ext-1","config":{"admin_email":"a@x.com","name":"Acme"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, &staticSigner{token: "signed-token"}, time.Second)
	desc, err := c.AccountLookup(context.Background(), "ext-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer signed-token", gotAuth)
	assert.Equal(t, "/account/ext-1.json", gotPath)
	assert.Equal(t, "ext-1", desc.Identifier)
	assert.Equal(t, "a@x.com", desc.Config.AdminEmail)
	assert.Equal(t, "Acme", desc.Config.Name)
}

func TestHTTPClient_UserLookup(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"identifier":"ext-u1","username":"bob","email":"bob@x.com","employee_record":{"first_name":"Bob","last_name":"Builder"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, &staticSigner{token: "tok"}, time.Second)
	desc, err := c.UserLookup(context.Background(), "ext-1", "ext-u1")
	require.NoError(t, err)

	assert.Equal(t, "/account/ext-1/users/ext-u1.json", gotPath)
	assert.Equal(t, "bob", desc.Username)
	assert.Equal(t, "Builder", desc.EmployeeRecord.LastName)
}

func TestHTTPClient_BulkUserLookup(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[{"identifier":"u1","username":"a"},{"identifier":"u2","username":"b"}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, &staticSigner{token: "tok"}, time.Second)
	descs, err := c.BulkUserLookup(context.Background(), "ext-1")
	require.NoError(t, err)

	assert.Equal(t, "/account/ext-1/users.json", gotPath)
	require.Len(t, descs, 2)
	assert.Equal(t, "u1", descs[0].Identifier)
	assert.Equal(t, "u2", descs[1].Identifier)
}

func TestHTTPClient_FreshTokenPerRequest(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(`{"identifier":"ext-1"}`))
	}))
	defer srv.Close()

	n := 0
	signer := signerFunc(func(ctx context.Context) (string, error) {
		n++
		return "tok-" + strings.Repeat("x", n), nil
	})
	c := NewHTTPClient(srv.URL, signer, time.Second)
	_, _ = c.AccountLookup(context.Background(), "ext-1")
	_, _ = c.AccountLookup(context.Background(), "ext-1")

	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0], seen[1], "each request should carry its own token")
}

type signerFunc func(ctx context.Context) (string, error)

func (f signerFunc) Sign(ctx context.Context) (string, error) { return f(ctx) }

func TestHTTPClient_NotFoundOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such account", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, &staticSigner{token: "tok"}, time.Second)
	_, err := c.AccountLookup(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestHTTPClient_UnavailableOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, &staticSigner{token: "tok"}, time.Second)
	_, err := c.AccountLookup(context.Background(), "ext-1")
	assert.True(t, errors.Is(err, ErrRemoteUnavailable), "got %v", err)
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, &staticSigner{token: "tok"}, 20*time.Millisecond)
	_, err := c.AccountLookup(context.Background(), "ext-1")
	assert.True(t, errors.Is(err, ErrRemoteTimeout), "got %v", err)
}

func TestHTTPClient_SignerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request should be issued when signing fails")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, &staticSigner{err: errors.New("no nonce available")}, time.Second)
	_, err := c.AccountLookup(context.Background(), "ext-1")
	require.Error(t, err)
}
