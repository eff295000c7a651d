package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortemi/matric-mcp/internal/domain/auth"
)

// introspectionServer serves RFC 7662 responses keyed by token, counting
// calls so tests can assert cache behavior.
func introspectionServer(t *testing.T, responses map[string]string, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("introspection method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if r.PostFormValue("client_id") != "gateway" || r.PostFormValue("client_secret") != "s3cret" {
			t.Error("client credentials missing from introspection form")
		}
		calls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		body, ok := responses[r.PostFormValue("token")]
		if !ok {
			body = `{"active":false}`
		}
		fmt.Fprint(w, body)
	}))
}

func TestIntrospector_MissingToken(t *testing.T) {
	t.Parallel()

	i := NewIntrospector("http://127.0.0.1:0", "gateway", "s3cret")
	_, err := i.Authenticate(context.Background(), "")
	if !errors.Is(err, auth.ErrMissingToken) {
		t.Fatalf("error = %v, want ErrMissingToken", err)
	}
}

func TestIntrospector_ActiveToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	exp := time.Now().Add(time.Hour).Unix()
	srv := introspectionServer(t, map[string]string{
		"good": fmt.Sprintf(`{"active":true,"scope":"mcp read","client_id":"agent-1","exp":%d}`, exp),
	}, &calls)
	defer srv.Close()

	i := NewIntrospector(srv.URL, "gateway", "s3cret")

	principal, err := i.Authenticate(context.Background(), "good")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if principal.ClientID != "agent-1" {
		t.Errorf("ClientID = %q, want agent-1", principal.ClientID)
	}
	if !principal.HasScope("mcp") || !principal.HasScope("read") {
		t.Errorf("scopes = %v", principal.Scopes)
	}
	if principal.Token != "good" {
		t.Errorf("Token = %q, want the raw credential carried", principal.Token)
	}
}

func TestIntrospector_CachesPositiveResults(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	exp := time.Now().Add(time.Hour).Unix()
	srv := introspectionServer(t, map[string]string{
		"good": fmt.Sprintf(`{"active":true,"scope":"mcp","client_id":"agent-1","exp":%d}`, exp),
	}, &calls)
	defer srv.Close()

	i := NewIntrospector(srv.URL, "gateway", "s3cret")

	for range 5 {
		if _, err := i.Authenticate(context.Background(), "good"); err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("introspection calls = %d, want 1 (cached until expiry)", n)
	}
	if i.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", i.CacheSize())
	}
}

func TestIntrospector_CachesNegativeResults(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := introspectionServer(t, map[string]string{
		"revoked": `{"active":false}`,
	}, &calls)
	defer srv.Close()

	i := NewIntrospector(srv.URL, "gateway", "s3cret", WithNegativeTTL(time.Minute))

	for range 3 {
		if _, err := i.Authenticate(context.Background(), "revoked"); !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("error = %v, want ErrInvalidToken", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("introspection calls = %d, want 1 (rejection cached)", n)
	}
}

func TestIntrospector_NegativeCacheExpires(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := introspectionServer(t, map[string]string{
		"revoked": `{"active":false}`,
	}, &calls)
	defer srv.Close()

	i := NewIntrospector(srv.URL, "gateway", "s3cret", WithNegativeTTL(20*time.Millisecond))

	_, _ = i.Authenticate(context.Background(), "revoked")
	time.Sleep(40 * time.Millisecond)
	_, _ = i.Authenticate(context.Background(), "revoked")

	if n := calls.Load(); n != 2 {
		t.Errorf("introspection calls = %d, want 2 after negative TTL elapsed", n)
	}
}

func TestIntrospector_InsufficientScope(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	exp := time.Now().Add(time.Hour).Unix()
	srv := introspectionServer(t, map[string]string{
		"narrow": fmt.Sprintf(`{"active":true,"scope":"profile email","client_id":"agent-1","exp":%d}`, exp),
	}, &calls)
	defer srv.Close()

	i := NewIntrospector(srv.URL, "gateway", "s3cret")

	// Active but unusable: cached, and rejected from cache on repeat.
	for range 2 {
		if _, err := i.Authenticate(context.Background(), "narrow"); !errors.Is(err, auth.ErrInsufficientScope) {
			t.Fatalf("error = %v, want ErrInsufficientScope", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("introspection calls = %d, want 1", n)
	}
}

func TestIntrospector_EndpointFailureNotCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	i := NewIntrospector(srv.URL, "gateway", "s3cret")

	for range 2 {
		if _, err := i.Authenticate(context.Background(), "tok"); !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("error = %v, want ErrInvalidToken", err)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("introspection calls = %d, want 2 (endpoint failures retried)", n)
	}
}

func TestIntrospector_Invalidate(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	exp := time.Now().Add(time.Hour).Unix()
	srv := introspectionServer(t, map[string]string{
		"good": fmt.Sprintf(`{"active":true,"scope":"mcp","client_id":"agent-1","exp":%d}`, exp),
	}, &calls)
	defer srv.Close()

	i := NewIntrospector(srv.URL, "gateway", "s3cret")

	_, _ = i.Authenticate(context.Background(), "good")
	i.Invalidate("good")
	_, _ = i.Authenticate(context.Background(), "good")

	if n := calls.Load(); n != 2 {
		t.Errorf("introspection calls = %d, want 2 after Invalidate", n)
	}
}

func TestTokenCache_NeverStoresRawTokens(t *testing.T) {
	t.Parallel()

	c := newTokenCache()
	c.put("super-secret-token", &auth.Principal{ClientID: "a"}, time.Now().Add(time.Hour))

	// Keys are hashes; the map type itself cannot hold the raw string.
	for k := range c.entries {
		if fmt.Sprint(k) == "super-secret-token" {
			t.Error("raw token used as cache key")
		}
	}

	principal, ok, negative := c.get("super-secret-token")
	if !ok || negative || principal.ClientID != "a" {
		t.Errorf("get() = (%+v, %v, %v)", principal, ok, negative)
	}
}

func TestTokenCache_ExpiredEntriesTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	c := newTokenCache()
	c.put("tok", &auth.Principal{ClientID: "a"}, time.Now().Add(-time.Second))

	if _, ok, _ := c.get("tok"); ok {
		t.Error("expired entry served from cache")
	}
}
