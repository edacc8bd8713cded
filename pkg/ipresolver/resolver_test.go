package ipresolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"gotest.tools/v3/assert"
)

func echoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body + "\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebResolver(t *testing.T) {
	srv := echoServer(t, "203.0.113.9")
	resolver := &WebResolver{ProviderName: "test", URL: srv.URL}
	addr, err := resolver.Resolve(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, addr, netip.MustParseAddr("203.0.113.9"))
}

func TestWebResolverBadBody(t *testing.T) {
	srv := echoServer(t, "<html>not an ip</html>")
	resolver := &WebResolver{ProviderName: "test", URL: srv.URL}
	_, err := resolver.Resolve(context.Background())
	assert.ErrorContains(t, err, "parse response")
}

func TestResolveFamiliesSkipsFailedFamily(t *testing.T) {
	srv := echoServer(t, "203.0.113.9")
	resolvers := map[Family]Resolver{
		IPv4: &WebResolver{ProviderName: "test", URL: srv.URL},
		IPv6: &WebResolver{ProviderName: "test", URL: "http://127.0.0.1:1"},
	}
	addrs, err := ResolveFamilies(context.Background(), resolvers, []Family{IPv4, IPv6}, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(addrs), 1)
	assert.Equal(t, addrs[0], netip.MustParseAddr("203.0.113.9"))
}

func TestResolveFamiliesAllFailedIsFatal(t *testing.T) {
	resolvers := map[Family]Resolver{
		IPv4: &WebResolver{ProviderName: "test", URL: "http://127.0.0.1:1"},
	}
	_, err := ResolveFamilies(context.Background(), resolvers, []Family{IPv4}, nil)
	assert.Assert(t, errors.Is(err, ErrNoAddress))
}

func TestResolveFamiliesRejectsWrongFamily(t *testing.T) {
	srv := echoServer(t, "203.0.113.9")
	resolvers := map[Family]Resolver{
		IPv6: &WebResolver{ProviderName: "test", URL: srv.URL},
	}
	_, err := ResolveFamilies(context.Background(), resolvers, []Family{IPv6}, nil)
	assert.Assert(t, errors.Is(err, ErrNoAddress))
}

func TestResolveFamiliesCountsAttempts(t *testing.T) {
	srv := echoServer(t, "203.0.113.9")
	counts := map[string]int{}
	resolvers := map[Family]Resolver{
		IPv4: &WebResolver{ProviderName: "test", URL: srv.URL},
	}
	_, err := ResolveFamilies(context.Background(), resolvers, []Family{IPv4}, func(provider string) {
		counts[provider]++
	})
	assert.NilError(t, err)
	assert.Equal(t, counts["test"], 1)
}

func TestLiteralResolver(t *testing.T) {
	addr := netip.MustParseAddr("198.51.100.1")
	resolvers := map[Family]Resolver{IPv4: Literal(addr)}
	addrs, err := ResolveFamilies(context.Background(), resolvers, []Family{IPv4}, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(addrs), 1)
	assert.Equal(t, addrs[0], addr)
}
