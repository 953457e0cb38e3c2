package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/omekalink/internal/util"
)

func TestNew_Defaults(t *testing.T) {
	client := New(Options{Timeout: 30 * time.Second})

	require.NotNil(t, client)
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.Equal(t, 10, client.maxRedirects)
	assert.False(t, client.blockPrivateIP)
	assert.Equal(t, []string{"http", "https"}, client.allowedSchemes)
}

func TestAuthTransportAddsKeys(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{Timeout: 5 * time.Second, KeyIdentity: "ident", KeyCredential: "cred"})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/items?page=2&per_page=50", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "ident", gotQuery.Get(ParamKeyIdentity))
	assert.Equal(t, "cred", gotQuery.Get(ParamKeyCredential))
	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, "50", gotQuery.Get("per_page"))

	// Caller's request is untouched
	assert.Empty(t, req.URL.Query().Get(ParamKeyCredential))
}

func TestNoKeysWithoutBothParts(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
	}))
	defer srv.Close()

	client := New(Options{KeyIdentity: "ident"})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.False(t, gotQuery.Has(ParamKeyIdentity))
}

func TestLoggingTransportRedactsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	client := New(Options{
		KeyIdentity:   "ident",
		KeyCredential: "super-secret",
		Logger:        zap.New(core).Sugar(),
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/item_sets/999", nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.NotContains(t, fields["url"], "super-secret")
	assert.Contains(t, fields["url"], "/api/item_sets/999")
}

func TestRedactURL(t *testing.T) {
	u, _ := url.Parse("https://x.org/api/items?key_identity=a&key_credential=b&page=1")
	got := RedactURL(u)
	assert.NotContains(t, got, "key_credential=b")
	assert.Contains(t, got, "key_credential=REDACTED")
	assert.Contains(t, got, "page=1")

	plain, _ := url.Parse("https://x.org/api/items?page=1")
	assert.Equal(t, "https://x.org/api/items?page=1", RedactURL(plain))
	assert.Empty(t, RedactURL(nil))
}

func TestRateLimitedTransport(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	// One request per 200ms, burst 1: three requests need at least 400ms
	client := New(Options{RequestsPerSecond: 5})

	start := time.Now()
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestRateLimitedTransportHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := New(Options{RequestsPerSecond: 0.1})

	// First request consumes the only token
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	_, err = client.Do(req)
	assert.Error(t, err)
}

func TestValidateURL(t *testing.T) {
	client := New(Options{BlockPrivateIP: true})

	tests := []struct {
		name        string
		url         string
		errContains string
	}{
		{name: "Valid HTTPS URL", url: "https://omeka.example.org/api/items"},
		{name: "Valid HTTP URL", url: "http://omeka.example.org"},
		{name: "File scheme blocked", url: "file:///etc/passwd", errContains: "scheme"},
		{name: "FTP scheme blocked", url: "ftp://example.com", errContains: "scheme"},
		{name: "Userinfo blocked", url: "http://user:pw@example.com/api", errContains: "userinfo"},
		{name: "Localhost blocked", url: "http://localhost/api", errContains: "localhost"},
		{name: "Subdomain of localhost blocked", url: "http://omeka.localhost/api", errContains: "localhost"},
		{name: "Loopback IP blocked", url: "http://127.0.0.1/api", errContains: "private"},
		{name: "RFC1918 blocked", url: "http://192.168.1.10/api", errContains: "private"},
		{name: "IPv6 loopback blocked", url: "http://[::1]/api", errContains: "private"},
		{name: "Missing host", url: "http:///api", errContains: "hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ValidateURL(tt.url)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestPrivateIPAllowedWhenNotBlocking(t *testing.T) {
	client := New(Options{})
	_, err := client.ValidateURL("http://127.0.0.1:8080/api")
	assert.NoError(t, err)
}

func TestMaxRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	client := New(Options{MaxRedirects: util.Ptr(2)})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := client.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.32.0.1", false},
		{"192.168.0.1", true},
		{"127.0.0.1", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"8.8.8.8", false},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"2001:db8::1", true},
		{"2606:4700:4700::1111", false},
		{"::ffff:10.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			require.NotNil(t, ip)
			assert.Equal(t, tt.private, isPrivateIP(ip))
		})
	}
}
