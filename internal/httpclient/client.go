// Package httpclient builds the HTTP client used to talk to Omeka S.
//
// The transport chain injects API key credentials as query parameters,
// paces requests with a token bucket, logs each exchange without the
// credentials, and optionally refuses to dial private addresses.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/logger"
)

// Query parameters Omeka S reads API keys from
const (
	ParamKeyIdentity   = "key_identity"
	ParamKeyCredential = "key_credential"
)

// Options configures New
type Options struct {
	Timeout time.Duration

	// API key pair, added to every request when both are set
	KeyIdentity   string
	KeyCredential string

	RequestsPerSecond float64 // 0 = unlimited
	Burst             int     // Default: 1

	BlockPrivateIP bool
	MaxRedirects   *int     // Default: 10
	AllowedSchemes []string // Default: ["http", "https"]

	// Base transport, defaults to a clone of http.DefaultTransport.
	// Ignored when BlockPrivateIP is set.
	Transport http.RoundTripper

	Logger *zap.SugaredLogger
}

// Client wraps http.Client with URL validation and the Omeka transport chain
type Client struct {
	*http.Client
	allowedSchemes []string
	blockPrivateIP bool
	maxRedirects   int
}

// New creates a client for one Omeka S instance
func New(opts Options) *Client {
	maxRedirects := 10
	if opts.MaxRedirects != nil {
		maxRedirects = *opts.MaxRedirects
	}

	allowedSchemes := []string{"http", "https"}
	if opts.AllowedSchemes != nil {
		allowedSchemes = opts.AllowedSchemes
	}

	client := &Client{
		allowedSchemes: allowedSchemes,
		blockPrivateIP: opts.BlockPrivateIP,
		maxRedirects:   maxRedirects,
	}

	base := opts.Transport
	if opts.BlockPrivateIP {
		base = privateIPBlockingTransport()
	} else if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	var rt http.RoundTripper = base
	if opts.KeyIdentity != "" && opts.KeyCredential != "" {
		rt = &authTransport{base: rt, identity: opts.KeyIdentity, credential: opts.KeyCredential}
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		rt = &rateLimitedTransport{base: rt, limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)}
	}
	rt = &loggingTransport{base: rt, logger: logger.OrNop(opts.Logger)}

	client.Client = &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= client.maxRedirects {
			return errors.Newf("stopped after %d redirects", client.maxRedirects)
		}
		if err := client.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return client
}

// Do validates the request URL and executes the request
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}

// ValidateURL validates a URL string before creating a request
func (c *Client) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	// Userinfo would bypass the key_identity/key_credential scheme
	if u.User != nil {
		return errors.New("URL must not carry userinfo")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if c.blockPrivateIP {
		if isLocalhost(hostname) {
			return errors.New("localhost access blocked")
		}
		// DNS rebinding is handled by the dialer
		if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
			return errors.Newf("private IP address blocked: %s", hostname)
		}
	}
	return nil
}

// authTransport adds the API key pair to the query string
type authTransport struct {
	base       http.RoundTripper
	identity   string
	credential string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	q := clone.URL.Query()
	q.Set(ParamKeyIdentity, t.identity)
	q.Set(ParamKeyCredential, t.credential)
	clone.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(clone)
}

// rateLimitedTransport waits for a token before each request
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}
	return t.base.RoundTrip(req)
}

// loggingTransport logs each exchange at debug level.
// It sits outside authTransport so logged URLs never carry credentials.
type loggingTransport struct {
	base   http.RoundTripper
	logger *zap.SugaredLogger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		t.logger.Debugw("HTTP request failed",
			logger.FieldMethod, req.Method,
			logger.FieldURL, RedactURL(req.URL),
			logger.FieldDurationMS, elapsed,
			logger.FieldError, err,
		)
		return nil, err
	}

	t.logger.Debugw("HTTP request",
		logger.FieldMethod, req.Method,
		logger.FieldURL, RedactURL(req.URL),
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, elapsed,
	)
	return resp, nil
}

// RedactURL returns u as a string with any API key parameters masked
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if q.Get(ParamKeyIdentity) == "" && q.Get(ParamKeyCredential) == "" {
		return u.String()
	}
	redacted := *u
	for _, key := range []string{ParamKeyIdentity, ParamKeyCredential} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	redacted.RawQuery = q.Encode()
	return redacted.String()
}

// privateIPBlockingTransport resolves hosts itself and refuses private addresses
func privateIPBlockingTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, errors.Wrap(err, "invalid address")
			}

			ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve host %q", host)
			}
			if len(ips) == 0 {
				return nil, errors.Newf("no addresses for host %q", host)
			}
			for _, ip := range ips {
				if isPrivateIP(ip) {
					return nil, errors.Newf("private IP address blocked: %s", ip)
				}
			}

			// Dial the checked address, not the name, so a second lookup cannot rebind
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
		},
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
