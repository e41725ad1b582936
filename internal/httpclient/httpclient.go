// Package httpclient provides the single bounded HTTP abstraction (C1) that
// every provider and debrid resolver issues outbound calls through.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent is the stable, non-browser identifier sent unless a
// caller overrides it (some upstreams require a browser-like one instead;
// see Request.UserAgent).
const DefaultUserAgent = "AutoStream/1.0 (+gateway)"

const maxRedirects = 3

// Kind is the typed error union C1 returns.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindNetwork   Kind = "network"
	KindHTTP      Kind = "http_error"
)

// Error is the typed error returned by Do.
type Error struct {
	Kind   Kind
	Status int // only set for KindHTTP
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("http_error: status %d", e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	// SOCKS5ProxyAddr, when set, routes all requests through a SOCKS5
	// dialer (e.g. a Tor daemon), mirroring the teacher's tpb client.
	SOCKS5ProxyAddr string
	// WithCookieJar enables a public-suffix-aware cookie jar, required
	// when routing through SOCKS5 and useful for any provider that sets
	// session cookies.
	WithCookieJar bool
}

// Client is the shared bounded HTTP abstraction. It never retries; retry
// policy belongs to callers.
type Client struct {
	http *http.Client
}

// New builds a Client. A zero Options value yields a plain direct-dial
// client with no cookie jar.
func New(opts Options) (*Client, error) {
	transport := &http.Transport{}
	var jar *cookiejar.Jar
	if opts.SOCKS5ProxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", opts.SOCKS5ProxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("couldn't create SOCKS5 dialer: %w", err)
		}
		transport.Dial = dialer.Dial
		opts.WithCookieJar = true
	}
	if opts.WithCookieJar {
		var err error
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("couldn't create cookie jar: %w", err)
		}
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Jar:       jarOrNil(jar),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}, nil
}

func jarOrNil(jar *cookiejar.Jar) http.CookieJar {
	if jar == nil {
		return nil
	}
	return jar
}

// Request describes one outbound call.
type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      []byte
	UserAgent string // defaults to DefaultUserAgent
	Deadline  time.Time
}

// Response is the successful result of Do.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Do issues the request and returns either a Response or a typed *Error.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if !r.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, r.Deadline)
		defer cancel()
	}

	var bodyReader io.Reader
	if r.Body != nil {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("couldn't build request: %w", err)}
	}
	ua := r.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("couldn't read response body: %w", err)}
	}

	if res.StatusCode >= 400 {
		return &Response{Status: res.StatusCode, Headers: res.Header, Body: body},
			&Error{Kind: KindHTTP, Status: res.StatusCode}
	}

	return &Response{Status: res.StatusCode, Headers: res.Header, Body: body}, nil
}

// Head issues a HEAD request and returns the final URL after following
// redirects, used by C9's finalize step.
func (c *Client) Head(ctx context.Context, rawURL string, deadline time.Time) (string, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	finalURL := rawURL
	client := &http.Client{
		Transport: c.http.Transport,
		Jar:       c.http.Jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			finalURL = req.URL.String()
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("couldn't build HEAD request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HEAD request failed: %w", err)
	}
	defer res.Body.Close()
	return finalURL, nil
}
