package ring

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	// BaseURL is the Ring clients API base URL. All requests are resolved against it.
	BaseURL = "https://api.ring.com/clients_api/"

	// APIVersion is sent as the api_version query parameter on every data request.
	APIVersion = "9"

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 60 * time.Second
)

// Operation identifies one of the client's network operations.
type Operation int

const (
	OperationAuthenticate Operation = iota
	OperationDevices
	OperationHistory
	OperationRecording
)

// String returns the operation name used in logs and metrics.
func (o Operation) String() string {
	switch o {
	case OperationAuthenticate:
		return "authenticate"
	case OperationDevices:
		return "devices"
	case OperationHistory:
		return "history"
	case OperationRecording:
		return "recording"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Client is a Ring API client bound to a single account.
//
// A Client starts unauthenticated. Authenticate stores the session token
// used by every other operation; only a new Client discards it.
type Client struct {
	username string
	password string

	transport *transport
	logger    *slog.Logger

	tokenMu   sync.RWMutex
	authToken string

	overrideMu sync.Mutex
	overrides  map[Operation]Doer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.transport.doer = client
	}
}

// WithDoer sets the component that performs HTTP exchanges. Tests use it to
// replace the network with a fake.
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		c.transport.doer = doer
	}
}

// WithTimeout sets the per-request timeout (default 60s). For recording
// downloads it bounds the wait for response headers, not the stream itself.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.transport.timeout = timeout
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
}

// NewClient creates a new Ring API client for the given account.
// No request is made until Authenticate is called.
func NewClient(username, password string, opts ...Option) *Client {
	c := &Client{
		username: username,
		password: password,
		transport: &transport{
			// Timeouts are applied per request through the context so that
			// recording streams are not cut off mid-download.
			doer:    &http.Client{Transport: newHTTPTransport()},
			timeout: DefaultTimeout,
		},
		overrides: make(map[Operation]Doer),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.transport.logger = c.logger

	return c
}

// Username returns the account username.
func (c *Client) Username() string {
	return c.username
}

// Password returns the account password.
func (c *Client) Password() string {
	return c.password
}

// CredentialsEncoded returns base64("username:password") for the Basic
// authorization header. It is computed on every call.
func (c *Client) CredentialsEncoded() string {
	return base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
}

// AuthenticationToken returns the token obtained by the last Authenticate call.
func (c *Client) AuthenticationToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.authToken
}

// IsAuthenticated reports whether the client holds a non-empty token.
func (c *Client) IsAuthenticated() bool {
	return c.AuthenticationToken() != ""
}

func (c *Client) setAuthenticationToken(token string) {
	c.tokenMu.Lock()
	c.authToken = token
	c.tokenMu.Unlock()
}

// requireToken returns the current token or ErrNotAuthenticated.
func (c *Client) requireToken() (string, error) {
	token := c.AuthenticationToken()
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// SetRequestOverride installs a Doer used by the next call of op only.
// Once consumed the client falls back to its regular Doer.
func (c *Client) SetRequestOverride(op Operation, doer Doer) {
	c.overrideMu.Lock()
	defer c.overrideMu.Unlock()
	if doer == nil {
		delete(c.overrides, op)
		return
	}
	c.overrides[op] = doer
}

// takeOverride removes and returns the override for op, or nil.
func (c *Client) takeOverride(op Operation) Doer {
	c.overrideMu.Lock()
	defer c.overrideMu.Unlock()
	doer := c.overrides[op]
	delete(c.overrides, op)
	return doer
}

// endpoint returns the absolute URL for path carrying the auth token and API version.
func endpoint(path, token string) string {
	return BaseURL + path + "?auth_token=" + url.QueryEscape(token) + "&api_version=" + APIVersion
}
