package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"

	// Sessions expiring within this margin are refreshed before being returned.
	refreshMargin = 60 * time.Second
)

// Config identifies the hosted project.
type Config struct {
	// URL is the project URL, e.g. "https://abcdefgh.supabase.co"
	URL string
	// AnonKey is the public API key sent with every request
	AnonKey string
	// JWKSURL, when set, enables signature checks on tokens passed to SetSession
	JWKSURL string
}

// Client talks to the auth server and the REST gateway, and owns the
// current session: it persists it, refreshes it and broadcasts changes.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	storage    credstore.Store
	storageKey string
	keySet     oidc.KeySet
	nowTime    func() time.Time

	mu        sync.RWMutex
	current   *Session
	loaded    bool
	listeners map[string]func(AuthStateChange)

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// WithKeySet verifies access token signatures against ks.
func WithKeySet(ks oidc.KeySet) Option {
	return func(c *Client) {
		c.keySet = ks
	}
}

// WithStorageKey overrides the key the session is persisted under.
func WithStorageKey(key string) Option {
	return func(c *Client) {
		c.storageKey = key
	}
}

func New(cfg Config, storage credstore.Store, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("[supabase New] URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, errors.Errorf("[supabase New] invalid URL %q", cfg.URL)
	}
	if storage == nil {
		storage = credstore.NewMemoryStore()
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		storage:    storage,
		storageKey: StorageKeyFor(u),
		nowTime:    time.Now,
		listeners:  make(map[string]func(AuthStateChange)),
	}
	if cfg.JWKSURL != "" {
		c.keySet = oidc.NewRemoteKeySet(context.Background(), cfg.JWKSURL)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StorageKeyFor derives "sb-<project-ref>-auth-token" from the project URL.
func StorageKeyFor(u *url.URL) string {
	ref, _, _ := strings.Cut(u.Hostname(), ".")
	return "sb-" + ref + "-auth-token"
}

func (c *Client) StorageKey() string {
	return c.storageKey
}

// CodeVerifierKeyFor is the key the PKCE verifier is kept under between
// starting a sign-in and exchanging its code.
func CodeVerifierKeyFor(u *url.URL) string {
	return StorageKeyFor(u) + codeVerifierSuffix
}

const codeVerifierSuffix = "-code-verifier"

func (c *Client) codeVerifierKey() string {
	return c.storageKey + codeVerifierSuffix
}

// APIError is a non-2xx answer from the auth server or REST gateway.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// apiErrorBody covers both error shapes the auth server uses.
type apiErrorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var b apiErrorBody
	if err := json.Unmarshal(body, &b); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Code = b.ErrorCode
	if apiErr.Code == "" {
		apiErr.Code = b.Error
	}
	if apiErr.Code == "" {
		if s, ok := b.Code.(string); ok {
			apiErr.Code = s
		}
	}
	for _, m := range []string{b.Msg, b.Message, b.ErrorDescription} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	return apiErr
}

// do sends a JSON request. bearer defaults to the anon key; out may be nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(respBody, out), "decode response")
}
