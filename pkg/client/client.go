// Package client provides the Kestra HTTP client with interactive
// re-authentication.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/internal/metrics"
	"github.com/kestra-io/kestrafs/pkg/prompt"
	"github.com/kestra-io/kestrafs/pkg/protocol"
	"github.com/kestra-io/kestrafs/pkg/store"
)

// PublicAPIURL is the public Kestra API. It already carries its version
// prefix and serves plugin documentation under /plugins/definitions.
const PublicAPIURL = "https://api.kestra.io/v1"

// Client issues requests to a Kestra server. On a 401 it asks the user for
// credentials and retries the request once.
type Client struct {
	httpClient *http.Client
	secrets    store.Store
	prompter   prompt.Prompter
	notifier   prompt.Notifier

	mu      sync.RWMutex
	baseURL string

	// recoverMu serializes credential prompts between concurrent requests.
	recoverMu sync.Mutex
}

// Config holds client configuration.
type Config struct {
	BaseURL  string // server URL as entered by the user
	Timeout  time.Duration
	Secrets  store.Store
	Prompter prompt.Prompter
	Notifier prompt.Notifier

	// HTTPClient overrides the default transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Secrets == nil {
		cfg.Secrets = store.NewMemoryStore()
	}
	if cfg.Prompter == nil {
		cfg.Prompter = prompt.NoInput{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = prompt.Discard{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		httpClient: httpClient,
		secrets:    cfg.Secrets,
		prompter:   cfg.Prompter,
		notifier:   cfg.Notifier,
		baseURL:    cfg.BaseURL,
	}
}

// SetBaseURL changes the server URL used by subsequent requests.
func (c *Client) SetBaseURL(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = raw
}

// BaseURL returns the server URL as configured.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// APIURL returns the versioned API root for the configured server.
func (c *Client) APIURL() string {
	return APIURL(c.BaseURL())
}

// Notifier returns the notifier used for user-facing messages.
func (c *Client) Notifier() prompt.Notifier {
	return c.notifier
}

// APIURL normalises a server URL into the versioned API root: the trailing
// slash is dropped and "/api/v1" appended unless already present.
func APIURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}
	if u != PublicAPIURL && !strings.Contains(u, "/api/v1") {
		u += "/api/v1"
	}
	return u
}

// Request is a replayable HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// IgnoreCodes lists error statuses the caller handles itself.
	IgnoreCodes []int
	// ErrorContext prefixes the user notification on failure.
	ErrorContext string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string // status text without the code, e.g. "Not Found"
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// credentials are attached to a single attempt.
type credentials struct {
	username string
	password string
	token    string
}

func (cr credentials) apply(h http.Header) {
	if cr.username != "" && cr.password != "" {
		h.Set("Authorization", BasicAuth(cr.username, cr.password))
	}
	if cr.token != "" {
		h.Set("Cookie", "JWT="+cr.token)
	}
}

// BasicAuth builds an Authorization header value.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// Call sends req with the stored token, running one credential recovery
// cycle if the server answers 401. Error statuses not listed in IgnoreCodes
// are notified and returned as *StatusError.
func (c *Client) Call(ctx context.Context, req *Request) (*Response, error) {
	if req.URL == "" {
		c.notifier.Error(ErrNoServerURL.Error())
		return nil, ErrNoServerURL
	}

	token, err := c.secrets.Get(store.TokenKey)
	if err != nil {
		logging.Warn("read stored token", logging.Err(err))
	}

	resp, err := c.do(ctx, req, credentials{token: token})
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			c.notifier.Error(fmt.Sprintf("Fetch error: %v", te.Err))
		} else {
			c.notifier.Error(err.Error())
		}
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.notifier.Info("This Kestra instance is secured. Please provide credentials.")
		resp, err = c.recover(ctx, req, token)
		if err != nil {
			c.notifier.Error(err.Error())
			return nil, err
		}
	}

	if resp.StatusCode >= 400 && !slices.Contains(req.IgnoreCodes, resp.StatusCode) {
		se := &StatusError{Code: resp.StatusCode, Status: resp.Status, Message: errorMessage(resp.Body)}
		msg := strings.TrimSpace(req.ErrorContext + " " + resp.Status)
		if se.Message != "" {
			msg += ": " + se.Message
		}
		c.notifier.Error(msg)
		return resp, se
	}

	return resp, nil
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, req *Request, cr credentials) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	cr.apply(httpReq.Header)

	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)
	log := logging.ForRequest(requestID)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordAPIRequest(endpointFamily(req.URL), 0)
		log.Debug("request failed",
			logging.String("method", method),
			logging.String("url", req.URL),
			logging.Err(err),
		)
		return nil, &TransportError{URL: req.URL, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{URL: req.URL, Err: err}
	}

	metrics.RecordAPIRequest(endpointFamily(req.URL), httpResp.StatusCode)
	log.Debug("request completed",
		logging.String("method", method),
		logging.String("url", req.URL),
		logging.Int("status", httpResp.StatusCode),
		logging.Int("size", len(data)),
		logging.Duration("duration", time.Since(start)),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     statusText(httpResp),
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
}

func errorMessage(body []byte) string {
	var er protocol.ErrorResponse
	if json.Unmarshal(body, &er) != nil {
		return ""
	}
	return er.Text()
}

func endpointFamily(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "other"
	}
	switch p := u.Path; {
	case strings.Contains(p, "/files"):
		return "files"
	case strings.Contains(p, "/flows"):
		return "flows"
	case strings.Contains(p, "/plugins"):
		return "plugins"
	default:
		return "other"
	}
}
