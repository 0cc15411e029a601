// Package api provides a typed client for the family-tree REST API.
//
// Person and tree operations require a session token. When none is held in
// memory the call fails locally with ErrNoToken. A 401 or 403 from the server
// means the session is no longer valid. In both cases the client calls its
// unauthorized handler, which the auth service wires to a forced logout.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"arvore/internal/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// TokenSource reports the token held by the in-memory session.
type TokenSource interface {
	Token() string
}

// Client is a typed client for the family-tree API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource

	mu             sync.RWMutex
	onUnauthorized func(ctx context.Context)

	flights singleflight.Group
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTokenStore routes every request through a TokenTransport reading store.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.httpClient.Transport = NewTokenTransport(c.httpClient.Transport, store)
	}
}

// WithTokenSource sets where protected calls read the in-memory token.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a client for the API rooted at baseURL (e.g. http://host/api/).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/",
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// SetUnauthorizedHandler sets the callback run when the session is found
// invalid (no token, or HTTP 401/403).
func (c *Client) SetUnauthorizedHandler(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) unauthorized(ctx context.Context) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
}

// request describes one call.
type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	// protected calls need a token and treat 401/403 as an invalid session
	protected bool
	// requestID overrides the generated X-Request-ID
	requestID string
}

type response struct {
	status int
	body   []byte
}

// do performs req and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	var token string
	if req.protected {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			logging.Get(logging.CategoryAPI).Warn("%s %s: no token, not sending", req.method, req.path)
			c.unauthorized(ctx)
			return noTokenError()
		}
	}

	exec := func() (*response, error) {
		resp, err := c.send(ctx, req, token)
		if err != nil {
			return nil, err
		}
		if resp.status >= 400 {
			apiErr := errorFromResponse(resp.status, resp.body, req.protected)
			if apiErr.Kind == KindUnauthorized {
				logging.AuthWarn("%s %s returned %d, forcing logout", req.method, req.path, resp.status)
				c.unauthorized(ctx)
			}
			return nil, apiErr
		}
		return resp, nil
	}

	var resp *response
	var err error
	if req.body == nil && (req.method == http.MethodGet || req.method == http.MethodDelete) {
		// Identical idempotent calls in flight share one round-trip.
		v, ferr, shared := c.flights.Do(req.method+" "+req.path, func() (interface{}, error) {
			return exec()
		})
		if shared {
			logging.APIDebug("%s %s joined an in-flight request", req.method, req.path)
		}
		err = ferr
		if v != nil {
			resp = v.(*response)
		}
	} else {
		resp, err = exec()
	}
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &Error{Kind: KindDecode, Status: resp.status, Message: "Resposta inesperada do servidor.", Err: err}
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request, token string) (*response, error) {
	timer := logging.StartTimer(logging.CategoryAPI, req.method+" "+req.path)
	defer timer.Stop()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Token "+token)
	}
	if req.requestID != "" {
		httpReq.Header.Set(RequestIDHeader, req.requestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.APIError("%s %s failed: %v", req.method, req.path, err)
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	logging.API("%s %s -> %d (%d bytes)", req.method, req.path, resp.StatusCode, len(body))
	return &response{status: resp.StatusCode, body: body}, nil
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

func personPath(id int) string {
	return "pessoas/" + strconv.Itoa(id) + "/"
}

// Login calls POST auth/.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	body, err := jsonBody(creds)
	if err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "auth/", body: body, contentType: "application/json"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register calls POST register/.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	body, err := jsonBody(reg)
	if err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "register/", body: body, contentType: "application/json"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPersons calls GET pessoas/.
func (c *Client) ListPersons(ctx context.Context) ([]Person, error) {
	var out []Person
	err := c.do(ctx, request{method: http.MethodGet, path: "pessoas/", protected: true}, &out)
	return out, err
}

// GetPerson calls GET pessoas/{id}/.
func (c *Client) GetPerson(ctx context.Context, id int) (*Person, error) {
	var out Person
	if err := c.do(ctx, request{method: http.MethodGet, path: personPath(id), protected: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePerson calls POST pessoas/ with a multipart body.
func (c *Client) CreatePerson(ctx context.Context, in PersonInput) (*Person, error) {
	return c.writePerson(ctx, http.MethodPost, "pessoas/", in)
}

// UpdatePerson calls PATCH pessoas/{id}/ with the fields set in in.
func (c *Client) UpdatePerson(ctx context.Context, id int, in PersonInput) (*Person, error) {
	return c.writePerson(ctx, http.MethodPatch, personPath(id), in)
}

func (c *Client) writePerson(ctx context.Context, method, path string, in PersonInput) (*Person, error) {
	body, contentType, err := encodePersonInput(in)
	if err != nil {
		return nil, err
	}
	kind := logging.AuditPersonUpdate
	if method == http.MethodPost {
		kind = logging.AuditPersonCreate
	}
	rid, start := uuid.NewString(), time.Now()
	var out Person
	err = c.do(ctx, request{method: method, path: path, body: body, contentType: contentType, protected: true, requestID: rid}, &out)
	target := path
	if err == nil {
		target = personPath(out.PersonID())
	}
	logging.Audit().PersonWrite(kind, rid, target, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePerson calls DELETE pessoas/{id}/.
func (c *Client) DeletePerson(ctx context.Context, id int) error {
	rid, start := uuid.NewString(), time.Now()
	err := c.do(ctx, request{method: http.MethodDelete, path: personPath(id), protected: true, requestID: rid}, nil)
	logging.Audit().PersonWrite(logging.AuditPersonDelete, rid, personPath(id), time.Since(start), err)
	return err
}

// GetTree calls GET pessoas/{id}/arvore/.
func (c *Client) GetTree(ctx context.Context, id int) (*ArvoreResponse, error) {
	var out ArvoreResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: personPath(id) + "arvore/", protected: true}, &out); err != nil {
		return nil, err
	}
	if out.Persons == nil && out.TreeLevels == nil && out.RootPerson == nil {
		return nil, &Error{Kind: KindDecode, Message: "Resposta inesperada do servidor.", Err: errors.New("empty tree response")}
	}
	return &out, nil
}

// IsUnauthorized reports whether err means the session is gone.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNoToken)
}
