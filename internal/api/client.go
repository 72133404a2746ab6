package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/reunite/internal/metrics"
)

// Client talks to the Reunite REST API. The zero-session client may only
// call public endpoints; use WithSession for everything else.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	session    *Session
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for the API rooted at baseURL, e.g.
// "https://reunite.adiavi.com/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession returns a copy of c whose requests carry the session's tokens.
func (c *Client) WithSession(s *Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

// Session returns the bound session, or nil.
func (c *Client) Session() *Session {
	return c.session
}

type authMode int

const (
	authNone authMode = iota
	authAccess
	authRefresh
)

type filePart struct {
	field    string
	filename string
	data     []byte
}

// multipartForm is an ordered list of text fields plus optional files.
type multipartForm struct {
	fields [][2]string
	files  []filePart
}

func (f *multipartForm) add(name, value string) {
	f.fields = append(f.fields, [2]string{name, value})
}

func (f *multipartForm) addFile(field, filename string, data []byte) {
	f.files = append(f.files, filePart{field: field, filename: filename, data: data})
}

func (f *multipartForm) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	for _, fp := range f.files {
		part, err := w.CreateFormFile(fp.field, fp.filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(fp.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

type call struct {
	method string
	path   string
	// route is the path template used for metrics, e.g. "/claims/approve/{id}".
	route string
	auth  authMode
	json  any
	form  *multipartForm
}

func (c *Client) bearer(mode authMode) (string, error) {
	if mode == authNone {
		return "", nil
	}
	if c.session == nil {
		return "", noToken()
	}
	tok := c.session.AccessToken()
	if mode == authRefresh {
		tok = c.session.RefreshToken()
	}
	if tok == "" {
		return "", noToken()
	}
	return tok, nil
}

// do sends one request and decodes a 2xx JSON body into out (if non-nil).
// There is no retry.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	token, err := c.bearer(cl.auth)
	if err != nil {
		return err
	}

	var body io.Reader
	contentType := ""
	switch {
	case cl.form != nil:
		buf, ct, err := cl.form.encode()
		if err != nil {
			return fmt.Errorf("encode form: %w", err)
		}
		body, contentType = buf, ct
	case cl.json != nil:
		b, err := json.Marshal(cl.json)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)

	route := cl.method + " " + cl.route
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(route, 0, time.Since(start))
		c.logger.Warn("api request failed", "route", route, "request_id", reqID, "error", err)
		return &Error{Kind: KindNetwork, Message: networkMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.ObserveUpstream(route, resp.StatusCode, elapsed)
	if err != nil {
		return &Error{Status: resp.StatusCode, Kind: KindNetwork, Message: networkMessage, Err: err}
	}
	c.logger.Debug("api request",
		"route", route,
		"status", resp.StatusCode,
		"duration", elapsed.String(),
		"request_id", reqID,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{
			Status:  resp.StatusCode,
			Kind:    KindDecode,
			Message: fmt.Sprintf("Server returned invalid response (status %d)", resp.StatusCode),
			Err:     err,
		}
	}
	return nil
}

type requestIDKey struct{}

// ContextWithRequestID makes outbound calls reuse the inbound request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
