// Package apiclient sends requests to the REST backend with the session
// cookies attached and the CSRF double-submit header on mutating calls.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/satanpticoeur/social-logement-app/core/appmeta"
	"github.com/satanpticoeur/social-logement-app/core/cookies"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

const (
	DefaultAPIPrefix  = "api"
	DefaultCSRFCookie = "csrf_access_token"
	DefaultCSRFHeader = "X-CSRF-TOKEN"
	DefaultTimeout    = 15 * time.Second
)

const tracerName = "github.com/satanpticoeur/social-logement-app/core/apiclient"

// Config carries the backend location and the CSRF cookie/header names.
// TracerProvider and Propagator default to the otel globals.
type Config struct {
	BaseURL        string
	APIPrefix      string
	CSRFCookie     string
	CSRFHeader     string
	Timeout        time.Duration
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// Options describes one request. Body may be nil, a *Multipart, raw bytes
// (io.Reader or []byte), pre-encoded JSON (json.RawMessage or string), or any
// value that encodes to JSON.
type Options struct {
	Method string
	Header http.Header
	Body   any
}

// AuthFailureHandler is invoked when the backend answers 401.
type AuthFailureHandler func(ctx context.Context, err *HTTPError)

type Client struct {
	cfg     Config
	root    *url.URL
	http    *http.Client
	cookies cookies.Reader
	logger  *utils.Logger
	metrics *Metrics
	tracer  trace.Tracer
	prop    propagation.TextMapPropagator

	mu            sync.RWMutex
	onAuthFailure AuthFailureHandler
}

// New builds a client. httpClient should carry the cookie jar; when reader is
// nil the CSRF cookie is read from that jar.
func New(cfg Config, httpClient *http.Client, reader cookies.Reader, logger *utils.Logger, metrics *Metrics) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("apiclient: base url is required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIPrefix = strings.Trim(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = DefaultAPIPrefix
	}
	if cfg.CSRFCookie == "" {
		cfg.CSRFCookie = DefaultCSRFCookie
	}
	if cfg.CSRFHeader == "" {
		cfg.CSRFHeader = DefaultCSRFHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	root, err := url.Parse(cfg.BaseURL + "/" + cfg.APIPrefix + "/")
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if reader == nil {
		reader = cookies.NewJarReader(httpClient.Jar, root)
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	prop := cfg.Propagator
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	return &Client{
		cfg:     cfg,
		root:    root,
		http:    httpClient,
		cookies: reader,
		logger:  logger,
		metrics: metrics,
		tracer:  tp.Tracer(tracerName, trace.WithInstrumentationVersion(appmeta.AppVersion)),
		prop:    prop,
	}, nil
}

// OnAuthFailure installs the 401 handler. The client never touches session
// state itself.
func (c *Client) OnAuthFailure(h AuthFailureHandler) {
	c.mu.Lock()
	c.onAuthFailure = h
	c.mu.Unlock()
}

// URL returns the absolute URL for endpoint.
func (c *Client) URL(endpoint string) string {
	return c.cfg.BaseURL + "/" + c.cfg.APIPrefix + "/" + strings.TrimLeft(endpoint, "/")
}

// Root is the API root URL; cookies are read for this URL.
func (c *Client) Root() *url.URL {
	u := *c.root
	return &u
}

func (c *Client) Do(ctx context.Context, endpoint string, opts Options) (json.RawMessage, error) {
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := c.URL(endpoint)
	class := endpointClass(endpoint)
	reqID := uuid.Must(uuid.NewV4()).String()
	log := c.logger.With("request_id", reqID, "method", method, "endpoint", endpoint)

	ctx, span := c.tracer.Start(ctx, "api "+method, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
			attribute.String("endpoint.class", class),
			attribute.String("request.id", reqID),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := encodeBody(opts.Body)
	if err != nil {
		span.SetStatus(codes.Error, "encode body")
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body.reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	switch body.kind {
	case bodyJSON:
		req.Header.Set("Content-Type", "application/json")
	case bodyMultipart:
		req.Header.Set("Content-Type", body.contentType)
	}
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("User-Agent", appmeta.UserAgent())
	c.prop.Inject(ctx, propagation.HeaderCarrier(req.Header))
	if isMutating(method) {
		if token, ok := c.cookies.Cookie(c.cfg.CSRFCookie); ok && token != "" {
			req.Header.Set(c.cfg.CSRFHeader, token)
		} else {
			c.metrics.csrfMissed()
			log.Warnf("CSRF token missing for %s request to %s. This might cause an authentication error.", method, endpoint)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(method, class, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		log.Warnf("api request failed: %v", err)
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	c.metrics.observe(method, class, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	log.Debugf("api response status=%d elapsed=%s", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := newHTTPError(resp.StatusCode, data)
		span.SetStatus(codes.Error, herr.Message)
		if resp.StatusCode == http.StatusUnauthorized {
			c.metrics.authFailed()
			c.authFailed(ctx, herr)
		}
		return nil, herr
	}
	if resp.StatusCode == http.StatusNoContent || method == http.MethodHead || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		merr := &MalformedResponseError{Status: resp.StatusCode, Err: errors.New("invalid JSON body")}
		span.SetStatus(codes.Error, "malformed body")
		return nil, merr
	}
	return json.RawMessage(data), nil
}

// DoInto runs Do and decodes the JSON result into out. A 204 leaves out untouched.
func (c *Client) DoInto(ctx context.Context, endpoint string, opts Options, out any) error {
	raw, err := c.Do(ctx, endpoint, opts)
	if err != nil {
		return err
	}
	if out == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &MalformedResponseError{Err: err}
	}
	return nil
}

func (c *Client) authFailed(ctx context.Context, herr *HTTPError) {
	c.mu.RLock()
	h := c.onAuthFailure
	c.mu.RUnlock()
	if h != nil {
		h(ctx, herr)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
