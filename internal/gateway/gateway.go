package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/observability"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
	maxErrorBody        = 64 << 10
)

// CredentialSource yields the credential current at the moment of the call.
type CredentialSource interface {
	Credential() domain.Credential
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func() domain.Credential

func (f CredentialFunc) Credential() domain.Credential {
	return f()
}

// Gateway wraps every call to the trading backend. It attaches the current
// credential, classifies failures, and never retries or changes session state.
type Gateway struct {
	baseURL string
	client  *http.Client
	creds   CredentialSource
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

// WithMetrics records call outcomes.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Gateway) { g.metrics = metrics }
}

// New builds a gateway against cfg.BaseURL.
func New(cfg config.BackendConfig, creds CredentialSource, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.RequestTimeout()},
		creds:   creds,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Get issues a GET and decodes the JSON response into out.
func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodGet, path, nil, "", out)
}

// Post sends in as JSON.
func (g *Gateway) Post(ctx context.Context, path string, in, out any) error {
	body, err := encodeJSON(path, in)
	if err != nil {
		return err
	}
	return g.Do(ctx, http.MethodPost, path, body, "application/json", out)
}

// Put sends in as JSON.
func (g *Gateway) Put(ctx context.Context, path string, in, out any) error {
	body, err := encodeJSON(path, in)
	if err != nil {
		return err
	}
	return g.Do(ctx, http.MethodPut, path, body, "application/json", out)
}

// PostForm sends form as application/x-www-form-urlencoded.
func (g *Gateway) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	return g.Do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}

// Do performs one call. The credential is read immediately before sending, so a
// logout that completed earlier is always honored. Errors are *FetchError.
func (g *Gateway) Do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resource := resourceName(path)
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return &apperrors.FetchError{Kind: apperrors.FetchNetwork, Resource: resource, Message: "build request", Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	if credential := g.creds.Credential(); !credential.Empty() {
		req.Header.Set(headerAuthorization, "Bearer "+string(credential))
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		g.metrics.RecordError(path, method, string(apperrors.FetchNetwork))
		g.logger.Debug("backend call failed",
			zap.String("method", method), zap.String("path", path),
			zap.String("request_id", requestID), zap.Error(err))
		return &apperrors.FetchError{Kind: apperrors.FetchNetwork, Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	g.metrics.RecordRequest(path, method, resp.StatusCode, elapsed)
	g.logger.Debug("backend call",
		zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("elapsed", elapsed),
		zap.String("request_id", requestID))

	if fetchErr := classify(resp, resource); fetchErr != nil {
		g.metrics.RecordError(path, method, string(fetchErr.Kind))
		return fetchErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &apperrors.FetchError{Kind: apperrors.FetchNetwork, Status: resp.StatusCode, Resource: resource, Message: "undecodable response", Err: err}
	}
	return nil
}

func classify(resp *http.Response, resource string) *apperrors.FetchError {
	if resp.StatusCode < 400 {
		return nil
	}
	fetchErr := &apperrors.FetchError{
		Status:   resp.StatusCode,
		Resource: resource,
		Message:  errorMessage(resp.Body),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		fetchErr.Kind = apperrors.FetchUnauthorized
	case resp.StatusCode >= 500:
		fetchErr.Kind = apperrors.FetchServer
	default:
		fetchErr.Kind = apperrors.FetchRejected
	}
	return fetchErr
}

// errorMessage extracts a human message from either {"detail": ...} or
// {"error": {"message": ...}} bodies.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	if envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		return detail
	}
	if len(envelope.Detail) > 0 {
		return string(envelope.Detail)
	}
	return ""
}

func encodeJSON(path string, in any) (io.Reader, error) {
	if in == nil {
		return nil, nil
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return nil, &apperrors.FetchError{Kind: apperrors.FetchRejected, Resource: resourceName(path), Message: "encode request", Err: err}
	}
	return buf, nil
}

// resourceName turns "/dashboard/stats?x=1" into "dashboard/stats".
func resourceName(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}
	return path
}
