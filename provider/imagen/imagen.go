// Package imagen provides an ImageGenerator implementation that calls the
// Imagen predict endpoint of the Gemini API over REST.
//
// The genai SDK's GenerateImages does not accept negativePrompt or seed on the
// Gemini API backend, so generation talks to :predict directly. The SDK is
// still used for the health probe (see Prober).
package imagen

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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	imagegen "github.com/mhpenta/imagen-mcp"
	"github.com/mhpenta/imagen-mcp/internal/metrics"
	"github.com/mhpenta/imagen-mcp/ratelimiter"
)

const (
	// DefaultBaseURL is the Gemini API host.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is the API version path segment.
	DefaultAPIVersion = "v1beta"

	// DefaultTimeout bounds a single predict call.
	DefaultTimeout = 2 * time.Minute

	maxErrorBody = 1 << 20
)

// ErrMissingAPIKey is returned by New when no API key is given.
var ErrMissingAPIKey = errors.New("imagen: API key is required")

// Client implements imagegen.ImageGenerator against the :predict endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client

	limiters ratelimiter.Registry
	maxWait  time.Duration

	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// Ensure Client implements the interface.
var _ imagegen.ImageGenerator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAPIVersion overrides the API version path segment.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithHTTPClient sets the HTTP client used for predict calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimiters throttles calls per model. Models without a limiter are not throttled.
// maxWait bounds how long a call may wait for capacity; zero waits indefinitely.
func WithRateLimiters(registry ratelimiter.Registry, maxWait time.Duration) Option {
	return func(c *Client) {
		c.limiters = registry
		c.maxWait = maxWait
	}
}

// WithLogger sets a structured logger for the client.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With(zap.String("component", "imagen_client"))
		}
	}
}

// WithMetrics records predict calls on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("github.com/mhpenta/imagen-mcp/provider/imagen"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DefaultLimiters builds a registry from the model catalog's rate limits.
// A positive requestsPerMinute overrides the catalog request limit for every model.
func DefaultLimiters(requestsPerMinute int) ratelimiter.Registry {
	registry := ratelimiter.NewRegistry()
	for _, info := range imagegen.Catalog {
		limits := ratelimiter.RateLimits{
			RequestsPerMinute: info.RateLimits.RequestsPerMinute,
			ImagesPerMinute:   info.RateLimits.ImagesPerMinute,
		}
		if requestsPerMinute > 0 {
			limits.RequestsPerMinute = requestsPerMinute
		}
		registry.Set(string(info.Name), ratelimiter.NewFromLimits(limits))
	}
	return registry
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

type predictParameters struct {
	OutputMimeType   string `json:"outputMimeType"`
	SampleCount      int    `json:"sampleCount"`
	PersonGeneration string `json:"personGeneration"`
	AspectRatio      string `json:"aspectRatio"`
	Seed             *int64 `json:"seed,omitempty"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
	RaiFilteredReason  string `json:"raiFilteredReason,omitempty"`
}

func buildPredictRequest(req imagegen.GenerationRequest) predictRequest {
	return predictRequest{
		Instances: []predictInstance{{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
		}},
		Parameters: predictParameters{
			OutputMimeType:   req.OutputFormat.String(),
			SampleCount:      req.NumberOfImages,
			PersonGeneration: req.PersonGeneration.String(),
			AspectRatio:      req.AspectRatio.String(),
			Seed:             req.Seed,
		},
	}
}

func (c *Client) endpoint(model imagegen.Model) string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	return fmt.Sprintf("%s/%s/models/%s:predict?%s", c.baseURL, c.apiVersion, url.PathEscape(string(model)), q.Encode())
}

// Generate issues one predict call. It never retries.
func (c *Client) Generate(ctx context.Context, req imagegen.GenerationRequest) (*imagegen.GenerationResult, error) {
	if err := imagegen.ValidatePrompt(req.Prompt); err != nil {
		return nil, err
	}
	req = req.WithDefaults("")

	ctx, span := c.tracer.Start(ctx, "imagen.Predict", trace.WithAttributes(
		attribute.String("imagen.model", req.Model.String()),
		attribute.Int("imagen.sample_count", req.NumberOfImages),
	))
	defer span.End()

	if err := c.waitForCapacity(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limited")
		return nil, err
	}

	body, err := json.Marshal(buildPredictRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(req.Model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	c.logger.Debug("sending predict request",
		zap.String("model", req.Model.String()),
		zap.Int("sample_count", req.NumberOfImages),
		zap.Int("body_bytes", len(body)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordPredict(req.Model.String(), 0, time.Since(start))
		apiErr := &imagegen.RemoteAPIError{Category: imagegen.CategoryGeneric, Err: err}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "transport error")
		return nil, apiErr
	}
	defer resp.Body.Close()

	c.metrics.RecordPredict(req.Model.String(), resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := newRemoteAPIError(resp.StatusCode, raw)
		c.logger.Warn("predict request failed",
			zap.String("model", req.Model.String()),
			zap.Int("status", resp.StatusCode),
			zap.String("category", string(apiErr.Category)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, string(apiErr.Category))
		return nil, apiErr
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}

	result := parseResult(req, parsed)
	c.metrics.RecordImages(req.Model.String(), len(result.Images))
	c.logger.Info("predict request completed",
		zap.String("model", req.Model.String()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int("image_count", len(result.Images)),
		zap.Int("filtered", len(parsed.Predictions)-len(result.Images)),
	)
	span.SetAttributes(attribute.Int("imagen.image_count", len(result.Images)))

	return result, nil
}

// parseResult keeps predictions that carry image bytes; filtered ones are dropped.
func parseResult(req imagegen.GenerationRequest, parsed predictResponse) *imagegen.GenerationResult {
	result := &imagegen.GenerationResult{
		Images:  make([]imagegen.GeneratedImage, 0, len(parsed.Predictions)),
		Request: req,
	}
	for _, p := range parsed.Predictions {
		if p.BytesBase64Encoded == "" {
			continue
		}
		mime := p.MimeType
		if mime == "" {
			mime = req.OutputFormat.String()
		}
		result.Images = append(result.Images, imagegen.GeneratedImage{
			Data:     p.BytesBase64Encoded,
			MIMEType: mime,
			Index:    len(result.Images),
		})
	}
	return result
}

func (c *Client) waitForCapacity(ctx context.Context, req imagegen.GenerationRequest) error {
	if c.limiters == nil {
		return nil
	}
	limiter, err := c.limiters.Get(string(req.Model))
	if err != nil {
		return nil
	}

	err = limiter.WaitAndConsume(ctx, req.NumberOfImages, c.maxWait)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, ratelimiter.ErrWaitExceeded):
		// Canceled while queued.
		return fmt.Errorf("waiting for local quota: %w", err)
	default:
		c.logger.Warn("rate limit hit",
			zap.String("model", req.Model.String()),
			zap.Error(err),
		)
		return &imagegen.RateLimitError{
			RetryAfter: limiter.TimeUntilAvailable(req.NumberOfImages),
			LimitType:  "requests",
			Model:      req.Model.String(),
			Err:        err,
		}
	}
}
