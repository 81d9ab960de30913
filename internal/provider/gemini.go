package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/metrics"
	"github.com/felixgeelhaar/hopper/internal/retry"
	"github.com/felixgeelhaar/hopper/internal/telemetry"
)

const (
	// DefaultGeminiBaseURL is the public Gemini REST endpoint
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is used when the configuration names none
	DefaultGeminiModel = "gemini-2.5-flash"

	defaultTimeout = 120 * time.Second
)

// GeminiProvider implements ProviderClient for the Google Gemini API
type GeminiProvider struct {
	name      string
	apiKey    string
	baseURL   string
	client    *http.Client
	model     string
	maxTokens int
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// Gemini API request/response structures
type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
	ModelVersion  string            `json:"modelVersion,omitempty"`
	Error         *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// transientStatuses are Gemini error statuses worth retrying
var transientStatuses = map[string]bool{
	"INTERNAL":          true,
	"UNAVAILABLE":       true,
	"DEADLINE_EXCEEDED": true,
}

// GeminiOption customizes a GeminiProvider
type GeminiOption func(*GeminiProvider)

// WithHTTPClient replaces the instrumented default client
func WithHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = client }
}

// WithMetrics records call counts, latency and token usage
func WithMetrics(m *metrics.Metrics) GeminiOption {
	return func(p *GeminiProvider) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) GeminiOption {
	return func(p *GeminiProvider) { p.logger = logger }
}

// NewGeminiProvider creates a new Gemini provider instance
func NewGeminiProvider(cfg Config, opts ...GeminiOption) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeConfigAPIKey, "api key not configured for gemini provider").
			WithSuggestions(
				"Set HOPPER_API_KEY (or GEMINI_API_KEY) in your environment",
				"Or run with --demo to use the offline fixtures",
			)
	}

	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	p := &GeminiProvider{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		model:     model,
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		logger:    log.Discard(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate implements ProviderClient.Generate. Returned errors are classified
// for the retry wrapper: network failures and 5xx are transient, everything
// else is fatal.
func (p *GeminiProvider) Generate(ctx context.Context, req *GenerateRequest) (resp *GenerateResponse, err error) {
	modelName := p.model
	if req.Model != "" {
		modelName = req.Model
	}

	ctx, span := telemetry.StartProviderSpan(ctx, p.name, "generate")
	defer span.End()
	span.SetAttributes(attribute.String("model", modelName))

	startTime := time.Now()
	defer func() {
		p.observe(modelName, time.Since(startTime), resp, err)
		if err != nil {
			telemetry.RecordError(span, err)
			return
		}
		telemetry.RecordSuccess(span, attribute.Int("tokens_used", resp.TokensUsed))
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, modelName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(fmt.Errorf("send request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.statusError(httpResp.StatusCode, respBody)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, retry.Fatal(errors.NewMalformedResponseError(p.name, fmt.Errorf("parse response: %w", err)))
	}

	if geminiResp.Error != nil {
		apiErr := fmt.Errorf("gemini API error: %s (code: %d, status: %s)",
			geminiResp.Error.Message, geminiResp.Error.Code, geminiResp.Error.Status)
		if transientStatuses[geminiResp.Error.Status] {
			return nil, retry.Transient(apiErr)
		}
		return nil, retry.Fatal(errors.Wrap(errors.ErrCodeOracleAPI, "provider rejected request", apiErr))
	}

	return p.convertResponse(&geminiResp, time.Since(startTime), modelName)
}

func (p *GeminiProvider) statusError(status int, body []byte) error {
	cause := fmt.Errorf("API error (status %d): %s", status, truncate(string(body), 512))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		authErr := errors.NewOracleAuthError(p.name)
		authErr.Cause = cause
		return retry.Fatal(authErr)
	case status == http.StatusTooManyRequests:
		rlErr := errors.NewOracleRateLimitError(p.name)
		rlErr.Cause = cause
		return retry.Fatal(rlErr)
	case status >= 500:
		return retry.Transient(cause)
	default:
		return retry.Fatal(errors.Wrap(errors.ErrCodeOracleAPI, "provider rejected request", cause))
	}
}

func (p *GeminiProvider) observe(model string, latency time.Duration, resp *GenerateResponse, err error) {
	p.logger.Debug("provider call finished",
		"provider", p.name,
		"model", model,
		"latency_ms", latency.Milliseconds(),
		"success", err == nil,
	)

	if p.metrics == nil {
		return
	}
	p.metrics.ProviderCalls.WithLabelValues(p.name, model, strconv.FormatBool(err == nil)).Inc()
	p.metrics.ProviderLatency.WithLabelValues(p.name, model).Observe(latency.Seconds())
	if err != nil {
		errType := "transient"
		if code, ok := errors.CodeOf(err); ok {
			errType = string(code)
		} else if !retry.IsTransient(err) {
			errType = "fatal"
		}
		p.metrics.ProviderErrors.WithLabelValues(p.name, model, errType).Inc()
		return
	}
	p.metrics.ProviderTokens.WithLabelValues(p.name, model, "input").Add(float64(resp.InputTokens))
	p.metrics.ProviderTokens.WithLabelValues(p.name, model, "output").Add(float64(resp.OutputTokens))
}

// buildRequest converts our GenerateRequest to Gemini format
func (p *GeminiProvider) buildRequest(req *GenerateRequest) *geminiRequest {
	geminiReq := &geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
	}

	if req.SystemPrompt != "" {
		geminiReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}

	genConfig := &geminiGenerationConfig{
		ResponseMIMEType: req.ResponseMIMEType,
	}
	if req.ResponseMIMEType == "application/json" {
		genConfig.ResponseSchema = req.ResponseSchema
	}

	if req.Temperature > 0 {
		temp := req.Temperature
		genConfig.Temperature = &temp
	}

	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = req.MaxTokens
	} else if p.maxTokens > 0 {
		genConfig.MaxOutputTokens = p.maxTokens
	}

	geminiReq.GenerationConfig = genConfig
	return geminiReq
}

// convertResponse converts Gemini response to our format
func (p *GeminiProvider) convertResponse(resp *geminiResponse, latency time.Duration, model string) (*GenerateResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, retry.Fatal(errors.NewMalformedResponseError(p.name, fmt.Errorf("no candidates in response")))
	}

	candidate := resp.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return nil, retry.Fatal(errors.NewMalformedResponseError(p.name, fmt.Errorf("no content parts in response")))
	}

	var content string
	for _, part := range candidate.Content.Parts {
		content += part.Text
	}

	result := &GenerateResponse{
		Content:      content,
		Model:        model,
		Provider:     p.name,
		FinishReason: candidate.FinishReason,
		Latency:      latency,
	}

	if resp.UsageMetadata != nil {
		result.InputTokens = resp.UsageMetadata.PromptTokenCount
		result.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
		result.TokensUsed = resp.UsageMetadata.TotalTokenCount
	}

	return result, nil
}

// GetInfo returns provider metadata
func (p *GeminiProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        p.name,
		Model:       p.model,
		Description: "Google Gemini API provider",
	}
}

// IsAvailable checks if the provider is configured
func (p *GeminiProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Close cleans up resources
func (p *GeminiProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
