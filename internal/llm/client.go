package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1"
	DefaultModel    = "gpt-4o-mini"
	DefaultTimeout  = 120 * time.Second
)

// Marks distinguishing where a backend failure happened. Both are also
// marked errkind.Backend.
var (
	ErrRequestFailed = errors.New("generation request failed")
	ErrBadResponse   = errors.New("bad generation response")
)

// Config holds LLM client configuration.
type Config struct {
	Endpoint  string // API base URL (e.g., https://api.openai.com/v1)
	APIKey    string
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second across all callers, 0 = unlimited
}

// MarshalLogObject masks the API key when the config is logged.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("endpoint", c.Endpoint)
	enc.AddString("model", c.Model)
	enc.AddDuration("timeout", c.Timeout)
	enc.AddString("api_key", "[REDACTED]")
	return nil
}

// Client speaks the OpenAI-compatible chat completions API. It sends
// exactly one request per Generate call and never retries.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	newID   func() string
}

// NewClient creates an LLM client with the given configuration. A missing
// credential is a configuration error.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errkind.Mark(errors.WithHint(
			errors.New("LLIMPL_API_KEY is not set"),
			"set LLIMPL_API_KEY (or OPENAI_API_KEY), or enable offline mode with LLIMPL_OFFLINE=1 to use cached generations only"),
			errkind.Config)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm-client")),
		newID:   func() string { return uuid.NewString() },
	}, nil
}

// Model returns the default model used when a declaration names none.
func (c *Client) Model() string { return c.cfg.Model }

// Response is the outcome of one generation request.
type Response struct {
	// Bodies holds one fragment per method when Structured is true. When the
	// content did not match the bodies schema, Bodies is the raw content as
	// a single fragment and FormatErr says why.
	Bodies     []string
	Structured bool
	FormatErr  error
	Raw        string // message content as received
	Model      string
	RequestID  string
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the OpenAI chat completions response body.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// Generate asks the backend for one body per method of dc. model overrides
// the configured default when non-empty.
func (c *Client) Generate(ctx context.Context, dc decl.Context, model string) (*Response, error) {
	if model == "" {
		model = c.cfg.Model
	}

	reqBody := chatRequest{
		Model:    model,
		Messages: buildMessages(dc),
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   SchemaName,
				Strict: true,
				Schema: BodiesSchema,
			},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	requestID := c.newID()
	content, err := c.doRequest(ctx, requestID, model, data)
	if err != nil {
		return nil, err
	}

	resp := &Response{Model: model, RequestID: requestID, Raw: content, Structured: true}
	bodies, err := ParseBodies(content)
	if err != nil {
		c.logger.Warn("response content is not a bodies object",
			zap.String("request_id", requestID), zap.Error(err))
		resp.Bodies = []string{content}
		resp.Structured = false
		resp.FormatErr = err
		return resp, nil
	}
	resp.Bodies = bodies
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, requestID, model string, data []byte) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", requestFailed(err, "wait for rate limiter")
		}
	}

	endpoint := c.cfg.Endpoint + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", requestFailed(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Client-Request-Id", requestID)

	c.logger.Debug("sending LLM request",
		zap.String("endpoint", endpoint), zap.String("model", model), zap.String("request_id", requestID))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", requestFailed(err, "POST %s", endpoint)
	}
	defer resp.Body.Close()

	const maxBodyBytes = 10 * 1024 * 1024 // 10 MB
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", requestFailed(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", requestFailed(
			errors.Newf("LLM API error (status %d): %s", resp.StatusCode, truncate(string(body), 512)),
			"POST %s", endpoint)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", badResponse(errors.Wrap(err, "unmarshal response envelope"))
	}
	if chatResp.Error != nil {
		return "", badResponse(errors.Newf("LLM API error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", badResponse(errors.New("LLM returned no choices"))
	}

	content := chatResp.Choices[0].Message.Content
	c.logger.Debug("received LLM response",
		zap.String("request_id", requestID),
		zap.Int("length", len(content)),
		zap.String("finish_reason", chatResp.Choices[0].FinishReason),
		zap.Duration("elapsed", time.Since(start)))
	return content, nil
}

func requestFailed(err error, format string, args ...interface{}) error {
	return errkind.Mark(errors.Mark(errors.Wrapf(err, format, args...), ErrRequestFailed), errkind.Backend)
}

func badResponse(err error) error {
	return errkind.Mark(errors.Mark(err, ErrBadResponse), errkind.Backend)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
