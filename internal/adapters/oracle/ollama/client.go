package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const (
	DefaultBaseURL        = "http://127.0.0.1:11434"
	DefaultModel          = "qwen3:4b"
	DefaultConnectTimeout = 6 * time.Second
	DefaultReadTimeout    = 120 * time.Second
	DefaultMaxRetries     = 3
	DefaultBaseBackoff    = 600 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second

	generatePath     = "/api/generate"
	maxResponseBytes = 8 << 20
	maxErrorBodyLen  = 240
)

type Config struct {
	BaseURL        string
	Model          string
	Stream         bool
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
}

// Client talks to an Ollama-compatible /api/generate endpoint.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	log        zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

var _ ports.Oracle = (*Client)(nil)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response *string          `json:"response"`
	Done     bool             `json:"done"`
	Error    string           `json:"error"`
	Commands *json.RawMessage `json:"commands"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("ollama http %d", e.code)
	}
	return fmt.Sprintf("ollama http %d: %s", e.code, e.body)
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	cfg = withDefaults(cfg)

	endpoint, err := buildEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Transport: transport},
		log:        logger.With().Str("component", "oracle").Str("model", cfg.Model).Logger(),
		sleep:      sleepContext,
	}, nil
}

func (c *Client) Model() string {
	return c.cfg.Model
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Generate posts prompt and returns the reply text. Transport failures and
// 5xx/429 answers are retried with capped exponential backoff; malformed
// bodies and other client errors are returned at once.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.log.Warn().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Msg("retrying oracle request")
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		reply, err := c.post(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if !retryable(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w after %d attempts: %w", domain.ErrOracleUnavailable, c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: c.cfg.Model, Prompt: prompt, Stream: c.cfg.Stream})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request generate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &statusError{code: resp.StatusCode, body: compactLine(string(body))}
	}

	reply, err := decodeReply(body)
	if err != nil {
		return "", err
	}
	c.log.Debug().Dur("latency", time.Since(started)).Int("reply_len", len(reply)).Msg("oracle replied")

	return reply, nil
}

// decodeReply accepts streamed NDJSON chunks, a single JSON body, a direct
// commands object or plain text.
func decodeReply(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", nil
	}
	if !looksLikeObject(text) {
		return text, nil
	}

	var reply strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			if isSingleObject(text) {
				return decodeSingle(text)
			}
			return "", fmt.Errorf("decode generate chunk: %w: %w", domain.ErrOracleMalformed, err)
		}
		switch {
		case chunk.Error != "":
			return "", fmt.Errorf("ollama error %q: %w", chunk.Error, domain.ErrOracleMalformed)
		case chunk.Commands != nil:
			return line, nil
		case chunk.Response != nil:
			reply.WriteString(*chunk.Response)
		default:
			return "", fmt.Errorf("generate chunk without response: %w", domain.ErrOracleMalformed)
		}
		if chunk.Done {
			break
		}
	}

	return strings.TrimSpace(reply.String()), nil
}

// decodeSingle handles a pretty-printed single object spanning several lines.
func decodeSingle(text string) (string, error) {
	var chunk generateChunk
	if err := json.Unmarshal([]byte(text), &chunk); err != nil {
		return "", fmt.Errorf("decode generate response: %w: %w", domain.ErrOracleMalformed, err)
	}
	switch {
	case chunk.Error != "":
		return "", fmt.Errorf("ollama error %q: %w", chunk.Error, domain.ErrOracleMalformed)
	case chunk.Commands != nil:
		return text, nil
	case chunk.Response != nil:
		return strings.TrimSpace(*chunk.Response), nil
	default:
		return "", fmt.Errorf("generate response without response: %w", domain.ErrOracleMalformed)
	}
}

// looksLikeObject reports whether text opens a JSON object, so a reply such
// as "{look" still counts as plain text.
func looksLikeObject(text string) bool {
	rest, ok := strings.CutPrefix(text, "{")
	if !ok {
		return false
	}
	rest = strings.TrimLeft(rest, " \t\r\n")
	return rest == "" || rest[0] == '"' || rest[0] == '}'
}

func isSingleObject(text string) bool {
	return json.Valid([]byte(text))
}

func retryable(err error) bool {
	if errors.Is(err, domain.ErrOracleMalformed) {
		return false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= http.StatusInternalServerError || statusErr.code == http.StatusTooManyRequests
	}
	return true
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.MaxBackoff {
			return c.cfg.MaxBackoff
		}
	}
	return min(delay, c.cfg.MaxBackoff)
}

func withDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	return cfg
}

func buildEndpoint(baseURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse oracle url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("oracle url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("oracle url host is required")
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/") + generatePath
	return parsed.String(), nil
}

func compactLine(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxErrorBodyLen {
		return text[:maxErrorBodyLen] + "..."
	}
	return text
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
