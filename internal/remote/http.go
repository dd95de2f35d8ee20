package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/language"
	"github.com/rbright/signflow/internal/version"
)

const maxResponseBytes = 1 << 20

// HTTPClient speaks the JSON-over-HTTP conversion API.
type HTTPClient struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient validates cfg.BaseURL and builds a client with cfg.Timeout per request.
func NewHTTPClient(cfg Config, logger *slog.Logger) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse remote base_url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote base_url %q must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("remote base_url %q has no host", cfg.BaseURL)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &HTTPClient{
		cfg:  cfg,
		base: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		logger: logger,
	}, nil
}

// Translate posts text to the translate endpoint and returns pivot-language text.
func (c *HTTPClient) Translate(ctx context.Context, text string, source language.Code) (string, error) {
	var resp translateResponse
	err := c.postJSON(ctx, c.cfg.TranslatePath, translateRequest{
		Text:   text,
		Source: source.String(),
		Target: language.Pivot.String(),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslation, err)
	}

	translated := strings.TrimSpace(resp.TranslatedText)
	if translated == "" {
		return "", fmt.Errorf("%w: response missing translated_text", ErrTranslation)
	}
	return translated, nil
}

// Classify posts pivot text to the convert endpoint.
func (c *HTTPClient) Classify(ctx context.Context, text string) (conversion.Result, error) {
	var resp classifyResponse
	if err := c.postJSON(ctx, c.cfg.ClassifyPath, classifyRequest{Text: text}, &resp); err != nil {
		return conversion.Result{}, fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return resp.result()
}

// Transcribe uploads one WAV clip and returns the recognized text.
func (c *HTTPClient) Transcribe(ctx context.Context, wav []byte, lang language.Code) (string, error) {
	target := c.resolve(c.cfg.TranscribePath)
	query := target.Query()
	query.Set("language", lang.String())
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrTranscription, err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	var resp transcribeResponse
	if err := decodeJSON(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Ready probes the health endpoint.
func (c *HTTPClient) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(c.cfg.HealthPath).String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrUnavailable, err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path).String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeJSON(body, out)
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("remote request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"body", snippet(body),
		)
		return nil, &StatusError{Path: req.URL.Path, Code: resp.StatusCode, Body: snippet(body)}
	}
	return body, nil
}

func (c *HTTPClient) resolve(path string) *url.URL {
	ref := &url.URL{Path: strings.TrimLeft(path, "/")}
	joined := *c.base
	if !strings.HasSuffix(joined.Path, "/") {
		joined.Path += "/"
	}
	return joined.ResolveReference(ref)
}

// StatusError is a non-2xx HTTP reply.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Path, e.Code, e.Body)
}

// IsStatus reports whether err carries an HTTP reply with code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

func snippet(body []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
