// Package backend is the client of the analysis backend: the chat model, the
// ORMCR analysis engine and the market price feed.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aura-bot/internal/config"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/pkg/keygen"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	PathChat          = "/chat"
	PathAnalysis      = "/run_ormcr_analysis"
	PathMarketPrices  = "/all_market_prices"
	HeaderIdempotency = "Idempotency-Key"

	DefaultRetries     = 3
	defaultBackoffUnit = time.Second
)

var (
	ErrRequestFailed     = errors.New("backend request failed")
	ErrMalformedResponse = errors.New("malformed backend response")
)

// StatusError is returned for a non-2xx backend response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Body)
}

// RequestError is returned once every attempt of a request failed. It
// matches ErrRequestFailed and the last attempt's error.
type RequestError struct {
	Method   string
	Path     string
	Attempts int
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s %s after %d attempts: %v", ErrRequestFailed, e.Method, e.Path, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() []error {
	return []error{ErrRequestFailed, e.Err}
}

// Reason is a short user-facing description of a backend failure. Response
// bodies and transport details belong in the logs only.
func Reason(err error) string {
	var status *StatusError
	switch {
	case errors.As(err, &status):
		return fmt.Sprintf("the service returned HTTP %d", status.StatusCode)
	case errors.Is(err, ErrMalformedResponse):
		return "the service sent an incomplete response"
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out"
	case errors.Is(err, ErrRequestFailed):
		return "the service is unreachable"
	default:
		return "an unexpected error occurred"
	}
}

// Client calls the backend with bounded retries
type Client struct {
	http        *resty.Client
	retries     int
	backoffUnit time.Duration
	logger      *zap.Logger
}

// NewClient creates a new backend Client
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	httpClient.SetHeader("Accept", "application/json")

	return &Client{
		http:        httpClient,
		retries:     retries,
		backoffUnit: defaultBackoffUnit,
		logger:      logger,
	}
}

// SetBackoffUnit changes the base delay; attempt n waits n units before the next try
func (c *Client) SetBackoffUnit(d time.Duration) {
	c.backoffUnit = d
}

// FetchWithRetry performs one logical request with at most retries attempts.
// A 2xx response succeeds. Otherwise, while attempts remain, it waits
// backoffUnit × attempt and tries again, reusing the same idempotency key.
// After the last attempt the last error is returned.
func (c *Client) FetchWithRetry(ctx context.Context, method, path string, body interface{}, retries int) (*resty.Response, error) {
	if retries <= 0 {
		retries = 1
	}
	idempotencyKey := keygen.IdempotencyKey()

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		req := c.http.R().
			SetContext(ctx).
			SetHeader(HeaderIdempotency, idempotencyKey)
		if body != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(body)
		}

		resp, err := req.Execute(method, path)
		switch {
		case err != nil:
			lastErr = err
		case !resp.IsSuccess():
			lastErr = &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 200)}
		default:
			return resp, nil
		}

		c.logger.Warn("backend attempt failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("of", retries),
			zap.Error(lastErr))

		if attempt == retries {
			break
		}
		if err := sleep(ctx, c.backoffUnit*time.Duration(attempt)); err != nil {
			return nil, &RequestError{Method: method, Path: path, Attempts: attempt, Err: err}
		}
	}

	return nil, &RequestError{Method: method, Path: path, Attempts: retries, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// HistoryEntry is one prior turn sent as conversation context
type HistoryEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	Message     string         `json:"message"`
	MessageType string         `json:"message_type"`
	ChatHistory []HistoryEntry `json:"chatHistory"`
	AudioData   string         `json:"audio_data,omitempty"`
}

// Chat posts the conversation and returns the model's reply text
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	resp, err := c.FetchWithRetry(ctx, http.MethodPost, PathChat, req, c.retries)
	if err != nil {
		return "", err
	}

	var body struct {
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", errors.Wrapf(ErrMalformedResponse, "chat: %v", err)
	}
	if body.Response == nil {
		return "", errors.Wrap(ErrMalformedResponse, "chat: missing response field")
	}
	return *body.Response, nil
}

type symbolAnalysisRequest struct {
	Symbol string `json:"symbol"`
	UserID string `json:"userId"`
}

type paramsAnalysisRequest struct {
	models.AnalysisParams
	UserID string `json:"userId"`
}

// RunSymbolAnalysis requests an analysis for a symbol named by the chat model
func (c *Client) RunSymbolAnalysis(ctx context.Context, symbol, userID string) (*models.AnalysisResult, error) {
	return c.runAnalysis(ctx, &symbolAnalysisRequest{Symbol: symbol, UserID: userID})
}

// RunAnalysis requests an analysis with the full user-selected parameter set
func (c *Client) RunAnalysis(ctx context.Context, params models.AnalysisParams, userID string) (*models.AnalysisResult, error) {
	return c.runAnalysis(ctx, &paramsAnalysisRequest{AnalysisParams: params, UserID: userID})
}

func (c *Client) runAnalysis(ctx context.Context, body interface{}) (*models.AnalysisResult, error) {
	resp, err := c.FetchWithRetry(ctx, http.MethodPost, PathAnalysis, body, c.retries)
	if err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "analysis: %v", err)
	}
	if err := result.Validate(); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "analysis: %v", err)
	}
	return &result, nil
}

// MarketPrices fetches the latest data of every tracked symbol
func (c *Client) MarketPrices(ctx context.Context) (map[string]models.MarketData, error) {
	resp, err := c.FetchWithRetry(ctx, http.MethodGet, PathMarketPrices, nil, c.retries)
	if err != nil {
		return nil, err
	}

	var prices map[string]models.MarketData
	if err := json.Unmarshal(resp.Body(), &prices); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "market prices: %v", err)
	}
	if len(prices) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "market prices: empty")
	}
	return prices, nil
}
