// Package client is the Go facade over the chemvis HTTP API. It is what the
// CLI uses; every failure surfaces as a *TransportError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "chemvis/internal/errors"
	"chemvis/pkg/contracts"
	api "chemvis/pkg/contracts/api/v1"
	"chemvis/pkg/contracts/domain"
)

// maxErrorBody bounds how much of a failed response is read
const maxErrorBody = 64 << 10

// Config holds everything needed to reach a server
type Config struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Username       string        `mapstructure:"username" yaml:"username,omitempty"`
	Password       string        `mapstructure:"password" yaml:"password,omitempty" validate:"required_with=Username"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	RetryMax       int           `mapstructure:"retry_max" yaml:"retry_max" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay" validate:"gte=0"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8080",
		Timeout:        30 * time.Second,
		RetryMax:       3,
		RetryBaseDelay: 500 * time.Millisecond,
	}
}

// Client talks to one chemvis server
type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for retry diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New validates cfg and creates a client
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "client"))
	return c, nil
}

// Upload sends a CSV or XLSX file and returns the stored summary. Uploads
// are never retried.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*domain.DatasetSummary, error) {
	const op = "upload"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, &TransportError{Op: op, Kind: KindNetwork, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &TransportError{Op: op, Kind: KindNetwork, Err: fmt.Errorf("read %s: %w", filename, err)}
	}
	if err := mw.Close(); err != nil {
		return nil, &TransportError{Op: op, Kind: KindNetwork, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/datasets", nil, &body)
	if err != nil {
		return nil, &TransportError{Op: op, Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, terr := c.do(op, req)
	if terr != nil {
		return nil, terr
	}
	defer resp.Body.Close()

	var summary domain.DatasetSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, &TransportError{Op: op, Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return &summary, nil
}

// History returns up to limit listings, newest first. limit <= 0 uses the
// server default.
func (c *Client) History(ctx context.Context, limit int) ([]domain.DatasetListing, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp api.ListDatasetsResponse
	if err := c.getJSON(ctx, "history", "/api/datasets", query, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Summary returns one stored summary
func (c *Client) Summary(ctx context.Context, id int64) (*domain.DatasetSummary, error) {
	var summary domain.DatasetSummary
	if err := c.getJSON(ctx, "summary", fmt.Sprintf("/api/datasets/%d", id), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Equipment fetches the uploaded rows of a retained summary
func (c *Client) Equipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error) {
	var records []domain.EquipmentRecord
	if err := c.getJSON(ctx, "equipment", fmt.Sprintf("/api/datasets/%d/equipment", id), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Report downloads a rendered report. An empty format selects PDF.
func (c *Client) Report(ctx context.Context, id int64, format string) ([]byte, error) {
	const op = "report"

	query := url.Values{}
	if format != "" {
		query.Set("format", format)
	}

	resp, err := c.getWithRetry(ctx, op, fmt.Sprintf("/api/datasets/%d/report", id), query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, rerr := io.ReadAll(resp.Body)
	if rerr != nil {
		return nil, &TransportError{Op: op, Kind: KindNetwork, StatusCode: resp.StatusCode, Err: rerr}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, dest any) error {
	resp, err := c.getWithRetry(ctx, op, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if derr := json.NewDecoder(resp.Body).Decode(dest); derr != nil {
		return &TransportError{Op: op, Kind: KindDecode, StatusCode: resp.StatusCode, Err: derr}
	}
	return nil
}

// getWithRetry issues a GET, retrying network errors, 429 and 5xx with
// exponential backoff. Retry-After wins over the computed delay.
func (c *Client) getWithRetry(ctx context.Context, op, path string, query url.Values) (*http.Response, error) {
	var lastErr *TransportError

	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			wait := c.backoffDelay(attempt, lastErr)
			c.logger.DebugContext(ctx, "retrying request",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", lastErr.Error()))

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, &TransportError{Op: op, Kind: KindNetwork, Err: ctx.Err()}
			case <-t.C:
			}
		}

		req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, &TransportError{Op: op, Kind: KindNetwork, Err: err}
		}

		resp, terr := c.do(op, req)
		if terr == nil {
			return resp, nil
		}
		if !terr.Retryable() || ctx.Err() != nil {
			return nil, terr
		}
		lastErr = terr
	}

	return nil, lastErr
}

func (c *Client) backoffDelay(attempt int, lastErr *TransportError) time.Duration {
	if lastErr != nil && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/problem+json, */*")
	req.Header.Set("User-Agent", contracts.UserAgent())
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	return req, nil
}

// do sends req and converts transport failures and non-2xx answers into a
// TransportError. On success the caller owns the response body.
func (c *Client) do(op string, req *http.Request) (*http.Response, *TransportError) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Kind: KindNetwork, Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	terr := &TransportError{
		Op:         op,
		Kind:       KindStatus,
		StatusCode: resp.StatusCode,
		retryAfter: resp.Header.Get("Retry-After"),
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var problem apierrors.ProblemDetails
	if len(body) > 0 && json.Unmarshal(body, &problem) == nil && problem.Status != 0 {
		terr.Problem = &problem
		terr.Err = &problem
	} else {
		terr.Err = errors.New(strings.TrimSpace(string(body)))
	}
	return nil, terr
}
