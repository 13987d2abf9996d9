package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPClient implements Gateway against a REST payout API.
type HTTPClient struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type createRequest struct {
	ReferenceID string          `json:"reference_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Email       string          `json:"email"`
}

// response mirrors JSON payload from the payout provider.
type response struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type eligibilityResponse struct {
	Eligible bool `json:"eligible"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// NewHTTPClient creates HTTP payout client. timeout bounds each HTTP exchange.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse payout gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("payout gateway url must be absolute")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// CreatePayout registers a payout for the withdrawal.
func (c *HTTPClient) CreatePayout(ctx context.Context, req Request) (*Payout, error) {
	body := createRequest{
		ReferenceID: req.WithdrawalID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Email:       req.Email,
	}
	p, err := c.do(ctx, http.MethodPost, c.endpoint("/payouts"), body, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, ErrEmptyPayoutID
	}
	return p, nil
}

// CommitPayout confirms a previously created payout.
func (c *HTTPClient) CommitPayout(ctx context.Context, payoutID, idempotencyKey string) (*Payout, error) {
	p, err := c.do(ctx, http.MethodPost, c.endpoint("/payouts", payoutID, "commit"), nil, idempotencyKey)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case StatusRejected, StatusFailed, StatusCancelled:
		return nil, &RejectedError{Status: p.Status}
	}
	return p, nil
}

// VerifyEligibility asks the provider whether email can receive payouts.
func (c *HTTPClient) VerifyEligibility(ctx context.Context, email string) (bool, error) {
	endpoint := c.endpoint("/users/eligibility")
	q := endpoint.Query()
	q.Set("email", email)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, err
	}
	c.decorate(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var data eligibilityResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return false, err
		}
		return data.Eligible, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.failure(resp)
	}
}

func (c *HTTPClient) endpoint(parts ...string) url.URL {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(append([]string{endpoint.Path}, parts...)...)
	return endpoint
}

func (c *HTTPClient) decorate(req *http.Request, idempotencyKey string) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
}

func (c *HTTPClient) do(ctx context.Context, method string, endpoint url.URL, payload any, idempotencyKey string) (*Payout, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	c.decorate(req, idempotencyKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.failure(resp)
	}

	var data response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode payout response: %w", err)
	}
	return &Payout{ID: data.ID, Status: data.Status, Amount: data.Amount, Currency: data.Currency}, nil
}

// failure classifies a non-2xx response.
func (c *HTTPClient) failure(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var data errorResponse
		msg := string(body)
		if err := json.Unmarshal(body, &data); err == nil && data.Message != "" {
			msg = data.Message
		}
		return &RejectedError{StatusCode: resp.StatusCode, Message: msg}
	default:
		c.logger.Error("payout gateway request failed", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return fmt.Errorf("payout gateway error: %s", resp.Status)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
