package venue

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

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderRequest is a single market order sent to the venue.
type OrderRequest struct {
	Contract  string
	Amount    decimal.Decimal
	Direction string
}

// OrderResult is the venue's answer to an order. A rejected order is reported through
// Success=false and ErrorMessage; transport failures are returned as errors instead.
type OrderResult struct {
	Success       bool
	ExecutedPrice decimal.Decimal
	ErrorMessage  string
}

// Venue executes orders and reports the account balance.
type Venue interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// Options parameterise the HTTP venue client.
type Options struct {
	Endpoint  string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the trade API over HTTP.
type Client struct {
	opts     Options
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewClient constructs a venue client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		opts:     opts,
		endpoint: strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "venue").Logger(),
	}
}

type orderPayload struct {
	Contract  string      `json:"contract"`
	Amount    json.Number `json:"amount"`
	Direction string      `json:"direction"`
	APIKey    string      `json:"apiKey"`
}

type orderResponse struct {
	Price *decimal.Decimal `json:"price"`
}

type balanceResponse struct {
	Balance *decimal.Decimal `json:"balance"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// PlaceOrder posts the order and returns the executed price reported by the venue.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if c.endpoint == "" {
		return OrderResult{}, errors.New("venue endpoint not configured")
	}

	body, err := json.Marshal(orderPayload{
		Contract:  req.Contract,
		Amount:    json.Number(req.Amount.String()),
		Direction: req.Direction,
		APIKey:    c.opts.APIKey,
	})
	if err != nil {
		return OrderResult{}, fmt.Errorf("marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return OrderResult{}, fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(httpReq)

	status, payload, err := c.do(httpReq)
	if err != nil {
		return OrderResult{}, fmt.Errorf("send order: %w", err)
	}

	if status < 200 || status >= 300 {
		return OrderResult{Success: false, ErrorMessage: rejectionReason(status, payload)}, nil
	}

	var res orderResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}
	if res.Price == nil {
		return OrderResult{}, errors.New("order response missing price")
	}

	c.logger.Debug().Str("contract", req.Contract).Str("direction", req.Direction).
		Str("amount", req.Amount.String()).Str("price", res.Price.String()).Msg("order filled")
	return OrderResult{Success: true, ExecutedPrice: *res.Price}, nil
}

// Balance queries the account balance.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	if c.endpoint == "" {
		return decimal.Decimal{}, errors.New("venue endpoint not configured")
	}

	u, err := url.Parse(c.endpoint + "/balance")
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse balance url: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", c.opts.APIKey)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create balance request: %w", err)
	}
	c.setCommonHeaders(httpReq)

	status, payload, err := c.do(httpReq)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("query balance: %w", err)
	}
	if status < 200 || status >= 300 {
		return decimal.Decimal{}, fmt.Errorf("balance rejected: %s", rejectionReason(status, payload))
	}

	var res balanceResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode balance response: %w", err)
	}
	if res.Balance == nil {
		return decimal.Decimal{}, errors.New("balance response missing balance")
	}
	return *res.Balance, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, payload, nil
}

func rejectionReason(status int, payload []byte) string {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	if text := strings.TrimSpace(string(payload)); text != "" {
		return fmt.Sprintf("http %d: %s", status, text)
	}
	return fmt.Sprintf("http %d", status)
}

var _ Venue = (*Client)(nil)
