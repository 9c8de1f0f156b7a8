package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/nimasrn/credit-gateway/pkg/prom"
	"github.com/valyala/fasthttp"
)

const (
	ordersPath = "/v1/orders"

	// MaxReceiptLength is the provider's limit on the receipt field.
	MaxReceiptLength = 40

	opCreateOrder = "create_order"
)

type Config struct {
	Name                    string
	BaseURL                 string
	KeyID                   string
	KeySecret               string
	Timeout                 time.Duration
	MaxConns                int
	ReadBufferSize          int
	WriteBufferSize         int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	// Dial overrides the transport, used to serve the client from memory in tests.
	Dial fasthttp.DialFunc
}

func DefaultConfig() Config {
	return Config{
		Name:                    "razorpay",
		BaseURL:                 "https://api.razorpay.com",
		Timeout:                 10 * time.Second,
		MaxConns:                64,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type OrderResponse struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Client talks to a Razorpay-compatible orders API. It never retries: a
// failed CreateOrder is reported to the caller once.
type Client struct {
	config  Config
	http    *fasthttp.Client
	metrics *ProviderMetrics
	breaker *circuitBreaker
	auth    string
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	cfg := *config
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     cfg.MaxConns,
		ReadTimeout:         cfg.Timeout,
		WriteTimeout:        cfg.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      cfg.ReadBufferSize,
		WriteBufferSize:     cfg.WriteBufferSize,
		Dial:                cfg.Dial,
	}

	client := &Client{
		config:  cfg,
		http:    httpClient,
		metrics: NewProviderMetrics(),
		breaker: newCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout),
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.KeyID+":"+cfg.KeySecret)),
	}

	if !client.configured() {
		logger.Warn("Payment gateway credentials missing, order creation will fail", "provider", cfg.Name)
	}
	logger.Info("Payment gateway client initialized", "provider", cfg.Name, "url", cfg.BaseURL, "timeout", cfg.Timeout)

	return client, nil
}

func (c *Client) configured() bool {
	return c.config.BaseURL != "" && c.config.KeyID != "" && c.config.KeySecret != ""
}

// KeyID is the public key the browser checkout needs.
func (c *Client) KeyID() string {
	return c.config.KeyID
}

// CreateOrder registers an order of amountMinor (smallest currency unit) and
// returns the provider's order id.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	if amountMinor <= 0 {
		return "", ErrInvalidAmount
	}
	if !c.configured() {
		return "", fmt.Errorf("%w: %w", ErrGatewayUnavailable, ErrGatewayNotConfigured)
	}
	if !c.breaker.Allow() {
		prom.ObserveGatewayRequest(opCreateOrder, prom.OutcomeRejected, 0)
		return "", fmt.Errorf("%w: %w", ErrGatewayUnavailable, ErrCircuitOpen)
	}

	if len(receipt) > MaxReceiptLength {
		receipt = receipt[:MaxReceiptLength]
	}
	reqBody, err := json.Marshal(createOrderRequest{Amount: amountMinor, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	startTime := time.Now()
	body, err := c.doRequest(ctx, fasthttp.MethodPost, ordersPath, reqBody)
	latency := time.Since(startTime)

	if err != nil {
		c.recordFailure(err)
		prom.ObserveGatewayRequest(opCreateOrder, prom.OutcomeFailure, latency.Seconds())
		logger.Warn("Create order failed", "provider", c.config.Name, "receipt", receipt, "error", err)
		return "", fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		c.recordFailure(err)
		prom.ObserveGatewayRequest(opCreateOrder, prom.OutcomeFailure, latency.Seconds())
		return "", fmt.Errorf("%w: malformed order response", ErrGatewayUnavailable)
	}

	c.metrics.RecordSuccess(latency.Milliseconds())
	c.breaker.OnSuccess()
	prom.SetCircuitOpen(c.config.Name, false)
	prom.ObserveGatewayRequest(opCreateOrder, prom.OutcomeSuccess, latency.Seconds())

	logger.Info("Order created at provider",
		"provider", c.config.Name,
		"order_id", resp.ID,
		"amount", resp.Amount,
		"currency", resp.Currency,
		"latency_ms", latency.Milliseconds())

	return resp.ID, nil
}

// VerifySignature checks a checkout signature against the key secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	return VerifySignature(c.config.KeySecret, orderID, paymentID, signature)
}

func (c *Client) recordFailure(err error) {
	var perr *ProviderError
	if errors.As(err, &perr) && !perr.Retryable() {
		// the provider answered; it is up
		c.metrics.RecordFailure()
		c.metrics.ConsecutiveFails.Store(0)
		c.breaker.OnSuccess()
		return
	}

	fails := c.metrics.RecordFailure()
	if c.breaker.OnFailure(fails) {
		prom.SetCircuitOpen(c.config.Name, true)
		logger.Warn("Circuit breaker opened",
			"provider", c.config.Name,
			"consecutive_fails", fails,
			"timeout", c.config.CircuitBreakerTimeout)
	}
}

// doRequest performs one HTTP request bounded by the ctx deadline or the client timeout.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set(fasthttp.HeaderAuthorization, c.auth)

	if body != nil {
		req.SetBody(body)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode > 299 {
		perr := &ProviderError{StatusCode: statusCode}
		var er errorResponse
		if json.Unmarshal(resp.Body(), &er) == nil {
			perr.Code = er.Error.Code
			perr.Description = er.Error.Description
		}
		return nil, perr
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

type ProviderStats struct {
	Name             string
	URL              string
	State            string
	Configured       bool
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

func (c *Client) Stats() ProviderStats {
	return ProviderStats{
		Name:             c.config.Name,
		URL:              c.config.BaseURL,
		State:            c.breaker.State().String(),
		Configured:       c.configured(),
		TotalRequests:    c.metrics.TotalRequests.Load(),
		SuccessfulReqs:   c.metrics.SuccessfulReqs.Load(),
		FailedReqs:       c.metrics.FailedReqs.Load(),
		SuccessRate:      c.metrics.SuccessRate(),
		AvgLatencyMs:     c.metrics.AvgLatencyMs(),
		P95LatencyMs:     c.metrics.P95LatencyMs(),
		LastLatencyMs:    c.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: c.metrics.ConsecutiveFails.Load(),
	}
}

// Ping reports the provider as unhealthy when credentials are missing or the
// circuit is open. It sends no request.
func (c *Client) Ping(context.Context) error {
	stats := c.Stats()
	if !stats.Configured {
		return ErrGatewayNotConfigured
	}
	if c.breaker.Cooling() {
		return fmt.Errorf("%w: %d consecutive failures, last latency %dms",
			ErrCircuitOpen, stats.ConsecutiveFails, stats.LastLatencyMs)
	}
	return nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	logger.Info("Payment gateway client closed", "provider", c.config.Name)
	return nil
}
