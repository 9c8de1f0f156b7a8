package main

import (
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gateway "github.com/nimasrn/credit-gateway/internal/gateways"
	"github.com/rs/zerolog/log"
)

const (
	OrderStatusCreated = "created"
	OrderStatusPaid    = "paid"
)

// CreateOrderRequest mirrors the provider's orders API.
type CreateOrderRequest struct {
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
	Receipt  string `json:"receipt"`
}

// CheckoutRequest drives the simulated customer payment.
type CheckoutRequest struct {
	// TamperSignature returns a signature that will not verify.
	TamperSignature bool `json:"tamper_signature"`
}

// CheckoutResponse is what the checkout widget hands back to the client.
type CheckoutResponse struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Orders      int       `json:"orders"`
	FailureRate float64   `json:"failure_rate"`
}

// MockProvider simulates the payment provider's order and checkout flow.
type MockProvider struct {
	keyID       string
	keySecret   string
	failureRate float64
	minDelay    time.Duration
	maxDelay    time.Duration

	mu     sync.Mutex
	orders map[string]*gateway.OrderResponse
	rng    *rand.Rand
}

func NewMockProvider(keyID, keySecret string, failureRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	return &MockProvider{
		keyID:       keyID,
		keySecret:   keySecret,
		failureRate: failureRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		orders:      make(map[string]*gateway.OrderResponse),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.failureRate
}

func (m *MockProvider) createOrder(req CreateOrderRequest) *gateway.OrderResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := &gateway.OrderResponse{
		ID:        newID("order_"),
		Entity:    "order",
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		Receipt:   req.Receipt,
		Status:    OrderStatusCreated,
		CreatedAt: time.Now().Unix(),
	}
	m.orders[order.ID] = order
	return order
}

func (m *MockProvider) order(id string) (gateway.OrderResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return gateway.OrderResponse{}, false
	}
	return *o, true
}

func (m *MockProvider) markPaid(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		o.Status = OrderStatusPaid
	}
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func providerError(c *gin.Context, status int, code, description string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": code, "description": description},
	})
}

// BasicAuth checks the key pair the gateway client sends.
func (h *Handler) BasicAuth(c *gin.Context) {
	user, pass, ok := c.Request.BasicAuth()
	if !ok || user != h.provider.keyID || pass != h.provider.keySecret {
		providerError(c, http.StatusUnauthorized, "BAD_REQUEST_ERROR", "Authentication failed")
		return
	}
	c.Next()
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		providerError(c, http.StatusBadRequest, "BAD_REQUEST_ERROR", err.Error())
		return
	}
	if req.Amount < 100 {
		providerError(c, http.StatusBadRequest, "BAD_REQUEST_ERROR", "The amount must be atleast INR 1.00")
		return
	}
	if len(req.Currency) != 3 {
		providerError(c, http.StatusBadRequest, "BAD_REQUEST_ERROR", "The currency is invalid")
		return
	}
	if len(req.Receipt) > 40 {
		providerError(c, http.StatusBadRequest, "BAD_REQUEST_ERROR", "The receipt may not be greater than 40 characters")
		return
	}

	time.Sleep(h.provider.randomDelay())

	if h.provider.shouldFail() {
		log.Warn().Str("receipt", req.Receipt).Msg("Simulated provider outage")
		providerError(c, http.StatusServiceUnavailable, "SERVER_ERROR", "The server is temporarily unavailable")
		return
	}

	order := h.provider.createOrder(req)
	log.Info().
		Str("order_id", order.ID).
		Int64("amount", order.Amount).
		Str("currency", order.Currency).
		Str("receipt", order.Receipt).
		Msg("Order created")

	c.JSON(http.StatusOK, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, ok := h.provider.order(c.Param("order_id"))
	if !ok {
		providerError(c, http.StatusNotFound, "BAD_REQUEST_ERROR", "The id provided does not exist")
		return
	}
	c.JSON(http.StatusOK, order)
}

// Checkout simulates the customer completing payment in the checkout widget
// and returns the signed triple the client posts to the verify endpoint.
func (h *Handler) Checkout(c *gin.Context) {
	orderID := c.Param("order_id")
	if _, ok := h.provider.order(orderID); !ok {
		providerError(c, http.StatusNotFound, "BAD_REQUEST_ERROR", "The id provided does not exist")
		return
	}

	var req CheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			providerError(c, http.StatusBadRequest, "BAD_REQUEST_ERROR", err.Error())
			return
		}
	}

	paymentID := newID("pay_")
	signature := gateway.Sign(h.provider.keySecret, orderID, paymentID)
	if req.TamperSignature {
		signature = gateway.Sign(h.provider.keySecret+"x", orderID, paymentID)
	}
	h.provider.markPaid(orderID)

	log.Info().
		Str("order_id", orderID).
		Str("payment_id", paymentID).
		Bool("tampered", req.TamperSignature).
		Msg("Checkout completed")

	c.JSON(http.StatusOK, CheckoutResponse{OrderID: orderID, PaymentID: paymentID, Signature: signature})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	h.provider.mu.Lock()
	orders := len(h.provider.orders)
	rate := h.provider.failureRate
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Orders:      orders,
		FailureRate: rate,
	})
}

// UpdateConfig changes the simulated failure rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		FailureRate *float64 `json:"failure_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	h.provider.mu.Lock()
	if config.FailureRate != nil && *config.FailureRate >= 0 && *config.FailureRate <= 1.0 {
		h.provider.failureRate = *config.FailureRate
		log.Info().Float64("rate", *config.FailureRate).Msg("Updated failure rate")
	}
	rate := h.provider.failureRate
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"failure_rate": rate})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/orders", handler.BasicAuth, handler.CreateOrder)
		v1.GET("/orders/:order_id", handler.BasicAuth, handler.GetOrder)
		v1.POST("/checkout/:order_id", handler.Checkout)
		v1.PUT("/config", handler.UpdateConfig)
	}
	router.GET("/health", handler.HealthCheck)

	return router
}
