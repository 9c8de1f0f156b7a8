package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gateway "github.com/nimasrn/credit-gateway/internal/gateways"
	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/internal/repository"
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"github.com/nimasrn/credit-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func SetupTestDB(t *testing.T) *pg.DB {
	return repository.NewTestDB(t)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redis.Wrap(client, "test")
}

// CreateTestUser inserts a user with an arbitrary balance, bypassing the
// registration grant.
func CreateTestUser(t *testing.T, db *pg.DB, id string, balance int64) *model.User {
	user, created, err := repository.NewUserRepository(db).CreateIfNotExists(context.Background(), &model.User{
		ID:            id,
		Email:         id + "@example.com",
		CreditBalance: balance,
	})
	require.NoError(t, err)
	require.True(t, created)
	return user
}

// FakeProvider serves the provider's orders API from memory.
type FakeProvider struct {
	KeyID     string
	KeySecret string

	listener *fasthttputil.InmemoryListener
	fail     atomic.Bool
	seq      atomic.Int64
	mu       sync.Mutex
	orders   map[string]gateway.OrderResponse
}

func StartFakeProvider(t *testing.T, keyID, keySecret string) *FakeProvider {
	p := &FakeProvider{
		KeyID:     keyID,
		KeySecret: keySecret,
		listener:  fasthttputil.NewInmemoryListener(),
		orders:    map[string]gateway.OrderResponse{},
	}
	server := &fasthttp.Server{Handler: p.handle}
	go func() { _ = server.Serve(p.listener) }()
	t.Cleanup(func() { _ = p.listener.Close() })
	return p
}

// SetFailing makes every order request answer 503.
func (p *FakeProvider) SetFailing(fail bool) {
	p.fail.Store(fail)
}

func (p *FakeProvider) Dial(string) (net.Conn, error) {
	return p.listener.Dial()
}

func (p *FakeProvider) Orders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

// Checkout returns the signed triple the checkout widget would hand back.
func (p *FakeProvider) Checkout(orderID string) model.VerifyPaymentRequest {
	paymentID := fmt.Sprintf("pay_%d", p.seq.Add(1))
	return model.VerifyPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: gateway.Sign(p.KeySecret, orderID, paymentID),
	}
}

func (p *FakeProvider) GatewayConfig() *gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.BaseURL = "http://provider.test"
	cfg.KeyID = p.KeyID
	cfg.KeySecret = p.KeySecret
	cfg.Timeout = 2 * time.Second
	cfg.CircuitBreakerThreshold = 100
	cfg.Dial = p.Dial
	return &cfg
}

func (p *FakeProvider) handle(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	if p.fail.Load() {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetBodyString(`{"error":{"code":"SERVER_ERROR","description":"unavailable"}}`)
		return
	}

	var req struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":{"code":"BAD_REQUEST_ERROR","description":"bad json"}}`)
		return
	}

	order := gateway.OrderResponse{
		ID:       fmt.Sprintf("order_%d", p.seq.Add(1)),
		Entity:   "order",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	p.mu.Lock()
	p.orders[order.ID] = order
	p.mu.Unlock()

	body, _ := json.Marshal(order)
	ctx.SetBody(body)
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
