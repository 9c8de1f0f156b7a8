package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/nimasrn/credit-gateway/pkg/redis"
)

var (
	ErrLeaseHeld         = errors.New("settlement lease held by another request")
	ErrLockAcquireFailed = errors.New("failed to acquire settlement lease")
)

type Config struct {
	LockTTL time.Duration

	LockKeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		LockTTL:       30 * time.Second,
		LockKeyPrefix: "settle:lock:",
	}
}

// Guard hands out short-lived per-order leases so that only one request at a
// time runs the settlement path for a given order. It narrows duplicate work;
// correctness of the ledger does not depend on it.
type Guard struct {
	redis  redis.RedisAdapter
	config Config
}

func NewGuard(redisAdapter redis.RedisAdapter, config Config) *Guard {
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultConfig().LockTTL
	}
	if config.LockKeyPrefix == "" {
		config.LockKeyPrefix = DefaultConfig().LockKeyPrefix
	}
	return &Guard{
		redis:  redisAdapter,
		config: config,
	}
}

type Lease struct {
	OrderID    string
	AcquiredAt time.Time
	token      []byte
	guard      *Guard
}

func (g *Guard) key(orderID string) string {
	return g.config.LockKeyPrefix + orderID
}

// Acquire takes the lease for orderID. ErrLeaseHeld means another holder is
// active; ErrLockAcquireFailed wraps transport errors.
func (g *Guard) Acquire(ctx context.Context, orderID string) (*Lease, error) {
	token := []byte(uuid.NewString())

	acquired, err := g.redis.SetNX(ctx, g.key(orderID), token, g.config.LockTTL)
	if err != nil {
		logger.Error("failed to acquire settlement lease", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	if !acquired {
		logger.Info("settlement lease already held", "order_id", orderID)
		return nil, ErrLeaseHeld
	}

	logger.Debug("settlement lease acquired", "order_id", orderID, "ttl", g.config.LockTTL)

	return &Lease{
		OrderID:    orderID,
		AcquiredAt: time.Now(),
		token:      token,
		guard:      g,
	}, nil
}

// Release drops the lease if this holder still owns it. A lease that expired
// and was taken by someone else is left alone.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.guard == nil {
		return nil
	}

	g := l.guard
	l.guard = nil

	deleted, err := g.redis.DelIfEqual(ctx, g.key(l.OrderID), l.token)
	if err != nil {
		logger.Warn("failed to release settlement lease", "order_id", l.OrderID, "error", err)
		return err
	}
	if !deleted {
		logger.Warn("settlement lease expired before release",
			"order_id", l.OrderID,
			"held_for", time.Since(l.AcquiredAt))
	}
	return nil
}
