package services

import (
	"context"
	"fmt"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthService(timeout time.Duration) *HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthService{checks: map[string]Pinger{}, timeout: timeout}
}

// Register adds a named dependency. Nil pingers are ignored.
func (s *HealthService) Register(name string, p Pinger) *HealthService {
	if p != nil {
		s.checks[name] = p
	}
	return s
}

// Check pings every dependency and returns the per-dependency error, nil when healthy.
func (s *HealthService) Check(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := make(map[string]error, len(s.checks))
	for name, p := range s.checks {
		result[name] = p.Ping(ctx)
	}
	return result
}

func (s *HealthService) Get(ctx context.Context) error {
	for name, err := range s.Check(ctx) {
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
