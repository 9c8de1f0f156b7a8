package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type settings struct {
	Addr        string        `env:"SANDBOX_LISTEN_ADDR"`
	KeyID       string        `env:"RAZORPAY_KEY_ID"`
	KeySecret   string        `env:"RAZORPAY_KEY_SECRET"`
	FailureRate float64       `env:"SANDBOX_FAILURE_RATE"`
	MinDelay    time.Duration `env:"SANDBOX_MIN_DELAY"`
	MaxDelay    time.Duration `env:"SANDBOX_MAX_DELAY"`
}

func loadSettings() (settings, error) {
	// a local .env is optional
	_ = godotenv.Load()

	s := settings{}
	if _, err := env.UnmarshalFromEnviron(&s); err != nil {
		return s, err
	}
	if s.Addr == "" {
		s.Addr = ":9090"
	}
	if s.KeyID == "" {
		s.KeyID = "rzp_test_sandbox"
	}
	if s.KeySecret == "" {
		s.KeySecret = "sandbox_secret"
	}
	if s.MaxDelay == 0 {
		s.MaxDelay = 200 * time.Millisecond
	}
	if s.MinDelay > s.MaxDelay {
		s.MinDelay = s.MaxDelay
	}
	return s, nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	s, err := loadSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sandbox settings")
	}

	log.Info().
		Str("addr", s.Addr).
		Str("key_id", s.KeyID).
		Float64("failure_rate", s.FailureRate).
		Dur("min_delay", s.MinDelay).
		Dur("max_delay", s.MaxDelay).
		Msg("starting payment provider sandbox")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	provider := NewMockProvider(s.KeyID, s.KeySecret, s.FailureRate, s.MinDelay, s.MaxDelay)

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           SetupRouter(NewHandler(provider)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("sandbox listen failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("sandbox shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("sandbox forced to shutdown")
	}
}
