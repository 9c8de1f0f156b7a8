package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/credit-gateway/internal/catalog"
	"github.com/nimasrn/credit-gateway/internal/config"
	gateway "github.com/nimasrn/credit-gateway/internal/gateways"
	"github.com/nimasrn/credit-gateway/internal/handlers"
	"github.com/nimasrn/credit-gateway/internal/idempotency"
	"github.com/nimasrn/credit-gateway/internal/repository"
	"github.com/nimasrn/credit-gateway/internal/services"
	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"github.com/nimasrn/credit-gateway/pkg/prom"
	"github.com/nimasrn/credit-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	// the env file may have changed LOG_ENV / LOG_LEVEL
	if _, err := logger.NewLogger(logger.ConfigFromEnv()); err != nil {
		logger.Error("failed to rebuild logger", "error", err)
	}
	defer logger.Sync()
	cfg := config.Get()
	logger.Info("starting credit gateway api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	// transport
	s := xhttp.NewServer(xhttp.ServerOption{
		Name:            cfg.AppName,
		ReadBufferSize:  cfg.HttpServerReadBufferSize,
		WriteBufferSize: cfg.HttpServerWriteBufferSize,
	})
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.RecoverMiddleware)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	defer db.Close()

	if cfg.AppDebugMetricsAddr != "" {
		if err := prom.Create(hostname(), cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed registering metrics", "error", err)
		}
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	packages, err := catalog.Load(cfg.CreditPackagesFile)
	if err != nil {
		logger.Error("failed loading credit packages", "path", cfg.CreditPackagesFile, "error", err)
		return
	}

	gw, err := gateway.NewClient(&gateway.Config{
		Name:                    "razorpay",
		BaseURL:                 cfg.RazorpayBaseUrl,
		KeyID:                   cfg.RazorpayKeyID,
		KeySecret:               cfg.RazorpayKeySecret,
		Timeout:                 cfg.RazorpayTimeout,
		MaxConns:                64,
		CircuitBreakerThreshold: cfg.GatewayCircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.GatewayCircuitBreakerTimeout,
	})
	if err != nil {
		logger.Error("failed creating payment gateway client", "error", err)
		return
	}
	defer gw.Close()
	if cfg.RazorpayKeySecret == "" {
		logger.Warn("RAZORPAY_KEY_SECRET is not set, orders and verification will fail")
	}

	// repositories
	userRepo := repository.NewUserRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// services
	healthService := services.NewHealthService(0).Register("postgres", db).Register("payment_gateway", gw)
	ledgerService := services.NewLedgerService(userRepo, transactionRepo, db, services.LedgerConfig{
		InitialGrant: cfg.LedgerInitialGrant,
		HistoryLimit: cfg.LedgerHistoryLimit,
	})
	paymentService := services.NewPaymentService(userRepo, transactionRepo, db, gw, packages, services.PaymentConfig{
		Currency: cfg.PaymentCurrency,
		KeyID:    gw.KeyID(),
	})

	if cfg.RedisEnabled() {
		redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{cfg.RedisAddr},
			ClientName: cfg.AppName,
			DB:         cfg.RedisDatabase,
			Username:   cfg.RedisUsername,
			Password:   cfg.RedisPassword,
		})
		if err != nil {
			logger.Warn("redis unavailable, settling without lease", "error", err)
		} else {
			defer redis.CloseAll()
			healthService.Register("redis", redisAdap)
			paymentService.WithSettlementGuard(idempotency.NewGuard(redisAdap, idempotency.Config{
				LockTTL: cfg.SettlementLockTTL,
			}))
		}
	}

	if cfg.AuthJwtSecret == "" {
		logger.Warn("AUTH_JWT_SECRET is not set, authenticated routes will reject every request")
	}
	auth := xhttp.AuthMiddleware([]byte(cfg.AuthJwtSecret))

	// v1 handlers
	creditHandler := handlers.NewCreditHandler(paymentService, ledgerService)
	userHandler := handlers.NewUserHandler(ledgerService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group(cfg.HttpBaseRequestUrl)
	handlers.RegisterCreditRoutes(g, creditHandler, auth)
	handlers.RegisterUserRoutes(g, userHandler, auth)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Stat(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
