package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/yourorg/payment-adapter/internal/config"
	"github.com/yourorg/payment-adapter/internal/engine"
	"github.com/yourorg/payment-adapter/internal/gateway"
	"github.com/yourorg/payment-adapter/internal/gateway/paypal"
	"github.com/yourorg/payment-adapter/internal/gateway/square"
	"github.com/yourorg/payment-adapter/internal/gateway/stripe"
	"github.com/yourorg/payment-adapter/internal/logging"
	"github.com/yourorg/payment-adapter/internal/monitoring"
	"github.com/yourorg/payment-adapter/internal/policy"
	"github.com/yourorg/payment-adapter/internal/router"
	"github.com/yourorg/payment-adapter/internal/router/circuitbreaker"
	"github.com/yourorg/payment-adapter/internal/store"
)

const serviceName = "payment-adapter"

func main() {
	cfg := config.NewConfig()

	logger, err := logging.New(serviceName, cfg.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracer, err := monitoring.InitTracer(serviceName)
	if err != nil {
		logger.Fatal("init tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	calc, err := config.LoadFeeSchedule(cfg.FeeSchedulePath)
	if err != nil {
		logger.Fatal("load fee schedule", zap.Error(err))
	}

	enforcer, err := loadPolicy(logger)
	if err != nil {
		logger.Fatal("load routing policy", zap.Error(err))
	}

	txnStore := buildStore(cfg, logger)

	registry := gateway.NewRegistry(
		stripe.New(stripe.Config{
			BaseURL:       cfg.Gateways.Stripe.BaseURL,
			APIKey:        cfg.Gateways.Stripe.APIKey,
			WebhookSecret: cfg.Gateways.Stripe.WebhookSecret,
		}),
		paypal.New(paypal.Config{
			BaseURL:       cfg.Gateways.PayPal.BaseURL,
			APIKey:        cfg.Gateways.PayPal.APIKey,
			WebhookSecret: cfg.Gateways.PayPal.WebhookSecret,
		}),
		square.New(square.Config{
			BaseURL:       cfg.Gateways.Square.BaseURL,
			APIKey:        cfg.Gateways.Square.APIKey,
			WebhookSecret: cfg.Gateways.Square.WebhookSecret,
		}),
	)

	rt := router.New(calc, circuitbreaker.New(), enforcer, logger)
	eng := engine.New(registry, txnStore, calc, rt, engine.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}, logger)

	srv := &server{engine: eng, logger: logger}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))

	r.GET("/health", srv.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// Webhooks authenticate with gateway signatures, not the API key.
	r.POST("/webhook/:gateway", srv.handleWebhook)

	authed := r.Group("/", apiKeyAuth(cfg.APIKey))
	authed.POST("/process/:gateway", srv.processPayment)
	authed.POST("/process-optimized", srv.processOptimizedPayment)
	authed.POST("/refund/:gateway", srv.refundPayment)
	authed.POST("/void/:gateway/:transaction_id", srv.voidPayment)
	authed.POST("/capture/:gateway", srv.capturePayment)
	authed.POST("/recurring/:gateway", srv.setupRecurringPayment)
	authed.GET("/fee-comparison", srv.feeComparison)
	authed.GET("/transactions", srv.listTransactions)
	authed.GET("/transactions/summary", srv.transactionsSummary)
	authed.GET("/transactions/:id", srv.getTransaction)

	logger.Info("starting server", zap.String("port", cfg.Server.Port))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// apiKeyAuth rejects requests without the configured X-API-Key header.
func apiKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-Key") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// buildStore returns the Redis-backed store when caching is enabled and
// reachable, otherwise the in-memory store.
func buildStore(cfg *config.Config, logger *zap.Logger) store.TransactionStore {
	if !cfg.Cache.Enabled {
		return store.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.Host + ":" + cfg.Cache.Port,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory store", zap.Error(err))
		return store.NewMemoryStore()
	}
	logger.Info("using redis transaction store", zap.String("addr", cfg.Cache.Host+":"+cfg.Cache.Port))
	return store.NewRedisStore(client)
}

// loadPolicy compiles routing rules from POLICY_RULES_PATH when set.
func loadPolicy(logger *zap.Logger) (*policy.Enforcer, error) {
	path := os.Getenv("POLICY_RULES_PATH")
	if path == "" {
		return policy.NewEnforcer(nil)
	}
	rules, err := policy.LoadRules(path)
	if err != nil {
		return nil, err
	}
	logger.Info("routing policy loaded", zap.String("path", path), zap.Int("rules", len(rules)))
	return policy.NewEnforcer(rules)
}
