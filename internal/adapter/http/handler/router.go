package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimits     *middleware.RateLimitRules // nil = DefaultRateLimitRules
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte // nil = no /swagger routes
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodySize))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	registerSwagger(r, deps.OpenAPISpec)

	rules := middleware.DefaultRateLimitRules()
	if deps.RateLimits != nil {
		rules = *deps.RateLimits
	}
	read := middleware.RateLimiter(deps.RateLimitStore, middleware.GroupRead, rules.Read, deps.Logger)
	write := middleware.RateLimiter(deps.RateLimitStore, middleware.GroupWrite, rules.Write, deps.Logger)

	v1 := r.Group("/api/v1")

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.LedgerSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.POST("", write, walletHandler.Create)
		wallets.GET("", read, walletHandler.List)
		wallets.GET("/:id", read, walletHandler.Get)
		wallets.PATCH("/:id", write, walletHandler.Rename)
		wallets.DELETE("/:id", write, walletHandler.Delete)
		wallets.GET("/:id/transactions", read, walletHandler.ListTransactions)
		wallets.POST("/:id/recompute", write, walletHandler.Recompute)
	}

	txHandler := NewTransactionHandler(deps.LedgerSvc, deps.WalletSvc)
	transactions := v1.Group("/transactions")
	{
		transactions.POST("", write, txHandler.Create)
		transactions.GET("/:id", read, txHandler.Get)
		transactions.PATCH("/:id", write, txHandler.Update)
		transactions.DELETE("/:id", write, txHandler.Delete)
	}

	return r
}
