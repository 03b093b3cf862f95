package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/greenleaf/storefront-api/internal/assistant"
	"github.com/greenleaf/storefront-api/internal/config"
	"github.com/greenleaf/storefront-api/internal/handler"
	"github.com/greenleaf/storefront-api/internal/identity"
	"github.com/greenleaf/storefront-api/internal/middleware"
	"github.com/greenleaf/storefront-api/internal/repository"
	"github.com/greenleaf/storefront-api/internal/service"
	"github.com/greenleaf/storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	ticketRepo := repository.NewTicketRepository(dbPool)

	// Identity provider (local binding; swap for a hosted provider here)
	provider := identity.NewLocalProvider(userRepo, redisClient, identity.LogSender{Log: log}, cfg.Auth.OTPTTL)

	// Services
	authFlows := service.NewAuthFlowService(
		provider, cfg.Auth.AdminEmails,
		cfg.JWT.Secret, cfg.JWT.Expiration,
		cfg.Auth.ProviderTimeout, cfg.Auth.FlowTTL,
	)
	catalogSvc := service.NewCatalogService(productRepo, redisClient)
	cartSvc := service.NewCartService(cartRepo, productRepo)
	orderSvc := service.NewOrderService(orderRepo, cartRepo, service.AMQPOrderSink{Channel: amqpCh})
	ticketSvc := service.NewTicketService(ticketRepo)

	assistantClient := assistant.NewClient(cfg.Assistant.APIKey, cfg.Assistant.BaseURL, cfg.Assistant.Model, cfg.Assistant.Timeout)

	// Handlers
	authH := handler.NewAuthHandler(authFlows)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	cartH := handler.NewCartHandler(cartSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	ticketH := handler.NewTicketHandler(ticketSvc, authFlows)
	assistantH := handler.NewAssistantHandler(assistantClient)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Worker
	orderWorker := worker.NewOrderWorker(amqpCh, orderRepo, redisClient, log)

	// Router
	router := gin.Default()
	router.Use(middleware.Metrics())
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)
	router.GET("/metrics", middleware.MetricsHandler())

	authRequired := middleware.AuthMiddleware(cfg.JWT.Secret)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/flow", authH.StartFlow)
		auth.GET("/flow/:id", authH.GetFlow)
		auth.POST("/flow/:id/login", authH.Login)
		auth.POST("/flow/:id/signup", authH.GoToSignup)
		auth.POST("/flow/:id/register", authH.Register)
		auth.POST("/flow/:id/confirm-signup", authH.ConfirmSignupOtp)
		auth.POST("/flow/:id/forgot-password", authH.GoToForgotPassword)
		auth.POST("/flow/:id/request-reset", authH.ForgotPassword)
		auth.POST("/flow/:id/reset-code", authH.SubmitResetCode)
		auth.POST("/flow/:id/confirm-reset", authH.ConfirmResetAndSetPassword)
		auth.POST("/flow/:id/resend", authH.Resend)
		auth.POST("/flow/:id/back", authH.Back)
		auth.GET("/me", authRequired, authH.Me)
		auth.POST("/logout", authRequired, authH.Logout)

		products := v1.Group("/products")
		products.GET("", catalogH.List)
		products.GET("/:id", catalogH.GetByID)
		products.GET("/:id/reviews", catalogH.ListReviews)
		products.POST("/:id/reviews", authRequired, middleware.CustomerOnly(), catalogH.AddReview)

		adminProducts := products.Group("", authRequired, middleware.AdminOnly())
		adminProducts.POST("", catalogH.Create)
		adminProducts.PUT("/:id", catalogH.Update)
		adminProducts.DELETE("/:id", catalogH.Delete)

		categories := v1.Group("/categories")
		categories.GET("", catalogH.ListCategories)
		adminCategories := categories.Group("", authRequired, middleware.AdminOnly())
		adminCategories.POST("", catalogH.AddCategory)
		adminCategories.DELETE("/:name", catalogH.DeleteCategory)

		cart := v1.Group("/cart", authRequired, middleware.CustomerOnly())
		cart.GET("", cartH.GetCart)
		cart.POST("/items", cartH.AddItem)
		cart.PUT("/items/:productId", cartH.UpdateQuantity)
		cart.DELETE("/items/:productId", cartH.RemoveItem)

		orders := v1.Group("/orders", authRequired)
		orders.POST("", middleware.CustomerOnly(), orderH.Checkout)
		orders.GET("", orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)
		orders.POST("/:id/return", middleware.CustomerOnly(), orderH.RequestReturn)

		adminOrders := v1.Group("/admin/orders", authRequired, middleware.AdminOnly())
		adminOrders.GET("", orderH.ListAllOrders)
		adminOrders.PUT("/:id/status", orderH.UpdateStatus)

		tickets := v1.Group("/tickets")
		tickets.POST("", authRequired, ticketH.Create)
		adminTickets := tickets.Group("", authRequired, middleware.AdminOnly())
		adminTickets.GET("", ticketH.ListAll)
		adminTickets.PUT("/:id/resolve", ticketH.Resolve)

		v1.POST("/assistant/chat", assistantH.Chat)
	}

	authFlows.Start(ctx)

	if err := orderWorker.Start(ctx); err != nil {
		log.Error("start order worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	orderWorker.Stop()
	authFlows.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
