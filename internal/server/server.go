package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/farellandr/aquapark/config"
	"github.com/farellandr/aquapark/internal/cache"
	"github.com/farellandr/aquapark/internal/handlers"
	"github.com/farellandr/aquapark/internal/logger"
	"github.com/farellandr/aquapark/internal/middleware"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/payment"
	"github.com/farellandr/aquapark/internal/repository"
	"github.com/farellandr/aquapark/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	logger.Init(&logger.Config{Level: cfg.LogLevel, ServiceName: "aquapark", Development: cfg.IsDevelopment()})
	log := logger.Get()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	redisClient, err := config.InitRedis(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, availability cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := config.InitPublisher(cfg, log)
	if closer, ok := publisher.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	processor := config.InitPaymentProcessor(cfg)
	availability := services.NewAvailabilityService(
		repository.NewAvailabilityRepository(db),
		cache.NewAvailabilityCache(redisClient, "aquapark", cfg.CacheTTL),
		log.Named("availability"),
	)
	orderRepo := repository.NewOrderRepository(db)
	orders := services.NewOrderService(orderRepo, repository.NewTicketTypeRepository(db), availability, processor, publisher, log.Named("orders"))
	orders.SetProcessorTimeout(cfg.ProcessorTimeout)

	registry := &services.Registry{
		Availability: availability,
		Orders:       orders,
		Redemption:   services.NewRedemptionService(orderRepo, publisher, log.Named("redemption")),
		Processor:    processor,
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())
	setupRoutes(r, db, registry)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("payment_provider", processor.Name()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupRoutes(r *gin.Engine, db *gorm.DB, registry *services.Registry) {
	r.Use(middleware.DatabaseMiddleware(db), middleware.ServicesMiddleware(registry))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := r.Group("/v1")
	{
		availability := public.Group("/availability")
		{
			availability.GET("/dates", handlers.GetActiveDates)
			availability.GET("/check", handlers.CheckAvailability)
		}

		public.GET("/tickets", handlers.ListTicketTypes)
		public.GET("/tickets/:ticketId", handlers.GetTicketType)

		orders := public.Group("/orders")
		{
			orders.POST("", middleware.OptionalJWTAuthMiddleware(), handlers.CreateOrder)
			orders.GET("/:orderId", handlers.GetOrder)
			orders.GET("/:orderId/qr", handlers.GetOrderQR)
		}

		payments := public.Group("/payments")
		{
			payments.POST("/webhook", handlers.PaymentWebhook)
			payments.GET("/return", handlers.PaymentReturn)
			if _, ok := registry.Processor.(*payment.SandboxProcessor); ok {
				payments.GET("/sandbox/checkout", handlers.SandboxCheckoutPage)
				payments.POST("/sandbox/checkout", handlers.SandboxCheckout)
			}
		}

		public.POST("/staff/login", handlers.StaffLogin)
		public.POST("/customers/register", handlers.CustomerRegister)
		public.POST("/customers/login", handlers.CustomerLogin)
	}

	customer := r.Group("/v1/customers/me")
	customer.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(models.RoleCustomer))
	{
		customer.GET("", handlers.CustomerMe)
		customer.GET("/orders", handlers.CustomerOrders)
		customer.PUT("/password", handlers.ChangeCustomerPassword)
	}

	staff := r.Group("/v1/staff")
	staff.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(models.RoleStaff, models.RoleAdmin))
	{
		staff.GET("/me", handlers.StaffMe)
		staff.GET("/tickets/:code", handlers.LookupTicket)
		staff.POST("/tickets/validate", handlers.ValidateTicket)
	}

	admin := r.Group("/v1/admin")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(models.RoleAdmin))
	{
		availability := admin.Group("/availability")
		{
			availability.GET("", handlers.ListAvailability)
			availability.POST("", handlers.CreateAvailability)
			availability.PUT("/:date", handlers.UpdateAvailability)
			availability.DELETE("/:date", handlers.DeleteAvailability)
		}

		orders := admin.Group("/orders")
		{
			orders.GET("", handlers.ListOrders)
			orders.GET("/stats", handlers.GetOrderStats)
			orders.POST("/:orderId/cancel", handlers.CancelOrder)
			orders.POST("/:orderId/refund", handlers.RefundOrder)
		}

		tickets := admin.Group("/tickets")
		{
			tickets.GET("", handlers.ListTicketTypes)
			tickets.POST("", handlers.CreateTicketType)
			tickets.PUT("/:ticketId", handlers.UpdateTicketType)
			tickets.DELETE("/:ticketId", handlers.DeleteTicketType)
		}

		staffAdmin := admin.Group("/staff")
		{
			staffAdmin.GET("", handlers.ListStaff)
			staffAdmin.POST("", handlers.CreateStaff)
			staffAdmin.DELETE("/:id", handlers.DeleteStaff)
		}
	}
}
