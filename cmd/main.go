package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"aftersale-service/internal/clients"
	"aftersale-service/internal/config"
	"aftersale-service/internal/events"
	"aftersale-service/internal/handlers"
	"aftersale-service/internal/middleware"
	"aftersale-service/internal/models"
	"aftersale-service/internal/pricing"
	"aftersale-service/internal/reconcile"
	"aftersale-service/internal/refund"
	"aftersale-service/internal/repository"
	"aftersale-service/internal/services"
	"aftersale-service/internal/subscribers"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Aftersale Service API
// @version 1.0
// @description Order cancellation, return, and refund workflows for e-commerce orders
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Auto-migrate database schema
	if err := migrateDatabase(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis client (optional - graceful degradation if Redis unavailable)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Failed to parse Redis URL: %v", err)
			log.Println("Continuing without Redis caching...")
		} else {
			redisClient = redis.NewClient(opt)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Printf("Warning: Failed to connect to Redis: %v", err)
				log.Println("Continuing without Redis caching...")
				redisClient = nil
			} else {
				log.Println("✓ Connected to Redis for caching")
			}
		}
	} else {
		log.Println("REDIS_URL not configured, caching disabled")
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db, redisClient)
	returnRepo := repository.NewReturnRepository(db)
	cancellationRepo := repository.NewCancellationRepository(db)
	policyRepo := repository.NewRefundPolicyRepository(db)

	// Initialize clients
	catalogClient := clients.NewCatalogClient(cfg.Clients.CatalogServiceURL)
	paymentClient := clients.NewPaymentClient(cfg.Clients.PaymentServiceURL)
	log.Println("Catalog and payment clients initialized")

	// Structured logger shared by the domain components
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize pricing and refund computation
	pricer := pricing.NewResolver(logger)
	refundEngine := refund.NewEngine(pricer, logger)
	viewBuilder := reconcile.NewBuilder(pricer, logger)

	// Initialize NATS events publisher for real-time admin notifications
	var eventsPublisher *events.Publisher
	eventsPublisher, err = events.NewPublisher(logger)
	if err != nil {
		log.Printf("WARNING: Failed to initialize NATS events publisher: %v (continuing without real-time notifications)", err)
		eventsPublisher = nil
	} else {
		log.Println("NATS events publisher initialized for real-time admin notifications")
	}

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.IsProduction() {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("aftersale-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("aftersale-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("tesseract", "aftersale_service")
	log.Println("✓ Prometheus metrics initialized")

	// Initialize RBAC client and middleware
	staffServiceURL := os.Getenv("STAFF_SERVICE_URL")
	if staffServiceURL == "" {
		staffServiceURL = "http://staff-service:8080"
	}
	rbacMiddleware := rbac.NewMiddlewareWithURL(staffServiceURL, nil)
	log.Println("✓ RBAC middleware initialized")

	// Initialize services
	orderService := services.NewOrderService(orderRepo, cancellationRepo, returnRepo, viewBuilder, pricer, catalogClient, eventsPublisher, logger)
	returnService := services.NewReturnService(returnRepo, orderRepo, policyRepo, refundEngine, pricer, paymentClient, eventsPublisher, logger)
	cancellationService := services.NewCancellationService(cancellationRepo, orderRepo, policyRepo, refundEngine, catalogClient, paymentClient, eventsPublisher, logger)
	refundPolicyService := services.NewRefundPolicyService(policyRepo, logger)
	guestTokenService := services.NewGuestTokenService(cfg.Guest.TokenSecret, cfg.Guest.TokenTTL)

	// Initialize approval event subscriber for high-value refund decisions
	approvalSubscriber, err := subscribers.NewApprovalSubscriber(cancellationService, returnService, logger)
	if err != nil {
		log.Printf("WARNING: Failed to initialize approval subscriber: %v (approval decisions will not be executed automatically)", err)
		approvalSubscriber = nil
	} else {
		subCtx := context.Background()
		if err := approvalSubscriber.Start(subCtx); err != nil {
			log.Printf("WARNING: Failed to start approval subscriber: %v", err)
			approvalSubscriber = nil
		} else {
			log.Println("✓ Approval event subscriber started")
		}
	}

	// Initialize handlers
	orderHandler := handlers.NewOrderHandler(orderService, guestTokenService)
	returnHandler := handlers.NewReturnHandlers(returnService)
	cancellationHandler := handlers.NewCancellationHandler(cancellationService)
	refundPolicyHandler := handlers.NewRefundPolicyHandler(refundPolicyService)
	guestOrderHandler := handlers.NewGuestOrderHandler(orderService, cancellationService, guestTokenService)

	// Setup router
	router := setupRouter(cfg, orderHandler, returnHandler, cancellationHandler, refundPolicyHandler, guestOrderHandler, metrics, rbacMiddleware)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down Aftersale Service...")

		// Stop approval subscriber
		if approvalSubscriber != nil {
			approvalSubscriber.Stop()
			log.Println("✓ Approval subscriber stopped")
		}

		// Close events publisher
		if eventsPublisher != nil {
			eventsPublisher.Close()
			log.Println("✓ Events publisher closed")
		}

		// Shutdown tracer provider
		if tracerProvider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer provider: %v", err)
			} else {
				log.Println("✓ Tracer provider shut down")
			}
		}

		log.Println("Aftersale service stopped")
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting Aftersale Service on %s", cfg.GetServerAddress())
	if err := router.Run(cfg.GetServerAddress()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initDatabase initializes the database connection
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// migrateDatabase runs database migrations
func migrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderTimeline{},
		&models.RefundSummaryEntry{},
		&models.CancellationRequest{},
		&models.ReturnRequest{},
		&models.ReturnTimeline{},
		&models.RefundPolicySettings{},
	)
}

// setupRouter configures the Gin router with middleware and routes
func setupRouter(cfg *config.Config, orderHandler *handlers.OrderHandler, returnHandler *handlers.ReturnHandlers, cancellationHandler *handlers.CancellationHandler, refundPolicyHandler *handlers.RefundPolicyHandler, guestOrderHandler *handlers.GuestOrderHandler, metrics *gosharedmw.Metrics, rbacMw *rbac.Middleware) *gin.Engine {
	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Setup middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())

	// Security headers middleware
	router.Use(gosharedmw.SecurityHeaders())

	// Rate limiting middleware (uses Redis for distributed rate limiting)
	router.Use(gosharedmw.RateLimit())
	log.Println("✓ Rate limiting enabled")

	router.Use(middleware.SetupCORS())

	// Add observability middleware (metrics + tracing)
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("aftersale-service"))

	// Health check endpoint
	router.GET("/health", orderHandler.HealthCheck)
	router.GET("/ready", orderHandler.HealthCheck)
	router.GET("/metrics", gosharedmw.Handler())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes - require tenant ID for multi-tenant data isolation
	api := router.Group("/api/v1")

	// Authentication middleware using Istio JWT claims
	// Istio validates JWT and injects x-jwt-claim-* headers
	api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
		RequireAuth:        true,
		AllowLegacyHeaders: false,
		SkipPaths:          []string{"/health", "/ready", "/metrics", "/swagger"},
	}))
	{
		orders := api.Group("/orders")
		{
			// Read operations - require orders:view permission
			orders.GET("", rbacMw.RequirePermission(rbac.PermissionOrdersRead), orderHandler.ListOrders)
			orders.GET("/:id", rbacMw.RequirePermissionAllowInternal(rbac.PermissionOrdersRead), orderHandler.GetOrder)
			orders.GET("/:id/active-view", rbacMw.RequirePermissionAllowInternal(rbac.PermissionOrdersRead), orderHandler.GetActiveView)
			orders.GET("/:id/timeline", rbacMw.RequirePermission(rbac.PermissionOrdersRead), orderHandler.GetOrderTimeline)
			orders.GET("/:id/cancellations", rbacMw.RequirePermission(rbac.PermissionOrdersRead), cancellationHandler.GetOrderCancellations)
			orders.GET("/:id/returns", rbacMw.RequirePermission(rbac.PermissionReturnsRead), returnHandler.GetOrderReturns)
			orders.GET("/number/:orderNumber", rbacMw.RequirePermission(rbac.PermissionOrdersRead), orderHandler.GetOrderByNumber)

			// Create operations - require orders:create permission
			orders.POST("", rbacMw.RequirePermission(rbac.PermissionOrdersCreate), orderHandler.CreateOrder)

			// Update operations - require orders:update permission
			orders.PATCH("/:id/status", rbacMw.RequirePermission(rbac.PermissionOrdersUpdate), orderHandler.UpdateOrderStatus)

			// Guest self-service link for support staff to reissue
			orders.POST("/:id/guest-link", rbacMw.RequirePermission(rbac.PermissionOrdersUpdate), orderHandler.CreateGuestAccessLink)
		}

		cancellations := api.Group("/cancellations")
		{
			// Read operations
			cancellations.GET("", rbacMw.RequirePermission(rbac.PermissionOrdersRead), cancellationHandler.ListCancellations)
			cancellations.GET("/:id", rbacMw.RequirePermission(rbac.PermissionOrdersRead), cancellationHandler.GetCancellation)

			// Create operations
			cancellations.POST("", rbacMw.RequirePermission(rbac.PermissionOrdersCancel), cancellationHandler.CreateCancellation)

			// Refund preview, no state change
			cancellations.POST("/preview", rbacMw.RequirePermission(rbac.PermissionOrdersRead), cancellationHandler.PreviewRefund)

			// Decision operations
			cancellations.POST("/:id/approve", rbacMw.RequirePermission(rbac.PermissionOrdersCancel), cancellationHandler.ApproveCancellation)
			cancellations.POST("/:id/reject", rbacMw.RequirePermission(rbac.PermissionOrdersCancel), cancellationHandler.RejectCancellation)
		}

		returns := api.Group("/returns")
		{
			// Read operations
			returns.GET("", rbacMw.RequirePermission(rbac.PermissionReturnsRead), returnHandler.ListReturns)
			returns.GET("/stats", rbacMw.RequirePermission(rbac.PermissionReturnsRead), returnHandler.GetReturnStats)
			returns.GET("/rma/:rma", rbacMw.RequirePermission(rbac.PermissionReturnsRead), returnHandler.GetReturnByRMA)
			returns.GET("/:id", rbacMw.RequirePermission(rbac.PermissionReturnsRead), returnHandler.GetReturn)

			// Create operations
			returns.POST("", rbacMw.RequirePermission(rbac.PermissionReturnsCreate), returnHandler.CreateReturn)
			returns.PATCH("/:id", rbacMw.RequirePermission(rbac.PermissionReturnsCreate), returnHandler.UpdateReturnDetails)

			// Decision operations
			returns.POST("/:id/approve", rbacMw.RequirePermission(rbac.PermissionReturnsApprove), returnHandler.ApproveReturn)
			returns.POST("/:id/reject", rbacMw.RequirePermission(rbac.PermissionReturnsReject), returnHandler.RejectReturn)

			// Lifecycle operations
			returns.PATCH("/:id/status", rbacMw.RequirePermission(rbac.PermissionReturnsInspect), returnHandler.UpdateReturnStatus)
			returns.POST("/:id/cancel", rbacMw.RequirePermission(rbac.PermissionReturnsReject), returnHandler.CancelReturn)
		}

		// Refund policy settings (admin)
		settings := api.Group("/settings")
		{
			settings.GET("/refund-policy", rbacMw.RequirePermission("settings:store:view"), refundPolicyHandler.GetSettings)
			settings.PUT("/refund-policy", rbacMw.RequirePermission("settings:store:edit"), refundPolicyHandler.UpdateSettings)
		}
	}

	// Public storefront endpoints for customer-facing aftersale operations
	customerStorefront := router.Group("/api/v1/storefront/my")
	customerStorefront.Use(middleware.RequireTenantID())
	customerStorefront.Use(middleware.CustomerAuthMiddleware())
	{
		// Customers can view reconciled order state and file requests against their own orders
		customerStorefront.GET("/orders/:id/active-view", orderHandler.GetActiveView)
		customerStorefront.POST("/cancellations", cancellationHandler.CreateCancellation)
		customerStorefront.POST("/returns", returnHandler.CreateReturn)
		customerStorefront.POST("/returns/:id/cancel", returnHandler.CancelReturn)
	}

	// Public refund policy text and tokenized guest order access
	public := router.Group("/api/v1/public")
	{
		public.GET("/settings/refund-policy", refundPolicyHandler.GetPublicSettings)

		guestOrders := public.Group("/orders")
		guestOrders.Use(middleware.RequireTenantID())
		{
			guestOrders.GET("/lookup", guestOrderHandler.LookupOrder)
			guestOrders.POST("/cancel", guestOrderHandler.RequestCancellation)
		}
	}
	log.Println("✓ Public storefront endpoints initialized")

	return router
}
