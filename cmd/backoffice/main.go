package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lolo262652/amg-jewelry-manager/internal/auth"
	"github.com/lolo262652/amg-jewelry-manager/internal/config"
	"github.com/lolo262652/amg-jewelry-manager/internal/metrics"
	"github.com/lolo262652/amg-jewelry-manager/internal/middleware"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/entity"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/handler"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/repository"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/sequence"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/service"
	"github.com/lolo262652/amg-jewelry-manager/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting amg back-office",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Supplier{},
		&entity.Product{},
		&entity.SupplierOrder{},
		&entity.OrderItem{},
		&entity.ActivityLog{},
		&auth.User{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// Redis 关闭时退化为单进程：进程内锁 + 内存会话
	var (
		locker   sequence.Locker
		sessions auth.SessionStore
	)
	if cfg.Redis.Enabled {
		rdb := initRedis(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		cancel()
		locker = sequence.NewRedisLocker(rdb, cfg.Order.NumberLockTTL, cfg.Order.NumberLockRetry)
		sessions = auth.NewRedisSessionStore(rdb)
	} else {
		zapLogger.Warn("Redis disabled, order numbers are only safe with a single instance")
		locker = sequence.NewLocalLocker()
		sessions = auth.NewMemorySessionStore()
	}

	// Load 已校验过时区
	loc, _ := time.LoadLocation(cfg.Order.Timezone)

	m := metrics.New(nil)

	orderSvc := service.NewOrderService(db, repository.NewRepositories(db),
		sequence.NewGenerator(time.Now, loc), locker, zapLogger)
	orderSvc.SetMetrics(m)

	authSvc := auth.NewService(auth.NewUserRepository(db), sessions, cfg.JWT, zapLogger)

	var store *storage.Client
	if cfg.MinIO.Endpoint != "" {
		store, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			zapLogger.Fatal("Failed to init minio", zap.Error(err))
		}
		bucketCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureBuckets(bucketCtx); err != nil {
			zapLogger.Warn("Ensure buckets failed", zap.Error(err))
		}
		cancel()
	} else {
		zapLogger.Info("MinIO not configured, uploads disabled")
	}

	handlers := handler.NewHandlers(orderSvc, authSvc, store)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, db, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// 唯一索引冲突映射为 gorm.ErrDuplicatedKey，订单编号重试依赖它
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/sign-up", h.Auth.SignUp)
			authGroup.POST("/sign-in", h.Auth.SignIn)
			authGroup.POST("/refresh", h.Auth.Refresh)
			authGroup.POST("/sign-out", h.Auth.SignOut)
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			protected.GET("/auth/me", h.Auth.Me)
			protected.PUT("/auth/me", h.Auth.UpdateMe)

			orders := protected.Group("/supplier-orders")
			{
				orders.GET("", h.Order.ListOrders)
				orders.GET("/export", h.Order.ExportOrders)
				orders.POST("", h.Order.CreateOrder)
				orders.GET("/:id", h.Order.GetOrder)
				orders.PUT("/:id", h.Order.UpdateOrder)
				orders.DELETE("/:id", h.Order.DeleteOrder)
				orders.POST("/:id/items", h.Order.AddItems)
				orders.POST("/:id/cancel", h.Order.CancelOrder)
				orders.POST("/:id/status", h.Order.UpdateStatus)
				orders.PUT("/:id/reception", h.Order.UpdateReception)
				orders.GET("/:id/activity", h.Order.ListActivity)
			}

			if h.Upload != nil {
				protected.POST("/uploads/:bucket", h.Upload.Upload)
			}
		}
	}
}
