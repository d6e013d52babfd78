package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/terms-api/internal/config"
	"github.com/yourusername/terms-api/internal/handler"
	"github.com/yourusername/terms-api/internal/middleware"
	pgRepo "github.com/yourusername/terms-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/terms-api/internal/repository/redis"
	"github.com/yourusername/terms-api/internal/service"
	"github.com/yourusername/terms-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	termsRepo := pgRepo.NewTermsRepo(db)
	userTermsRepo := pgRepo.NewUserTermsRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем сервисы
	termsService := service.NewTermsService(
		termsRepo,
		userTermsRepo,
		cacheRepo,
		cfg.Terms.DefaultSlug,
		cfg.Terms.CacheTTL(),
	)

	var emailService service.TermsEmailService = &service.NoopTermsEmailService{}
	if cfg.Email.Enabled {
		resendService, err := service.NewResendTermsEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
		emailService = resendService
	}

	// Инициализируем обработчики и middleware
	termsHandler := handler.NewTermsHandler(termsService, emailService)
	adminHandler := handler.NewAdminTermsHandler(termsService)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	termsGate := middleware.NewTermsGate(termsService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Настраиваем роутер
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		terms := api.Group("/terms")
		{
			terms.GET("", termsHandler.GetActiveList)
			terms.GET("/active", termsHandler.GetActive)
			terms.GET("/versions/:slug", termsHandler.ListVersions)
			terms.GET("/versions/:slug/:version", termsHandler.GetVersion)
			terms.POST("/email", rateLimiter.LimitByIP(middleware.EmailRateLimitConfig()), termsHandler.EmailTerms)

			authed := terms.Group("")
			authed.Use(authMiddleware.RequireAuth())
			{
				authed.POST("/accept", rateLimiter.Limit(middleware.AcceptRateLimitConfig()), termsHandler.Accept)
				authed.GET("/required", termsHandler.GetRequired)
				authed.GET("/agreed", termsHandler.GetAgreed)
				authed.GET("/acceptances", termsHandler.GetAcceptances)
			}
		}

		admin := api.Group("/admin/terms")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.RequireAdmin())
		{
			admin.POST("", adminHandler.CreateTerms)
			admin.POST("/:id/activate", adminHandler.ActivateTerms)
			admin.GET("/acceptances/export", adminHandler.ExportAcceptances)
		}

		// Пример защищенной зоны: сюда пускаем только после принятия всех активных условий
		protected := api.Group("/protected")
		protected.Use(authMiddleware.RequireAuth(), termsGate.RequireAcceptedTerms())
		{
			protected.GET("/ping", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})
		}
	}

	// Запускаем HTTP сервер с поддержкой graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Сервер запущен на порту %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Ошибка HTTP сервера: %v", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка при остановке сервера: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Ошибка при закрытии Redis клиента: %v", err)
	}

	if sqlDB, err := database.GetSQLDB(db); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Ошибка при закрытии подключения к БД: %v", err)
		}
	}

	log.Println("Сервер остановлен")
}
