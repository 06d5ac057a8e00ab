package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger"

	"upload-broker/config"
	_ "upload-broker/docs"
	"upload-broker/internal/handler"
	"upload-broker/internal/repository"
	"upload-broker/internal/security"
	"upload-broker/internal/service"
)

// @title Upload-broker
// @version 1.0
// @description REST API брокера staged-загрузок: выдача грантов, staging, промоция

// @host localhost:8080

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := config.SetupDatabase(cfg.DatabaseConfig.DSN)
	if err != nil {
		log.Fatalf("Не удалось подключиться к БД: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка при закрытии БД: %v", err)
		}
	}()

	redisClient, err := config.SetupRedis(&cfg.RedisConfig)
	if err != nil {
		log.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Ошибка при закрытии Redis: %v", err)
		}
	}()

	srv, router := config.SetupServer(&cfg.Server)

	grantTTL := time.Duration(cfg.Staging.GrantTTLSeconds) * time.Second
	sweepInterval := time.Duration(cfg.Staging.SweepIntervalSec) * time.Second

	grantRepo := repository.NewGrantRepository(db)
	objectRepo := repository.NewPermanentObjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	jwtRepo := repository.NewJWTRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, grantTTL)
	rateLimiter := repository.NewRateLimitRepository(redisClient, cfg.Limits.GrantsPerMinute)

	s3Service, err := service.NewS3Service(ctx, &cfg.S3Config)
	if err != nil {
		log.Fatalf("Ошибка создания S3 сервиса: %v", err)
	}

	ledgerService := service.NewLedgerService(grantRepo, cacheRepo, rateLimiter, s3Service, db, &cfg.Limits, grantTTL)
	promotionService := service.NewPromotionService(grantRepo, objectRepo, cacheRepo, s3Service, db, cfg.S3Config.CDNBaseURL, cfg.Staging.SignaturePrefixSize)
	sweepService := service.NewSweepService(grantRepo, cacheRepo, s3Service, db, sweepInterval)

	jwtService := security.NewJWTService(&cfg.JWT)
	userService := service.NewUserService(userRepo, jwtService, jwtRepo, db, &cfg.Admin)
	authService := service.NewAuthenticationService(jwtRepo, cfg, jwtService, userRepo, db)

	authHandler := handler.NewAuthenticationHandler(authService)
	uploadHandler := handler.NewUploadHandler(ledgerService, promotionService)
	userHandler := handler.NewUserHandler(userService)

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	setupAuthRoutes(router, authHandler, userHandler, jwtService, jwtRepo, cfg)
	setupUploadRoutes(router, uploadHandler, jwtService, jwtRepo, cfg)

	// уборщик живёт независимо от обработки запросов
	go sweepService.Run(ctx)

	runServer(ctx, srv)
}

func setupAuthRoutes(r chi.Router, h *handler.AuthenticationHandler, uh *handler.UserHandler, jwtService *security.JWTService, jwtRepo *repository.JWTRepository, cfg *config.AppConfig) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(security.JWTMiddleware([]byte(cfg.JWT.SecretKey), jwtRepo, jwtService, cfg.Admin.AdminToken))
			r.Get("/me", h.GetCurrentUsersUUID)
			r.Head("/me", h.GetCurrentUsersUUID)
			r.Post("/refresh", h.RefreshToken)
		})
		r.Group(func(r chi.Router) {
			r.Post("/", h.Login)
			r.Delete("/{token}", h.Logout)
		})
	})

	r.Post("/api/register", uh.RegisterUser)
}

func setupUploadRoutes(r chi.Router, h *handler.UploadHandler, jwtService *security.JWTService, jwtRepo *repository.JWTRepository, cfg *config.AppConfig) {
	r.Route("/api/uploads", func(r chi.Router) {
		r.Use(security.JWTMiddleware([]byte(cfg.JWT.SecretKey), jwtRepo, jwtService, cfg.Admin.AdminToken))
		r.Post("/", h.IssueGrant)

		r.Route("/{upload_id}", func(r chi.Router) {
			r.Get("/", h.GetUpload)
			r.Head("/", h.GetUpload)
			r.Post("/complete", h.MarkUploaded)
			r.Post("/promote", h.Promote)
		})
	})
}

func runServer(ctx context.Context, server *http.Server) {
	serverErrors := make(chan error, 1)
	go func() {
		log.Println("сервер запущен на " + server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Fatalf("ошибка работы сервера: %v", err)
		}
	case sig := <-signalChannel:
		log.Printf("получен сигнал %v остановки работы сервера ", sig)
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		log.Printf("ошибка при остановке сервера: %v", err)
	} else {
		log.Println("Сервер успешно остановлен")
	}
}
