package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/middleware"
	"taskhub/internal/modules/auth"
	"taskhub/internal/modules/notification"
	"taskhub/internal/modules/todo"
	jwtsvc "taskhub/internal/pkg/jwt"
	"taskhub/internal/repository"
)

func main() {
	// Local development convenience; in production the environment is the
	// source of truth and .env simply does not exist.
	_ = godotenv.Load()

	cfg, err := config.LoadRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	redisClient, err := cache.Connect(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	appCache := cache.New(redisClient)

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	todoRepo := repository.NewTodoRepository(db)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)
	hub := notification.NewHub()
	defer hub.Close()

	// Without Redis the revocation fast path is off; the database check
	// still holds the line.
	var revocations auth.RevocationCache
	if redisClient != nil {
		revocations = appCache
	}

	authService := auth.NewService(userRepo, tokenRepo, j, revocations, hub, cfg.RefreshTokenPepper, cfg.RefreshTTL)
	authHandler := auth.NewHandler(authService, appCache, auth.CookieConfig{
		Path:     cfg.CookiePath,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.SameSiteMode(),
		MaxAge:   cfg.RefreshTTL,
	})

	todoService := todo.NewService(todoRepo, appCache)
	todoHandler := todo.NewHandler(todoService)

	wsHandler := notification.NewHandler(hub)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorLogger(), middleware.CORS())

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.RequireAuth(j, userRepo))
		{
			authHandler.RegisterProtectedRoutes(protected)
			todoHandler.RegisterRoutes(protected)
			wsHandler.RegisterRoutes(protected)

			admin := protected.Group("")
			admin.Use(middleware.AdminOnly())
			authHandler.RegisterAdminRoutes(admin)
		}
	}

	sessionStore := middleware.NewSessionStore(cfg.SessionSecret, cfg.CookieSecure)
	web := r.Group("/web")
	web.Use(middleware.WebSession(authService, auth.RefreshCookieName), middleware.CSRF(sessionStore))
	authHandler.RegisterWebRoutes(web)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
