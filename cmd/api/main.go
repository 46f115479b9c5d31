package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fleetworks/fleet-api/internal/events"
	"github.com/fleetworks/fleet-api/internal/http/handlers"
	httpmw "github.com/fleetworks/fleet-api/internal/http/middleware"
	"github.com/fleetworks/fleet-api/internal/platform/mailer"
	"github.com/fleetworks/fleet-api/internal/platform/storage"
	"github.com/fleetworks/fleet-api/internal/repo/postgres"
	"github.com/fleetworks/fleet-api/internal/service"
	"github.com/fleetworks/fleet-api/pkg/config"
	"github.com/fleetworks/fleet-api/pkg/database"
	"github.com/fleetworks/fleet-api/pkg/logger"
	mw "github.com/fleetworks/fleet-api/pkg/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis backs the login rate limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Object storage for profile pictures, licenses and vehicle photos
	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		logger.Error("Failed to create storage client", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Error("Failed to ensure storage bucket", "error", err)
		os.Exit(1)
	}

	emailSvc := newMailer(cfg)

	// Initialize repositories
	userRepo := postgres.NewUserRepository(pool)
	driverRepo := postgres.NewDriverRepository(pool)
	vehicleRepo := postgres.NewVehicleRepository(pool)
	resetRepo := postgres.NewResetCodeRepository(pool)

	// Initialize services
	authService := service.NewAuthService(userRepo, driverRepo, resetRepo, store, emailSvc, eventBus, cfg)
	userService := service.NewUserService(userRepo, driverRepo, store, eventBus)
	driverService := service.NewDriverService(driverRepo, vehicleRepo, eventBus)
	vehicleService := service.NewVehicleService(vehicleRepo, store, eventBus)

	// Initialize handlers
	authH := handlers.NewAuthHandler(authService)
	userH := handlers.NewUserHandler(userService)
	driverH := handlers.NewDriverHandler(driverService, userService)
	vehicleH := handlers.NewVehicleHandler(vehicleService, userService)

	loginLimiter := httpmw.NewRateLimiter(httpmw.NewRedisCounter(redisClient), httpmw.RateLimitConfig{
		Requests: cfg.Auth.LoginRateLimit,
		Window:   cfg.Auth.LoginRateWindow,
		KeyFunc:  httpmw.IPRateLimitKeyFunc,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Route("/api", func(api chi.Router) {
		api.Post("/register", authH.Register)
		api.With(loginLimiter.Middleware()).Post("/login", authH.Login)
		api.Post("/forgot-password", authH.ForgotPassword)
		api.Post("/reset", authH.ResetPassword)

		api.Group(func(priv chi.Router) {
			priv.Use(httpmw.RequireAuth(cfg.Auth.JWTSecret))

			priv.Put("/changepassword", authH.ChangePassword)

			priv.Get("/list", userH.List)
			priv.Get("/user/{id}", userH.Get)
			priv.Put("/update/{id}", userH.Update)
			priv.Delete("/delete/{id}", userH.Delete)

			priv.Get("/drivers", driverH.List)
			priv.Put("/drivers/{driverId}", driverH.UpdateProfile)
			priv.Put("/assign-vehicle/{driverId}", driverH.AssignVehicle)

			priv.Post("/add", vehicleH.Add)
			priv.Get("/vehiclelist", vehicleH.List)
			priv.Get("/{id}", vehicleH.Get)
			priv.Put("/updatevehicle/{id}", vehicleH.Update)
			priv.Delete("/vehicle/{id}", vehicleH.Delete)
		})
	})

	// Expired reset codes are also rejected on use; the reaper just keeps
	// the table from growing.
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go reapResetCodes(reaperCtx, resetRepo)

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down fleet API...")
		stopReaper()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting fleet API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func newMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		logger.Info("Using dev mailer; emails print to stdout")
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		logger.Info("Using MailerSend mailer")
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		logger.Info("Using SMTP mailer", "host", cfg.Email.SMTPHost)
		return mailer.NewSMTPMailer(
			cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom,
			cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS,
		)
	}
}

func reapResetCodes(ctx context.Context, resetRepo postgres.ResetCodeRepository) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := resetRepo.DeleteExpired(ctx)
			if err != nil {
				logger.Error("Failed to reap expired reset codes", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Reaped expired reset codes", "count", n)
			}
		}
	}
}
