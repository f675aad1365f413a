package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/scitech-admin-api/internal/account"
	"github.com/redmonkez12/scitech-admin-api/internal/activity"
	"github.com/redmonkez12/scitech-admin-api/internal/auth"
	"github.com/redmonkez12/scitech-admin-api/internal/config"
	"github.com/redmonkez12/scitech-admin-api/internal/database"
	httpServer "github.com/redmonkez12/scitech-admin-api/internal/http"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
	"github.com/redmonkez12/scitech-admin-api/internal/mailer"
	"github.com/redmonkez12/scitech-admin-api/internal/metrics"
	"github.com/redmonkez12/scitech-admin-api/internal/otp"
	"github.com/redmonkez12/scitech-admin-api/internal/project"
	"github.com/redmonkez12/scitech-admin-api/internal/ratelimit"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

// @title           SciTech Admin API
// @version         1.0
// @description     Staff authentication, password recovery and office administration.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_format", cfg.Auth.TokenFormat,
	)

	db, err := database.Open(cfg.Database.ConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(reg)

	userRepo := user.NewRepository(db)
	recorder := activity.NewRecorder(activity.NewRepository(db), logger)
	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.IPLimit, cfg.RateLimit.IPWindow, cfg.RateLimit.EmailCooldown)
	mailQueue := mailer.NewQueue(redisClient, cfg.Email.QueueKey)

	tokenService, err := auth.NewTokenService(cfg.Auth.TokenFormat, cfg.Auth.TokenKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	authService, err := auth.NewService(
		userRepo,
		tokenService,
		auth.NewHasher(auth.DefaultArgon2Params),
		otp.NewIssuer(otp.NewGenerator(cfg.Auth.SecureOTP), cfg.Auth.OTPTTL, nil),
		mailQueue,
		recorder,
		logger,
		cfg.Auth.AccessTokenDuration,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	handlers := httpServer.Handlers{
		Auth:           auth.NewHandler(authService, rateLimiter, !cfg.Server.IsDevelopment()),
		AuthMiddleware: auth.NewMiddleware(tokenService, cfg.Auth.GatewayHeader, userRepo),
		Account:        account.NewHandler(account.NewService(userRepo, recorder)),
		Project:        project.NewHandler(project.NewService(project.NewRepository(db), recorder, cfg.Project.CodePrefix)),
		Metrics:        reg,
	}

	router := httpServer.NewRouter(cfg, handlers, logger)
	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Email.InProcess {
		sender := mailer.NewSMTPSender(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromAddress,
			cfg.Auth.OTPTTL,
		)
		worker := mailer.NewWorker(mailQueue, sender, logger, cfg.Auth.OTPTTL)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("mail worker stopped", "error", err.Error())
			}
		}()
		logger.Info("mail worker running in-process", "queue", cfg.Email.QueueKey)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
