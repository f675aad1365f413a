// Command mailer delivers queued password reset codes over SMTP.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/scitech-admin-api/internal/config"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
	"github.com/redmonkez12/scitech-admin-api/internal/mailer"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Mailer error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	sender := mailer.NewSMTPSender(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromAddress,
		cfg.Auth.OTPTTL,
	)
	worker := mailer.NewWorker(mailer.NewQueue(client, cfg.Email.QueueKey), sender, logger, cfg.Auth.OTPTTL)

	logger.Info("mailer started", "queue", cfg.Email.QueueKey, "smtp_host", cfg.Email.SMTPHost)
	if err := worker.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	logger.Info("mailer stopped")
	return nil
}
