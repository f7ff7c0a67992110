package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"leaseflow/auth"
	"leaseflow/config"
	"leaseflow/contract"
	"leaseflow/db"
	"leaseflow/dispute"
	"leaseflow/httpapi"
	"leaseflow/logging"
	"leaseflow/notify"
	"leaseflow/payment"
	"leaseflow/room"
	"leaseflow/sweep"
)

// userDirectory adapts the auth service to notification recipient lookup.
type userDirectory struct {
	users *auth.Service
}

func (d userDirectory) Lookup(ctx context.Context, userID string) (notify.Recipient, error) {
	u, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		return notify.Recipient{}, err
	}
	return notify.Recipient{UserID: u.ID, Email: u.Email, Name: u.FullName}, nil
}

// roomDirectory adapts the room service to notification room labels.
type roomDirectory struct {
	rooms *room.Service
}

func (d roomDirectory) RoomLabel(ctx context.Context, roomID string) (string, error) {
	r, err := d.rooms.GetByID(ctx, roomID)
	if err != nil {
		return "", err
	}
	return r.Label(), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPoolWithOptions(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, cfg.JWTSecret)

	roomRepo := room.NewRepository(pool)
	roomService := room.NewService(roomRepo)

	paymentRepo := payment.NewRepository(pool)
	contractRepo := contract.NewRepository(pool)
	contractService := contract.NewService(pool, contractRepo, paymentRepo, logger)

	notifier := notify.NewService(
		notify.LogSender{Logger: logger},
		userDirectory{users: authService},
		roomDirectory{rooms: roomService},
		logger,
	)

	refunder := payment.NewOrchestrator(paymentRepo, payment.LogGateway{Logger: logger}, logger)

	disputeRepo := dispute.NewRepository(pool)
	disputeService := dispute.NewService(disputeRepo, contractService, refunder, logger).
		WithNotifier(notifier)

	expiry := sweep.NewExpiry(contractRepo, contractService, refunder, paymentRepo, notifier, logger).
		WithLimits(cfg.SweepBatchSize, cfg.SweepParallelism)
	reminder := sweep.NewReminder(contractRepo, notifier, logger).
		WithLimits(cfg.SweepBatchSize, cfg.SweepParallelism)

	scheduler := sweep.NewScheduler(cfg.SweepTimeout, logger)
	if err := scheduler.Add("expiry", cfg.ExpiryCronSpec, expiry); err != nil {
		log.Fatalf("bootstrap scheduler: %v", err)
	}
	if err := scheduler.Add("reminder", cfg.ReminderCronSpec, reminder); err != nil {
		log.Fatalf("bootstrap scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := httpapi.NewRouter(httpapi.Services{
		Verifier:      authService,
		Auth:          authService,
		Rooms:         roomService,
		Contracts:     contractService,
		Disputes:      disputeService,
		WebhookSecret: cfg.WebhookSecret,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
