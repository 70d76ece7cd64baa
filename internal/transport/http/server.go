package http

import (
	"fmt"
	"log"
	stdhttp "net/http"
	"time"

	"questhive-backend/internal/apns"
	"questhive-backend/internal/config"
	"questhive-backend/internal/database"
	"questhive-backend/internal/handler"
	"questhive-backend/internal/repository"
	"questhive-backend/internal/service"
)

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DispatchSecret == "" {
		return fmt.Errorf("DISPATCH_SECRET is required")
	}
	if err := cfg.ValidateAPNS(); err != nil {
		return err
	}

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 3. Provider credentials are parsed up front to fail fast
	signer, err := apns.NewTokenSigner(cfg.APNSTeamID, cfg.APNSKeyID, cfg.APNSPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to init APNs signer: %w", err)
	}

	// 4. Wire repositories and the dispatcher
	outboxRepo := repository.NewOutboxRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)

	dispatcher := service.NewDispatcher(
		outboxRepo,
		tokenRepo,
		prefRepo,
		signer,
		apns.NewClient(cfg.APNSTopic),
		service.DispatcherConfig{
			BatchSize:   cfg.BatchSize,
			MaxAttempts: cfg.MaxAttempts,
			StaleAfter:  time.Duration(cfg.StaleClaimSeconds) * time.Second,
		},
	)

	// 5. Setup Server
	router := NewRouter(RouterConfig{
		DispatchHandler: handler.NewDispatchHandler(dispatcher, cfg.DispatchSecret),
	})

	addr := ":" + cfg.ServerPort
	log.Printf("Starting server on %s", addr)
	return stdhttp.ListenAndServe(addr, router)
}
