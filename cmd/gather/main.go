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

	"github.com/dperrin/gather/internal/backup"
	"github.com/dperrin/gather/internal/database"
	"github.com/dperrin/gather/internal/email"
	"github.com/dperrin/gather/internal/logging"
	"github.com/dperrin/gather/internal/push"
	"github.com/dperrin/gather/internal/server"
)

func main() {
	port := os.Getenv("GATHER_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("GATHER_DB_PATH")
	if dbPath == "" {
		dbPath = "gather.db"
	}

	logger := logging.Setup(os.Getenv("GATHER_LOG_LEVEL"), os.Getenv("GATHER_LOG_FORMAT"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("GATHER_POSTMARK_TOKEN"),
		os.Getenv("GATHER_FROM_EMAIL"),
		os.Getenv("GATHER_BASE_URL"),
	)
	if !emailClient.Configured() {
		logger.Warn("email client not configured, sign-in codes will not be delivered")
	}

	backupCfg := backup.Config{
		DBPath: dbPath,
		S3: backup.S3Config{
			Endpoint:  os.Getenv("GATHER_S3_ENDPOINT"),
			Bucket:    os.Getenv("GATHER_S3_BUCKET"),
			Region:    os.Getenv("GATHER_S3_REGION"),
			AccessKey: os.Getenv("GATHER_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("GATHER_S3_SECRET_KEY"),
		},
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("GATHER_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("GATHER_VAPID_PRIVATE_KEY"),
	}

	srv := server.New(db, emailClient, backupCfg, pushCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	if r := srv.PushReminder(); r != nil {
		r.Start(ctx)
	}

	// Hourly cleanup of expired sessions, stale sign-in codes, and rate
	// limiter entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("deleted expired sessions", "count", n)
				}
				if _, err := srv.SigninCodeStore().DeleteExpired(); err != nil {
					logger.Error("signin code cleanup", "error", err)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Gather running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	cancel()
	srv.BackupManager().Stop()
	if r := srv.PushReminder(); r != nil {
		r.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
