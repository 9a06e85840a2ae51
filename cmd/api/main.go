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

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/shojbahmed330/appify-backend/config"
	"github.com/shojbahmed330/appify-backend/internal/auth"
	"github.com/shojbahmed330/appify-backend/internal/bootstrap"
	"github.com/shojbahmed330/appify-backend/internal/generation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.DSN()})
	if err != nil {
		cancel()
		log.Fatalf("postgres: %v", err)
	}
	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		cancel()
		log.Fatalf("redis: %v", err)
	}
	cancel()
	defer db.Close()
	defer rdb.Close()

	var authClient *fbauth.Client
	if cfg.Firebase.CredentialsPath != "" {
		authClient, err = auth.InitializeFirebase(&cfg.Firebase)
		if err != nil {
			log.Fatalf("firebase: %v", err)
		}
	} else {
		log.Println("FIREBASE_CREDENTIALS_PATH not set, running without token verification")
	}

	gen, err := generation.NewClient(context.Background(), cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("gemini: %v", err)
	}

	built := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "appify-backend",
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.AllowedOrigins,
		DB:          db,
		Redis:       rdb,
		Auth:        authClient,
		Generator:   gen,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: built.Engine,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	built.Builds.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server exiting")
}
