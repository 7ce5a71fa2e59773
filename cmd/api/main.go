package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portfolio/api/internal/aboutrepo"
	"portfolio/api/internal/app"
	"portfolio/api/internal/authpw"
	"portfolio/api/internal/blob"
	"portfolio/api/internal/chat"
	"portfolio/api/internal/config"
	"portfolio/api/internal/email"
	"portfolio/api/internal/export"
	"portfolio/api/internal/search"
	"portfolio/api/internal/session"
	"portfolio/api/internal/stats"
	"portfolio/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	redisStore, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisStore.Close()

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	passwordService := authpw.NewService(dataStore, emailService)

	blobService, err := blob.NewService(blob.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MinioPublicURL,
	})
	if err != nil {
		log.Fatalf("object storage setup failed: %v", err)
	}
	if blobService.IsConfigured() {
		if err := blobService.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: bucket check failed, uploads may not work: %v", err)
		}
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	if err := os.MkdirAll(cfg.AboutRepoDir, 0o755); err != nil {
		log.Fatalf("failed to create about repo dir: %v", err)
	}
	aboutService := aboutrepo.New(cfg.AboutRepoDir)

	statsService := stats.NewService(stats.Config{
		LeetCodeUser:   cfg.LeetCodeUser,
		CodeforcesUser: cfg.CodeforcesUser,
		GitHubUser:     cfg.GitHubUser,
		GitHubToken:    cfg.GitHubToken,
	}, dataStore)

	opts := app.Options{
		Blobs:    blobService,
		About:    aboutService,
		Search:   searchService,
		Stats:    statsService,
		Exporter: export.NewService(dataStore),
	}

	geminiProvider := chat.NewGeminiProvider(chat.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if geminiProvider.IsConfigured() {
		opts.Chat = chat.NewService(geminiProvider, redisStore)
	} else {
		log.Printf("GEMINI_API_KEY not set, chat endpoints disabled")
	}

	service := app.New(cfg, dataStore, redisStore, passwordService, opts)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	go searchService.ReindexAllFromPG(ctx)

	go func() {
		if err := statsService.Refresh(ctx); err != nil {
			log.Printf("stats refresh failed: %v", err)
		}
		ticker := time.NewTicker(cfg.StatsRefreshTTL)
		defer ticker.Stop()
		for range ticker.C {
			if err := statsService.Refresh(ctx); err != nil {
				log.Printf("stats refresh failed: %v", err)
			}
		}
	}()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Portfolio API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
