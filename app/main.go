package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visiboard/discover/app/api"
	"github.com/visiboard/discover/app/cfg"
	"github.com/visiboard/discover/app/feed"
	"github.com/visiboard/discover/app/imagecache"
	"github.com/visiboard/discover/app/seed"
	"github.com/visiboard/discover/app/store"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting VisiBoard Discover server", "version", appCfg.Version)

	db, err := store.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := store.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	noteRepo := store.NewNoteRepository(db)

	cache, err := imagecache.New(appCfg.CacheDir, appCfg.MaxDimension, appCfg.JPEGQuality)
	if err != nil {
		slog.Error("Failed to initialize image cache", "dir", appCfg.CacheDir, "error", err)
		os.Exit(1)
	}

	profile, err := feed.LoadProfile(appCfg.ProfilePath)
	if err != nil {
		slog.Error("Failed to load curation profile", "path", appCfg.ProfilePath, "error", err)
		os.Exit(1)
	}

	// Optional one-shot seeding: fill the note store from an RSS/Atom feed so
	// the server has content to page through.
	if appCfg.SeedURL != "" {
		httpClient := &http.Client{Timeout: 60 * time.Second}
		seeder := seed.NewSeeder(noteRepo, httpClient, appCfg.UserAgent,
			appCfg.SeedLat, appCfg.SeedLng, appCfg.SeedSpan)

		count, err := seeder.Run(context.Background(), appCfg.SeedURL)
		if err != nil {
			slog.Error("Seeding failed", "url", appCfg.SeedURL, "error", err)
			os.Exit(1)
		}
		slog.Info("Seeding complete", "url", appCfg.SeedURL, "notes", count)
	}

	trimAge := time.Duration(appCfg.CacheTrimAge) * time.Second
	sessionTTL := time.Duration(appCfg.SessionTTL) * time.Second

	apiHandler := api.NewHandler(noteRepo, noteRepo, cache, profile, appCfg.PageSize, trimAge)
	server := api.NewServer(apiHandler)

	// Background maintenance: expire idle sessions and keep the image cache's
	// disk footprint bounded across restarts.
	maintenanceDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		if trimAge > 0 {
			cache.Trim(trimAge)
		}
		for {
			select {
			case <-ticker.C:
				if sessionTTL > 0 {
					apiHandler.ExpireIdle(sessionTTL)
				}
				if trimAge > 0 {
					cache.Trim(trimAge)
				}
			case <-maintenanceDone:
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")
	close(maintenanceDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
