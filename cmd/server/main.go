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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/AnshRaj112/journeygen-backend/internal/app"
	"github.com/AnshRaj112/journeygen-backend/internal/config"
	"github.com/AnshRaj112/journeygen-backend/internal/database"
	"github.com/AnshRaj112/journeygen-backend/internal/handlers"
	"github.com/AnshRaj112/journeygen-backend/internal/middleware"
	"github.com/AnshRaj112/journeygen-backend/internal/routes"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("startup failed", "error", err)
	}
	defer a.Close()
	a.StartEvents(ctx)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(logg))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit.
	// Otherwise the shared Redis counter, when Redis is up.
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		logg.Info("production security enabled")
	} else if database.RedisClient != nil {
		r.Use(middleware.RedisRateLimit(database.RedisClient, logg))
	}

	h := handlers.New(a.Journals, a.Clients, a.Knowledge, a.Hub, logg)
	routes.SetupRoutes(r, h, a.Guard, a.UploadDir, logg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("journeygen backend running", "port", cfg.Port, "env", cfg.Environment, "provider", cfg.GenerationProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown failed", "error", err)
	}
}
