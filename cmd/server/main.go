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
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/Simplici0/atelier/internal/cache"
	"github.com/Simplici0/atelier/internal/catalog"
	"github.com/Simplici0/atelier/internal/config"
	"github.com/Simplici0/atelier/internal/db"
	"github.com/Simplici0/atelier/internal/migrations"
	"github.com/Simplici0/atelier/internal/seed"
	"github.com/Simplici0/atelier/internal/store"
)

type server struct {
	store     *store.Store
	catalog   *catalog.Catalog
	templates *cache.Cache[store.TemplateDetails]
	sessions  *sessionRegistry
	logger    *log.Logger
}

func newServer(st *store.Store, cat *catalog.Catalog, templates *cache.Cache[store.TemplateDetails]) *server {
	return &server{
		store:     st,
		catalog:   cat,
		templates: templates,
		sessions:  newSessionRegistry(),
		logger:    log.Default(),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/fabrics", s.handleFabricsList)
	r.Post("/fabrics", s.handleFabricSave)
	r.Put("/fabrics/{id}", s.handleFabricSave)
	r.Get("/templates", s.handleTemplatesList)
	r.Get("/templates/{id}", s.handleTemplateDetail)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleSessionCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleSessionGet)
			r.Patch("/", s.handleSessionPatch)
			r.Delete("/", s.handleSessionDelete)
			r.Post("/reset", s.handleSessionReset)
			r.Post("/step", s.handleSessionStep)
			r.Put("/sizes/{size}", s.handleSizeSet)
			r.Delete("/sizes/{size}", s.handleSizeRemove)
			r.Post("/costs/{category}", s.handleCostAdd)
			r.Patch("/costs/{category}/{itemID}", s.handleCostUpdate)
			r.Delete("/costs/{category}/{itemID}", s.handleCostRemove)
			r.Post("/load", s.handleTemplateLoad)
			r.Post("/save", s.handleTemplateSave)
			r.Get("/summary", s.handleSummaryText)
		})
	})
	return r
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrations.Up(ctx, database); err != nil {
		log.Fatalf("failed to run database migrations: %v", err)
	}
	if cfg.IsDev() {
		stats, err := seed.Run(ctx, database, seed.DefaultFabrics)
		if err != nil {
			log.Fatalf("failed to seed fabrics: %v", err)
		}
		log.Printf("seed: %d fabrics inserted, %d already present", stats.Inserts, stats.Skipped)
	}

	st := store.New(database)
	cat := catalog.New(st, cfg.FabricCacheTTL)
	templates := cache.New[store.TemplateDetails](cfg.TemplateCacheTTL)
	srv := newServer(st, cat, templates)

	scheduler := cron.New()
	if _, err := cat.Cache().Schedule(scheduler, "fabrics", cfg.CacheSweepSchedule); err != nil {
		log.Fatalf("failed to schedule fabric cache sweep: %v", err)
	}
	if _, err := templates.Schedule(scheduler, "templates", cfg.CacheSweepSchedule); err != nil {
		log.Fatalf("failed to schedule template cache sweep: %v", err)
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Print("shutting down")
	}

	if err := shutdown(httpServer, scheduler, database.Close); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func shutdown(httpServer *http.Server, scheduler *cron.Cron, closeDB func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := httpServer.Shutdown(ctx)
	<-scheduler.Stop().Done()
	return multierr.Append(err, closeDB())
}
