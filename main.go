package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mbolis/pozo-survey/app"
	"github.com/mbolis/pozo-survey/backend"
	"github.com/mbolis/pozo-survey/config"
	"github.com/mbolis/pozo-survey/database"
	"github.com/mbolis/pozo-survey/form"
	"github.com/mbolis/pozo-survey/gate"
	"github.com/mbolis/pozo-survey/httpx"
	"github.com/mbolis/pozo-survey/log"
	"github.com/mbolis/pozo-survey/routes"
	"github.com/mbolis/pozo-survey/submit"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()
	journal := database.NewJournal(db)

	client := backend.NewClient(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithToken(cfg.BackendToken),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := submit.New(client, journal, cfg.SubmitPolicy)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(ctx)
	}()

	app := app.App{
		Config:   cfg,
		Journal:  journal,
		Backend:  client,
		Gates:    gate.NewLoads(ctx, client),
		Forms:    form.NewSessions(cfg.CatalogMode),
		Pipeline: pipeline,
		Sessions: httpx.NewSessionIssuer(cfg.SessionSecret, cfg.SessionTTL),
	}

	handler := routes.Wire(app)

	err = runServer(ctx, cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}

	stop()
	wg.Wait()
	log.Info("Bye")
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("main.server.shutdown:", err)
		}
	}()

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
