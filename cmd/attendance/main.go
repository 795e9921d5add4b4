/*
main.go - Application entry point

PURPOSE:
  Runs the attendance reconciliation engine, either as a one-shot
  batch pass (the cron/CI mode) or as a long-lived server with a
  periodic scheduler and the operational API.

MODES:
  One-shot (default):
    1. Run the three-stage pipeline once
    2. With -reports, run the pay-day report job afterwards
    3. Exit 0 only if no batch was unrecoverable - CI flags the run
       otherwise

  Serve (-serve):
    1. Start the operational API on -port
    2. Run the pipeline every -interval
    3. Graceful shutdown on SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -backend  "sheets" (production) or "sqlite" (local)
  -db       SQLite database path (sqlite backend)
  -serve    Run as a server instead of one-shot
  -port     HTTP server port (serve mode)
  -interval Pipeline interval (serve mode)
  -reports  Also run the pay-day report job (one-shot mode)
  -out      Directory for generated report CSVs

ENVIRONMENT:
  Secrets and table names come from the environment (.env honored);
  see the config package.

SEE ALSO:
  - api/server.go: Router configuration
  - attendance/pipeline.go: The batch engine
  - report/job.go: The pay-day job
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/sheets"
	"github.com/warp/attendance-engine/store/sqlite"
	"github.com/warp/attendance-engine/tabular"
)

func main() {
	backend := flag.String("backend", "sheets", `backing store: "sheets" or "sqlite"`)
	dbPath := flag.String("db", "attendance.db", "SQLite database path (sqlite backend)")
	serve := flag.Bool("serve", false, "run as a server with a periodic scheduler")
	port := flag.Int("port", 8080, "HTTP server port (serve mode)")
	interval := flag.Duration("interval", 15*time.Minute, "pipeline interval (serve mode)")
	reports := flag.Bool("reports", false, "run the pay-day report job after the pipeline")
	outDir := flag.String("out", "reports", "directory for generated report CSVs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration failed: %v", err)
	}

	store, closeStore, err := openStore(cfg, *backend, *dbPath)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", *backend, err)
	}
	defer closeStore()

	pipeline := attendance.NewPipeline(store, cfg.Tables)
	pipeline.WriterConfig = cfg.WriterConfig()
	if *backend == "sheets" {
		pipeline.Limiter = cfg.Limiter()
	}

	if *serve {
		runServer(pipeline, store, cfg, *port, *interval)
		return
	}

	ctx := context.Background()
	sum, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatalf("Run aborted: %v", err)
	}

	ok := sum.Success()
	if *reports {
		job := report.NewJob(store, cfg.Tables, notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom, cfg.MailPassword))
		job.OutDir = *outDir
		job.WriterConfig = cfg.WriterConfig()
		job.Limiter = pipeline.Limiter
		jobSum, err := job.Run(ctx)
		if err != nil {
			log.Fatalf("Report job aborted: %v", err)
		}
		ok = ok && jobSum.Success()
	}

	if !ok {
		os.Exit(1)
	}
}

// openStore builds the configured backend. The sqlite backend
// bootstraps the ledger table, which the engine owns; source tables
// are seeded by the operator.
func openStore(cfg *config.Config, backend, dbPath string) (tabular.Store, func(), error) {
	switch backend {
	case "sheets":
		if err := cfg.RequireSheets(); err != nil {
			return nil, nil, err
		}
		key, err := cfg.ServiceAccountKey()
		if err != nil {
			return nil, nil, err
		}
		account, err := sheets.ParseServiceAccount(key)
		if err != nil {
			return nil, nil, err
		}
		return sheets.NewClient(cfg.SheetID, account), func() {}, nil

	case "sqlite":
		s, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Bootstrap(context.Background(), cfg.Tables.Ledger, attendance.LedgerHeader); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func runServer(pipeline *attendance.Pipeline, store tabular.Store, cfg *config.Config, port int, interval time.Duration) {
	handler := api.NewHandler(pipeline, store, cfg.Tables)
	router := api.NewRouter(handler)

	scheduler := api.NewRunScheduler(handler, interval)
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}
