/*
main.go - Application entry point

PURPOSE:
  Wires the timesheet compliance notification engine together and runs it:
  configuration, storage, collaborator clients, the pass runner, and the
  operational HTTP surface, with graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Configure logging
  3. Open the SQLite store (address book + statistics)
  4. Build the collaborator clients (timesheet, chat, mail)
  5. Assemble engine -> dispatcher -> orchestrator -> runner
  6. Start the runner and the HTTP server

COMMAND-LINE FLAGS:
  -port     HTTP server port (overrides PORT)
  -db       SQLite database path (overrides DB_PATH; ":memory:" works)
  -rules    Rule file path (overrides RULES_PATH)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the runner stops first (waiting out an in-flight
  pass), then the HTTP server drains, then the store closes.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/compliance-engine/api"
	"github.com/warp/compliance-engine/clients"
	"github.com/warp/compliance-engine/compliance"
	"github.com/warp/compliance-engine/config"
	"github.com/warp/compliance-engine/logger"
	"github.com/warp/compliance-engine/notify"
	"github.com/warp/compliance-engine/sched"
	"github.com/warp/compliance-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment for local runs.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	rulesPath := flag.String("rules", cfg.RulesPath, "notification rules file")
	flag.Parse()

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
		Path:   cfg.LogPath,
	})

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	timesheets := clients.NewTimesheetClient(cfg.TimesheetBaseURL, cfg.TimesheetToken)
	chat := clients.NewChatClient(cfg.ChatBaseURL, cfg.ChatToken)
	mailer := &clients.SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	}

	engine := &compliance.Engine{
		Timesheets: timesheets,
		Directory:  clients.NewDirectoryClient(cfg.DirectoryBaseURL, cfg.DirectoryToken),
		Log:        log,
	}
	dispatcher := notify.NewDispatcher(store, chat, mailer, log)
	rules := config.NewRuleFile(*rulesPath, log)

	orchestrator := &sched.Orchestrator{
		Engine:      engine,
		Dispatcher:  dispatcher,
		Chat:        chat,
		Stats:       store,
		Rules:       rules,
		RuleTimeout: cfg.RuleTimeout,
		Log:         log,
	}
	runner := sched.NewRunner(orchestrator, cfg.PassInterval, log)
	runner.Start()
	defer runner.Stop()

	handler := &api.Handler{
		Engine:  engine,
		Trigger: runner,
		Rules:   rules,
		Stats:   store,
		Log:     log,
	}
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Info("server stopped")
}
