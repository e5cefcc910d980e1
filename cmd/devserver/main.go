// Package main starts the taskdeck dev server: a reference backend for
// the CLI client, serving the auth and task endpoints over HTTP.
package main

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"taskdeck/internal/config"
	"taskdeck/internal/devserver"
	"taskdeck/internal/logger"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log, err := logger.New(options.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// Pick the persistence backend: Postgres when a DSN is configured,
	// in-memory maps otherwise.
	var (
		users  devserver.UserRepository
		tokens devserver.TokenRepository
		tasks  devserver.TaskRepository
	)
	if options.DatabaseDSN != "" {
		db, err := devserver.InitPostgres(options.DatabaseDSN)
		if err != nil {
			log.Fatal("cannot init database", zap.Error(err))
		}
		defer db.Close()
		users = devserver.NewPostgresUserRepository(db)
		tokens = devserver.NewPostgresTokenRepository(db)
		tasks = devserver.NewPostgresTaskRepository(db)
		log.Info("using postgres storage")
	} else {
		users = devserver.NewMemoryUserRepository()
		tokens = devserver.NewMemoryTokenRepository()
		tasks = devserver.NewMemoryTaskRepository()
		log.Info("using in-memory storage")
	}

	// Roll completed recurring tasks over to their next occurrence.
	devserver.StartRecurrenceJob(context.Background(), tasks, time.Hour, log)

	secret := []byte(cmp.Or(os.Getenv("JWT_SECRET"), "taskdeck-dev-secret"))
	authService := devserver.NewAuthService(users, tokens, secret)
	taskService := devserver.NewTaskService(tasks)

	oauth := devserver.NewGoogleOAuth(
		options.GoogleClientID,
		options.GoogleClientSecret,
		options.GoogleRedirectURL,
	)
	if oauth == nil {
		log.Info("google oauth disabled: client credentials not configured")
	}

	authHandler := &devserver.AuthHandler{Auth: authService, OAuth: oauth}
	taskHandler := &devserver.TaskHandler{Tasks: taskService}

	router := devserver.NewRouter(authHandler, taskHandler, log)

	server := &http.Server{
		Addr:    options.Address,
		Handler: router,
	}

	log.Info("starting HTTP server", zap.String("addr", options.Address))
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
