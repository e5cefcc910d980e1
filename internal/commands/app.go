package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskdeck/internal/config"
	"taskdeck/internal/gateway"
	"taskdeck/internal/logger"
	"taskdeck/internal/session"
	"taskdeck/internal/storage"
	"taskdeck/internal/syncer"
	"taskdeck/internal/taskcache"
)

// app bundles the wired client: configuration, session manager and sync
// coordinator over the durable stores in the state directory.
type app struct {
	cfg     *config.Options
	log     *zap.Logger
	session *session.Manager
	tasks   *syncer.Coordinator

	closers []func() error
}

// newApp wires the client stack. Tokens live in a JSON file, the task
// cache in a SQLite database, both under the state directory.
func newApp() (*app, error) {
	cfg := config.Load(nil)

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tokenFile, err := storage.NewFileStore(filepath.Join(cfg.StateDir, "auth.json"))
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	cacheDB, err := storage.NewSQLiteStore(filepath.Join(cfg.StateDir, "tasks.db"))
	if err != nil {
		return nil, fmt.Errorf("open task cache: %w", err)
	}

	tokens := session.NewTokenStore(tokenFile)
	gw := gateway.New(cfg.ServerURL, &http.Client{Timeout: 15 * time.Second}, tokens)
	cache := taskcache.New(cacheDB)
	coordinator := syncer.New(gw, cache, log)
	manager := session.NewManager(gw, tokens, cache, openBrowser, log)

	return &app{
		cfg:     cfg,
		log:     log,
		session: manager,
		tasks:   coordinator,
		closers: []func() error{cacheDB.Close, log.Sync},
	}, nil
}

func (a *app) close() {
	for _, fn := range a.closers {
		_ = fn()
	}
}

// withApp wraps a command function, wiring the app first and closing it
// after.
func withApp(fn func(*app, []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()
		if err := fn(a, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// openBrowser sends the user to url, falling back to printing it when no
// browser can be launched.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		fmt.Printf("Open this URL in your browser:\n%s\n", url)
	}
	return nil
}
