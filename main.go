package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scipunch/newsdesk/api"
	"github.com/scipunch/newsdesk/cache"
	"github.com/scipunch/newsdesk/config"
)

var (
	cfgPath   string
	sessionID string
	debug     bool
)

func main() {
	root := &cobra.Command{
		Use:           "newsdesk",
		Short:         "Terminal client for the multi-source news aggregator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug || os.Getenv("DEBUG") != "" {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	root.PersistentFlags().StringVar(&sessionID, "session", "", "session to resume; kept after exit")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		browseCommand(),
		newsCommand(),
		statusCommand(),
		crawlCommand(),
		starCommand(),
		articleCommand(),
		selectionCommand(),
		sourcesCommand(),
		sessionCommand(),
		fakeBackendCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config, creating the default one on first run.
func loadConfig() config.Config {
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}
	config.ApplyEnv(&conf)
	return conf
}

// env is what every backend-facing command needs.
type env struct {
	conf      config.Config
	client    *api.Client
	store     *cache.Store
	session   *cache.Session
	ephemeral bool
}

func setup() *env {
	conf := loadConfig()

	store, err := cache.NewStore(conf.SessionPath)
	if err != nil {
		log.Fatalf("failed to open session store: %s", err)
	}
	if n, err := store.Prune(conf.SessionTTL.Duration); err != nil {
		slog.Warn("failed to prune sessions", "error", err)
	} else if n > 0 {
		slog.Debug("pruned idle sessions", "count", n)
	}

	e := &env{
		conf:   conf,
		client: api.NewClient(conf.APIBaseURL, conf.RequestTimeout.Duration),
		store:  store,
	}
	id := sessionID
	if id == "" {
		id = cache.NewSessionID()
		e.ephemeral = true
	}
	e.session, err = store.Session(id)
	if err != nil {
		store.Close()
		log.Fatalf("failed to open session: %s", err)
	}
	slog.Debug("session opened", "id", id, "ephemeral", e.ephemeral, "api", conf.APIBaseURL)
	return e
}

// close ends the session. Sessions not named with --session are dropped.
func (e *env) close() {
	if e.ephemeral {
		if err := e.session.Clear(); err != nil {
			slog.Warn("failed to clear session", "id", e.session.ID(), "error", err)
		}
	}
	if err := e.store.Close(); err != nil {
		slog.Warn("failed to close session store", "error", err)
	}
}
