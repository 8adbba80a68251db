// AIER Daemon - runs the autonomous network and serves its state
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aier/aier/internal/api"
	"github.com/aier/aier/internal/config"
	"github.com/aier/aier/internal/content"
	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/engine"
	"github.com/aier/aier/internal/llm"
	"github.com/aier/aier/internal/logging"
	"github.com/aier/aier/internal/roster"
	"github.com/aier/aier/internal/storage"
	"github.com/aier/aier/internal/worldctx"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	dataDir string
	envFile string
	port    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "aierd",
		Short:        "AIER Daemon - an autonomous AI social network",
		RunE:         runDaemon,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default <data-dir>/config.json)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.aier)")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with provider keys")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	if cmd.Flags().Changed("data-dir") {
		os.Setenv(config.EnvPrefix+"_DATA_DIR", dataDir)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}

	setupLogging(cfg.Logging)
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Roster and persisted state
	agents, err := roster.Load(cfg.RosterFile)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	kv, err := storage.Open(ctx, storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		DSN:     cfg.Storage.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer kv.Close()

	clk := clock.New()
	store := storage.NewStateStore(kv, agents, clk)
	initial := store.Load(ctx)
	logging.WithFields(map[string]interface{}{
		"backend": cfg.Storage.Backend,
		"agents":  len(initial.Agents),
		"posts":   len(initial.Posts),
		"live":    initial.Live,
	}).Info("state loaded")

	// Generation
	provider, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to create %s provider: %w", cfg.Provider.Name, err)
	}
	logging.WithField("provider", provider.Name()).Info("generation provider ready")

	rnd := core.NewRandom()
	retry := content.RetryPolicy{
		MaxAttempts:    cfg.Engine.RetryAttempts,
		InitialBackoff: cfg.Engine.RetryBackoff,
		Clock:          clk,
	}

	var ctxSrc content.ContextSource
	if cfg.Context.Enabled {
		var fetcher worldctx.Fetcher
		if cfg.Context.Live {
			fetcher = worldctx.NewDuckDuckGo(worldctx.DuckDuckGoConfig{})
		}
		ctxSrc = worldctx.NewSupplier(worldctx.Config{
			Fetcher: fetcher,
			TTL:     cfg.Context.TTL,
			Clock:   clk,
			Random:  rnd,
		})
	}

	eng, err := engine.New(engineConfig(cfg.Engine, engine.Config{
		Generator: content.NewGenerator(content.Config{
			Provider: provider,
			Context:  ctxSrc,
			Random:   rnd,
			Retry:    retry,
		}),
		Spawner: content.NewSpawner(provider, rnd, retry),
		Saver:   store,
		Random:  rnd,
		Clock:   clk,
	}), initial)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	server := api.New(api.Config{
		Host:   cfg.Server.Host,
		Port:   cfg.Server.Port,
		Engine: eng,
	})

	if err := eng.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logging.Warn("server shutdown: %v", err)
		}
		return eng.Stop(shutdownCtx)
	})

	fmt.Printf("🌐 AIER is live at http://%s\n", cfg.Server.Addr())
	return g.Wait()
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		logging.Warn("%v, using info", err)
	}
	logging.SetLevel(level)
	logging.SetJSON(cfg.JSON)
}

// newProvider builds the configured provider, chained with any fallbacks.
func newProvider(ctx context.Context, cfg config.ProviderConfig) (llm.Provider, error) {
	primary := llm.Settings{
		Name:    llm.Name(cfg.Name),
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}

	fallbacks := make([]llm.Settings, 0, len(cfg.Fallbacks))
	for _, name := range cfg.Fallbacks {
		fallbacks = append(fallbacks, llm.Settings{Name: llm.Name(name), Timeout: cfg.Timeout})
	}
	return llm.NewChain(ctx, primary, fallbacks...)
}

// engineConfig maps configured timings onto the engine. A configured zero
// jitter or spawn chance means none.
func engineConfig(cfg config.EngineConfig, base engine.Config) engine.Config {
	base.TickInterval = cfg.TickInterval
	base.TickJitter = cfg.TickJitter
	base.IgniteDelay = cfg.IgniteDelay
	base.CooldownHold = cfg.CooldownHold
	base.ErrorHold = cfg.ErrorHold
	base.SpawnEvery = cfg.SpawnEvery
	base.SpawnChance = cfg.SpawnChance

	if base.TickJitter == 0 {
		base.TickJitter = -1
	}
	if base.SpawnChance == 0 {
		base.SpawnChance = -1
	}
	return base
}
