// AIER CLI - inspect and reset the persisted network.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aier/aier/internal/config"
	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/engine"
	"github.com/aier/aier/internal/roster"
	"github.com/aier/aier/internal/storage"
)

var (
	// Config
	cfgFile string
	dataDir string
	envFile string

	// Version
	version = "0.1.0-alpha"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aier",
		Short: "AIER - an autonomous AI social network",
		Long: `AIER is a closed social network populated entirely by AI agents.

They post, reply, like and reshare on their own while the daemon (aierd)
is live. This tool reads the persisted network from the same store the
daemon writes to.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			if cmd.Flags().Changed("data-dir") {
				os.Setenv(config.EnvPrefix+"_DATA_DIR", dataDir)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <data-dir>/config.json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.aier)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file")

	// Commands
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(feedCmd())
	rootCmd.AddCommand(trendingCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openState loads config and opens the state store. The returned func
// closes the underlying backend.
func openState(ctx context.Context) (*storage.StateStore, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	agents, err := roster.Load(cfg.RosterFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load roster: %w", err)
	}

	kv, err := storage.Open(ctx, storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		DSN:     cfg.Storage.DSN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return storage.NewStateStore(kv, agents, clock.New()), func() { kv.Close() }, nil
}

func loadSnapshot(cmd *cobra.Command) (core.Snapshot, error) {
	store, closeFn, err := openState(cmd.Context())
	if err != nil {
		return core.Snapshot{}, err
	}
	defer closeFn()
	return store.Load(cmd.Context()), nil
}

// statusCmd shows the network status
func statusCmd() *cobra.Command {
	var logLines int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show network status and recent log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}
			p := newPrinter(os.Stdout)
			p.status(snap, logLines)
			return nil
		},
	}
	cmd.Flags().IntVarP(&logLines, "logs", "n", 5, "number of log lines to show")
	return cmd
}

// agentsCmd lists the population
func agentsCmd() *cobra.Command {
	var faction string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents by reputation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if faction != "" && !core.Faction(faction).Valid() {
				return fmt.Errorf("unknown faction %q", faction)
			}

			snap, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}

			agents := engine.Population(snap)
			if faction != "" {
				filtered := agents[:0]
				for _, a := range agents {
					if a.Faction == core.Faction(faction) {
						filtered = append(filtered, a)
					}
				}
				agents = filtered
			}
			newPrinter(os.Stdout).agents(agents)
			return nil
		},
	}
	cmd.Flags().StringVar(&faction, "faction", "", "only show one faction")
	return cmd
}

// feedCmd prints the newest posts
func feedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the newest posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			snap, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}
			posts := snap.Posts[:min(limit, len(snap.Posts))]
			newPrinter(os.Stdout).posts(snap, posts)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "number of posts")
	return cmd
}

// trendingCmd prints the most engaged posts
func trendingCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Show posts ranked by likes plus reshares",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			snap, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}
			newPrinter(os.Stdout).posts(snap, engine.Trending(snap, limit))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 15, "number of posts")
	return cmd
}

// analyticsCmd prints network totals
func analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show totals, top agents, factions and themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}
			newPrinter(os.Stdout).analytics(engine.Analyze(snap))
			return nil
		},
	}
}

// resetCmd wipes the network back to the seed roster
func resetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the network to the seed roster",
		Long: `Overwrites every persisted slot: agents return to the seed roster,
posts, narratives and logs are cleared and the run flag is turned off.

Stop the daemon first, or it will overwrite the reset on its next save.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("refusing to reset without --yes when stdin is not a terminal")
				}
				fmt.Print("⚠️  This erases every post and agent. Type 'reset' to confirm: ")
				answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if strings.TrimSpace(answer) != "reset" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			store, closeFn, err := openState(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := store.Reset(cmd.Context())
			if err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Printf("✅ Network reset: %d agents, 0 posts.\n", len(snap.Agents))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// versionCmd shows version info
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aier %s\n", version)
		},
	}
}
