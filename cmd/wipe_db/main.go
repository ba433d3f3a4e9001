package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexuscrm/persist/internal/config"
	"github.com/nexuscrm/persist/internal/infrastructure/database"
	"github.com/nexuscrm/persist/internal/infrastructure/persistence"
)

type wipeOptions struct {
	configFile string
	prefix     string
	all        bool
	dryRun     bool
}

func main() {
	if err := newWipeCommand().Execute(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func newWipeCommand() *cobra.Command {
	opts := &wipeOptions{}

	cmd := &cobra.Command{
		Use:   "wipe_db",
		Short: "Drop every table carrying the configured prefix",
		Long: `Drop every table whose name starts with the table prefix, child tables
included. The prefix comes from --prefix or PERSIST_TABLE_PREFIX. An empty
prefix matches every table of the database and must be confirmed with --all.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWipe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "", "YAML configuration file (defaults to PERSIST_CONFIG_FILE)")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "table prefix (defaults to PERSIST_TABLE_PREFIX)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "allow an empty prefix, dropping every table")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list the tables without dropping them")
	return cmd
}

func runWipe(ctx context.Context, opts *wipeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	config.LoadEnvFile()
	configFile := opts.configFile
	if configFile == "" {
		configFile = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.LoadWithFile(configFile, os.Getenv)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	prefix := cfg.Settings.TablePrefix
	if opts.prefix != "" {
		prefix = opts.prefix
	}
	if prefix == "" && !opts.all {
		return fmt.Errorf("no table prefix configured: set PERSIST_TABLE_PREFIX, pass --prefix, or pass --all")
	}

	if cfg.Credentials.Host == "" || cfg.Credentials.User == "" {
		log.Println("Warning: TIDB_HOST or TIDB_USER not set, connection might fail")
	}

	conn, err := database.Connect(ctx, cfg.Credentials, cfg.Options)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Disconnect()

	repo := persistence.NewSchemaRepository(conn)

	tables, err := repo.ListTables(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	if len(tables) == 0 {
		log.Printf("✅ No tables with prefix %q in %s", prefix, conn.SelectedDatabase())
		return nil
	}

	if opts.dryRun {
		for _, table := range tables {
			log.Printf("Would drop table: %s", table)
		}
		return nil
	}

	log.Printf("🧹 Wiping %d tables with prefix %q from %s", len(tables), prefix, conn.SelectedDatabase())
	if err := repo.DropTables(ctx, tables); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	log.Printf("✅ Database wiped successfully in %s (%d statements).", conn.TotalDuration(), len(conn.History()))
	return nil
}
