package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"bix/internal/app"
	"bix/internal/config"
	"bix/internal/database"
	"bix/internal/index"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the --config flag, or the default
// location. A missing default config is not an error: the built-in defaults
// apply and sources come from flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		defaults, err := app.GetDefaults()
		if err != nil {
			return nil, fmt.Errorf("getting defaults: %w", err)
		}
		path = defaults["config_path"]
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// applyFlags folds command-line overrides into the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("db-driver") {
		cfg.Store.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-host") {
		cfg.Store.Host, _ = cmd.Flags().GetString("db-host")
	}
	if cmd.Flags().Changed("db-port") {
		cfg.Store.Port, _ = cmd.Flags().GetInt("db-port")
	}
	if cmd.Flags().Changed("db-name") {
		cfg.Store.Name, _ = cmd.Flags().GetString("db-name")
	}
	if cmd.Flags().Changed("db-user") {
		cfg.Store.User, _ = cmd.Flags().GetString("db-user")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Indexing.Workers, _ = cmd.Flags().GetInt("workers")
	}

	if sourcePath, _ := cmd.Flags().GetString("source-path"); sourcePath != "" {
		abs, err := filepath.Abs(sourcePath)
		if err != nil {
			return fmt.Errorf("resolving source path: %w", err)
		}
		name, _ := cmd.Flags().GetString("source-name")
		if name == "" {
			name = filepath.Base(abs)
		}
		srcType, _ := cmd.Flags().GetString("source-type")
		cfg.BackupSources = []config.SourceConfig{{
			Name: name,
			Type: srcType,
			Path: abs,
		}}
	}

	return cfg.Validate()
}

// storeOptions builds catalog options from config plus the password, which is
// resolved from --db-password, the DB_PASSWORD environment variable, or an
// interactive prompt, in that order. Only the postgres driver needs one.
func storeOptions(cmd *cobra.Command, cfg *config.Config) (database.Options, error) {
	opts := database.Options{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	}
	if opts.DataDir == "" {
		defaults, err := app.GetDefaults()
		if err != nil {
			return opts, fmt.Errorf("getting defaults: %w", err)
		}
		opts.DataDir = defaults["data_dir"]
	}

	if cfg.Store.Driver != "postgres" {
		return opts, nil
	}

	password, _ := cmd.Flags().GetString("db-password")
	if password == "" {
		password = os.Getenv("DB_PASSWORD")
	}
	if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ", cfg.Store.User, cfg.Store.Host)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return opts, fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}

	opts.Postgres = database.ConnParams{
		Host:     cfg.Store.Host,
		Port:     cfg.Store.Port,
		Database: cfg.Store.Name,
		User:     cfg.Store.User,
		Password: password,
	}
	return opts, nil
}

func logDir() (string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return defaults["log_dir"], nil
}

var rootCmd = &cobra.Command{
	Use:   "bix",
	Short: "Backup file indexer",
}

// index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan backup sources and index their files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return err
		}

		if len(cfg.BackupSources) == 0 {
			return fmt.Errorf("no backup sources configured (use --source-path or a config file)")
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			fmt.Printf("Would index with configuration:\n%s\n", data)
			return nil
		}

		opts, err := storeOptions(cmd, cfg)
		if err != nil {
			return err
		}
		dir, err := logDir()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, opts, dir)
		if err != nil {
			return err
		}
		defer a.Close()

		// The summary covers whatever was indexed before a cancellation or
		// configuration error stopped the run; print it either way.
		summary, err := a.Service().IndexAll(ctx, a.Sources())
		printSummary(summary)
		return err
	},
}

func printSummary(summary *index.Summary) {
	for _, r := range summary.Results {
		fmt.Printf("%-10s %s: processed=%d added=%d updated=%d skipped=%d errors=%d bytes=%d\n",
			string(r.Status), r.Source.Name,
			r.Counters.FilesProcessed, r.Counters.FilesAdded, r.Counters.FilesUpdated,
			r.Counters.FilesSkipped, r.Counters.Errors, r.Counters.TotalBytes)
		if r.Err != nil {
			fmt.Printf("           %s: %v\n", r.Source.Name, r.Err)
		}
	}
	t := summary.Totals
	fmt.Printf("Total: processed=%d added=%d updated=%d skipped=%d errors=%d bytes=%d\n",
		t.FilesProcessed, t.FilesAdded, t.FilesUpdated, t.FilesSkipped, t.Errors, t.TotalBytes)
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.Default()
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Data Dir: %s\n", defaults["data_dir"])
		fmt.Printf("Log Dir:  %s\n", defaults["log_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		fmt.Printf("%s\n", data)
		return nil
	},
}

// sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List cataloged backup sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(ctx context.Context, catalog index.Catalog) error {
			sources, err := catalog.ListSources(ctx)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Println("No backup sources cataloged.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tPATH")
			for _, s := range sources {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Type, s.Path)
			}
			return w.Flush()
		})
	},
}

// sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent indexing sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withCatalog(cmd, func(ctx context.Context, catalog index.Catalog) error {
			sessions, err := catalog.ListSessions(ctx, limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No indexing sessions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTART\tSTATUS\tFILES\tADDED\tBYTES")
			for _, s := range sessions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\n",
					s.ID, s.Start.Format("2006-01-02 15:04:05"), string(s.Status),
					s.TotalFiles, s.FilesAdded, s.TotalSizeBytes)
			}
			return w.Flush()
		})
	},
}

// withCatalog opens the catalog for a read-only command and closes it after.
func withCatalog(cmd *cobra.Command, fn func(context.Context, index.Catalog) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	opts, err := storeOptions(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := database.NewCatalogFromOptions(ctx, opts)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer catalog.Close()

	return fn(ctx, catalog)
}

// addStoreFlags registers the flags shared by every catalog-touching command.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Config file path")
	cmd.Flags().String("db-driver", "", "Catalog store driver (sqlite, postgres, memory)")
	cmd.Flags().String("db-host", "", "PostgreSQL host")
	cmd.Flags().Int("db-port", 0, "PostgreSQL port")
	cmd.Flags().String("db-name", "", "PostgreSQL database name")
	cmd.Flags().String("db-user", "", "PostgreSQL user")
	cmd.Flags().String("db-password", "", "PostgreSQL password (falls back to DB_PASSWORD, then a prompt)")
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configListCmd.Flags().StringP("config", "c", "", "Config file path")

	addStoreFlags(indexCmd)
	indexCmd.Flags().String("source-path", "", "Index a single directory instead of the configured sources")
	indexCmd.Flags().String("source-name", "", "Source name for --source-path (default: directory basename)")
	indexCmd.Flags().String("source-type", "directory", "Source type for --source-path")
	indexCmd.Flags().Int("workers", 0, "Number of concurrent extractor workers")
	indexCmd.Flags().Bool("dry-run", false, "Print the effective configuration and exit")

	addStoreFlags(sourcesCmd)
	addStoreFlags(sessionsCmd)
	sessionsCmd.Flags().IntP("limit", "n", 20, "Maximum number of sessions to show")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(sessionsCmd)
}
