package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"bibliotech/internal/app"
	"bibliotech/internal/config"
	"bibliotech/internal/logging"
	"bibliotech/internal/service"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type rootOptions struct {
	configPath string
	jsonOutput bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "bibliotechctl",
		Short:         "Maintenance commands for the Bibliotech backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfig, "path to the YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newSweepCommand(opts),
		newExportCommand(opts),
		newBackupCommand(opts),
	)
	return cmd
}

// withApp loads the config, builds the application and runs fn. Logs go to
// stderr so stdout carries only results.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logging
	if out := strings.ToLower(strings.TrimSpace(logCfg.Output)); out == "" || out == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, closer, err := logging.New(logCfg, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	cliLogger := logging.Component(logger, "cli")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, cliLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func (o *rootOptions) print(w io.Writer, v any, text string) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.DB.Migrate(ctx); err != nil {
					return err
				}
				driver := a.DB.Driver()
				return opts.print(cmd.OutOrStdout(), map[string]string{"driver": driver, "status": "ok"},
					fmt.Sprintf("schema up to date (%s)", driver))
			})
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the catalog seed file; existing rows are skipped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				path := file
				if path == "" {
					path = a.Config.Catalog.SeedPath
				}
				if path == "" {
					return fmt.Errorf("no seed file: pass --file or set catalog.seed_path")
				}
				res, err := a.SeedCatalog(ctx, path)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), res, fmt.Sprintf(
					"categories=%d authors=%d books=%d skipped=%d",
					res.Categories, res.Authors, res.Books, res.Skipped))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (defaults to catalog.seed_path)")
	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue reservations, promote queues and flag overdue loans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Worker().RunOnce(ctx)
				if res == nil {
					return err
				}
				if printErr := opts.print(cmd.OutOrStdout(), res, fmt.Sprintf(
					"expired=%d promoted=%d", len(res.Expired), len(res.Promoted))); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var from, to, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the reservations of a date range to an .xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := service.ParseDateRange(from, to, time.Now())
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := dir
				if out == "" {
					out = a.Config.Exports.Path
				}
				path, err := a.Services.Reports.ExportReservations(ctx, out, start, end)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), map[string]string{"file": path}, path)
			})
		},
	}
	cmd.Flags().StringVar(&from, "de", "", "first day, YYYY-MM-DD (default: first day of this month)")
	cmd.Flags().StringVar(&to, "ate", "", "last day, inclusive, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (defaults to exports.path)")
	return cmd
}

func newBackupCommand(opts *rootOptions) *cobra.Command {
	var cleanup bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the SQLite database into backup.storage_path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				svc := a.Backup()
				path, err := svc.PerformBackup(ctx)
				if err != nil {
					return err
				}
				if cleanup {
					svc.CleanupOldBackups()
				}
				return opts.print(cmd.OutOrStdout(), map[string]string{"file": path}, path)
			})
		},
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "also delete backups older than backup.retention_days")
	return cmd
}
