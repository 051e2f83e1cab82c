package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mediasort/internal/app"
	"mediasort/internal/config"
	"mediasort/internal/model"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer Close.
// operation identifies the CLI command being run (e.g. "Scan", "Migrate").
func newApp(operation, parameters string) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func loadConfig() (*config.Config, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("resolving default paths: %w", err)
	}
	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "mediasort",
	Short: "Content-addressable media cataloging and deduplication",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init SOURCE_ROOT OUTPUT_ROOT",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}

		cfg := config.NewConfig(args[0], args[1], paths.BaseDir)
		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Source root: %s\n", cfg.SourceRoot)
		fmt.Printf("Output root: %s\n", cfg.OutputRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}
		cfg, err := config.ReadFromFile(paths.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Source root:  %s\n", cfg.SourceRoot)
		fmt.Printf("Output root:  %s\n", cfg.OutputRoot)
		fmt.Printf("Log dir:      %s\n", cfg.LogDir)
		fmt.Printf("Catalog:      %s (%s)\n", cfg.Catalog.Type, cfg.Catalog.DataDir)
		fmt.Printf("Scan workers: %d (block size %s, batch %d)\n",
			cfg.Scan.Workers, humanize.IBytes(uint64(cfg.Scan.BlockSize)), cfg.Scan.BatchSize)
		return nil
	},
}

// catalog command

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the catalog store",
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the catalog schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.InitCatalog(cfg); err != nil {
			return err
		}
		fmt.Println("Catalog schema is up to date.")
		return nil
	},
}

// pipeline commands

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Traverse the source root and hash new or changed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan", "")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Scan(cmd.Context())
		if report != nil {
			printScanReport(report)
		}
		return err
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Select primary copies and compute final paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Resolve", "")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Resolve(cmd.Context())
		if report != nil {
			printResolveReport(report)
		}
		return err
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy resolved primaries into the organized layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		clean, _ := cmd.Flags().GetBool("clean-catalog")

		a, err := newApp("Migrate", migrateParams(dryRun, force, clean))
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Migrate(cmd.Context(), dryRun, force, clean)
		if report != nil {
			printMigrateReport(report)
		}
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: scan, resolve, migrate",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp("Run", migrateParams(dryRun, false, false))
		if err != nil {
			return err
		}
		defer a.Close()

		scanReport, err := a.Scan(cmd.Context())
		if scanReport != nil {
			printScanReport(scanReport)
		}
		if err != nil {
			return err
		}

		resolveReport, err := a.Resolve(cmd.Context())
		if resolveReport != nil {
			printResolveReport(resolveReport)
		}
		if err != nil {
			return err
		}

		migrateReport, err := a.Migrate(cmd.Context(), dryRun, false, false)
		if migrateReport != nil {
			printMigrateReport(migrateReport)
		}
		return err
	},
}

// metadata command: the hook for the external metadata collaborator.

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Manage collaborator-supplied content metadata",
}

var metadataSetCmd = &cobra.Command{
	Use:   "set CONTENT_KEY",
	Short: "Set the best timestamp and/or type group for a content key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tsArg, _ := cmd.Flags().GetString("timestamp")
		group, _ := cmd.Flags().GetString("group")
		if tsArg == "" && group == "" {
			return fmt.Errorf("at least one of --timestamp or --group is required")
		}

		var ts *time.Time
		if tsArg != "" {
			parsed, err := time.Parse(time.RFC3339, tsArg)
			if err != nil {
				return fmt.Errorf("parsing --timestamp (want RFC 3339): %w", err)
			}
			ts = &parsed
		}

		a, err := newApp("SetMetadata", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetContentMetadata(cmd.Context(), args[0], ts, group); err != nil {
			return err
		}
		fmt.Printf("Metadata updated for %s\n", args[0])
		return nil
	},
}

// status and history commands

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status", "")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Unique content", stats.TotalContent})
		t.AppendRow(table.Row{"Resolved content", stats.ResolvedContent})
		t.AppendRow(table.Row{"Path instances", stats.TotalPaths})
		t.AppendRow(table.Row{"Primary instances", stats.PrimaryPaths})
		t.AppendRow(table.Row{"Duplicate instances", stats.TotalPaths - stats.PrimaryPaths})
		t.AppendRow(table.Row{"Unique bytes", humanize.IBytes(uint64(stats.TotalBytes))})
		t.Render()
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History", "")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Operation", "Started", "Status", "Duration"})
		for _, run := range runs {
			duration := ""
			if run.FinishedAt != nil {
				duration = run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond).String()
			}
			t.AppendRow(table.Row{
				run.ID,
				run.Operation,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Status,
				duration,
			})
		}
		t.Render()
		return nil
	},
}

func migrateParams(dryRun, force, clean bool) string {
	var parts []string
	if dryRun {
		parts = append(parts, "dry-run")
	}
	if force {
		parts = append(parts, "force")
	}
	if clean {
		parts = append(parts, "clean-catalog")
	}
	return strings.Join(parts, ",")
}

func printScanReport(r *model.ScanReport) {
	fmt.Printf("Scan: %d scanned, %d fast-skipped, %d hashed, %d new content, %d new paths, %d failed\n",
		r.Scanned, r.Skipped, r.Hashed, r.NewContent, r.NewPaths, r.Failed)
	for _, f := range r.Failures {
		fmt.Printf("  failed: %s (%v)\n", f.Path, f.Err)
	}
}

func printResolveReport(r *model.ResolveReport) {
	fmt.Printf("Resolve: %d groups, %d duplicate instances, %d paths assigned (%d already resolved)\n",
		r.Groups, r.DuplicateInstances, r.Assigned, r.AlreadyResolved)
}

func printMigrateReport(r *model.MigrateReport) {
	verb := "migrated"
	if r.DryRun {
		verb = "would migrate"
	}
	fmt.Printf("Migrate: %d %s, %d already present, %d failed\n",
		r.Migrated, verb, r.SkippedExisting, r.Failed)
	for _, f := range r.Failures {
		fmt.Printf("  failed: %s (%v)\n", f.Path, f.Err)
	}
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	catalogCmd.AddCommand(catalogInitCmd)

	migrateCmd.Flags().Bool("dry-run", false, "Compute and log every decision without copying")
	migrateCmd.Flags().Bool("force", false, "Re-copy even when the destination already exists")
	migrateCmd.Flags().Bool("clean-catalog", false, "Emit a secondary catalog describing the migrated layout")
	runCmd.Flags().Bool("dry-run", false, "Compute and log migration decisions without copying")

	metadataCmd.AddCommand(metadataSetCmd)
	metadataSetCmd.Flags().String("timestamp", "", "Best known timestamp (RFC 3339)")
	metadataSetCmd.Flags().String("group", "", "Type group (image, video, audio, document, other)")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}
