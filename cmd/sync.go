package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"catalog-sync/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the sync and cleanup commands
	dryRunSync bool
	yesConfirm bool
)

// syncCmd reconciles one datasource.
var syncCmd = &cobra.Command{
	Use:   "sync <datasource-id>",
	Short: "Reconcile a datasource catalog with its remote",
	Long: `Lists the datasource remote, classifies every entry against the catalog
and applies creates, updates, moves and orphan marks.

Examples:
  # Plan only, nothing is written
  sync 3 --dry-run

  # Apply
  sync 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

// cleanupCmd removes duplicate catalog rows.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup <datasource-id>",
	Short: "Remove duplicate catalog rows of a datasource",
	Long: `Keeps the oldest row of every (key, kind) among non-orphaned entries and
deletes the others. Running it twice removes nothing the second time.`,
	Args: cobra.ExactArgs(1),
	RunE: runCleanup,
}

func init() {
	syncCmd.Flags().BoolVar(&dryRunSync, "dry-run", false, "Plan the sync without writing the catalog or sidecars")
	cleanupCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	RootCmd.AddCommand(syncCmd)
	RootCmd.AddCommand(cleanupCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	l := a.logger

	l.Info("Starting sync", zap.Uint("datasource", id), zap.Bool("dry_run", dryRunSync))
	result, err := a.service().Sync(ctx, id, reconcile.Options{DryRun: dryRunSync})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printSyncReport(l, result)
	if result.DryRun {
		l.Info("Dry-run mode: No changes were made.")
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	l := a.logger

	ds, err := a.store.GetDatasource(ctx, id)
	if err != nil {
		return err
	}
	l.Info("Duplicate cleanup", zap.Uint("datasource", ds.ID), zap.String("name", ds.Name))

	if !confirmDestructiveAction() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	removed, err := a.service().Cleanup(ctx, id)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	l.Info("Duplicate rows removed", zap.Int64("count", removed))
	return nil
}

// printSyncReport prints a formatted sync report using logger.
func printSyncReport(l *zap.Logger, result *reconcile.SyncResult) {
	l.Info("Sync report",
		zap.Uint("datasource", result.Datasource),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("identical", result.Identical),
		zap.Int("merged", result.Merged),
		zap.Int("orphaned", result.Orphaned),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)

	for _, e := range result.Errors {
		l.Warn("Entity failed", zap.String("key", e.Key), zap.String("op", string(e.Op)), zap.String("error", e.Message))
	}

	if len(result.Actions) == 0 {
		return
	}

	summary := reconcile.PlanSummary(result.Actions)
	types := make([]string, 0, len(summary))
	for t := range summary {
		types = append(types, string(t))
	}
	sort.Strings(types)
	fields := make([]zap.Field, 0, len(types)+1)
	for _, t := range types {
		fields = append(fields, zap.Int(t, summary[reconcile.ActionType(t)]))
	}
	fields = append(fields, zap.Int("total_actions", len(result.Actions)))
	l.Info("Planned actions", fields...)

	// Show sample of actions (max 5 for logger)
	maxShow := min(5, len(result.Actions))
	for _, action := range result.Actions[:maxShow] {
		l.Info("Sample action",
			zap.String("type", string(action.Type)),
			zap.String("key", action.Key),
			zap.String("reason", action.Reason),
		)
	}
	if len(result.Actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(result.Actions)-maxShow))
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
