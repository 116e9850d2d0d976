package cmd

import (
	"catalog-sync/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixIntegrity bool

// integrityCmd runs the infrastructure checks from the command line.
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check the catalog schema, datasource roots and duplicate rows",
	Long: `Runs every integrity check and prints the findings.

Examples:
  # Report only
  integrity

  # Remove duplicate catalog rows after confirmation
  integrity --fix`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		l := a.logger

		svc := integrity.NewService(a.db, a.store, a.remotes(), a.service(), l)

		schema, err := svc.CheckSchema()
		if err != nil {
			return err
		}
		printSchemaReport(l, schema)

		datasources, err := svc.CheckDatasources(ctx)
		if err != nil {
			return err
		}
		for _, r := range datasources {
			switch {
			case r.Skipped:
				l.Info("Datasource skipped", zap.String("name", r.Name), zap.String("backend", r.Backend))
			case r.Reachable:
				l.Info("Datasource reachable", zap.String("name", r.Name), zap.String("root", r.Root))
			default:
				l.Warn("Datasource unreachable", zap.String("name", r.Name), zap.String("root", r.Root), zap.String("error", r.Error))
			}
		}

		duplicates, err := svc.CheckDuplicates(ctx)
		if err != nil {
			return err
		}
		for _, r := range duplicates {
			l.Warn("Duplicate catalog rows", zap.String("name", r.Name), zap.Int64("rows", r.Duplicates))
		}

		if !fixIntegrity || len(duplicates) == 0 {
			return nil
		}
		if !confirmDestructiveAction() {
			l.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
		removed, err := svc.FixDuplicates(ctx, duplicates)
		if err != nil {
			return err
		}
		l.Info("Duplicate rows removed", zap.Int64("count", removed))
		return nil
	},
}

func init() {
	integrityCmd.Flags().BoolVar(&fixIntegrity, "fix", false, "Remove duplicate catalog rows")
	integrityCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	RootCmd.AddCommand(integrityCmd)
}
