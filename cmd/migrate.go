package cmd

import (
	"fmt"

	"catalog-sync/feature/catalog/models"
	"catalog-sync/feature/integrity/checks"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd applies the catalog schema and verifies the resulting tables.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the catalog schema",
	Long: `Runs the schema migrations and checks that every table carries the columns
the models expect. Fails when a column could not be created, e.g. on a
database user without ALTER privileges.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		report, err := checks.CheckSchema(a.db, models.All())
		if err != nil {
			return err
		}
		printSchemaReport(a.logger, report)
		if !report.Matched {
			return fmt.Errorf("catalog schema does not match the models")
		}
		a.logger.Info("Catalog schema is up to date", zap.String("driver", report.Driver))
		return nil
	},
}

func printSchemaReport(l *zap.Logger, report *checks.SchemaReport) {
	for table, t := range report.Tables {
		if t.Status == "ok" {
			l.Info("Table verified", zap.String("table", table))
			continue
		}
		l.Error("Table mismatch",
			zap.String("table", table),
			zap.Strings("missing_columns", t.MissingColumns),
			zap.Strings("type_mismatches", t.TypeMismatches),
		)
	}
	for _, e := range report.Errors {
		l.Error("Schema inspection failed", zap.String("error", e))
	}
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
