package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close()

		record, err := app.imports.Import(cmd.Context(), filepath.Base(importCSVPath), f)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.String("import_id", record.ID),
			zap.Int("total", record.TotalRows),
			zap.Int("created", record.CreatedCount),
			zap.Int("failed", record.FailedCount),
			zap.Int("skipped", record.SkippedCount),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
