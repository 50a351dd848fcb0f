package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var lenderSeedPath string

var lendersCmd = &cobra.Command{
	Use:   "lenders",
	Short: "Manage the lender roster",
}

var lendersSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load or refresh the lender roster from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		f, err := os.Open(lenderSeedPath)
		if err != nil {
			return eris.Wrap(err, "open roster file")
		}
		defer f.Close()

		result, err := app.lenders.SeedRoster(cmd.Context(), f)
		if err != nil {
			return eris.Wrap(err, "seed roster")
		}

		zap.L().Info("roster seeded",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
		)
		return nil
	},
}

func init() {
	lendersSeedCmd.Flags().StringVar(&lenderSeedPath, "file", "", "path to roster YAML (required)")
	_ = lendersSeedCmd.MarkFlagRequired("file")
	lendersCmd.AddCommand(lendersSeedCmd)
	rootCmd.AddCommand(lendersCmd)
}
