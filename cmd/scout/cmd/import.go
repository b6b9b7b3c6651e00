package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/ai"
	"github.com/mvargas/tender-scout/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Fetch recent SECOP processes into the local cache",
	Run: func(cmd *cobra.Command, _ []string) {
		runImport(cmd)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().IntP("limit", "l", 50, "maximum number of processes to fetch")
	importCmd.Flags().StringP("query", "q", "", "full-text filter passed to the SECOP API")
}

func runImport(cmd *cobra.Command) {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return
	}
	defer d.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	query, _ := cmd.Flags().GetString("query")

	var gen ai.JSONGenerator
	if d.Engine.Enabled() {
		gen = d.Engine.WithFeature("classify")
	}
	pipeline := ingest.NewPipeline(d.Source, d.Store, d.Engine.WithFeature("import"), gen, d.Logger)

	stats, err := pipeline.ImportRecent(ctx, query, limit)
	if err != nil {
		d.Logger.Fatal("import failed", zap.Error(err), zap.Any("stats", stats))
	}

	d.Logger.Info("import complete",
		zap.Int("fetched", stats.Fetched),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors))
}
