package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/ai"
	"github.com/mvargas/tender-scout/internal/ingest"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run AI classification over cached tenders that are still pending",
	Run: func(cmd *cobra.Command, _ []string) {
		runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().IntP("batch-size", "b", 20, "number of pending tenders per run")
}

func runProcess(cmd *cobra.Command) {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return
	}
	defer d.Close()

	batchSize, _ := cmd.Flags().GetInt("batch-size")

	var gen ai.JSONGenerator
	if d.Engine.Enabled() {
		gen = d.Engine.WithFeature("classify")
	}
	pipeline := ingest.NewPipeline(d.Source, d.Store, nil, gen, d.Logger)

	stats, err := pipeline.ProcessPending(ctx, batchSize)
	if err != nil {
		d.Logger.Fatal("processing failed", zap.Error(err))
	}

	d.Logger.Info("processing complete",
		zap.Int("examined", stats.Examined),
		zap.Int("processed", stats.Processed),
		zap.Int("remaining", stats.Remaining))
}
