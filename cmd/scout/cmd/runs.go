package cmd

import (
	"context"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent import runs",
	Run: func(cmd *cobra.Command, _ []string) {
		runRuns(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntP("limit", "l", 10, "number of runs to show")
}

func runRuns(cmd *cobra.Command) {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return
	}
	defer d.Close()

	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := d.Store.ListImportRuns(ctx, limit)
	if err != nil {
		d.Logger.Fatal("listing import runs", zap.Error(err))
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Status", "Fetched", "Inserted", "Skipped", "Errors", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			r.SourceID, r.Status, r.ItemsFetched, r.ItemsInserted, r.ItemsSkipped, r.Errors,
			duration, r.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}
