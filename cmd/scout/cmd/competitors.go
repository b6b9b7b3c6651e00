package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/logger"
	"github.com/mvargas/tender-scout/internal/match"
)

var competitorsCmd = &cobra.Command{
	Use:   "competitors <company-id>",
	Short: "Rank past award winners in the company's UNSPSC codes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCompetitors(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(competitorsCmd)

	competitorsCmd.Flags().IntP("limit", "l", 50, "maximum number of awarded contracts to fetch")
}

func runCompetitors(cmd *cobra.Command, rawID string) {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return
	}
	defer d.Close()

	companyID, err := uuid.Parse(rawID)
	if err != nil {
		d.Logger.Fatal("invalid company id", zap.String("id", rawID), zap.Error(err))
	}

	limit, _ := cmd.Flags().GetInt("limit")

	company, err := d.Store.GetCompany(ctx, companyID)
	if err != nil {
		d.Logger.Fatal("loading company", zap.Error(err))
	}
	if len(company.UNSPSCCodes) == 0 {
		d.Logger.Info("company has no UNSPSC codes registered", zap.String("company", company.Name))
		return
	}

	awarded, err := d.Source.SearchAwarded(ctx, company.UNSPSCCodes, limit)
	if err != nil {
		d.Logger.Fatal("secop awarded search failed", zap.Error(err))
	}

	competitors := match.Competitors(awarded)
	if len(competitors) == 0 {
		d.Logger.Info("no awarded contracts found in these codes",
			zap.Strings("codes", company.UNSPSCCodes))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Supplier", "Contracts", "Total", "Average"})
	for _, comp := range competitors {
		t.AppendRow(table.Row{
			logger.TruncateForLog(comp.Supplier, 45),
			comp.Contracts,
			fmt.Sprintf("%.0f", comp.TotalValue),
			fmt.Sprintf("%.0f", comp.AverageValue),
		})
	}
	t.Render()

	d.Logger.Info("competitor analysis complete",
		zap.String("company", company.Name),
		zap.Int("contracts", len(awarded)),
		zap.Int("suppliers", len(competitors)))
}
