package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/logger"
	"github.com/mvargas/tender-scout/internal/match"
	"github.com/mvargas/tender-scout/internal/profile"
)

var rankCmd = &cobra.Command{
	Use:   "rank <company-id>",
	Short: "Score live SECOP processes against a company profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRank(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().IntP("limit", "l", 50, "maximum number of processes to fetch")
	rankCmd.Flags().StringP("query", "q", "", "full-text filter passed to the SECOP API")
	rankCmd.Flags().StringP("strategy", "s", "", "scoring strategy (ranked or profile-fit)")
}

func runRank(cmd *cobra.Command, rawID string) {
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

	strategyName, _ := cmd.Flags().GetString("strategy")
	strategy, err := match.ForName(strategyName)
	if err != nil {
		d.Logger.Fatal("unknown strategy", zap.Error(err))
	}

	limit, _ := cmd.Flags().GetInt("limit")
	query, _ := cmd.Flags().GetString("query")

	company, err := d.Store.GetCompany(ctx, companyID)
	if err != nil {
		d.Logger.Fatal("loading company", zap.Error(err))
	}
	contracts, err := d.Store.ListContracts(ctx, companyID)
	if err != nil {
		d.Logger.Fatal("loading contracts", zap.Error(err))
	}
	prof := match.NewProfile(*company, contracts)

	history := profile.Summarize(contracts)
	d.Logger.Info("searching processes",
		zap.String("company", company.Name),
		zap.String("strategy", strategy.Name()),
		zap.String("query", query),
		zap.Float64("capacity", prof.Capacity),
		zap.Int("contracts", history.TotalContracts),
		zap.Float64("avg_contract_value", history.AverageValue))

	listings, err := d.Source.Search(ctx, query, limit)
	if err != nil {
		d.Logger.Fatal("secop search failed", zap.Error(err))
	}
	if len(listings) == 0 {
		d.Logger.Info("no processes found")
		return
	}

	scored, err := match.ScoreAll(ctx, strategy, prof, listings, 0)
	if err != nil {
		d.Logger.Fatal("scoring failed", zap.Error(err))
	}
	classification := match.Classify(scored, prof.Capacity)

	if len(classification.Opportunities) > 0 {
		fmt.Println("Oportunidades")
		renderOpportunities(classification.Opportunities)
	}
	if len(classification.Risks) > 0 {
		fmt.Println("Riesgos")
		renderRisks(classification.Risks)
	}

	summary := classification.Summary
	d.Logger.Info("analysis complete",
		zap.Int("analyzed", summary.Total),
		zap.Int("opportunities", summary.Opportunities),
		zap.Int("risks", summary.Risks),
		zap.Float64("average_score", summary.AverageScore))
}

func renderOpportunities(opportunities []match.ScoredTender) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Score", "SECOP ID", "Entity", "Amount", "Reasons"})

	for _, st := range opportunities {
		t.AppendRow(table.Row{
			st.Scorecard.Score,
			st.Listing.SecopID,
			logger.TruncateForLog(st.Listing.Entity, 40),
			fmt.Sprintf("%.0f", st.Listing.Amount),
			logger.TruncateForLog(strings.Join(st.Scorecard.Reasons, "; "), 60),
		})
	}
	t.Render()
}

func renderRisks(risks []match.Risk) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Score", "Severity", "SECOP ID", "Entity", "Amount", "Warnings"})

	for _, r := range risks {
		t.AppendRow(table.Row{
			r.Scorecard.Score,
			r.Severity,
			r.Listing.SecopID,
			logger.TruncateForLog(r.Listing.Entity, 40),
			fmt.Sprintf("%.0f", r.Listing.Amount),
			logger.TruncateForLog(strings.Join(r.Scorecard.Warnings, "; "), 60),
		})
	}
	t.Render()
}
