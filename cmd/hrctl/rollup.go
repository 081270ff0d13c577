package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrdesk/hr-assistant/internal/store"
)

var (
	rollupDate string
	rollupDays int
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Compute daily analytics rows",
	Long:  `Compute and store the analytics rollup for a UTC day, or for the last --days days ending on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		day := time.Now().UTC()
		if rollupDate != "" {
			parsed, err := time.Parse("2006-01-02", rollupDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", rollupDate, err)
			}
			day = parsed
		}
		if rollupDays < 1 {
			return fmt.Errorf("--days must be at least 1")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close(db)

		analytics := store.NewAnalyticsStore(db)
		ctx := context.Background()
		for i := rollupDays - 1; i >= 0; i-- {
			row, err := analytics.Rollup(ctx, day.AddDate(0, 0, -i))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s messages=%d users=%d kb_hits=%d escalated=%d\n",
				row.Date.Format("2006-01-02"), row.TotalMessages, row.UniqueUsers,
				row.KnowledgeBaseHits, row.EscalatedConversations)
		}
		return nil
	},
}

func init() {
	rollupCmd.Flags().StringVar(&rollupDate, "date", "", "last day to compute (YYYY-MM-DD, default today)")
	rollupCmd.Flags().IntVar(&rollupDays, "days", 1, "number of days to compute")
	rootCmd.AddCommand(rollupCmd)
}
