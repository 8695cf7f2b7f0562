package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"paper-trader/internal/store"
)

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Export the trade journal to CSV",
		Long: `Export settled trades to a CSV file. Filters narrow the export to a
symbol, side or date range.

Examples:
  paper-trader export trades.csv
  paper-trader export nifty.csv --symbol NIFTY25000CE --side SELL
  paper-trader export week.csv --from 2026-08-24 --to 2026-08-31`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, _ := cmd.Flags().GetString("symbol")
			side, _ := cmd.Flags().GetString("side")
			limit, _ := cmd.Flags().GetInt("limit")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")

			filter := store.TradeFilter{
				UserID: userID(cmd),
				Symbol: strings.ToUpper(symbol),
				Side:   strings.ToUpper(side),
				Limit:  limit,
			}
			if from != "" {
				t, err := time.Parse("2006-01-02", from)
				if err != nil {
					output.Error("Invalid --from date: %v", err)
					return err
				}
				filter.StartDate = t
			}
			if to != "" {
				t, err := time.Parse("2006-01-02", to)
				if err != nil {
					output.Error("Invalid --to date: %v", err)
					return err
				}
				// Inclusive to end of day.
				filter.EndDate = t.Add(24*time.Hour - time.Nanosecond)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()

			trades, err := app.Desk.Trades(ctx, filter)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				output.Info("No trades match the filter; nothing exported.")
				return nil
			}

			file, err := os.Create(args[0])
			if err != nil {
				output.Error("Failed to create %s: %v", args[0], err)
				return err
			}
			defer file.Close()

			if err := gocsv.MarshalFile(&trades, file); err != nil {
				output.Error("CSV export failed: %v", err)
				return err
			}

			output.Success("Exported %d trades to %s", len(trades), args[0])
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "filter by symbol")
	cmd.Flags().String("side", "", "filter by side: BUY or SELL")
	cmd.Flags().Int("limit", 0, "maximum trades to export; zero exports all")
	cmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD), inclusive")
	return cmd
}
