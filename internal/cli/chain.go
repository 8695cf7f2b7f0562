package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"paper-trader/internal/market"
	"paper-trader/internal/pricing"
	"paper-trader/pkg/utils"
)

func newChainCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain [symbol]",
		Short: "Show a synthetic option chain",
		Long: `Generate and display the 15-strike option chain for an index symbol.
The spot price comes from the live feed when reachable, otherwise a
fixed fallback. Defaults to NIFTY.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := "NIFTY"
			if len(args) > 0 {
				symbol = strings.ToUpper(args[0])
			}
			gap, _ := cmd.Flags().GetFloat64("gap")
			days, _ := cmd.Flags().GetInt("expiry")

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			spot, err := app.Feed.SpotPrice(ctx, symbol)
			if err != nil {
				return err
			}

			chain := pricing.GenerateChain(pricing.ChainParams{
				Symbol:       symbol,
				SpotPrice:    spot,
				StrikeGap:    gap,
				DaysToExpiry: days,
				MarketOpen:   market.IsOpen(),
			})

			if output.IsJSON() {
				return output.JSON(chain)
			}

			output.Bold("%s  Spot: %s  Market: %s", chain.Symbol,
				utils.FormatIndianCurrency(chain.SpotPrice),
				output.MarketStatus(marketStatusOf(chain.MarketOpen)))
			output.Println()

			table := NewTable(output,
				"CE OI", "CE Vol", "CE Price", "CE Chg%", "Strike",
				"PE Chg%", "PE Price", "PE Vol", "PE OI")
			for _, s := range chain.Strikes {
				strikeLabel := fmt.Sprintf("%.0f", s.Strike)
				if s.IsATM {
					strikeLabel = output.Yellow(strikeLabel + " *")
				}
				table.AddRow(
					utils.FormatQuantity(s.CallOI),
					utils.FormatQuantity(s.CallVolume),
					fmt.Sprintf("%.2f", s.CallPrice),
					output.FormatPercent(s.CallChange),
					strikeLabel,
					output.FormatPercent(s.PutChange),
					fmt.Sprintf("%.2f", s.PutPrice),
					utils.FormatQuantity(s.PutVolume),
					utils.FormatQuantity(s.PutOI),
				)
			}
			table.Render()
			output.Dim("* ATM strike. Expiry in %d days, gap %.0f.", days, chain.StrikeGap)
			return nil
		},
	}

	cmd.Flags().Float64("gap", pricing.DefaultStrikeGap, "strike gap")
	cmd.Flags().Int("expiry", pricing.DefaultDaysToExpiry, "days to expiry")
	return cmd
}

func marketStatusOf(open bool) string {
	if open {
		return "OPEN"
	}
	return "CLOSED"
}
