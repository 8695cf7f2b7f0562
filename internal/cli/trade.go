package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"paper-trader/internal/models"
	"paper-trader/internal/trading"
	"paper-trader/pkg/utils"
)

const cmdTimeout = 15 * time.Second

func newBuyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy <symbol>",
		Short: "Buy an option or equity position",
		Long: `Open a position with virtual cash. Options need --strike and
--instrument CE or PE; equity uses --instrument EQUITY (the default).

Examples:
  paper-trader buy NIFTY25000CE --instrument CE --strike 25000 --qty 1 --lot 50
  paper-trader buy RELIANCE --qty 10 --price 2950`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd, app, args[0], models.OrderSideBuy)
		},
	}
	addOrderFlags(cmd)
	return cmd
}

func newSellCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sell <symbol>",
		Short: "Sell an equity holding or write an option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd, app, args[0], models.OrderSideSell)
		},
	}
	addOrderFlags(cmd)
	return cmd
}

func addOrderFlags(cmd *cobra.Command) {
	cmd.Flags().String("instrument", "EQUITY", "instrument type: EQUITY, CE or PE")
	cmd.Flags().Float64("strike", 0, "strike price (options)")
	cmd.Flags().Int("qty", 1, "quantity (lots for options, shares for equity)")
	cmd.Flags().Int("lot", 0, "lot size (options, defaults per instrument)")
	cmd.Flags().Float64("price", 0, "limit price; zero resolves from the feed")
}

func runOrder(cmd *cobra.Command, app *App, symbol string, side models.OrderSide) error {
	output := NewOutput(cmd)
	instrument, _ := cmd.Flags().GetString("instrument")
	strike, _ := cmd.Flags().GetFloat64("strike")
	qty, _ := cmd.Flags().GetInt("qty")
	lot, _ := cmd.Flags().GetInt("lot")
	price, _ := cmd.Flags().GetFloat64("price")

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	result, err := app.Desk.PlaceOrder(ctx, trading.OrderRequest{
		UserID:     userID(cmd),
		Symbol:     strings.ToUpper(symbol),
		Instrument: models.InstrumentType(strings.ToUpper(instrument)),
		Side:       side,
		Strike:     strike,
		Quantity:   qty,
		LotSize:    lot,
		Price:      price,
	})
	if err != nil {
		output.Error("Order rejected: %v", err)
		return err
	}

	if output.IsJSON() {
		return output.JSON(result)
	}
	if result.Credit > 0 {
		output.Success("Sold %s at %.2f, credited %s",
			result.Symbol, result.Price, utils.FormatIndianCurrency(result.Credit))
	} else {
		output.Success("Bought %s at %.2f, debited %s",
			result.Symbol, result.Price, utils.FormatIndianCurrency(result.Debit))
	}
	if result.PositionID != "" {
		output.Printf("Position: %s\n", result.PositionID)
	}
	output.Printf("Balance:  %s\n", utils.FormatIndianCurrency(result.Balance))
	if !result.MarketOpen {
		output.Warning("Market is closed; order filled at the reference price.")
	}
	return nil
}

func newCloseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <position-id>",
		Short: "Close an open position",
		Long: `Close a position fully or partially. When the market is closed the
settlement price falls back to the last traded price, then the entry
price.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			qty, _ := cmd.Flags().GetInt("qty")
			price, _ := cmd.Flags().GetFloat64("price")

			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()

			result, err := app.Desk.ClosePosition(ctx, trading.CloseRequest{
				UserID:     userID(cmd),
				PositionID: args[0],
				Quantity:   qty,
				LivePrice:  price,
			})
			if err != nil {
				output.Error("Close failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			output.Success("Closed %s at %.2f", result.Symbol, result.Price)
			output.Printf("Credit:  %s\n", utils.FormatIndianCurrency(result.Credit))
			output.Printf("P&L:     %s (%s)\n", output.FormatPnL(result.PnL),
				output.FormatPercent(result.PnLPercent))
			if result.RemainingQuantity > 0 {
				output.Printf("Remaining: %d lots\n", result.RemainingQuantity)
			}
			output.Printf("Balance: %s\n", utils.FormatIndianCurrency(result.Balance))
			return nil
		},
	}

	cmd.Flags().Int("qty", 0, "lots to close; zero closes the full position")
	cmd.Flags().Float64("price", 0, "observed live price; zero uses the cached price")
	return cmd
}

func newCloseAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close-all",
		Short: "Close every open position",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()

			result, err := app.Desk.CloseAll(ctx, userID(cmd), nil)
			if err != nil {
				output.Error("Close all failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			if len(result.Breakdown) == 0 {
				output.Info("No open positions.")
				return nil
			}
			table := NewTable(output, "Position", "Symbol", "Credit", "P&L")
			for _, b := range result.Breakdown {
				table.AddRow(
					b.ID,
					b.Symbol,
					utils.FormatIndianCurrency(b.Credit),
					output.FormatPnL(b.PnL),
				)
			}
			table.Render()
			output.Println()
			output.Printf("Total credit: %s\n", utils.FormatIndianCurrency(result.TotalCredit))
			output.Printf("Total P&L:    %s\n", output.FormatPnL(result.TotalPnL))
			output.Printf("Balance:      %s\n", utils.FormatIndianCurrency(result.Balance))
			return nil
		},
	}
}

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show open positions, holdings and P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()

			view, err := app.Desk.Portfolio(ctx, userID(cmd), nil)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(view)
			}

			output.Bold("Portfolio (%s)  Market: %s", userID(cmd),
				output.MarketStatus(string(view.MarketStatus)))
			output.Println()

			if len(view.Positions) > 0 {
				output.Bold("Positions")
				table := NewTable(output, "ID", "Symbol", "Side", "Qty", "Entry", "Current", "P&L", "P&L%")
				for _, p := range view.Positions {
					table.AddRow(
						p.ID,
						p.Symbol,
						string(p.Side),
						fmt.Sprintf("%dx%d", p.Quantity, p.LotSize),
						fmt.Sprintf("%.2f", p.EntryPrice),
						fmt.Sprintf("%.2f", p.CurrentPrice),
						output.FormatPnL(p.PnL),
						output.FormatPercent(p.PnLPercent),
					)
				}
				table.Render()
				output.Println()
			}

			if len(view.Holdings) > 0 {
				output.Bold("Holdings")
				table := NewTable(output, "Symbol", "Qty", "Avg", "Current", "P&L", "P&L%")
				for _, h := range view.Holdings {
					table.AddRow(
						h.Symbol,
						fmt.Sprintf("%d", h.Quantity),
						fmt.Sprintf("%.2f", h.AveragePrice),
						fmt.Sprintf("%.2f", h.CurrentPrice),
						output.FormatPnL(h.PnL),
						output.FormatPercent(h.PnLPercent),
					)
				}
				table.Render()
				output.Println()
			}

			if len(view.Positions) == 0 && len(view.Holdings) == 0 {
				output.Info("No open positions or holdings.")
			}

			output.Printf("Invested:    %s\n", utils.FormatIndianCurrency(view.Metrics.TotalInvested))
			output.Printf("Current:     %s\n", utils.FormatIndianCurrency(view.Metrics.TotalCurrentValue))
			output.Printf("Open P&L:    %s (%s)\n", output.FormatPnL(view.Metrics.TotalPnL),
				output.FormatPercent(view.Metrics.TotalPnLPercent))
			output.Printf("Cash:        %s\n", utils.FormatIndianCurrency(view.Balance))
			output.Printf("Total value: %s\n", utils.FormatIndianCurrency(view.TotalValue))
			return nil
		},
	}
}

func newBalanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show available virtual cash",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()

			balance, err := app.Desk.Balance(ctx, userID(cmd),
				app.Config.Trading.InitialBalance)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]float64{"balance": balance})
			}
			output.Printf("Available cash: %s\n", utils.FormatIndianCurrency(balance))
			return nil
		},
	}
}
