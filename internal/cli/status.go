package cli

import (
	"time"

	"github.com/spf13/cobra"

	"paper-trader/internal/market"
	"paper-trader/internal/models"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show market session status",
		Long:  "Show whether the trading session is open and when it next opens or closes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			now := time.Now()
			status := market.StatusAt(now)
			local := now.In(market.IndiaLocation)

			if output.IsJSON() {
				payload := map[string]interface{}{
					"status":    string(status),
					"localTime": local.Format(time.RFC3339),
				}
				if status == models.MarketOpen {
					payload["closesAt"] = market.CloseTime(now).Format(time.RFC3339)
				} else {
					payload["nextOpen"] = market.NextOpen(now).Format(time.RFC3339)
				}
				return output.JSON(payload)
			}

			output.Printf("Market: %s\n", output.MarketStatus(string(status)))
			output.Printf("IST:    %s\n", local.Format("Mon 02 Jan 2006 15:04:05"))
			if status == models.MarketOpen {
				output.Printf("Closes: %s\n", market.CloseTime(now).In(market.IndiaLocation).Format("15:04"))
			} else {
				next := market.NextOpen(now).In(market.IndiaLocation)
				output.Printf("Opens:  %s\n", next.Format("Mon 02 Jan 15:04"))
			}
			return nil
		},
	}
}
