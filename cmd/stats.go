package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwhite/fleetsync/internal/output"
	"github.com/spf13/cobra"
)

var (
	statsHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	statsLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statsValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

const (
	barFilled = "█"
	barEmpty  = "░"
	barWidth  = 30
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Per-truck maintenance cost totals",
	Long: `Aggregates the cached maintenance entries into per-truck totals.

Totals are computed from the local cache, so they reflect everything
recorded on this device including writes still queued for sync. Results
are cached and recomputed only after a maintenance record changes.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.store.TruckMaintenanceStats(e.cfg.OwnerID)
		if err != nil {
			output.Error("failed to compute stats: %v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(stats)
		}

		if len(stats) == 0 {
			fmt.Println("No maintenance entries cached")
			return nil
		}

		fmt.Println(statsHeaderStyle.Render("Maintenance cost by truck"))
		fmt.Println()

		maxCost := 0.0
		for _, st := range stats {
			if st.TotalCost > maxCost {
				maxCost = st.TotalCost
			}
		}

		for _, st := range stats {
			fmt.Printf("  %s %s %s %s\n",
				statsLabelStyle.Render(fmt.Sprintf("%-20s", st.TruckID)),
				costBar(st.TotalCost, maxCost),
				statsValueStyle.Render(fmt.Sprintf("$%10.2f", st.TotalCost)),
				statsLabelStyle.Render(fmt.Sprintf("(%d entries)", st.EntryCount)))
		}
		return nil
	},
}

func costBar(cost, max float64) string {
	if max <= 0 {
		return strings.Repeat(barEmpty, barWidth)
	}
	filled := int(cost / max * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, barWidth-filled)
}

func init() {
	statsCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(statsCmd)
}
