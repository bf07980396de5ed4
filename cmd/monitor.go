package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwhite/fleetsync/pkg/monitor"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI dashboard for the sync engine",
	Long: `Launch a live-updating dashboard showing:
- Offline queue: writes waiting for the server, with attempt counts
- Collections: cached record counts and last sync times
- Rate limits: active rate windows and their usage

Key bindings:
  Tab/Shift+Tab  Switch panels
  1/2/3          Jump to panel
  ↑/↓ or j/k     Scroll active panel
  f              Flush the offline queue now
  r              Force refresh
  q              Quit`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		model := monitor.NewModel(e.store, e.reconciler, e.cfg.OwnerID, interval, version)

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval (default 2s)")
}
