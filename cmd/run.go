package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/statscope/internal/utils"
	"github.com/sw33tLie/statscope/pkg/batch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape every stored entity once, one after another",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		rep, err := eng.runner.Trigger(cmd.Context(), "manual")
		if errors.Is(err, batch.ErrRunInProgress) {
			utils.Log.Warn("Another batch run is in progress, skipping")
			return nil
		}
		if err != nil && rep.ID == "" {
			return err
		}

		for _, o := range rep.Outcomes {
			if o.Err != nil {
				fmt.Printf("FAIL  %s  %v\n", o.EntityID, o.Err.Err)
				continue
			}
			fmt.Printf("OK    %s  %s\n", o.EntityID, o.Duration.Round(time.Millisecond))
		}
		fmt.Printf("\nrun %s: %d ok, %d failed in %s\n", rep.ID, rep.SuccessCount, rep.FailCount,
			rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
