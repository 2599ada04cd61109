package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Show recent batch run reports (default 20)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		verbose, _ := cmd.Flags().GetBool("verbose")

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			ts := r.StartedAt.Local().Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-9s  %s  ok=%d failed=%d  took %s\n", ts, r.Trigger, r.ID, r.SuccessCount, r.FailCount, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
			if !verbose {
				continue
			}
			for _, o := range r.Outcomes {
				if o.Success {
					fmt.Printf("    ok    %s\n", o.EntityID)
				} else {
					fmt.Printf("    fail  %s  %s\n", o.EntityID, o.Error)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.Flags().Int("limit", 20, "Number of recent reports to show")
	reportsCmd.Flags().BoolP("verbose", "v", false, "Show per-entity outcomes")
}
