package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/statscope/pkg/stats"
)

var statusCmd = &cobra.Command{
	Use:   "status <entity>",
	Short: "Show the scraping status of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := db.GetEntity(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PLATFORM\tSTATE\tUPDATED\tERROR\t")
		for _, p := range stats.AllPlatforms {
			st, ok := rec.ScrapingStatus[p]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", p, st.State, st.LastUpdated.Local().Format("2006-01-02 15:04:05"), st.Error)
		}
		w.Flush()

		if !rec.LastUpdated.IsZero() {
			fmt.Printf("\nlast updated %s\n", rec.LastUpdated.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
