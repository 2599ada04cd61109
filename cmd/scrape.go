package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/statscope/pkg/orchestrator"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/storage"
)

// addProfileFlags registers one --<platform> URL flag per supported platform.
func addProfileFlags(c *cobra.Command) {
	for _, p := range stats.AllPlatforms {
		c.Flags().String(string(p), "", fmt.Sprintf("%s profile URL", p))
	}
}

func profilesFromFlags(c *cobra.Command) map[stats.Platform]string {
	profiles := map[stats.Platform]string{}
	for _, p := range stats.AllPlatforms {
		if v, _ := c.Flags().GetString(string(p)); v != "" {
			profiles[p] = v
		}
	}
	return profiles
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <entity>",
	Short: "Scrape every configured platform of one entity",
	Long: `Scrape every configured platform of one entity. Profile URLs come from the
flags, or from the database when no flag is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]
		if !orchestrator.ValidEntityID(entityID) {
			return orchestrator.ErrInvalidEntity
		}
		save, _ := cmd.Flags().GetBool("save")
		asJSON, _ := cmd.Flags().GetBool("json")

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := cmd.Context()
		profiles := profilesFromFlags(cmd)
		if len(profiles) == 0 {
			rec, err := eng.db.GetEntity(ctx, entityID)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no profile URLs given and none stored for %s", entityID)
			}
			if err != nil {
				return err
			}
			profiles = rec.Profiles
		} else if save {
			if err := eng.db.SetProfiles(ctx, entityID, profiles); err != nil {
				return err
			}
		}

		res, err := eng.orch.ScrapeEntity(ctx, entityID, profiles)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(res)
		return nil
	},
}

func printResult(res *orchestrator.Result) {
	platforms := make([]string, 0, len(res.Stats))
	for p := range res.Stats {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tUSERNAME\tSOLVED\tDATA\tSTATUS\t")
	for _, name := range platforms {
		p := stats.Platform(name)
		s := res.Stats[p]
		env := s.Meta()
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t\n", p, env.Username, s.SolvedCount(), env.Provenance, res.Statuses[p].State)
	}
	fmt.Fprintln(w, " \t \t \t \t \t")
	fmt.Fprintf(w, "TOTAL\t\t%d\tstreak %d\t%d live, %d estimated\t\n",
		res.Aggregate.TotalSolved, res.Aggregate.MaxStreak, res.Aggregate.LivePlatforms, res.Aggregate.EstimatedPlatforms)
	w.Flush()

	for p, reason := range res.Skipped {
		fmt.Printf("skipped %s: %s\n", p, reason)
	}
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	addProfileFlags(scrapeCmd)
	scrapeCmd.Flags().Bool("save", false, "Store the given profile URLs for batch runs")
	scrapeCmd.Flags().Bool("json", false, "Print the full result as JSON")
}
