package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/statscope/pkg/orchestrator"
	"github.com/sw33tLie/statscope/pkg/platforms"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage the roster of entities",
}

var entitySetCmd = &cobra.Command{
	Use:   "set <entity>",
	Short: "Store the profile URLs of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]
		if !orchestrator.ValidEntityID(entityID) {
			return orchestrator.ErrInvalidEntity
		}
		profiles := profilesFromFlags(cmd)
		if len(profiles) == 0 {
			return fmt.Errorf("at least one profile URL flag is required")
		}
		for p, u := range profiles {
			if _, err := platforms.ExtractUsername(p, u); err != nil {
				return err
			}
		}

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		return db.SetProfiles(cmd.Context(), entityID, profiles)
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored entities and their profile URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entities, err := db.ListEntities(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range entities {
			fmt.Println(e.ID)
			for _, p := range e.ConfiguredPlatforms() {
				fmt.Printf("  %-10s %s\n", p, e.Profiles[p])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(entityCmd)
	entityCmd.AddCommand(entitySetCmd)
	entityCmd.AddCommand(entityListCmd)
	addProfileFlags(entitySetCmd)
}
