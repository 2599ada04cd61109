package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/statscope/internal/scheduler"
	"github.com/sw33tLie/statscope/internal/server"
	"github.com/sw33tLie/statscope/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the periodic batch scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		noSchedule, _ := cmd.Flags().GetBool("no-schedule")

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !noSchedule {
			sched, err := scheduler.New(eng.runner, viper.GetString("batch.schedule"), utils.Component("scheduler"))
			if err != nil {
				return err
			}
			sched.Start()
			defer func() {
				// Wait for a run in flight to wind down.
				<-sched.Stop().Done()
			}()
			utils.Log.Infof("Next batch run at %s", sched.Next().Local().Format("2006-01-02 15:04:05"))
		}

		if viper.GetString("server.trigger_token") == "" {
			utils.Log.Warn("server.trigger_token is not set, manual batch runs over HTTP are disabled")
		}

		srv := server.New(server.Config{
			Scraper:      eng.orch,
			Batch:        eng.runner,
			Store:        eng.db,
			TriggerToken: viper.GetString("server.trigger_token"),
			Gatherer:     eng.registry,
			Log:          utils.Component("server"),
		})
		return srv.Start(ctx, viper.GetString("server.listen"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides server.listen)")
	serveCmd.Flags().Bool("no-schedule", false, "Do not run batches on the configured schedule")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}
