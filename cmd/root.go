package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/statscope/internal/scheduler"
	"github.com/sw33tLie/statscope/internal/utils"
	"github.com/sw33tLie/statscope/pkg/batch"
	"github.com/sw33tLie/statscope/pkg/orchestrator"
	"github.com/sw33tLie/statscope/pkg/retrieval"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	     _        _
	 ___| |_ __ _| |_ ___  ___ ___  _ __   ___
	/ __| __/ _' | __/ __|/ __/ _ \| '_ \ / _ \
	\__ \ || (_| | |_\__ \ (_| (_) | |_) |  __/
	|___/\__\__,_|\__|___/\___\___/| .__/ \___|
	                               |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "statscope",
	Short: "Collects coding statistics from LeetCode, Codeforces, AtCoder, GitHub and HackerRank.",
	Long: LOGO + `statscope scrapes profile statistics for a roster of entities, keeps per-platform
scraping status in a local database and falls back to estimated data when a
platform cannot be reached.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.statscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/statscope/statscope.sqlite)")

	viper.BindPFlag("proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

func setDefaults() {
	viper.SetDefault("db.path", "")
	viper.SetDefault("proxy", "")
	viper.SetDefault("scrape.attempt_timeout", retrieval.DefaultAttemptTimeout)
	viper.SetDefault("scrape.platform_timeout", orchestrator.DefaultPlatformTimeout)
	viper.SetDefault("batch.delay", batch.DefaultDelay)
	viper.SetDefault("batch.schedule", scheduler.DefaultSchedule)
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.trigger_token", "")
	viper.SetDefault("github.token", "")
	viper.SetDefault("browser.enabled", false)
	viper.SetDefault("browser.remote_url", "")
	viper.SetDefault("mirrors.leetcode", retrieval.DefaultMirrors)
	viper.SetDefault("mirrors.codeforces", retrieval.DefaultMirrors)
	viper.SetDefault("mirrors.atcoder", retrieval.DefaultMirrors)
	viper.SetDefault("mirrors.github", []string{})
	viper.SetDefault("mirrors.hackerrank", retrieval.DefaultMirrors)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Defaults go first so a freshly created config file carries them.
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".statscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("statscope")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".statscope.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		} else {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
