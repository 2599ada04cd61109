package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/sw33tLie/statscope/internal/browser"
	"github.com/sw33tLie/statscope/internal/utils"
	"github.com/sw33tLie/statscope/pkg/batch"
	"github.com/sw33tLie/statscope/pkg/metrics"
	"github.com/sw33tLie/statscope/pkg/orchestrator"
	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/platforms/all"
	"github.com/sw33tLie/statscope/pkg/retrieval"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/storage"
	"github.com/sw33tLie/statscope/pkg/whttp"
)

// engine is everything a command needs to scrape and persist.
type engine struct {
	db       *storage.DB
	orch     *orchestrator.Orchestrator
	runner   *batch.Runner
	registry *prometheus.Registry
}

func openDB() (*storage.DB, string, error) {
	dbPath, err := utils.GetAbsDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, "", err
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("open database %s: %w", dbPath, err)
	}
	return db, dbPath, nil
}

func mirrorRoutes() map[stats.Platform][]retrieval.Route {
	out := make(map[stats.Platform][]retrieval.Route, len(stats.AllPlatforms))
	for _, p := range stats.AllPlatforms {
		routes := retrieval.ParseRoutes(viper.GetStringSlice("mirrors." + string(p)))
		if viper.GetBool("browser.enabled") {
			routes = append(routes, retrieval.ParseRoutes([]string{"render"})...)
		}
		out[p] = routes
	}
	return out
}

func newEngine() (*engine, error) {
	db, dbPath, err := openDB()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, err := whttp.NewClient(whttp.ClientOptions{
		Proxy: viper.GetString("proxy"),
		Log:   utils.Component("http"),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	var renderer retrieval.Renderer
	if viper.GetBool("browser.enabled") {
		renderer = browser.NewRenderer(browser.Config{
			RemoteURL: viper.GetString("browser.remote_url"),
			Log:       utils.Component("browser"),
		})
	}

	fetcher := retrieval.New(retrieval.Config{
		Client:         client,
		AttemptTimeout: viper.GetDuration("scrape.attempt_timeout"),
		Renderer:       renderer,
		Log:            utils.Component("retrieval"),
		Metrics:        m,
	})

	registry := all.Registry(platforms.Deps{
		Fetcher:     fetcher,
		Mirrors:     mirrorRoutes(),
		GitHubToken: viper.GetString("github.token"),
		Log:         utils.Component("adapter"),
	})

	orch := orchestrator.New(orchestrator.Config{
		Registry:        registry,
		Store:           db,
		PlatformTimeout: viper.GetDuration("scrape.platform_timeout"),
		Log:             utils.Component("orchestrator"),
		Metrics:         m,
	})

	lock, err := utils.NewRunLock(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	runner := batch.New(batch.Config{
		Scraper: orch,
		Store:   db,
		Lock:    lock,
		Delay:   viper.GetDuration("batch.delay"),
		Log:     utils.Component("batch"),
		Metrics: m,
	})

	return &engine{db: db, orch: orch, runner: runner, registry: reg}, nil
}

func (e *engine) Close() error {
	return e.db.Close()
}
