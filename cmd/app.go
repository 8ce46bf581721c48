package cmd

import (
	"github.com/spf13/viper"

	"github.com/tesh254/gemd/internal/api"
	"github.com/tesh254/gemd/internal/download"
	"github.com/tesh254/gemd/internal/exporter"
	"github.com/tesh254/gemd/internal/extractor"
	"github.com/tesh254/gemd/internal/logger"
	"github.com/tesh254/gemd/internal/scraper"
	"github.com/tesh254/gemd/internal/storage"
)

// appOptions tune how the pipeline is wired for one command.
type appOptions struct {
	Prompter      download.Prompter
	Observer      exporter.Observer
	Format        string
	SkipHostCheck bool
}

// app is the wired pipeline shared by the commands.
type app struct {
	API     *api.API
	Manager *download.Manager
	Storage *storage.Storage
	Logger  logger.Logger
	Rules   extractor.Rules
}

func newApp(opts appOptions) (*app, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	rules, err := extractorRules(opts.Format)
	if err != nil {
		return nil, err
	}

	st, err := storage.NewStorage(viper.GetString("db"))
	if err != nil {
		return nil, err
	}

	sc := scraper.New(scraperConfig())
	ex := extractor.New(rules)
	manager := download.NewManager(download.ManagerConfig{
		Dir:      viper.GetString("output-dir"),
		Prompter: opts.Prompter,
		Logger:   log.With(logger.String("component", "download")),
	})
	orch := exporter.New(exporter.Config{
		Loader:        sc,
		Extractor:     ex,
		Downloader:    manager,
		Recorder:      st,
		Observer:      opts.Observer,
		Logger:        log.With(logger.String("component", "exporter")),
		Hosts:         hosts(),
		SkipHostCheck: opts.SkipHostCheck,
	})

	return &app{
		API: api.NewAPI(api.Config{
			Scraper:   sc,
			Extractor: ex,
			Manager:   manager,
			Exporter:  orch,
			Storage:   st,
			Logger:    log,
		}),
		Manager: manager,
		Storage: st,
		Logger:  log,
		Rules:   rules,
	}, nil
}

// Close waits for pending downloads and releases the database.
func (a *app) Close() {
	a.Manager.Wait()
	a.Storage.Close()
	_ = a.Logger.Sync()
}
