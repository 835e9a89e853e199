package main

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/events"
	"github.com/hpungsan/quire/internal/metrics"
	"github.com/hpungsan/quire/internal/ops"
	"github.com/hpungsan/quire/internal/workspace"
)

// runtime holds the wired dependencies shared by every command.
type runtime struct {
	cfg        *config.Config
	deps       *ops.Deps
	workspaces *workspace.Manager
	registry   *prometheus.Registry
	chrome     *codec.Chrome
}

func newRuntime(cfg *config.Config, database *sql.DB) *runtime {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	workspaces := workspace.NewManager(cfg.WorkRoot, rec)
	chrome := codec.NewChrome(cfg.ChromePath, cfg.DownloadBrowser)
	codecs := codec.NewRegistry(
		codec.NewPDFCPU(),
		codec.NewSoffice(cfg.SofficePath),
		chrome,
		cfg.DisabledKinds...,
	).WithRasterizer(codec.NewPdftoppm(cfg.PdftoppmPath))

	return &runtime{
		cfg: cfg,
		deps: &ops.Deps{
			DB:     database,
			Config: cfg,
			Runner: batch.NewRunner(workspaces, cfg.MaxWorkers, rec),
			Codecs: codecs,
			Events: events.New(cfg.NATSURL, cfg.NATSSubject),
		},
		workspaces: workspaces,
		registry:   reg,
		chrome:     chrome,
	}
}

// Close releases the browser and the event connection. Safe to call twice.
func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	rt.chrome.Close()
	if rt.deps.Events != nil {
		rt.deps.Events.Close()
		rt.deps.Events = nil
	}
}
