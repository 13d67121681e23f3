// Package internal provides application wiring and the daemon runtime.
package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/halvard/raido/internal/contentservice"
	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/exportlog"
	"github.com/halvard/raido/internal/resolve"
	"github.com/halvard/raido/internal/storage"
	"github.com/halvard/raido/internal/uploader"
)

// Runtime bundles the wired components for one configured vault and
// content service. It backs both the CLI commands and the watch daemon.
type Runtime struct {
	Config   *Config
	Logger   *slog.Logger
	Store    *storage.FS
	Client   *contentservice.Client
	Log      *exportlog.DB // nil when the ledger is disabled
	Exporter *export.Exporter
}

// NewRuntime wires up storage, the content service client, the export
// ledger, and the exporter from configuration.
func NewRuntime(cfg *Config, logger *slog.Logger) (*Runtime, error) {
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	client := contentservice.NewClient(cfg.Service.URL, cfg.Service.Token, cfg.Service.Timeout())

	var log *exportlog.DB
	if cfg.ExportLog.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ExportLog.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create export log dir: %w", err)
		}
		log, err = exportlog.Open(cfg.ExportLog.Path)
		if err != nil {
			return nil, fmt.Errorf("init export log: %w", err)
		}
	}

	up := uploader.New(client, store, logger, uploader.Config{
		Window: cfg.Upload.Window,
		Delay:  cfg.Upload.Delay(),
		Policy: cfg.Upload.Retry.Policy(),
	})
	res := resolve.New(client, logger)

	var opts []export.Option
	if log != nil {
		opts = append(opts, export.WithLog(log))
	}
	exp := export.New(store, client, up, res, logger, opts...)

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Client:   client,
		Log:      log,
		Exporter: exp,
	}, nil
}

// Close releases runtime resources.
func (rt *Runtime) Close() {
	if rt.Log != nil {
		_ = rt.Log.Close()
	}
}
