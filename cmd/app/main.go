package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/halvard/raido/internal"
	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/exportlog"
	"github.com/halvard/raido/internal/mcpserver"
	pkgconfig "github.com/halvard/raido/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	routeName := cmd.String("route")
	route, ok := cfg.FindRoute(routeName)
	if !ok {
		return fmt.Errorf("unknown route %q", routeName)
	}

	logger := newLogger(cfg)
	rt, err := internal.NewRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	paths := cmd.Args().Slice()
	if cmd.Bool("all") {
		files, err := rt.Store.List(".")
		if err != nil {
			return fmt.Errorf("list vault: %w", err)
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no documents given, pass paths or --all")
	}

	opts := export.Options{Force: cmd.Bool("force")}
	var failed int
	for _, path := range paths {
		res, err := rt.Exporter.Export(ctx, path, route, opts)
		if err != nil {
			failed++
			logger.Error("export failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		printResult(res)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(paths))
	}
	return nil
}

func printResult(res *export.Result) {
	switch {
	case res.Skipped:
		fmt.Printf("%s: unchanged, skipped (entry %d)\n", res.Path, res.EntryID)
	default:
		fmt.Printf("%s: exported as entry %d (%d images uploaded)\n",
			res.Path, res.EntryID, res.Uploaded)
	}
	for _, p := range res.FailedPaths() {
		fmt.Printf("  upload failed: %s: %v\n", p, res.Failed[p])
	}
}

func runRoutes(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	for _, r := range cfg.Routes {
		fmt.Printf("%s -> %s (content field %q, %d mappings)\n",
			r.Name, r.Collection, r.ContentField, len(r.Mappings))
	}
	return nil
}

func runHistory(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.ExportLog.Path == "" {
		return fmt.Errorf("export log is disabled, set export_log.path")
	}

	rt, err := internal.NewRuntime(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer rt.Close()

	rows, err := rt.Log.History(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := internal.NewRuntime(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer rt.Close()

	var ledger exportlog.Log
	if rt.Log != nil {
		ledger = rt.Log
	}

	srv := mcpserver.New(rt.Exporter, ledger, cfg.Routes)
	return srv.ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:  "raido",
		Usage: "Export Markdown vault documents to a headless content service",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Export documents through a configured route",
				ArgsUsage: "[path ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "route",
						Aliases:  []string{"r"},
						Usage:    "Route name to export through",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every Markdown document in the vault",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Export even if the document is unchanged",
					},
				},
				Action: runExport,
			},
			{
				Name:   "watch",
				Usage:  "Watch the vault and export changed documents",
				Action: runWatch,
			},
			{
				Name:   "routes",
				Usage:  "List configured export routes",
				Action: runRoutes,
			},
			{
				Name:  "history",
				Usage: "Show recent export attempts",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of rows",
						Value: 20,
					},
				},
				Action: runHistory,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the export tools over MCP stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
