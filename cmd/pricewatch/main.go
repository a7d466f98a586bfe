package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/robertmeta/pricewatch/config"
	"github.com/robertmeta/pricewatch/fetch"
	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/registry"
	"github.com/robertmeta/pricewatch/sched"
	"github.com/robertmeta/pricewatch/store"
	"github.com/robertmeta/pricewatch/tracker"
	"github.com/robertmeta/pricewatch/web"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	cfg := config.Load()

	app := &cli.App{
		Name:    "pricewatch",
		Usage:   "Track retail product prices and serve a dashboard",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Value:   cfg.DataDir,
				Usage:   "Directory holding the registry and per-item stores",
				EnvVars: []string{"PRICEWATCH_DATA_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Track a new item",
				ArgsUsage: "<name> <url>",
				Action:    addItem(cfg),
			},
			{
				Name:      "remove",
				Usage:     "Stop tracking an item (moves it to history)",
				ArgsUsage: "<url>",
				Action:    removeItem(cfg),
			},
			{
				Name:      "restore",
				Usage:     "Restore a removed item from history",
				ArgsUsage: "<url>",
				Action:    restoreItem(cfg),
			},
			{
				Name:   "items",
				Usage:  "List tracked items",
				Action: listItems(cfg),
			},
			{
				Name:   "history",
				Usage:  "List removed items",
				Action: listHistory(cfg),
			},
			{
				Name:  "update",
				Usage: "Fetch current prices",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "id",
						Aliases: []string{"i"},
						Usage:   "Update a single item by identifier (if not set, updates all)",
					},
				},
				Action: updatePrices(cfg),
			},
			{
				Name:      "show",
				Usage:     "Show one item's metadata and price history",
				ArgsUsage: "<identifier>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "since",
						Aliases: []string{"s"},
						Usage:   "Limit history to a lookback window (e.g., 7d, 2w, 3m, 1y)",
					},
				},
				Action: showItem(cfg),
			},
			{
				Name:   "serve",
				Usage:  "Run the dashboard and the periodic updater",
				Action: serve(cfg),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func openRegistry(c *cli.Context, cfg *config.Config, log logger.Logger) (*registry.Registry, error) {
	cfg.DataDir = c.String("data-dir")
	reg, err := registry.New(cfg.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return reg, nil
}

// newTracker wires the production fetcher (colly page fetcher + thumbnail
// saver) and builds bindings from the registry's current active list.
func newTracker(cfg *config.Config, reg *registry.Registry, log logger.Logger) (*tracker.Tracker, error) {
	thumbs, err := fetch.NewThumbnailSaver(cfg.ThumbDir, cfg.FetchTimeout, log)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewPageFetcher(cfg.UserAgent, cfg.FetchTimeout, thumbs, log)
	tr := tracker.New(fetcher, reg, tracker.Options{DataDir: cfg.DataDir, Logger: log})
	if err := tr.Rebuild(reg.Items()); err != nil {
		return nil, err
	}
	return tr, nil
}

func addItem(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 2 {
			return cli.Exit("Usage: pricewatch add <name> <url>", ExitUsageError)
		}

		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		name, url := c.Args().Get(0), c.Args().Get(1)
		if err := reg.Add(name, url); err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		return outputJSON(map[string]interface{}{
			"success": true,
			"name":    name,
			"url":     url,
		})
	}
}

func removeItem(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("Usage: pricewatch remove <url>", ExitUsageError)
		}

		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		if err := reg.Remove(c.Args().Get(0)); err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		return outputJSON(map[string]interface{}{"success": true})
	}
}

func restoreItem(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("Usage: pricewatch restore <url>", ExitUsageError)
		}

		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		if err := reg.Restore(c.Args().Get(0)); err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		return outputJSON(map[string]interface{}{"success": true})
	}
}

func listItems(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		return outputJSON(reg.Items())
	}
}

func listHistory(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		return outputJSON(reg.History())
	}
}

func updatePrices(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		tr, err := newTracker(cfg, reg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		if id := c.String("id"); id != "" {
			res, err := tr.UpdateOne(id)
			if err != nil {
				return cli.Exit(fmt.Sprintf("Failed to update item: %v", err), ExitDataError)
			}
			return outputJSON(res)
		}

		results := tr.UpdateAll()
		return outputJSON(map[string]interface{}{
			"tracked": len(reg.Items()),
			"updated": len(results),
			"results": results,
		})
	}
}

func showItem(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("Usage: pricewatch show <identifier>", ExitUsageError)
		}

		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		tr, err := newTracker(cfg, reg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		data, err := tr.GetOne(c.Args().Get(0))
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		if since := c.String("since"); since != "" {
			filtered, err := store.FilterSince(data.PriceHistory, since, time.Now())
			if err != nil {
				return cli.Exit(fmt.Sprintf("Invalid --since flag: %v", err), ExitUsageError)
			}
			data.PriceHistory = filtered
		}

		return outputJSON(data)
	}
}

func serve(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer log.Sync()

		reg, err := openRegistry(c, cfg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		tr, err := newTracker(cfg, reg, log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}

		log.Info("performing initial price update")
		tr.UpdateAll()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		trigger := make(chan struct{}, 1)
		updater := sched.NewUpdater(tr, log, cfg.UpdateInterval, trigger)
		updater.Start(ctx)
		defer updater.Stop()

		srv := web.New(cfg.ListenAddr, web.Deps{
			Tracker:       tr,
			Registry:      reg,
			ThumbDir:      cfg.ThumbDir,
			UpdateTrigger: trigger,
			Logger:        log,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				return cli.Exit(err.Error(), ExitGeneralError)
			}
		case sig := <-sigCh:
			log.Infof("received %s, shutting down", sig)
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancelShutdown()
			if err := srv.Stop(shutdownCtx); err != nil {
				return cli.Exit(err.Error(), ExitGeneralError)
			}
		}
		return nil
	}
}
