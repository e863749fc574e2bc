// Command boton runs an IRC bot on every server listed in its configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wwared/boton/bot"
	"github.com/wwared/boton/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "boton.toml", "Path to the configuration file")
	flag.StringVar(&configPath, "c", "boton.toml", "Path to the configuration file (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides the file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: boton [options]\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nPlugin secrets may be set as %s<NAME>_<KEY>, e.g. BOTON_PLUGIN_WEATHER_OPENWEATHERMAP_APIKEY.\n", config.EnvPluginPrefix)
	}
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	level := cfg.Level()
	if logLevel != "" {
		if level, err = config.ParseLevel(logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i := range cfg.Servers {
		b := bot.New(cfg, &cfg.Servers[i], logger)
		logger.Info("starting bot", "server", cfg.Servers[i].Label(), "nick", cfg.Servers[i].Nick)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Run(ctx); err != nil {
				logger.Error("bot stopped", "server", b.Server.Label(), "error", err)
			}
		}()
	}
	wg.Wait()
	return 0
}
