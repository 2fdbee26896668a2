package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/app"
	"github.com/cegradar/cegradar/internal/common"
)

// configPaths is a custom flag type that allows -config to be given more
// than once; only the last path given is loaded, and earlier files are not
// read or merged.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (if repeated, only the last one is loaded)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("cegradar version %s\n", common.GetVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("cegradar.toml"); err == nil {
			configFiles = append(configFiles, "cegradar.toml")
		}
	}

	var configPath string
	if len(configFiles) > 0 {
		configPath = configFiles[len(configFiles)-1]
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("sqlite_path", config.Storage.SQLitePath).
		Int("sources", len(config.Sources)).
		Msg("configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
		os.Exit(2)
	}

	application.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("cegradar running, press Ctrl+C to stop")
	<-ctx.Done()

	logger.Info().Msg("shutdown signal received, draining in-flight work")

	done := make(chan struct{})
	go func() {
		if err := application.Close(); err != nil {
			logger.Error().Err(err).Msg("error during shutdown")
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("shutdown complete")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("shutdown timed out, exiting anyway")
	}
}
