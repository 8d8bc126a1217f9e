package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gridwalls/internal/bootstrap"
	"gridwalls/pkg/logging"
)

var version = "dev"

var (
	configFile  = flag.String("config", "configs/gridwalls.yaml", "Path to configuration file")
	once        = flag.Bool("once", false, "Evaluate every wall a single time and exit")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("gridwalls", version)
		return
	}

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, *configFile)
	if err != nil {
		logger, _ := logging.NewZapLogger("INFO", logging.WithoutBridge())
		logger.Fatal("Failed to start", "config", *configFile, "error", err)
	}

	if *once {
		_, err = app.RunOnce(ctx)
	} else {
		err = app.Run()
	}

	if cerr := app.Close(); cerr != nil {
		app.Logger.Warn("Shutdown incomplete", "error", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
