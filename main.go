package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/app"
	"github.com/audiodrop/musicbox/config"
	"github.com/audiodrop/musicbox/routes"
	"github.com/audiodrop/musicbox/utils"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "path to the JSON config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("init application", zap.Error(err))
	}
	defer a.Close()

	r, err := routes.SetupRouter(a)
	if err != nil {
		logger.Fatal("init router", zap.Error(err))
	}

	logger.Info("starting server", zap.String("port", cfg.AppPort), zap.String("upload_dir", cfg.UploadDir))
	if err := utils.GraceServer(":"+cfg.AppPort, r, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
}
