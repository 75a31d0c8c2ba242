package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/config"
	"github.com/hradec/comfyui-direct-model-downloader/internal/consumer"
	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
	"github.com/hradec/comfyui-direct-model-downloader/internal/scan"
	"github.com/hradec/comfyui-direct-model-downloader/internal/tui"
	httpPkg "github.com/hradec/comfyui-direct-model-downloader/pkg/http"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	manifest := flag.String("manifest", "", "Path to the model manifest (overrides config)")
	flag.Parse()

	stateDir := filepath.Join(xdg.StateHome, "model-downloader")

	err := os.MkdirAll(stateDir, 0o755)
	if err != nil {
		log.Fatalf("Error creating state directory: %v\n", err)
	}

	err = logger.InitLogging(*debug, filepath.Join(stateDir, "client.log"))
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v\n", err)
	}
	defer logger.Close()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v\n", err)
	}

	manifestPath := cfg.Client.ManifestPath
	if *manifest != "" {
		manifestPath = *manifest
	}

	source := scan.NewManifestSource(manifestPath)

	c := consumer.New(
		httpPkg.NewClient(),
		cfg.Client.Endpoint,
		consumer.WithStallTimeout(cfg.Client.StallTimeout),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	err = tui.Run(ctx, source, c, button.WithResetDelay(cfg.Client.ErrorResetDelay))
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Errorf("TUI Error: %v\n", err)
		log.Fatalf("Error: %v\n", err)
	}

	logger.Infof("Shutdown complete.")
}
