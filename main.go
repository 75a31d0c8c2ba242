package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/sync/errgroup"

	"github.com/hradec/comfyui-direct-model-downloader/internal/api"
	"github.com/hradec/comfyui-direct-model-downloader/internal/config"
	"github.com/hradec/comfyui-direct-model-downloader/internal/executor"
	"github.com/hradec/comfyui-direct-model-downloader/internal/history"
	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
	"github.com/hradec/comfyui-direct-model-downloader/internal/registry"
	httpPkg "github.com/hradec/comfyui-direct-model-downloader/pkg/http"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	stateDir := filepath.Join(xdg.StateHome, "model-downloader")

	err := os.MkdirAll(stateDir, 0o755)
	if err != nil {
		log.Fatalf("Error creating state directory: %v\n", err)
	}

	err = logger.InitLogging(*debug, filepath.Join(stateDir, "server.log"))
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v\n", err)
	}
	defer logger.Close()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v\n", err)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	reg, err := registry.New(cfg.Folders)
	if err != nil {
		log.Fatalf("Error building directory registry: %v\n", err)
	}

	repo, err := history.NewBboltRepository(cfg.Server.HistoryPath)
	if err != nil {
		log.Fatalf("Error opening history database: %v\n", err)
	}

	defer func() {
		if err := repo.Close(); err != nil {
			log.Printf("Error closing history database: %v\n", err)
		}
	}()

	exec := executor.New(httpPkg.NewClient(), reg, executor.WithChunkSize(cfg.Server.ChunkSize))
	server := api.NewServer(cfg.Server.Addr, api.NewHandler(exec, repo))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		select {
		case <-ctx.Done():
		case sig := <-sigChan:
			logger.Infof("Received signal %v, shutting down", sig)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	logger.Infof("Shutdown complete.")
}
