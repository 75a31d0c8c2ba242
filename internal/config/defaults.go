package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	listenAddr      = "127.0.0.1:8199"
	endpoint        = "http://127.0.0.1:8199/internal/download_model"
	chunkSize       = 1024 * 1024
	stallTimeout    = 30 * time.Second
	errorResetDelay = 3500 * time.Millisecond
)

var (
	historyPath  = filepath.Join(xdg.DataHome, configFileName, "history.db")
	manifestPath = filepath.Join(xdg.ConfigHome, configFileName+"-manifest.json")
	modelsRoot   = filepath.Join(xdg.DataHome, configFileName, "models")
)

func defaultFolders() map[string][]string {
	return map[string][]string{
		"checkpoints":    {filepath.Join(modelsRoot, "checkpoints")},
		"loras":          {filepath.Join(modelsRoot, "loras")},
		"vae":            {filepath.Join(modelsRoot, "vae")},
		"controlnet":     {filepath.Join(modelsRoot, "controlnet")},
		"clip":           {filepath.Join(modelsRoot, "clip")},
		"upscale_models": {filepath.Join(modelsRoot, "upscale_models")},
	}
}
