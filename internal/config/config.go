package config

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const configFileName = "model-downloader"

// Config holds the configuration options for the application.
type Config struct {
	Server  *ServerConfig       `yaml:"server,omitempty"`
	Client  *ClientConfig       `yaml:"client,omitempty"`
	Folders map[string][]string `yaml:"folders,omitempty"`
}

// ServerConfig holds configuration options for the download endpoint.
type ServerConfig struct {
	Addr        string `yaml:"addr,omitempty"`
	ChunkSize   int64  `yaml:"chunkSize,omitempty"`
	HistoryPath string `yaml:"historyPath,omitempty"`
}

// ClientConfig holds configuration options for the progress consumer.
type ClientConfig struct {
	Endpoint        string        `yaml:"endpoint,omitempty"`
	ManifestPath    string        `yaml:"manifestPath,omitempty"`
	StallTimeout    time.Duration `yaml:"stallTimeout,omitempty"`
	ErrorResetDelay time.Duration `yaml:"errorResetDelay,omitempty"`
}

func (s *ServerConfig) IsConfig() bool {
	return true
}

func (c *ClientConfig) IsConfig() bool {
	return true
}

// GetConfig reads the configuration file and returns a Config struct.
// If the configuration file does not exist, it returns the default configuration.
func GetConfig() (*Config, error) {
	configFilePath := filepath.Join(xdg.ConfigHome, configFileName)
	defaults := DefaultConfig()

	b, err := os.ReadFile(configFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &defaults, nil
		}

		return nil, err
	}

	if len(b) == 0 {
		return &defaults, nil
	}

	var cfg Config

	err = yaml.Unmarshal(b, &cfg)
	if err != nil {
		return nil, err
	}

	serverCfg := zeroOr(cfg.Server, defaults.Server)
	clientCfg := zeroOr(cfg.Client, defaults.Client)

	return &Config{
		Server: &ServerConfig{
			Addr:        zeroOr(serverCfg.Addr, defaults.Server.Addr),
			ChunkSize:   zeroOr(serverCfg.ChunkSize, defaults.Server.ChunkSize),
			HistoryPath: zeroOr(serverCfg.HistoryPath, defaults.Server.HistoryPath),
		},
		Client: &ClientConfig{
			Endpoint:        zeroOr(clientCfg.Endpoint, defaults.Client.Endpoint),
			ManifestPath:    zeroOr(clientCfg.ManifestPath, defaults.Client.ManifestPath),
			StallTimeout:    zeroOr(clientCfg.StallTimeout, defaults.Client.StallTimeout),
			ErrorResetDelay: zeroOr(clientCfg.ErrorResetDelay, defaults.Client.ErrorResetDelay),
		},
		Folders: zeroOr(cfg.Folders, defaults.Folders),
	}, nil
}

func DefaultConfig() Config {
	return Config{
		Server: &ServerConfig{
			Addr:        listenAddr,
			ChunkSize:   chunkSize,
			HistoryPath: historyPath,
		},
		Client: &ClientConfig{
			Endpoint:        endpoint,
			ManifestPath:    manifestPath,
			StallTimeout:    stallTimeout,
			ErrorResetDelay: errorResetDelay,
		},
		Folders: defaultFolders(),
	}
}

// zeroOr returns def if v is the zero value for its type.
func zeroOr[T any](v, def T) T {
	if reflect.ValueOf(v).IsZero() {
		return def
	}

	return v
}
