package tool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vmaxx/repetier-go/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func defaultConfig() types.AppConfig {
	return types.AppConfig{
		Instance: types.InstanceConfig{
			Address: "127.0.0.1",
			Port:    3344,
			Path:    "/",
		},
		Preferences: types.Preferences{
			AutoPrint:      true,
			PollIntervalMs: 2000,
		},
		ListenPort: 3345,
	}
}

// LoadConfig reads the yaml config, creating it with defaults when missing.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := defaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if cfg.Preferences.PollIntervalMs <= 0 {
		cfg.Preferences.PollIntervalMs = 2000
	}

	CurrentConfig = cfg
	return cfg, nil
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}

// PersistAppConfig updates the in-memory config and writes it back to disk.
func PersistAppConfig(cfg *types.AppConfig) {
	if cfg == nil {
		return
	}
	CurrentConfig = *cfg
	if err := writeDefaultConfig(ConfigPath, CurrentConfig); err != nil {
		DefaultLogger.Warnf("Failed to persist config: %v", err)
	}
}
