package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"github.com/Sudo-Ivan/vl1-go/pkg/common"
)

const (
	configDirName  = ".vl1"
	configFileName = "config"
	keyDirName     = "keys"
)

func DefaultConfig() *common.VL1Config {
	return common.NewVL1Config()
}

func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, configDirName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadConfig loads the configuration from the specified path. Missing
// tunables take their defaults and the result is validated.
func LoadConfig(path string) (*common.VL1Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	cfg.ConfigPath = path

	if cfg.KeyDir == "" {
		cfg.KeyDir = filepath.Join(filepath.Dir(path), keyDirName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to cfg.ConfigPath.
func SaveConfig(cfg *common.VL1Config) error {
	if cfg.ConfigPath == "" {
		return fmt.Errorf("config path not set")
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ConfigPath), 0700); err != nil {
		return err
	}
	return os.WriteFile(cfg.ConfigPath, data, 0600)
}

// CreateDefaultConfig writes a default configuration with one UDP
// interface on the standard port.
func CreateDefaultConfig(path string) error {
	cfg := DefaultConfig()
	cfg.ConfigPath = path
	cfg.KeyDir = filepath.Join(filepath.Dir(path), keyDirName)
	cfg.Interfaces["udp0"] = &common.InterfaceConfig{
		Type:    common.IF_TYPE_UDP,
		Enabled: true,
		Listen:  common.DEFAULT_LISTEN_ADDRESS,
		MTU:     cfg.MTU,
	}
	return SaveConfig(cfg)
}

// InitConfig loads the configuration at path, or at the default location
// when path is empty, creating a default file first if none exists.
func InitConfig(path string) (*common.VL1Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := CreateDefaultConfig(path); err != nil {
			return nil, err
		}
	}

	return LoadConfig(path)
}
