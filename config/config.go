package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	RPCAddress    string `toml:"RPCAddress"`
	DataDir       string `toml:"DataDir"`
	RegistryOwner string `toml:"RegistryOwner"`
	StakingOwner  string `toml:"StakingOwner"`
	LogLevel      string `toml:"LogLevel"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults so a fresh node can boot from an empty data
// directory.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.RegistryOwner) {
		return fmt.Errorf("config: RegistryOwner %q is not a hex address", c.RegistryOwner)
	}
	if !common.IsHexAddress(c.StakingOwner) {
		return fmt.Errorf("config: StakingOwner %q is not a hex address", c.StakingOwner)
	}
	return nil
}

// RegistryOwnerAddress parses the configured registry owner.
func (c *Config) RegistryOwnerAddress() common.Address {
	return common.HexToAddress(c.RegistryOwner)
}

// StakingOwnerAddress parses the configured staking owner.
func (c *Config) StakingOwnerAddress() common.Address {
	return common.HexToAddress(c.StakingOwner)
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./daotoken-data"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
}

// createDefault creates and saves a default configuration file. The
// owner addresses are deliberately left blank; the node refuses to
// start until the operator fills them in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
