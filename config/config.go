package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"rewardvault/crypto"
)

// VaultConfig carries the genesis parameters of the reward vault itself.
type VaultConfig struct {
	Address         string `toml:"Address"`
	StableSymbol    string `toml:"StableSymbol"`
	StableDecimals  uint8  `toml:"StableDecimals"`
	RewardSymbol    string `toml:"RewardSymbol"`
	PointsPerUSD    uint64 `toml:"PointsPerUSD"`
	MinimalDeposit  string `toml:"MinimalDeposit"`
	DistributeFloor string `toml:"DistributeFloor"`
	Treasury        string `toml:"Treasury"`
	Authorizer      string `toml:"Authorizer"`
}

// RoleGrant assigns a role to an account at first start.
type RoleGrant struct {
	Role    string `toml:"Role"`
	Address string `toml:"Address"`
}

// LogConfig controls the rotated file log of the daemon.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPCConfig bounds the HTTP operation surface.
type RPCConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Config is the daemon's TOML configuration.
type Config struct {
	ListenAddress string      `toml:"ListenAddress"`
	DataDir       string      `toml:"DataDir"`
	ChainID       uint64      `toml:"ChainID"`
	Env           string      `toml:"Env"`
	Vault         VaultConfig `toml:"Vault"`
	GenesisRoles  []RoleGrant `toml:"GenesisRoles"`
	Log           LogConfig   `toml:"Log"`
	RPC           RPCConfig   `toml:"RPC"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{
		ListenAddress: "127.0.0.1:8645",
		DataDir:       "./rewardvault-data",
		Log:           LogConfig{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		RPC:           RPCConfig{RequestsPerSecond: 50, Burst: 100},
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID required")
	}
	if c.Vault.PointsPerUSD == 0 {
		return fmt.Errorf("config: Vault.PointsPerUSD required")
	}
	if strings.TrimSpace(c.Vault.StableSymbol) == "" || strings.TrimSpace(c.Vault.RewardSymbol) == "" {
		return fmt.Errorf("config: vault asset symbols required")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"Vault.Address", c.Vault.Address},
		{"Vault.Treasury", c.Vault.Treasury},
		{"Vault.Authorizer", c.Vault.Authorizer},
	} {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(field.value)); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	for i, grant := range c.GenesisRoles {
		if strings.TrimSpace(grant.Role) == "" {
			return fmt.Errorf("config: GenesisRoles[%d]: Role required", i)
		}
		if _, err := crypto.DecodeAddress(strings.TrimSpace(grant.Address)); err != nil {
			return fmt.Errorf("config: GenesisRoles[%d]: %w", i, err)
		}
	}
	if _, err := c.MinimalDepositAmount(); err != nil {
		return err
	}
	if _, err := c.DistributeFloorAmount(); err != nil {
		return err
	}
	return nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("config: %s: invalid amount %q", field, value)
	}
	return amount, nil
}

// MinimalDepositAmount parses the configured deposit floor.
func (c *Config) MinimalDepositAmount() (*big.Int, error) {
	return parseAmount("Vault.MinimalDeposit", c.Vault.MinimalDeposit)
}

// DistributeFloorAmount parses the configured distribution floor.
func (c *Config) DistributeFloorAmount() (*big.Int, error) {
	return parseAmount("Vault.DistributeFloor", c.Vault.DistributeFloor)
}
