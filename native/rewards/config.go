package rewards

import (
	"fmt"
	"math/big"
	"strings"
)

var configKey = []byte("rewards/config")

// Config holds the admin-mutable ledger-wide settings. It is set once at
// initialisation and mutated only through the admin setters.
type Config struct {
	StableSymbol    string
	RewardSymbol    string
	MinimalDeposit  *big.Int
	DistributeFloor *big.Int
	Treasury        [20]byte
	Authorizer      [20]byte
}

// Clone produces a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := &Config{
		StableSymbol: c.StableSymbol,
		RewardSymbol: c.RewardSymbol,
		Treasury:     c.Treasury,
		Authorizer:   c.Authorizer,
	}
	if c.MinimalDeposit != nil {
		clone.MinimalDeposit = new(big.Int).Set(c.MinimalDeposit)
	}
	if c.DistributeFloor != nil {
		clone.DistributeFloor = new(big.Int).Set(c.DistributeFloor)
	}
	return clone
}

// Normalize ensures all pointer fields are non-nil. The method returns the
// receiver to allow chaining.
func (c *Config) Normalize() *Config {
	if c == nil {
		return nil
	}
	c.StableSymbol = strings.ToUpper(strings.TrimSpace(c.StableSymbol))
	c.RewardSymbol = strings.ToUpper(strings.TrimSpace(c.RewardSymbol))
	if c.MinimalDeposit == nil || c.MinimalDeposit.Sign() < 0 {
		c.MinimalDeposit = big.NewInt(0)
	}
	if c.DistributeFloor == nil || c.DistributeFloor.Sign() < 0 {
		c.DistributeFloor = big.NewInt(0)
	}
	return c
}

// Validate performs static validation of the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("rewards: nil config")
	}
	if strings.TrimSpace(c.StableSymbol) == "" {
		return fmt.Errorf("rewards: stable asset must be configured")
	}
	if strings.TrimSpace(c.RewardSymbol) == "" {
		return fmt.Errorf("rewards: reward asset must be configured")
	}
	if c.Treasury == ([20]byte{}) {
		return fmt.Errorf("rewards: treasury address must be configured")
	}
	if c.Authorizer == ([20]byte{}) {
		return fmt.Errorf("rewards: authorizer must be configured")
	}
	if c.MinimalDeposit != nil && c.MinimalDeposit.Sign() < 0 {
		return fmt.Errorf("rewards: minimal deposit must not be negative")
	}
	if c.DistributeFloor != nil && c.DistributeFloor.Sign() < 0 {
		return fmt.Errorf("rewards: distribute floor must not be negative")
	}
	return nil
}

type storedConfig struct {
	StableSymbol    string
	RewardSymbol    string
	MinimalDeposit  string
	DistributeFloor string
	Treasury        [20]byte
	Authorizer      [20]byte
}

func loadConfig(st Storage) (*Config, bool, error) {
	var stored storedConfig
	ok, err := st.KVGet(configKey, &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	minimal, err := parseStoredAmount("minimal deposit", stored.MinimalDeposit)
	if err != nil {
		return nil, false, err
	}
	floor, err := parseStoredAmount("distribute floor", stored.DistributeFloor)
	if err != nil {
		return nil, false, err
	}
	cfg := &Config{
		StableSymbol:    stored.StableSymbol,
		RewardSymbol:    stored.RewardSymbol,
		MinimalDeposit:  minimal,
		DistributeFloor: floor,
		Treasury:        stored.Treasury,
		Authorizer:      stored.Authorizer,
	}
	return cfg.Normalize(), true, nil
}

func putConfig(st Storage, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("rewards: nil config")
	}
	cfg.Normalize()
	stored := storedConfig{
		StableSymbol:    cfg.StableSymbol,
		RewardSymbol:    cfg.RewardSymbol,
		MinimalDeposit:  cfg.MinimalDeposit.String(),
		DistributeFloor: cfg.DistributeFloor.String(),
		Treasury:        cfg.Treasury,
		Authorizer:      cfg.Authorizer,
	}
	return st.KVPut(configKey, stored)
}
