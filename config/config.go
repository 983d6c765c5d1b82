package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

var (
	cfgPath string

	ErrInvalidConfig = errors.New("invalid configuration")
)

// NewConfig - reads the application configuration from the provided path,
// fills in defaults and returns an AppConfig struct or an error if something
// goes wrong
func NewConfig(configPath string) (*data.AppConfig, error) {
	bytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &data.AppConfig{}
	err = json.Unmarshal(bytes, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", configPath)
	}
	ApplyDefaults(cfg)
	if err = Validate(cfg); err != nil {
		return nil, err
	}

	cfgPath = configPath

	return cfg, nil
}

// Save writes cfg back to the file it was loaded from
func Save(cfg *data.AppConfig) error {
	return SaveAs(cfg, cfgPath)
}

func SaveAs(cfg *data.AppConfig, path string) error {
	bytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	cfgPath = path

	return os.WriteFile(path, bytes, 0600)
}

// Default returns a development configuration around seed
func Default(seed string) *data.AppConfig {
	cfg := &data.AppConfig{Seedphrase: seed}
	cfg.Engine.TicketPrice = "10000000"
	cfg.Engine.EntryFee = "1000000000000000"
	cfg.Engine.PlayIntervalSeconds = 7 * 24 * 3600
	cfg.Engine.WithdrawIntervalSeconds = 24 * 3600
	cfg.Engine.RandomnessTimeoutSeconds = 3600
	cfg.Randomness.KeySeed = "no-loss-lottery"
	cfg.Randomness.Confirmations = 3
	cfg.Randomness.CallbackGasLimit = 200000
	cfg.Venue.AnnualRateBps = 500
	cfg.API.Faucet = true
	ApplyDefaults(cfg)

	return cfg
}

// ApplyDefaults fills every optional field left empty
func ApplyDefaults(cfg *data.AppConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "*:INFO"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "db"
	}
	if cfg.Engine.TicketUnit == "" {
		cfg.Engine.TicketUnit = utils.DefaultTicketUnit
	}
	if cfg.Engine.PayoutPolicy == "" {
		cfg.Engine.PayoutPolicy = utils.PayoutPolicyFlat
	}
	if cfg.Randomness.BlockTimeSeconds == 0 {
		cfg.Randomness.BlockTimeSeconds = 6
	}
	if cfg.Venue.Asset == "" {
		cfg.Venue.Asset = utils.StablecoinTicker
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = "127.0.0.1:8669"
	}
	if cfg.Keeper.IntervalSeconds == 0 {
		cfg.Keeper.IntervalSeconds = utils.DefaultKeeperInterval
	}
	if cfg.Network.API == "" {
		cfg.Network.API = "http://" + cfg.API.Listen
	}
}

// Validate rejects configurations the engine can not run with
func Validate(cfg *data.AppConfig) error {
	if cfg.Seedphrase == "" {
		return errors.Wrap(ErrInvalidConfig, "seed is required")
	}
	price, err := utils.ParseBaseUnits(cfg.Engine.TicketPrice)
	if err != nil || price.IsZero() {
		return errors.Wrapf(ErrInvalidConfig, "ticket price %q must be a positive integer", cfg.Engine.TicketPrice)
	}
	fee, err := utils.ParseBaseUnits(cfg.Engine.EntryFee)
	if err != nil || fee.IsZero() {
		return errors.Wrapf(ErrInvalidConfig, "entry fee %q must be a positive integer", cfg.Engine.EntryFee)
	}
	unit, err := utils.ParseBaseUnits(cfg.Engine.TicketUnit)
	if err != nil || unit.IsZero() {
		return errors.Wrapf(ErrInvalidConfig, "ticket unit %q must be a positive integer", cfg.Engine.TicketUnit)
	}
	if cfg.Engine.PlayIntervalSeconds <= 0 || cfg.Engine.WithdrawIntervalSeconds <= 0 {
		return errors.Wrap(ErrInvalidConfig, "play and withdraw intervals must be positive")
	}
	if cfg.Engine.RandomnessTimeoutSeconds < 0 {
		return errors.Wrap(ErrInvalidConfig, "randomness timeout can not be negative")
	}
	switch cfg.Engine.PayoutPolicy {
	case utils.PayoutPolicyFlat, utils.PayoutPolicyProportional:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown payout policy %q", cfg.Engine.PayoutPolicy)
	}
	if cfg.Randomness.KeySeed == "" {
		return errors.Wrap(ErrInvalidConfig, "randomness key seed is required")
	}
	if cfg.Randomness.BlockTimeSeconds <= 0 {
		return errors.Wrap(ErrInvalidConfig, "randomness block time must be positive")
	}
	if _, err = utils.ParseBaseUnits(cfg.Venue.Reserve); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "venue reserve %q", cfg.Venue.Reserve)
	}
	if _, err = utils.ParseBaseUnits(cfg.Venue.LiquidityCap); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "venue liquidity cap %q", cfg.Venue.LiquidityCap)
	}
	if cfg.Keeper.IntervalSeconds < 0 {
		return errors.Wrap(ErrInvalidConfig, "keeper interval can not be negative")
	}

	return nil
}
