package pot

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GenesisValidator seeds one validator at startup. Id is 32 bytes of
// hex; Stake is in raw stake units.
type GenesisValidator struct {
	Id    string `yaml:"id"`
	Stake uint64 `yaml:"stake"`
}

// NodeConfig is the on-disk daemon configuration. Trust and weight
// parameters are given in basis points and integer coefficients so
// the file stays free of floats; two nodes loading the same file get
// bit-identical engine parameters.
type NodeConfig struct {
	// Trust parameters, in basis points (10000 = 1.0).
	BetaHistoryBp     uint64 `yaml:"beta_history_bp"`
	BetaVouchingBp    uint64 `yaml:"beta_vouching_bp"`
	BetaWorkBp        uint64 `yaml:"beta_work_bp"`
	AlphaHistoryBp    uint64 `yaml:"alpha_history_bp"`
	MinTrustToVouchBp uint64 `yaml:"min_trust_to_vouch_bp"`

	// Weight coefficients.
	WeightTrust   uint64 `yaml:"weight_trust"`
	WeightQuality uint64 `yaml:"weight_quality"`
	WeightStake   uint64 `yaml:"weight_stake"`

	// Epoch cadence.
	SlotDurationMillis uint64 `yaml:"slot_duration_millis"`
	SlotsPerEpoch      uint64 `yaml:"slots_per_epoch"`

	// Listen addresses.
	ExplorerAddr string `yaml:"explorer_addr"`

	Genesis []GenesisValidator `yaml:"genesis"`
}

// DefaultNodeConfig mirrors DefaultTrustConfig and DefaultWeightConfig.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		BetaHistoryBp:      4000,
		BetaVouchingBp:     3000,
		BetaWorkBp:         3000,
		AlphaHistoryBp:     9900,
		MinTrustToVouchBp:  5000,
		WeightTrust:        4,
		WeightQuality:      2,
		WeightStake:        1,
		SlotDurationMillis: 2000,
		SlotsPerEpoch:      32,
		ExplorerAddr:       "localhost:8121",
	}
}

// LoadNodeConfig reads a YAML config file, overlaying it on the
// defaults.
func LoadNodeConfig(path string) (NodeConfig, error) {
	config := DefaultNodeConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := config.Verify(); err != nil {
		return config, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Verify checks the derived engine parameters.
func (c NodeConfig) Verify() error {
	if _, err := c.TrustConfig(); err != nil {
		return err
	}
	if err := c.WeightConfig().Verify(); err != nil {
		return err
	}
	if c.SlotDurationMillis == 0 {
		return fmt.Errorf("%w: slot_duration_millis must be positive", ErrInvalidConfig)
	}
	if c.SlotsPerEpoch == 0 {
		return fmt.Errorf("%w: slots_per_epoch must be positive", ErrInvalidConfig)
	}
	return nil
}

// TrustConfig converts the basis-point parameters to Q32.32.
func (c NodeConfig) TrustConfig() (TrustConfig, error) {
	config := TrustConfig{
		BetaHistory:     QFromBasisPoints(c.BetaHistoryBp),
		BetaVouching:    QFromBasisPoints(c.BetaVouchingBp),
		BetaWork:        QFromBasisPoints(c.BetaWorkBp),
		AlphaHistory:    QFromBasisPoints(c.AlphaHistoryBp),
		MinTrustToVouch: QFromBasisPoints(c.MinTrustToVouchBp),
	}
	if err := config.Verify(); err != nil {
		return TrustConfig{}, err
	}
	return config, nil
}

// SlotDuration returns the slot cadence as a duration.
func (c NodeConfig) SlotDuration() time.Duration {
	return time.Duration(c.SlotDurationMillis) * time.Millisecond
}

func (c NodeConfig) WeightConfig() WeightConfig {
	return WeightConfig{
		WTrust:   c.WeightTrust,
		WQuality: c.WeightQuality,
		WStake:   c.WeightStake,
	}
}
