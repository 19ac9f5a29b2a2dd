package pot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultNodeConfig(t *testing.T) {
	assert := assert.New(t)

	config := DefaultNodeConfig()
	assert.NoError(config.Verify())

	trustConfig, err := config.TrustConfig()
	assert.NoError(err)
	assert.Equal(QFromBasisPoints(4000), trustConfig.BetaHistory)
	assert.Equal(QFromBasisPoints(9900), trustConfig.AlphaHistory)
	assert.Equal(OneQ/2, trustConfig.MinTrustToVouch)

	assert.Equal(DefaultWeightConfig(), config.WeightConfig())
}

func TestNodeConfigVerifyRejectsBadBetas(t *testing.T) {
	assert := assert.New(t)

	config := DefaultNodeConfig()
	config.BetaHistoryBp = 1000
	assert.ErrorIs(config.Verify(), ErrInvalidConfig)
}

func TestNodeConfigVerifyRejectsZeroWeights(t *testing.T) {
	assert := assert.New(t)

	config := DefaultNodeConfig()
	config.WeightTrust = 0
	config.WeightQuality = 0
	config.WeightStake = 0
	assert.ErrorIs(config.Verify(), ErrInvalidConfig)
}

func TestNodeConfigVerifyRejectsBadCadence(t *testing.T) {
	assert := assert.New(t)

	config := DefaultNodeConfig()
	config.SlotDurationMillis = 0
	assert.ErrorIs(config.Verify(), ErrInvalidConfig)

	config = DefaultNodeConfig()
	config.SlotsPerEpoch = 0
	assert.ErrorIs(config.Verify(), ErrInvalidConfig)
}

func TestLoadNodeConfig(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "node.yml")
	err := os.WriteFile(path, []byte(`
beta_history_bp: 5000
beta_vouching_bp: 2500
beta_work_bp: 2500
slot_duration_millis: 500
genesis:
  - id: "0101010101010101010101010101010101010101010101010101010101010101"
    stake: 100
  - id: "0202020202020202020202020202020202020202020202020202020202020202"
    stake: 300
`), 0o644)
	assert.NoError(err)

	config, err := LoadNodeConfig(path)
	assert.NoError(err)
	assert.Equal(uint64(5000), config.BetaHistoryBp)
	assert.Equal(500*time.Millisecond, config.SlotDuration())
	// Unset fields keep their defaults.
	assert.Equal(uint64(9900), config.AlphaHistoryBp)
	assert.Equal(uint64(32), config.SlotsPerEpoch)
	assert.Len(config.Genesis, 2)
	assert.Equal(uint64(300), config.Genesis[1].Stake)
}

func TestLoadNodeConfigErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := LoadNodeConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(err)

	path := filepath.Join(t.TempDir(), "bad.yml")
	assert.NoError(os.WriteFile(path, []byte("beta_history_bp: 9000\n"), 0o644))
	_, err = LoadNodeConfig(path)
	assert.ErrorIs(err, ErrInvalidConfig)
}
