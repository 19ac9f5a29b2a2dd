// Proof-of-Trust consensus core.
//
// Everything on the consensus path (trust updates, weights, leader
// selection, snapshot commitment) is integer arithmetic in Q32.32
// fixed-point, so that every node computes bit-identical results
// regardless of CPU or compiler. Floating point appears only in
// functions documented as debug/advisory.

package pot

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// NodeId is a validator identifier: the 32-byte fingerprint of the
// validator's public signing key. It is opaque here; its byte order
// defines the canonical ordering used for snapshots and tie-breaks.
type NodeId [32]byte

func (id NodeId) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString returns the first 4 bytes as hex, for logs and graphs.
func (id NodeId) ShortString() string {
	return hex.EncodeToString(id[:4])
}

// Compare orders node ids by raw byte order.
func (id NodeId) Compare(other NodeId) int {
	return bytes.Compare(id[:], other[:])
}

// Q is a Q32.32 fixed-point value. OneQ represents 1.0.
type Q = uint64

// TrustScore is a trust value in [0, OneQ].
type TrustScore = Q

// QualityScore is a quality value in [0, OneQ].
type QualityScore = Q

// Epoch and Slot numbers.
type Epoch = uint64
type Slot = uint64

var (
	ErrUnknownValidator = errors.New("unknown validator")
	ErrInvalidConfig    = errors.New("invalid config")
)

// TrustConfig holds the trust combination parameters.
// All values are Q32.32.
type TrustConfig struct {
	// Weight of history (β₁).
	BetaHistory Q

	// Weight of vouching (β₂).
	BetaVouching Q

	// Weight of current work (β₃).
	BetaWork Q

	// History memory coefficient (α): H_new = α·H_old + (1−α)·q.
	// Close to 1.0 means the history forgets slowly.
	AlphaHistory Q

	// Minimum trust a validator needs before it may vouch.
	MinTrustToVouch Q
}

// DefaultTrustConfig returns the production parameters:
// β = 0.4/0.3/0.3, α = 0.99, min trust to vouch = 0.5.
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		BetaHistory:     QFromFloat(0.4),
		BetaVouching:    QFromFloat(0.3),
		BetaWork:        QFromFloat(0.3),
		AlphaHistory:    QFromFloat(0.99),
		MinTrustToVouch: QFromFloat(0.5),
	}
}

// Verify checks β₁ + β₂ + β₃ ≈ 1.0 (±1%). A config that fails this
// would give an ill-defined trust formula and must not be run.
func (c TrustConfig) Verify() error {
	sum := qAddSat(qAddSat(c.BetaHistory, c.BetaVouching), c.BetaWork)
	var diff Q
	if sum > OneQ {
		diff = sum - OneQ
	} else {
		diff = OneQ - sum
	}
	if diff >= QFromBasisPoints(100) {
		return fmt.Errorf("%w: beta weights sum to %f, want 1.0 +/- 1%%", ErrInvalidConfig, QToFloat(sum))
	}
	return nil
}

// WeightConfig holds the integer coefficients of the weight function:
// weight = WTrust·T + WQuality·Q + WStake·S.
type WeightConfig struct {
	WTrust   uint64
	WQuality uint64
	WStake   uint64
}

// DefaultWeightConfig: trust matters most, then last quality, then stake.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		WTrust:   4,
		WQuality: 2,
		WStake:   1,
	}
}

// Verify rejects the degenerate all-zero weight function.
func (c WeightConfig) Verify() error {
	if c.WTrust == 0 && c.WQuality == 0 && c.WStake == 0 {
		return fmt.Errorf("%w: all weight coefficients are zero", ErrInvalidConfig)
	}
	return nil
}
