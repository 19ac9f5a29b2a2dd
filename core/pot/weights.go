// Deterministic validator weights and leader selection.

package pot

import (
	"bytes"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// leaderDomainTag separates leader-score hashing from every other use
// of the hash function.
const leaderDomainTag = "TT-LEADER.v1"

// Weight is the final comparable validator weight. It is a plain
// integer (never fixed-point division), so identical inputs give an
// identical weight on every platform. Values fit well inside 128 bits.
type Weight = *uint256.Int

// ComputeWeight combines trust, quality and stake into a weight:
//
//	weight = WTrust·T + WQuality·Q + WStake·S
//
// with T, Q, S in [0, OneQ] and integer coefficients.
func ComputeWeight(cfg WeightConfig, trustQ, qualityQ, stakeQ Q) Weight {
	w := new(uint256.Int).Mul(uint256.NewInt(cfg.WTrust), uint256.NewInt(trustQ))
	w.Add(w, new(uint256.Int).Mul(uint256.NewInt(cfg.WQuality), uint256.NewInt(qualityQ)))
	w.Add(w, new(uint256.Int).Mul(uint256.NewInt(cfg.WStake), uint256.NewInt(stakeQ)))
	return w
}

// weightBytes16 encodes a weight as 16 big-endian bytes for hashing.
func weightBytes16(w Weight) [16]byte {
	b32 := w.Bytes32()
	fbuf := [16]byte{}
	copy(fbuf[:], b32[16:])
	return fbuf
}

// ValidatorTuple is the leader-selection view of one validator.
type ValidatorTuple struct {
	Id       NodeId
	TrustQ   Q
	QualityQ Q
	StakeQ   Q
}

// leaderScore hashes (tag, beacon, id, weight) and scales the digest
// slice by the validator's weight. Scaling keeps selection biased
// towards higher weights while the beacon still reshuffles the
// outcome every slot.
func leaderScore(cfg WeightConfig, beacon [32]byte, v ValidatorTuple) *uint256.Int {
	w := ComputeWeight(cfg, v.TrustQ, v.QualityQ, v.StakeQ)
	wbuf := weightBytes16(w)

	// H("TT-LEADER.v1" || beacon || id || weight_be)
	buf := new(bytes.Buffer)
	buf.WriteString(leaderDomainTag)
	buf.Write(beacon[:])
	buf.Write(v.Id[:])
	buf.Write(wbuf[:])
	digest := sha3.Sum256(buf.Bytes())

	// score = weight × digest[16:32] (big-endian)
	score := new(uint256.Int).SetBytes(digest[16:32])
	return score.Mul(score, w)
}

// SelectLeader picks the leader for a slot from the eligible
// validators. It is a pure function of (beacon, validator set): the
// same inputs always give the same leader, so any third party can
// recompute and verify the result.
//
// The winner has the maximum score; on the (cryptographically
// negligible) chance of a score tie the lexicographically smallest id
// wins, never map iteration order. Returns ok=false for an empty set.
func SelectLeader(cfg WeightConfig, beacon [32]byte, validators []ValidatorTuple) (NodeId, bool) {
	if len(validators) == 0 {
		return NodeId{}, false
	}

	var (
		bestId    NodeId
		bestScore *uint256.Int
	)
	for _, v := range validators {
		score := leaderScore(cfg, beacon, v)
		if bestScore == nil ||
			score.Gt(bestScore) ||
			(score.Eq(bestScore) && v.Id.Compare(bestId) < 0) {
			bestId = v.Id
			bestScore = score
		}
	}
	return bestId, true
}
