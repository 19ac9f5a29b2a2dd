package pot

import (
	"math"
	"math/bits"
)

// OneQ is 1.0 in Q32.32.
const OneQ Q = 1 << 32

// QMul multiplies two Q32.32 values with truncation:
// floor(a·b / 2^32), computed in 128-bit intermediate precision and
// clamped to 64 bits.
func QMul(a, b Q) Q {
	hi, lo := bits.Mul64(a, b)
	if hi>>32 != 0 {
		return math.MaxUint64
	}
	return hi<<32 | lo>>32
}

// QClamp01 clamps x to [0, OneQ].
func QClamp01(x Q) Q {
	return min(x, OneQ)
}

// QFromBasisPoints converts basis points (1/10000) to Q32.32 with pure
// integer arithmetic, e.g. QFromBasisPoints(2500) == 0.25.
func QFromBasisPoints(bp uint64) Q {
	return Q((uint64(bp) * uint64(OneQ)) / 10000)
}

// QFromFloat converts a float to Q32.32.
//
// Advisory only: used for config defaults and test expectations, never
// inside leader selection, weight computation or snapshot commitment.
func QFromFloat(x float64) Q {
	if x <= 0.0 {
		return 0
	}
	if x >= 1.0 {
		return OneQ
	}
	return Q(x * float64(OneQ))
}

// QToFloat converts Q32.32 to a float for debug display.
//
// Advisory only, same caveat as QFromFloat.
func QToFloat(x Q) float64 {
	return float64(x) / float64(OneQ)
}

// qAddSat adds two Q values, saturating at the 64-bit boundary.
func qAddSat(a, b Q) Q {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return s
}
