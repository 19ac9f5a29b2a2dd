package pot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQMulIdentity(t *testing.T) {
	assert := assert.New(t)

	for _, x := range []Q{0, 1, 12345, OneQ / 2, OneQ, OneQ + 12345} {
		assert.Equal(x, QMul(OneQ, x))
		assert.Equal(x, QMul(x, OneQ))
	}
}

func TestQMulTruncates(t *testing.T) {
	assert := assert.New(t)

	// 0.5 * 0.5 = 0.25 exactly.
	assert.Equal(OneQ/4, QMul(OneQ/2, OneQ/2))

	// Smallest representable fraction squared truncates to zero.
	assert.Equal(Q(0), QMul(1, 1))
}

func TestQMulClampsOverflow(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Q(math.MaxUint64), QMul(math.MaxUint64, math.MaxUint64))
	assert.Equal(Q(math.MaxUint64), QMul(math.MaxUint64, 2*OneQ))
}

func TestQClamp01(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Q(0), QClamp01(0))
	assert.Equal(OneQ, QClamp01(OneQ))
	assert.Equal(OneQ, QClamp01(OneQ+1))
	assert.Equal(OneQ, QClamp01(math.MaxUint64))
	assert.Equal(Q(42), QClamp01(42))
}

func TestQFromBasisPoints(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Q(0), QFromBasisPoints(0))
	assert.Equal(OneQ, QFromBasisPoints(10000))
	assert.Equal(OneQ/4, QFromBasisPoints(2500))
	assert.Equal(OneQ/2, QFromBasisPoints(5000))
	// 1% does not divide 2^32 evenly; conversion truncates.
	assert.Equal(Q(42949672), QFromBasisPoints(100))
}

func TestQFromFloat(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Q(0), QFromFloat(-1.0))
	assert.Equal(Q(0), QFromFloat(0.0))
	assert.Equal(OneQ, QFromFloat(1.0))
	assert.Equal(OneQ, QFromFloat(2.5))
	assert.Equal(Q(2147483648), QFromFloat(0.5))
	assert.Equal(Q(3865470566), QFromFloat(0.9))
	assert.Equal(Q(1717986918), QFromFloat(0.4))
}

func TestQAddSat(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Q(3), qAddSat(1, 2))
	assert.Equal(Q(math.MaxUint64), qAddSat(math.MaxUint64, 1))
	assert.Equal(Q(math.MaxUint64), qAddSat(math.MaxUint64, math.MaxUint64))
}
