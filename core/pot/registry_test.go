package pot

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestRegistryNormalization(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(1), uint256.NewInt(100))
	r.Register(nid(2), uint256.NewInt(300))
	r.RecomputeAllStakeQ()

	a, ok := r.Get(nid(1))
	assert.True(ok)
	assert.Equal(Q(1073741824), a.StakeQ) // 100/400 = 0.25
	b, ok := r.Get(nid(2))
	assert.True(ok)
	assert.Equal(Q(3221225472), b.StakeQ) // 300/400 = 0.75

	assert.Equal(uint256.NewInt(400), r.TotalStakeRaw())
}

func TestRegistryZeroTotalStake(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(1), uint256.NewInt(0))
	r.Register(nid(2), uint256.NewInt(0))
	r.RecomputeAllStakeQ()

	a, _ := r.Get(nid(1))
	b, _ := r.Get(nid(2))
	assert.Equal(Q(0), a.StakeQ)
	assert.Equal(Q(0), b.StakeQ)
}

func TestRegistrySoleStaker(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(1), uint256.NewInt(1))
	r.RecomputeAllStakeQ()

	v, _ := r.Get(nid(1))
	assert.Equal(OneQ, v.StakeQ)
}

func TestRegistryReRegisterKeepsTrust(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(1), uint256.NewInt(100))
	v, _ := r.get(nid(1))
	v.TrustQ = QFromFloat(0.7)
	v.QualityQ = QFromFloat(0.8)

	r.Register(nid(1), uint256.NewInt(500))
	got, _ := r.Get(nid(1))
	assert.Equal(QFromFloat(0.7), got.TrustQ)
	assert.Equal(QFromFloat(0.8), got.QualityQ)
	assert.Equal(uint256.NewInt(500), got.StakeRaw)
	assert.Equal(uint256.NewInt(500), r.TotalStakeRaw())
}

func TestRegistryRemove(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(1), uint256.NewInt(100))
	r.Register(nid(2), uint256.NewInt(300))
	r.Remove(nid(2))

	assert.Equal(1, r.Count())
	assert.Equal(uint256.NewInt(100), r.TotalStakeRaw())
	_, ok := r.Get(nid(2))
	assert.False(ok)

	r.RecomputeAllStakeQ()
	v, _ := r.Get(nid(1))
	assert.Equal(OneQ, v.StakeQ)
}

func TestRegistryUpdateStake(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(1), uint256.NewInt(100))
	r.Register(nid(2), uint256.NewInt(100))
	r.UpdateStake(nid(1), uint256.NewInt(300))
	r.RecomputeAllStakeQ()

	a, _ := r.Get(nid(1))
	assert.Equal(Q(3221225472), a.StakeQ)
	assert.Equal(uint256.NewInt(400), r.TotalStakeRaw())

	// Unknown id is a no-op.
	r.UpdateStake(nid(9), uint256.NewInt(1000))
	assert.Equal(uint256.NewInt(400), r.TotalStakeRaw())
}

func TestRegistryIdsSorted(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(5), uint256.NewInt(1))
	r.Register(nid(1), uint256.NewInt(1))
	r.Register(nid(3), uint256.NewInt(1))

	assert.Equal([]NodeId{nid(1), nid(3), nid(5)}, r.Ids())

	states := r.States()
	assert.Len(states, 3)
	assert.Equal(nid(1), states[0].Id)
	assert.Equal(nid(5), states[2].Id)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(nid(1), uint256.NewInt(100))

	v, _ := r.Get(nid(1))
	v.StakeRaw.SetUint64(999999)
	v.TrustQ = OneQ

	fresh, _ := r.Get(nid(1))
	assert.Equal(uint256.NewInt(100), fresh.StakeRaw)
	assert.Equal(Q(0), fresh.TrustQ)
}
