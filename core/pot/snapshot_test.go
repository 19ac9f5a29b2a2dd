package pot

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func snapshotStates() []ValidatorState {
	return []ValidatorState{
		{Id: nid(3), StakeRaw: uint256.NewInt(50), StakeQ: OneQ / 4, TrustQ: 951745793, QualityQ: QFromFloat(0.9)},
		{Id: nid(1), StakeRaw: uint256.NewInt(100), StakeQ: OneQ / 2, TrustQ: 214593088, QualityQ: QFromFloat(0.4)},
		{Id: nid(2), StakeRaw: uint256.NewInt(50), StakeQ: OneQ / 4, TrustQ: QFromFloat(0.5), QualityQ: QFromFloat(0.5)},
	}
}

func TestSnapshotDeterministicRoot(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultWeightConfig()

	s1 := BuildSnapshot(1, cfg, snapshotStates())

	// Same states in a different order commit to the same root.
	states := snapshotStates()
	states[0], states[2] = states[2], states[0]
	s2 := BuildSnapshot(1, cfg, states)

	assert.Equal(s1.Root, s2.Root)
	assert.NotEqual([32]byte{}, s1.Root)

	// Records come out sorted by id.
	assert.Equal(nid(1), s1.Records[0].Id)
	assert.Equal(nid(2), s1.Records[1].Id)
	assert.Equal(nid(3), s1.Records[2].Id)
}

func TestSnapshotRootCoversEveryField(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultWeightConfig()
	base := BuildSnapshot(1, cfg, snapshotStates())

	mutations := []func(*ValidatorState){
		func(v *ValidatorState) { v.TrustQ++ },
		func(v *ValidatorState) { v.QualityQ++ },
		func(v *ValidatorState) { v.StakeQ++ },
		func(v *ValidatorState) { v.Id[31] ^= 0x01 },
	}
	for i, mutate := range mutations {
		states := snapshotStates()
		mutate(&states[0])
		assert.NotEqual(base.Root, BuildSnapshot(1, cfg, states).Root, "mutation %d not committed", i)
	}
}

func TestSnapshotEmptySet(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), nil)
	assert.Equal([32]byte{}, s.Root)
	assert.Empty(s.Records)

	_, err := s.BuildWitness(nid(1))
	assert.ErrorIs(err, ErrUnknownValidator)
}

func TestSnapshotSingleLeaf(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates()[:1])
	assert.Equal(snapshotLeaf(s.Records[0]), s.Root)

	w, err := s.BuildWitness(s.Records[0].Id)
	assert.NoError(err)
	assert.Empty(w.Siblings)
	assert.True(VerifyWitness(s.Root, w))
}

func TestSnapshotRecordLookup(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates())
	rec, ok := s.Record(nid(3))
	assert.True(ok)
	assert.Equal(TrustScore(951745793), rec.TrustQ)

	_, ok = s.Record(nid(9))
	assert.False(ok)
}

func TestWitnessVerify(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates())
	for _, rec := range s.Records {
		w, err := s.BuildWitness(rec.Id)
		assert.NoError(err)
		assert.True(VerifyWitness(s.Root, w), "witness for %s", rec.Id.ShortString())
	}
}

func TestSnapshotBoundWitnessVerify(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates())
	for _, rec := range s.Records {
		w, err := s.BuildWitness(rec.Id)
		assert.NoError(err)
		assert.True(s.VerifyWitness(w), "witness for %s", rec.Id.ShortString())
	}

	// A witness whose plaintext no longer matches the committed record
	// is rejected even when carried over the wire.
	w, err := s.BuildWitness(nid(2))
	assert.NoError(err)
	w.TrustQ = QFromFloat(0.5) + 1
	assert.False(s.VerifyWitness(w))

	// Witnesses from another epoch's set do not verify against this one.
	other := BuildSnapshot(2, DefaultWeightConfig(), snapshotStates()[:1])
	foreign, err := other.BuildWitness(other.Records[0].Id)
	assert.NoError(err)
	assert.False(s.VerifyWitness(foreign))

	assert.False(s.VerifyWitness(nil))
}

func TestWitnessRejectsTampering(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates())
	fresh := func() *WeightWitness {
		w, err := s.BuildWitness(nid(2))
		assert.NoError(err)
		return w
	}

	w := fresh()
	w.TrustQ++
	assert.False(VerifyWitness(s.Root, w))

	w = fresh()
	w.StakeQ--
	assert.False(VerifyWitness(s.Root, w))

	w = fresh()
	w.Weight.Add(w.Weight, uint256.NewInt(1))
	assert.False(VerifyWitness(s.Root, w))

	w = fresh()
	w.LeafIndex++
	assert.False(VerifyWitness(s.Root, w))

	w = fresh()
	w.Siblings[0][0] ^= 0x01
	assert.False(VerifyWitness(s.Root, w))

	// Out-of-range scores never verify, whatever the path says.
	w = fresh()
	w.TrustQ = OneQ + 1
	assert.False(VerifyWitness(s.Root, w))

	assert.False(VerifyWitness(s.Root, nil))
}

func TestWitnessWireRoundTrip(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates())
	w, err := s.BuildWitness(nid(3))
	assert.NoError(err)

	data, err := w.Encode()
	assert.NoError(err)

	decoded, err := DecodeWitness(data)
	assert.NoError(err)
	assert.Equal(w.Who, decoded.Who)
	assert.Equal(w.StakeQ, decoded.StakeQ)
	assert.Equal(w.TrustQ, decoded.TrustQ)
	assert.Equal(w.QualityQ, decoded.QualityQ)
	assert.Equal(w.Weight, decoded.Weight)
	assert.Equal(w.LeafIndex, decoded.LeafIndex)
	assert.Equal(w.Siblings, decoded.Siblings)
	assert.True(VerifyWitness(s.Root, decoded))
}

func TestWitnessWireRejectsGarbage(t *testing.T) {
	assert := assert.New(t)

	_, err := DecodeWitness(nil)
	assert.Error(err)

	_, err = DecodeWitness([]byte{99})
	assert.Error(err)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates())
	w, _ := s.BuildWitness(nid(1))
	data, _ := w.Encode()

	_, err = DecodeWitness(data[:len(data)-1])
	assert.Error(err)

	_, err = DecodeWitness(append(data, 0x00))
	assert.Error(err)
}

func TestSumTrustQ(t *testing.T) {
	assert := assert.New(t)

	s := BuildSnapshot(1, DefaultWeightConfig(), snapshotStates())
	expected := Q(951745793) + 214593088 + QFromFloat(0.5)
	assert.Equal(expected, s.SumTrustQ())

	assert.Equal(Q(0), BuildSnapshot(1, DefaultWeightConfig(), nil).SumTrustQ())
}

func TestSumTrustQSaturates(t *testing.T) {
	assert := assert.New(t)

	states := make([]ValidatorState, 0, 8)
	for i := byte(1); i <= 8; i++ {
		states = append(states, ValidatorState{
			Id:       nid(i),
			StakeRaw: uint256.NewInt(1),
			TrustQ:   math.MaxUint64 / 4,
		})
	}
	s := BuildSnapshot(1, DefaultWeightConfig(), states)
	assert.Equal(Q(math.MaxUint64), s.SumTrustQ())
}
