package pot

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/holiman/uint256"
)

// Domain tags for snapshot hashing. Changing a tag invalidates every
// previously issued witness, so bump the version rather than editing
// a layout in place.
const (
	leafDomainTag   = "WGT.v2"
	branchDomainTag = "MRK.v1"
)

var ErrWitnessTooLarge = errors.New("witness exceeds size limits")

// ValidatorSnapshot is one validator's frozen consensus inputs plus
// its derived weight at the moment the snapshot was built.
type ValidatorSnapshot struct {
	Id       NodeId
	StakeQ   Q
	TrustQ   TrustScore
	QualityQ QualityScore
	Weight   Weight
}

// EpochSnapshot is an immutable Merkle commitment over the full
// validator set at an epoch boundary. Records are sorted by id, which
// fixes the leaf order and therefore the root.
type EpochSnapshot struct {
	Epoch   Epoch
	Root    [32]byte
	Records []ValidatorSnapshot

	index  map[NodeId]int
	leaves [][32]byte
}

// snapshotLeaf hashes one record into a Merkle leaf.
//
// Layout: tag ‖ id ‖ stake_q LE ‖ trust_q LE ‖ quality_q LE ‖ weight BE16.
func snapshotLeaf(rec ValidatorSnapshot) [32]byte {
	buf := new(bytes.Buffer)
	buf.WriteString(leafDomainTag)
	buf.Write(rec.Id[:])
	binary.Write(buf, binary.LittleEndian, rec.StakeQ)
	binary.Write(buf, binary.LittleEndian, rec.TrustQ)
	binary.Write(buf, binary.LittleEndian, rec.QualityQ)
	w16 := weightBytes16(rec.Weight)
	buf.Write(w16[:])
	return sha256.Sum256(buf.Bytes())
}

func snapshotBranch(left, right [32]byte) [32]byte {
	buf := new(bytes.Buffer)
	buf.WriteString(branchDomainTag)
	buf.Write(left[:])
	buf.Write(right[:])
	return sha256.Sum256(buf.Bytes())
}

// BuildSnapshot freezes the given validator states into a Merkle
// snapshot for an epoch. Weights are recomputed here from the frozen
// fields so the committed weight always matches the committed inputs.
func BuildSnapshot(epoch Epoch, cfg WeightConfig, states []ValidatorState) *EpochSnapshot {
	records := make([]ValidatorSnapshot, 0, len(states))
	for _, st := range states {
		records = append(records, ValidatorSnapshot{
			Id:       st.Id,
			StakeQ:   st.StakeQ,
			TrustQ:   st.TrustQ,
			QualityQ: st.QualityQ,
			Weight:   ComputeWeight(cfg, st.TrustQ, st.QualityQ, st.StakeQ),
		})
	}
	slices.SortFunc(records, func(a, b ValidatorSnapshot) int {
		return a.Id.Compare(b.Id)
	})

	snap := &EpochSnapshot{
		Epoch:   epoch,
		Records: records,
		index:   make(map[NodeId]int, len(records)),
		leaves:  make([][32]byte, len(records)),
	}
	for i, rec := range records {
		snap.index[rec.Id] = i
		snap.leaves[i] = snapshotLeaf(rec)
	}
	snap.Root = merkleRoot(snap.leaves)
	return snap
}

// merkleRoot folds leaves up to a root. An odd node at any level is
// paired with a duplicate of itself. Zero leaves hash to the zero
// root.
func merkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := slices.Clone(leaves)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, snapshotBranch(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

// Record looks up a validator's committed record.
func (s *EpochSnapshot) Record(id NodeId) (ValidatorSnapshot, bool) {
	i, ok := s.index[id]
	if !ok {
		return ValidatorSnapshot{}, false
	}
	return s.Records[i], true
}

// SumTrustQ is the total committed trust, saturating at the top of the
// Q range.
func (s *EpochSnapshot) SumTrustQ() Q {
	var sum Q
	for _, rec := range s.Records {
		sum = qAddSat(sum, rec.TrustQ)
	}
	return sum
}

// WeightWitness is a standalone proof that one validator's record is
// committed under a snapshot root.
type WeightWitness struct {
	Who       NodeId
	StakeQ    Q
	TrustQ    TrustScore
	QualityQ  QualityScore
	Weight    Weight
	LeafIndex uint64
	Siblings  [][32]byte
}

// BuildWitness produces a Merkle membership proof for one validator.
func (s *EpochSnapshot) BuildWitness(id NodeId) (*WeightWitness, error) {
	idx, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("building witness: %w", ErrUnknownValidator)
	}

	var siblings [][32]byte
	level := slices.Clone(s.leaves)
	pos := idx
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		if pos%2 == 0 {
			siblings = append(siblings, level[pos+1])
		} else {
			siblings = append(siblings, level[pos-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, snapshotBranch(level[i], level[i+1]))
		}
		level = next
		pos /= 2
	}

	rec := s.Records[idx]
	return &WeightWitness{
		Who:       rec.Id,
		StakeQ:    rec.StakeQ,
		TrustQ:    rec.TrustQ,
		QualityQ:  rec.QualityQ,
		Weight:    new(uint256.Int).Set(rec.Weight),
		LeafIndex: uint64(idx),
		Siblings:  siblings,
	}, nil
}

// VerifyWitness checks a witness against a snapshot root without any
// other snapshot state. It re-derives the leaf from the plaintext
// fields and walks the sibling path, so a witness whose plaintext
// disagrees with the committed record cannot verify.
func VerifyWitness(root [32]byte, w *WeightWitness) bool {
	if w == nil || w.Weight == nil {
		return false
	}
	if w.TrustQ > OneQ || w.QualityQ > OneQ || w.StakeQ > OneQ {
		return false
	}

	cur := snapshotLeaf(ValidatorSnapshot{
		Id:       w.Who,
		StakeQ:   w.StakeQ,
		TrustQ:   w.TrustQ,
		QualityQ: w.QualityQ,
		Weight:   w.Weight,
	})
	pos := w.LeafIndex
	for _, sib := range w.Siblings {
		if pos%2 == 0 {
			cur = snapshotBranch(cur, sib)
		} else {
			cur = snapshotBranch(sib, cur)
		}
		pos /= 2
	}
	return cur == root
}

// VerifyWitness checks a witness against this snapshot. On top of the
// root check it requires the plaintext fields to equal the snapshot's
// own record for the validator, catching a witness whose claims have
// drifted from local state. Verifiers that only hold the root use the
// standalone VerifyWitness.
func (s *EpochSnapshot) VerifyWitness(w *WeightWitness) bool {
	if !VerifyWitness(s.Root, w) {
		return false
	}
	idx, ok := s.index[w.Who]
	if !ok {
		return false
	}
	rec := s.Records[idx]
	return w.LeafIndex == uint64(idx) &&
		w.StakeQ == rec.StakeQ &&
		w.TrustQ == rec.TrustQ &&
		w.QualityQ == rec.QualityQ &&
		w.Weight.Eq(rec.Weight)
}

// Wire format v1 for witnesses:
//
//	version u8 ‖ who[32] ‖ stake_q LE8 ‖ trust_q LE8 ‖ quality_q LE8 ‖
//	weight BE16 ‖ leaf_index LE8 ‖ sibling_count u8 ‖ siblings[32]...
const witnessWireVersion = 1

const maxWitnessSiblings = 64

// Encode serializes a witness into the v1 wire layout.
func (w *WeightWitness) Encode() ([]byte, error) {
	if len(w.Siblings) > maxWitnessSiblings {
		return nil, ErrWitnessTooLarge
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(witnessWireVersion)
	buf.Write(w.Who[:])
	binary.Write(buf, binary.LittleEndian, w.StakeQ)
	binary.Write(buf, binary.LittleEndian, w.TrustQ)
	binary.Write(buf, binary.LittleEndian, w.QualityQ)
	w16 := weightBytes16(w.Weight)
	buf.Write(w16[:])
	binary.Write(buf, binary.LittleEndian, w.LeafIndex)
	buf.WriteByte(byte(len(w.Siblings)))
	for _, sib := range w.Siblings {
		buf.Write(sib[:])
	}
	return buf.Bytes(), nil
}

// DecodeWitness parses the v1 wire layout.
func DecodeWitness(data []byte) (*WeightWitness, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	if version != witnessWireVersion {
		return nil, fmt.Errorf("decoding witness: unknown version %d", version)
	}

	w := &WeightWitness{}
	if _, err := io.ReadFull(r, w.Who[:]); err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &w.StakeQ); err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &w.TrustQ); err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &w.QualityQ); err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	var w16 [16]byte
	if _, err := io.ReadFull(r, w16[:]); err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	w.Weight = new(uint256.Int).SetBytes(w16[:])
	if err := binary.Read(r, binary.LittleEndian, &w.LeafIndex); err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	count, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("decoding witness: %w", err)
	}
	if int(count) > maxWitnessSiblings {
		return nil, ErrWitnessTooLarge
	}
	w.Siblings = make([][32]byte, count)
	for i := range w.Siblings {
		if _, err := io.ReadFull(r, w.Siblings[i][:]); err != nil {
			return nil, fmt.Errorf("decoding witness: %w", err)
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("decoding witness: %d trailing bytes", r.Len())
	}
	return w, nil
}
