package pot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"
)

const (
	randaoCommitTag = "RANDAO.COMMIT"
	beaconSlotTag   = "BEACON.SLOT"
)

var (
	ErrAlreadyCommitted = errors.New("participant already committed")
	ErrNoCommitment     = errors.New("no commitment for participant")
	ErrRevealMismatch   = errors.New("reveal does not match commitment")
	ErrNoReveals        = errors.New("no reveals to finalize")
)

// RandaoBeacon is a commit-reveal randomness beacon. Participants
// commit SHA3-256("RANDAO.COMMIT" ‖ secret) during the commit phase,
// then reveal the secret; the finalized base is the XOR of all
// revealed secrets. One dishonest revealer cannot bias the output
// more than by withholding.
type RandaoBeacon struct {
	mu sync.Mutex

	commitments map[NodeId][32]byte
	reveals     map[NodeId][32]byte
	base        [32]byte
	finalized   bool
}

func NewRandaoBeacon() *RandaoBeacon {
	return &RandaoBeacon{
		commitments: make(map[NodeId][32]byte),
		reveals:     make(map[NodeId][32]byte),
	}
}

// CommitmentFor computes the commitment a participant should publish
// for a secret.
func CommitmentFor(secret [32]byte) [32]byte {
	buf := new(bytes.Buffer)
	buf.WriteString(randaoCommitTag)
	buf.Write(secret[:])
	return sha3.Sum256(buf.Bytes())
}

// Commit records a participant's commitment. Each participant may
// commit once per beacon round.
func (b *RandaoBeacon) Commit(who NodeId, commitment [32]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.commitments[who]; ok {
		return fmt.Errorf("randao commit from %s: %w", who.ShortString(), ErrAlreadyCommitted)
	}
	b.commitments[who] = commitment
	return nil
}

// Reveal checks a secret against the participant's commitment and
// records it.
func (b *RandaoBeacon) Reveal(who NodeId, secret [32]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	commitment, ok := b.commitments[who]
	if !ok {
		return fmt.Errorf("randao reveal from %s: %w", who.ShortString(), ErrNoCommitment)
	}
	if CommitmentFor(secret) != commitment {
		return fmt.Errorf("randao reveal from %s: %w", who.ShortString(), ErrRevealMismatch)
	}
	b.reveals[who] = secret
	return nil
}

// Finalize XORs all revealed secrets into the beacon base and returns
// it. Finalizing with zero reveals is an error.
func (b *RandaoBeacon) Finalize() ([32]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.reveals) == 0 {
		return [32]byte{}, ErrNoReveals
	}
	var base [32]byte
	for _, secret := range b.reveals {
		for i := range base {
			base[i] ^= secret[i]
		}
	}
	b.base = base
	b.finalized = true
	return base, nil
}

// Finalized reports whether the beacon base has been computed.
func (b *RandaoBeacon) Finalized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalized
}

// ValueForSlot derives the per-slot beacon value:
// SHA3-256("BEACON.SLOT" ‖ base ‖ epoch LE ‖ slot LE). Before
// finalization the base is all zeroes, which still yields a usable
// (but predictable) value for bootstrapping.
func (b *RandaoBeacon) ValueForSlot(epoch Epoch, slot Slot) [32]byte {
	b.mu.Lock()
	base := b.base
	b.mu.Unlock()

	buf := new(bytes.Buffer)
	buf.WriteString(beaconSlotTag)
	buf.Write(base[:])
	binary.Write(buf, binary.LittleEndian, uint64(epoch))
	binary.Write(buf, binary.LittleEndian, uint64(slot))
	return sha3.Sum256(buf.Bytes())
}

// Reset clears commitments and reveals for the next round, keeping
// the finalized base so slots keep deriving values until the next
// Finalize replaces it.
func (b *RandaoBeacon) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commitments = make(map[NodeId][32]byte)
	b.reveals = make(map[NodeId][32]byte)
}
