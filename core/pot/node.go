package pot

import (
	"fmt"
	"log"
	"time"

	"github.com/holiman/uint256"

	"github.com/truetrustorg/truetrust-go/core"
)

// QualityOracle supplies per-slot work-quality observations. The
// consensus core does not judge work itself; whatever measures it
// (block audits, uptime probes, attestation counting) sits behind
// this interface.
type QualityOracle interface {
	// QualityReports returns (validator, quality) observations for a
	// slot. Validators without a report keep their history unchanged.
	QualityReports(epoch Epoch, slot Slot) map[NodeId]QualityScore
}

// BeaconSource supplies per-slot randomness for leader selection.
type BeaconSource interface {
	ValueForSlot(epoch Epoch, slot Slot) [32]byte
}

// Node drives the engine through slots and epochs on a wall-clock
// ticker. The engine stays usable directly; the node just sequences
// calls to it.
type Node struct {
	Engine *Engine
	Beacon BeaconSource
	Oracle QualityOracle

	config NodeConfig
	log    *log.Logger

	// OnLeader is called after each slot's leader selection.
	OnLeader func(epoch Epoch, slot Slot, leader NodeId)
	// OnEpochSnapshot is called after each epoch boundary.
	OnEpochSnapshot func(snapshot *EpochSnapshot)

	slot Slot
	done chan struct{}
}

func NewNode(config NodeConfig, engine *Engine, beacon BeaconSource, oracle QualityOracle) *Node {
	return &Node{
		Engine: engine,
		Beacon: beacon,
		Oracle: oracle,
		config: config,
		log:    core.NewLogger("node", ""),
		done:   make(chan struct{}),
	}
}

// NewNodeFromConfig builds the engine from a config, seeds the
// genesis validators, and wraps it in a node with a RANDAO beacon.
func NewNodeFromConfig(config NodeConfig, oracle QualityOracle) (*Node, error) {
	trustConfig, err := config.TrustConfig()
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(trustConfig, config.WeightConfig())
	if err != nil {
		return nil, err
	}

	for _, gv := range config.Genesis {
		id, err := parseNodeId(gv.Id)
		if err != nil {
			return nil, fmt.Errorf("genesis validator %q: %w", gv.Id, err)
		}
		engine.RegisterValidator(id, uint256.NewInt(gv.Stake))
	}
	engine.RecomputeAllStakeQ()

	return NewNode(config, engine, NewRandaoBeacon(), oracle), nil
}

func parseNodeId(s string) (NodeId, error) {
	b, err := core.HexStringToBytes32(s)
	if err != nil {
		return NodeId{}, fmt.Errorf("parsing node id: %w", err)
	}
	return NodeId(b), nil
}

// Start runs the slot loop until Shutdown. Blocking; callers that
// want it in the background wrap it in a goroutine.
func (n *Node) Start() {
	n.log.Printf("starting, slot duration %s, %d slots per epoch\n", n.config.SlotDuration(), n.config.SlotsPerEpoch)

	ticker := time.NewTicker(n.config.SlotDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.Tick()
		case <-n.done:
			n.log.Println("stopped")
			return
		}
	}
}

// Tick runs one slot: ingest quality reports, select the slot leader,
// and advance the epoch at the boundary. Exposed so tests and tools
// can drive slots without the ticker.
func (n *Node) Tick() {
	epoch := n.Engine.Epoch()

	if n.Oracle != nil {
		for id, quality := range n.Oracle.QualityReports(epoch, n.slot) {
			if err := n.Engine.RecordQuality(id, quality); err != nil {
				n.log.Printf("dropping quality report: %s\n", err)
			}
		}
	}

	beacon := n.Beacon.ValueForSlot(epoch, n.slot)
	if leader, ok := n.Engine.SelectLeader(beacon); ok {
		n.log.Printf("epoch %d slot %d leader %s\n", epoch, n.slot, leader.ShortString())
		if n.OnLeader != nil {
			n.OnLeader(epoch, n.slot, leader)
		}
	} else {
		n.log.Printf("epoch %d slot %d: no validators, skipping\n", epoch, n.slot)
	}

	n.slot++
	if uint64(n.slot) >= n.config.SlotsPerEpoch {
		n.slot = 0
		snapshot := n.Engine.AdvanceEpoch(nil)
		n.log.Printf("epoch %d sealed, root %x, %d validators\n", snapshot.Epoch, snapshot.Root[:8], len(snapshot.Records))
		if n.OnEpochSnapshot != nil {
			n.OnEpochSnapshot(snapshot)
		}
	}
}

// Shutdown stops the slot loop.
func (n *Node) Shutdown() {
	close(n.done)
}
