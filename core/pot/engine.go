package pot

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// Engine ties the trust graph, the validator registry and the epoch
// snapshots together behind one lock. All mutating operations take
// the write lock; reads share the read lock. Within one engine every
// operation therefore observes a consistent validator set.
type Engine struct {
	mu sync.RWMutex

	trustConfig  TrustConfig
	weightConfig WeightConfig

	graph    *TrustGraph
	registry *Registry

	epoch    Epoch
	snapshot *EpochSnapshot
}

func NewEngine(trustConfig TrustConfig, weightConfig WeightConfig) (*Engine, error) {
	if err := weightConfig.Verify(); err != nil {
		return nil, err
	}
	graph, err := NewTrustGraph(trustConfig)
	if err != nil {
		return nil, err
	}
	return &Engine{
		trustConfig:  trustConfig,
		weightConfig: weightConfig,
		graph:        graph,
		registry:     NewRegistry(),
	}, nil
}

// RegisterValidator adds a validator with the given raw stake. New
// validators start at zero trust; they earn their way in through
// quality reports and vouching.
func (e *Engine) RegisterValidator(id NodeId, stakeRaw *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Register(id, stakeRaw)
	metricValidators.Set(float64(e.registry.Count()))
}

// BootstrapValidator registers a validator and seeds its trust from
// vouches by existing validators, bypassing the history ramp-up.
func (e *Engine) BootstrapValidator(id NodeId, stakeRaw *uint256.Int, offers []VouchOffer) TrustScore {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Register(id, stakeRaw)
	metricValidators.Set(float64(e.registry.Count()))
	trust := e.graph.BootstrapValidator(id, offers)
	if v, ok := e.registry.get(id); ok {
		v.TrustQ = trust
	}
	return trust
}

func (e *Engine) RemoveValidator(id NodeId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Remove(id)
	metricValidators.Set(float64(e.registry.Count()))
}

func (e *Engine) UpdateStake(id NodeId, stakeRaw *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.UpdateStake(id, stakeRaw)
}

// RecomputeAllStakeQ renormalizes every validator's stake share. Call
// after a batch of stake mutations; AdvanceEpoch also does this.
func (e *Engine) RecomputeAllStakeQ() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.RecomputeAllStakeQ()
}

// RecordQuality feeds one work-quality observation into a validator's
// history EWMA. The trust score itself only moves on the next trust
// update.
func (e *Engine) RecordQuality(id NodeId, quality QualityScore) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.registry.get(id)
	if !ok {
		return fmt.Errorf("recording quality for %s: %w", id.ShortString(), ErrUnknownValidator)
	}
	e.graph.RecordQuality(id, quality)
	v.QualityQ = e.graph.LastQuality(id)
	metricQualityReports.Inc()
	return nil
}

// AddVouch records a vouch if the voucher's live trust clears the
// gate and covers the offered strength.
func (e *Engine) AddVouch(voucher, vouchee NodeId, strength Q) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.graph.AddVouch(Vouch{
		Voucher:   voucher,
		Vouchee:   vouchee,
		StrengthQ: strength,
		CreatedAt: e.epoch,
	})
	if ok {
		metricVouches.Inc()
	} else {
		metricVouchesRejected.Inc()
	}
	return ok
}

func (e *Engine) RemoveVouch(voucher, vouchee NodeId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph.RemoveVouch(voucher, vouchee)
}

// UpdateValidatorTrust recomputes one validator's trust from its
// history, vouches and last reported quality.
func (e *Engine) UpdateValidatorTrust(id NodeId) (TrustScore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.registry.get(id)
	if !ok {
		return 0, fmt.Errorf("updating trust for %s: %w", id.ShortString(), ErrUnknownValidator)
	}
	trust := e.graph.UpdateTrust(id)
	v.TrustQ = trust
	return trust, nil
}

// UpdateAllTrust recomputes trust for the whole set in ascending id
// order, reading the previous round's scores.
func (e *Engine) UpdateAllTrust() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateAllTrustLocked()
}

func (e *Engine) updateAllTrustLocked() {
	e.graph.UpdateAll(e.registry.Ids())
	for _, id := range e.registry.Ids() {
		if v, ok := e.registry.get(id); ok {
			v.TrustQ = e.graph.GetTrust(id)
		}
	}
}

// AdvanceEpoch runs the end-of-epoch pass in one critical section:
// final quality batch, trust update for everyone, stake
// renormalization, then a Merkle snapshot of the resulting set.
// qualities may be nil when all reports were already recorded during
// the epoch. Returns the new snapshot.
func (e *Engine) AdvanceEpoch(qualities map[NodeId]QualityScore) *EpochSnapshot {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]NodeId, 0, len(qualities))
	for id := range qualities {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, NodeId.Compare)
	for _, id := range ids {
		v, ok := e.registry.get(id)
		if !ok {
			continue
		}
		e.graph.RecordQuality(id, qualities[id])
		v.QualityQ = e.graph.LastQuality(id)
		metricQualityReports.Inc()
	}

	e.updateAllTrustLocked()
	e.registry.RecomputeAllStakeQ()
	e.epoch++
	e.snapshot = BuildSnapshot(e.epoch, e.weightConfig, e.registry.States())

	metricEpoch.Set(float64(e.epoch))
	metricTotalTrust.Set(QToFloat(e.snapshot.SumTrustQ()))
	metricEpochAdvance.Observe(time.Since(start).Seconds())
	return e.snapshot
}

func (e *Engine) Epoch() Epoch {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.epoch
}

// Snapshot returns the latest epoch snapshot, or nil before the first
// AdvanceEpoch.
func (e *Engine) Snapshot() *EpochSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Validator returns a copy of a validator's current (live, not
// snapshotted) state.
func (e *Engine) Validator(id NodeId) (ValidatorState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Get(id)
}

func (e *Engine) Validators() []ValidatorState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.States()
}

// WeightOf computes a validator's live consensus weight.
func (e *Engine) WeightOf(id NodeId) (Weight, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("weighing %s: %w", id.ShortString(), ErrUnknownValidator)
	}
	return ComputeWeight(e.weightConfig, v.TrustQ, v.QualityQ, v.StakeQ), nil
}

// TrustRanking returns registered validators ordered by descending
// trust, ascending id on ties.
func (e *Engine) TrustRanking() []TrustRankEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ranking := make([]TrustRankEntry, 0, e.registry.Count())
	for _, id := range e.registry.Ids() {
		ranking = append(ranking, TrustRankEntry{Id: id, Trust: e.graph.GetTrust(id)})
	}
	sortTrustRank(ranking)
	return ranking
}

// WeightRankEntry pairs a validator with its live weight.
type WeightRankEntry struct {
	Id     NodeId
	Weight Weight
}

// WeightRanking returns validators ordered by descending weight,
// ascending id on ties.
func (e *Engine) WeightRanking() []WeightRankEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entries := make([]WeightRankEntry, 0, e.registry.Count())
	for _, v := range e.registry.States() {
		entries = append(entries, WeightRankEntry{
			Id:     v.Id,
			Weight: ComputeWeight(e.weightConfig, v.TrustQ, v.QualityQ, v.StakeQ),
		})
	}
	sortWeightRank(entries)
	return entries
}

func sortWeightRank(entries []WeightRankEntry) {
	slices.SortFunc(entries, func(a, b WeightRankEntry) int {
		if c := b.Weight.Cmp(a.Weight); c != 0 {
			return c
		}
		return a.Id.Compare(b.Id)
	})
}

// SelectLeader picks the slot leader for a beacon value from the live
// validator set.
func (e *Engine) SelectLeader(beacon [32]byte) (NodeId, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tuples := make([]ValidatorTuple, 0, e.registry.Count())
	for _, v := range e.registry.States() {
		tuples = append(tuples, ValidatorTuple{
			Id:       v.Id,
			TrustQ:   v.TrustQ,
			QualityQ: v.QualityQ,
			StakeQ:   v.StakeQ,
		})
	}
	id, ok := SelectLeader(e.weightConfig, beacon, tuples)
	if ok {
		metricLeaderSelections.Inc()
	}
	return id, ok
}

// ExportDOT renders the current trust graph in Graphviz DOT format.
func (e *Engine) ExportDOT() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.ExportDOT()
}

// DebugView is a point-in-time description of one validator for
// logs and the explorer.
type DebugView struct {
	Id         NodeId
	TrustQ     TrustScore
	QualityQ   QualityScore
	StakeQ     Q
	StakeRaw   *uint256.Int
	Weight     Weight
	VouchedBy  []Vouch
	Historical Q
	Work       Q
	Vouching   Q
}

// Describe assembles a full debug view of one validator.
func (e *Engine) Describe(id NodeId) (DebugView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.registry.Get(id)
	if !ok {
		return DebugView{}, fmt.Errorf("describing %s: %w", id.ShortString(), ErrUnknownValidator)
	}
	return DebugView{
		Id:         v.Id,
		TrustQ:     v.TrustQ,
		QualityQ:   v.QualityQ,
		StakeQ:     v.StakeQ,
		StakeRaw:   v.StakeRaw,
		Weight:     ComputeWeight(e.weightConfig, v.TrustQ, v.QualityQ, v.StakeQ),
		VouchedBy:  e.graph.IncomingVouches(id),
		Historical: e.graph.HistoricalTrust(id),
		Work:       e.graph.WorkTrust(id),
		Vouching:   e.graph.VouchingTrust(id),
	}, nil
}
