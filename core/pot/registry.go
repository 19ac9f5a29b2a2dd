package pot

import (
	"slices"

	"github.com/holiman/uint256"
)

// ValidatorState is the registry's bookkeeping for one validator.
// StakeRaw is the economic truth (raw stake units); StakeQ is derived
// from it by RecomputeAllStakeQ. QualityQ and TrustQ are written by
// the engine on quality reports and trust updates.
type ValidatorState struct {
	Id       NodeId
	StakeRaw *uint256.Int
	StakeQ   Q
	QualityQ QualityScore
	TrustQ   TrustScore
}

func (v *ValidatorState) clone() ValidatorState {
	c := *v
	c.StakeRaw = new(uint256.Int).Set(v.StakeRaw)
	return c
}

// Registry tracks raw stake per validator and normalizes it into
// [0, OneQ] relative to the total. It does not auto-recompute StakeQ;
// callers batch stake mutations and then call RecomputeAllStakeQ once
// per slot.
type Registry struct {
	validators    map[NodeId]*ValidatorState
	totalStakeRaw *uint256.Int
}

func NewRegistry() *Registry {
	return &Registry{
		validators:    make(map[NodeId]*ValidatorState),
		totalStakeRaw: new(uint256.Int),
	}
}

// Register inserts a new validator with zero trust/quality/stake_q, or
// on re-registration updates the raw stake only, preserving trust and
// quality. The running total is adjusted either way.
func (r *Registry) Register(id NodeId, stakeRaw *uint256.Int) {
	stake := new(uint256.Int).Set(stakeRaw)
	if v, ok := r.validators[id]; ok {
		r.subTotal(v.StakeRaw)
		r.addTotal(stake)
		v.StakeRaw = stake
		// StakeQ is stale until the next RecomputeAllStakeQ.
		return
	}

	r.addTotal(stake)
	r.validators[id] = &ValidatorState{
		Id:       id,
		StakeRaw: stake,
	}
}

// Remove deletes a validator (unbonded, slashed out of the set, ...)
// and subtracts its stake from the running total.
func (r *Registry) Remove(id NodeId) {
	if v, ok := r.validators[id]; ok {
		r.subTotal(v.StakeRaw)
		delete(r.validators, id)
	}
}

// UpdateStake replaces a validator's raw stake. Unknown ids are a
// no-op.
func (r *Registry) UpdateStake(id NodeId, newStakeRaw *uint256.Int) {
	if v, ok := r.validators[id]; ok {
		r.subTotal(v.StakeRaw)
		v.StakeRaw = new(uint256.Int).Set(newStakeRaw)
		r.addTotal(v.StakeRaw)
	}
}

// RecomputeAllStakeQ derives stake_q = min((raw << 32) / total, OneQ)
// for every validator. When the total is zero everyone gets zero;
// leader selection then runs on trust and quality alone.
func (r *Registry) RecomputeAllStakeQ() {
	if r.totalStakeRaw.IsZero() {
		for _, v := range r.validators {
			v.StakeQ = 0
		}
		return
	}

	for _, v := range r.validators {
		num := new(uint256.Int).Lsh(v.StakeRaw, 32)
		num.Div(num, r.totalStakeRaw)
		v.StakeQ = min(num.Uint64(), OneQ)
	}
}

// Get returns a copy of a validator's state.
func (r *Registry) Get(id NodeId) (ValidatorState, bool) {
	v, ok := r.validators[id]
	if !ok {
		return ValidatorState{}, false
	}
	return v.clone(), true
}

func (r *Registry) get(id NodeId) (*ValidatorState, bool) {
	v, ok := r.validators[id]
	return v, ok
}

// Ids returns all validator ids in ascending byte order.
func (r *Registry) Ids() []NodeId {
	ids := make([]NodeId, 0, len(r.validators))
	for id := range r.validators {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, NodeId.Compare)
	return ids
}

// States returns copies of all validator states in ascending id order.
func (r *Registry) States() []ValidatorState {
	states := make([]ValidatorState, 0, len(r.validators))
	for _, id := range r.Ids() {
		states = append(states, r.validators[id].clone())
	}
	return states
}

func (r *Registry) Count() int {
	return len(r.validators)
}

// TotalStakeRaw returns a copy of the running stake total.
func (r *Registry) TotalStakeRaw() *uint256.Int {
	return new(uint256.Int).Set(r.totalStakeRaw)
}

func (r *Registry) addTotal(x *uint256.Int) {
	if _, overflow := r.totalStakeRaw.AddOverflow(r.totalStakeRaw, x); overflow {
		r.totalStakeRaw.SetAllOne()
	}
}

func (r *Registry) subTotal(x *uint256.Int) {
	if r.totalStakeRaw.Lt(x) {
		r.totalStakeRaw.Clear()
		return
	}
	r.totalStakeRaw.Sub(r.totalStakeRaw, x)
}
