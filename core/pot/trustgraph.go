package pot

import (
	"fmt"
	"slices"

	"github.com/emicklei/dot"
	"github.com/holiman/uint256"
)

// Vouch is a directed web-of-trust edge: voucher lends part of its
// trust to vouchee. At most one active vouch exists per ordered
// (voucher, vouchee) pair.
type Vouch struct {
	Voucher   NodeId
	Vouchee   NodeId
	StrengthQ Q
	CreatedAt Epoch
}

type vouchKey struct {
	voucher NodeId
	vouchee NodeId
}

// VouchOffer is a (voucher, strength) pair used when bootstrapping a
// new validator.
type VouchOffer struct {
	Voucher   NodeId
	StrengthQ Q
}

// TrustGraph maintains per-validator trust state:
//
//	H(v): smoothed quality history (EWMA)
//	W(v): quality of the last epoch
//	V(v): vouching (web of trust, capped to [0,1])
//
//	Z(v) = β₁·H + β₂·V + β₃·W
//	T(v) = S(Z) with S(x) = 3x² − 2x³
//
// All in Q32.32. Validators are independent except through vouching
// edges.
type TrustGraph struct {
	trust       map[NodeId]TrustScore
	historyH    map[NodeId]Q
	lastQuality map[NodeId]QualityScore
	vouches     map[vouchKey]Vouch
	config      TrustConfig
}

// NewTrustGraph validates the config and returns an empty graph.
func NewTrustGraph(config TrustConfig) (*TrustGraph, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	return &TrustGraph{
		trust:       make(map[NodeId]TrustScore),
		historyH:    make(map[NodeId]Q),
		lastQuality: make(map[NodeId]QualityScore),
		vouches:     make(map[vouchKey]Vouch),
		config:      config,
	}, nil
}

// GetTrust returns the current trust for a validator, zero if unknown.
func (g *TrustGraph) GetTrust(validator NodeId) TrustScore {
	return g.trust[validator]
}

func (g *TrustGraph) setTrust(validator NodeId, trust TrustScore) {
	g.trust[validator] = QClamp01(trust)
}

// RecordQuality stores the quality score for the current epoch and
// folds it into the smoothed history:
//
//	H_new = α·H_old + (1−α)·q
func (g *TrustGraph) RecordQuality(validator NodeId, quality QualityScore) {
	q := QClamp01(quality)
	g.lastQuality[validator] = q

	alpha := g.config.AlphaHistory
	partOld := QMul(alpha, g.historyH[validator])
	partNew := QMul(OneQ-alpha, q)
	g.historyH[validator] = QClamp01(qAddSat(partOld, partNew))
}

// AddVouch inserts a vouching edge. It returns false, without
// mutating anything, when the voucher's trust is below the
// minimum-to-vouch threshold or when the claimed strength exceeds the
// voucher's trust. Both are expected conditions, not errors.
func (g *TrustGraph) AddVouch(vouch Vouch) bool {
	voucherTrust := g.GetTrust(vouch.Voucher)
	if voucherTrust < g.config.MinTrustToVouch {
		return false
	}
	if vouch.StrengthQ > voucherTrust {
		return false
	}

	g.vouches[vouchKey{vouch.Voucher, vouch.Vouchee}] = vouch
	return true
}

// RemoveVouch deletes the edge voucher → vouchee, if present.
func (g *TrustGraph) RemoveVouch(voucher NodeId, vouchee NodeId) {
	delete(g.vouches, vouchKey{voucher, vouchee})
}

// IncomingVouches returns all vouches for a validator, sorted by
// voucher id so callers iterate in a stable order.
func (g *TrustGraph) IncomingVouches(validator NodeId) []Vouch {
	vouches := []Vouch{}
	for _, v := range g.vouches {
		if v.Vouchee == validator {
			vouches = append(vouches, v)
		}
	}
	slices.SortFunc(vouches, func(a, b Vouch) int {
		return a.Voucher.Compare(b.Voucher)
	})
	return vouches
}

// HistoricalTrust returns H(v), the smoothed quality history.
func (g *TrustGraph) HistoricalTrust(validator NodeId) Q {
	return g.historyH[validator]
}

// LastQuality returns the most recent quality report for a validator,
// zero if none.
func (g *TrustGraph) LastQuality(validator NodeId) QualityScore {
	return g.lastQuality[validator]
}

// WorkTrust returns W(v), the quality recorded for the last epoch.
func (g *TrustGraph) WorkTrust(validator NodeId) Q {
	return g.lastQuality[validator]
}

// VouchingTrust returns V(v) = min(Σ T(voucher)·strength, 1.0).
//
// Voucher trust is read live, not cached, so the value tracks the
// voucher's latest recomputed trust. UpdateAll applies updates in
// ascending id order so the result is identical on every node.
func (g *TrustGraph) VouchingTrust(validator NodeId) Q {
	var sum Q
	for _, v := range g.IncomingVouches(validator) {
		contrib := QMul(g.GetTrust(v.Voucher), v.StrengthQ)
		sum = qAddSat(sum, contrib)
	}
	return QClamp01(sum)
}

// qSCurve evaluates S(x) = 3x² − 2x³ over [0, OneQ].
//
// The whole polynomial is evaluated in wide integers with a single
// truncating shift at the end, so S is exactly non-decreasing and hits
// S(0) = 0, S(OneQ) = OneQ with no rounding slack.
func qSCurve(x Q) Q {
	x = QClamp01(x)
	xi := uint256.NewInt(x)
	x2 := new(uint256.Int).Mul(xi, xi)
	x3 := new(uint256.Int).Mul(x2, xi)

	// (3·x²·2^32 − 2·x³) >> 64
	threeX2 := new(uint256.Int).Lsh(x2, 32)
	threeX2.Mul(threeX2, uint256.NewInt(3))
	twoX3 := new(uint256.Int).Lsh(x3, 1)

	s := threeX2.Sub(threeX2, twoX3)
	s.Rsh(s, 64)
	return min(s.Uint64(), OneQ)
}

// UpdateTrust recomputes T(v) from the current H, V and W components
// and stores it. Returns the new trust.
func (g *TrustGraph) UpdateTrust(validator NodeId) TrustScore {
	h := g.HistoricalTrust(validator)
	v := g.VouchingTrust(validator)
	w := g.WorkTrust(validator)

	zH := QMul(g.config.BetaHistory, h)
	zV := QMul(g.config.BetaVouching, v)
	zW := QMul(g.config.BetaWork, w)
	zLin := QClamp01(qAddSat(qAddSat(zH, zV), zW))

	trust := qSCurve(zLin)
	g.setTrust(validator, trust)
	return trust
}

// UpdateAll recomputes trust for the given validators in ascending id
// byte order, regardless of the order of the input slice. Vouching
// reads live voucher trust, so a fixed evaluation order is what keeps
// mutually-vouching validators consistent across nodes.
func (g *TrustGraph) UpdateAll(validators []NodeId) {
	ordered := slices.Clone(validators)
	slices.SortFunc(ordered, NodeId.Compare)
	for _, validator := range ordered {
		g.UpdateTrust(validator)
	}
}

// TrustRankEntry is one row of the trust ranking.
type TrustRankEntry struct {
	Id    NodeId
	Trust TrustScore
}

// Ranking returns all known validators sorted by descending trust,
// ascending id on equal trust. Debug/UI only.
func (g *TrustGraph) Ranking() []TrustRankEntry {
	ranking := make([]TrustRankEntry, 0, len(g.trust))
	for id, trust := range g.trust {
		ranking = append(ranking, TrustRankEntry{Id: id, Trust: trust})
	}
	sortTrustRank(ranking)
	return ranking
}

func sortTrustRank(ranking []TrustRankEntry) {
	slices.SortFunc(ranking, func(a, b TrustRankEntry) int {
		if a.Trust != b.Trust {
			if a.Trust > b.Trust {
				return -1
			}
			return 1
		}
		return a.Id.Compare(b.Id)
	})
}

// BootstrapValidator adds a batch of vouches for a new validator and
// computes its initial trust. Offers that fail the vouching rules are
// skipped.
func (g *TrustGraph) BootstrapValidator(newValidator NodeId, offers []VouchOffer) TrustScore {
	for _, offer := range offers {
		g.AddVouch(Vouch{
			Voucher:   offer.Voucher,
			Vouchee:   newValidator,
			StrengthQ: QClamp01(offer.StrengthQ),
			CreatedAt: 0,
		})
	}
	return g.UpdateTrust(newValidator)
}

// ExportDOT renders the trust graph for Graphviz. Debug/observability
// only; float formatting is fine here.
func (g *TrustGraph) ExportDOT() string {
	graph := dot.NewGraph(dot.Directed)

	ids := make([]NodeId, 0, len(g.trust))
	for id := range g.trust {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, NodeId.Compare)

	for _, id := range ids {
		trust := QToFloat(g.trust[id])
		color := "red"
		if trust > 0.8 {
			color = "green"
		} else if trust > 0.5 {
			color = "yellow"
		}
		graph.Node(id.ShortString()).
			Attr("label", fmt.Sprintf("%s\n%.2f", id.ShortString(), trust)).
			Attr("style", "filled").
			Attr("color", color)
	}

	edges := make([]Vouch, 0, len(g.vouches))
	for _, v := range g.vouches {
		edges = append(edges, v)
	}
	slices.SortFunc(edges, func(a, b Vouch) int {
		if c := a.Voucher.Compare(b.Voucher); c != 0 {
			return c
		}
		return a.Vouchee.Compare(b.Vouchee)
	})
	for _, v := range edges {
		graph.Edge(
			graph.Node(v.Voucher.ShortString()),
			graph.Node(v.Vouchee.ShortString()),
		).Attr("label", fmt.Sprintf("%.2f", QToFloat(v.StrengthQ)))
	}

	return graph.String()
}
