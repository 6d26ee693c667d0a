// Package qace implements the Quantum Adaptive Chaos Engine: the pluggable
// controller a tunnel consults on a telemetry cadence to decide whether to
// keep its route, rekey in place, or fail over to an alternate.
//
// Two engines ship with the package. SimpleQace is a deterministic
// heuristic suitable everywhere. GaQace reorders the whole candidate set
// with a genetic optimizer and reports convergence diagnostics. Both
// implement Engine and are interchangeable from the tunnel's perspective.
package qace

import (
	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/mesh"
)

// Metrics is the telemetry snapshot surfaced to the engine.
type Metrics struct {
	LatencyMS     uint32
	LossBPS       uint32 // packet loss in basis points
	ThreatScore   uint8
	RouteChanges  uint8
	JitterMS      uint32
	BandwidthMbps uint32
	ChaosLevel    uint8
}

// PathSet is the ordered candidate set: the current primary plus the
// registered alternates.
type PathSet struct {
	Primary    mesh.RoutePlan
	Alternates []mesh.RoutePlan
}

// Len returns the total candidate count.
func (p *PathSet) Len() int {
	return 1 + len(p.Alternates)
}

// Flatten returns the candidates as one ordered slice, primary first.
func (p *PathSet) Flatten() []mesh.RoutePlan {
	out := make([]mesh.RoutePlan, 0, p.Len())
	out = append(out, p.Primary)
	out = append(out, p.Alternates...)
	return out
}

// Clone returns a deep copy of the path set.
func (p *PathSet) Clone() PathSet {
	out := PathSet{Primary: p.Primary.Clone()}
	if len(p.Alternates) > 0 {
		out.Alternates = make([]mesh.RoutePlan, len(p.Alternates))
		for i := range p.Alternates {
			out.Alternates[i] = p.Alternates[i].Clone()
		}
	}
	return out
}

// Request is the immutable snapshot forwarded to an engine.
type Request struct {
	TunnelID       [constants.TunnelIDSize]byte
	TelemetryEpoch uint64
	Metrics        Metrics
	PathSet        PathSet
}

// Action is the controller's verdict.
type Action int

const (
	// ActionMaintain keeps the current route and keys.
	ActionMaintain Action = iota

	// ActionRekey re-derives the directional nonce bases in place.
	ActionRekey

	// ActionReroute installs the decision's primary as the new route.
	ActionReroute
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionRekey:
		return "rekey"
	case ActionReroute:
		return "reroute"
	default:
		return "maintain"
	}
}

// Convergence reports how the engine arrived at its decision.
type Convergence struct {
	Generations      uint32
	StaleGenerations uint32

	// Confidence is 1 − stale/generations, clamped to [0, 1].
	Confidence float32
}

// DeterministicConvergence is the convergence report for single-pass
// engines.
func DeterministicConvergence() Convergence {
	return Convergence{Generations: 1, StaleGenerations: 0, Confidence: 1.0}
}

// Decision is the engine's full output. On Reroute the path set's primary
// is the route to install; the alternates carry the engine's reordering
// and always replace the tunnel's candidate list.
type Decision struct {
	Action      Action
	Score       int64
	Rationale   string
	PathSet     PathSet
	Convergence Convergence
}

// Engine is the adaptive controller contract. Evaluate is synchronous and
// must fail with an invalid-input error when the path set has no viable
// routes.
type Engine interface {
	Evaluate(request *Request) (*Decision, error)
}

// SimpleQace is the deterministic fallback heuristic: one path score from
// weighted telemetry penalties, a threat-triggered failover, and a
// loss-triggered rekey. Not safe for concurrent use.
type SimpleQace struct {
	lastScore int64
}

// NewSimpleQace creates the heuristic engine.
func NewSimpleQace() *SimpleQace {
	return &SimpleQace{}
}

// LastScore returns the score of the most recent evaluation.
func (s *SimpleQace) LastScore() int64 {
	return s.lastScore
}

func heuristicScore(m *Metrics) int64 {
	latency := int64(min(m.LatencyMS, constants.QaceLatencyCapMS)) * 12
	loss := int64(m.LossBPS/500) * 9
	threat := int64(m.ThreatScore) * 20
	jitter := int64(m.JitterMS) * 8
	chaos := int64(m.ChaosLevel) * 15
	return constants.QaceBaselineScore - latency - loss - threat - jitter - chaos
}

// Evaluate applies the heuristic. Priority: threat failover when an
// alternate exists, then loss-triggered rekey, then maintain.
func (s *SimpleQace) Evaluate(request *Request) (*Decision, error) {
	if request.PathSet.Len() == 0 {
		return nil, qerrors.ErrEmptyPathSet
	}

	decision := &Decision{
		Action:      ActionMaintain,
		Score:       heuristicScore(&request.Metrics),
		Rationale:   "heuristic-stable",
		PathSet:     request.PathSet.Clone(),
		Convergence: DeterministicConvergence(),
	}

	switch {
	case request.Metrics.ThreatScore >= constants.QaceThreatRerouteScore && len(request.PathSet.Alternates) > 0:
		reordered := request.PathSet.Clone()
		promoted := reordered.Alternates[0]
		reordered.Alternates = append([]mesh.RoutePlan{reordered.Primary}, reordered.Alternates[1:]...)
		reordered.Primary = promoted

		decision.Action = ActionReroute
		decision.Rationale = "threat-score-reroute"
		decision.PathSet = reordered

	case request.Metrics.LossBPS >= constants.QaceLossRekeyBPS:
		decision.Action = ActionRekey
		decision.Rationale = "high-loss-rekey"
	}

	s.lastScore = decision.Score
	return decision, nil
}
