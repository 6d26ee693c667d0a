package qace

import (
	"math/rand"
	"sort"
	"time"

	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/mesh"
)

// GaConfig tunes the genetic optimizer.
type GaConfig struct {
	PopulationSize      int
	MaxGenerations      int
	MaxStaleGenerations int
	MutationProbability float32
	CrossoverRate       float32
	SelectionRate       float32
	ReplacementRate     float32
	ElitismRate         float32
	TournamentSize      int
	DuplicatePenalty    int64
	ThreatRerouteScore  uint8
	LossRekeyThreshold  uint32

	// Seed pins the optimizer's randomness for reproducible runs. Zero
	// means a time-derived seed.
	Seed int64
}

// DefaultGaConfig returns the production tuning.
func DefaultGaConfig() GaConfig {
	return GaConfig{
		PopulationSize:      48,
		MaxGenerations:      64,
		MaxStaleGenerations: 16,
		MutationProbability: 0.18,
		CrossoverRate:       0.75,
		SelectionRate:       0.6,
		ReplacementRate:     0.65,
		ElitismRate:         0.04,
		TournamentSize:      7,
		DuplicatePenalty:    900,
		ThreatRerouteScore:  70,
		LossRekeyThreshold:  8_000,
	}
}

// Weights scale the fitness terms. Positive terms reward QoS class and
// route freshness; negative terms penalize hops and live telemetry.
type Weights struct {
	Latency    uint32
	Loss       uint32
	Threat     uint32
	Jitter     uint32
	Congestion uint32
	HopPenalty uint32
	QoSGain    uint32
	Freshness  uint32
	Stability  uint32
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Latency:    11,
		Loss:       7,
		Threat:     19,
		Jitter:     5,
		Congestion: 3,
		HopPenalty: 13,
		QoSGain:    17,
		Freshness:  2,
		Stability:  4,
	}
}

// GaQace searches route orderings with a genetic algorithm: tournament
// selection, uniform crossover, and single-gene mutation over chromosomes
// of candidate indices. A chromosome decodes to a route ordering by taking
// each gene modulo the candidate count, keeping the first occurrence of
// each index in gene order, then appending untouched indices in their
// original order. This decode rule is normative; seeded runs must stay
// reproducible across releases.
//
// A single-candidate path set short-circuits to SimpleQace. Not safe for
// concurrent use.
type GaQace struct {
	config  GaConfig
	weights Weights
}

// NewGaQace creates the optimizer with explicit tuning.
func NewGaQace(config GaConfig, weights Weights) *GaQace {
	return &GaQace{config: config, weights: weights}
}

// NewDefaultGaQace creates the optimizer with production tuning.
func NewDefaultGaQace() *GaQace {
	return NewGaQace(DefaultGaConfig(), DefaultWeights())
}

// Evaluate runs the optimizer over the request's candidate routes.
func (g *GaQace) Evaluate(request *Request) (*Decision, error) {
	candidates := request.PathSet.Flatten()
	if len(candidates) == 0 {
		return nil, qerrors.ErrEmptyPathSet
	}
	if len(candidates) == 1 {
		return NewSimpleQace().Evaluate(request)
	}

	fitness := newRouteFitness(candidates, &request.Metrics, &g.weights, g.config.DuplicatePenalty)

	seed := g.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	run := g.evolve(fitness, len(candidates), rand.New(rand.NewSource(seed)))
	if run.best == nil {
		return nil, qerrors.ErrOptimizerStalled
	}

	ordered := decodeChromosome(run.best, len(candidates))

	pathSet := PathSet{Primary: candidates[ordered[0]].Clone()}
	for _, idx := range ordered[1:] {
		pathSet.Alternates = append(pathSet.Alternates, candidates[idx].Clone())
	}
	if pathSet.Primary.Topic == "" {
		pathSet.Primary = request.PathSet.Primary.Clone()
	}

	rerouteOccurred := pathSet.Primary.RouteHash() != request.PathSet.Primary.RouteHash()
	action, rationale := g.selectAction(request, rerouteOccurred)

	return &Decision{
		Action:      action,
		Score:       run.bestScore,
		Rationale:   rationale,
		PathSet:     pathSet,
		Convergence: run.convergence(),
	}, nil
}

// selectAction maps the optimized ordering and live telemetry onto one
// action, mirroring the SimpleQace thresholds when no reroute happened.
func (g *GaQace) selectAction(request *Request, rerouteOccurred bool) (Action, string) {
	if rerouteOccurred {
		if request.Metrics.ThreatScore >= g.config.ThreatRerouteScore {
			return ActionReroute, "ga-threat-reroute"
		}
		return ActionReroute, "ga-optimization"
	}
	if request.Metrics.LossBPS >= g.config.LossRekeyThreshold {
		return ActionRekey, "ga-rekey"
	}
	if request.Metrics.ThreatScore >= g.config.ThreatRerouteScore {
		return ActionRekey, "ga-threat-rekey"
	}
	return ActionMaintain, "ga-stable"
}

// decodeChromosome maps genes to a route ordering: allele % count, first
// occurrence wins, untouched indices appended in original order.
func decodeChromosome(genes []int, count int) []int {
	ordered := make([]int, 0, count)
	seen := make(map[int]bool, count)
	for _, allele := range genes {
		idx := allele % count
		if !seen[idx] {
			seen[idx] = true
			ordered = append(ordered, idx)
		}
	}
	for idx := 0; idx < count; idx++ {
		if !seen[idx] {
			seen[idx] = true
			ordered = append(ordered, idx)
		}
	}
	return ordered
}

type evolveRun struct {
	best        []int
	bestScore   int64
	generations uint32
	stale       uint32
}

func (r *evolveRun) convergence() Convergence {
	generations := r.generations
	var confidence float32 = 1.0
	if generations > 0 {
		stale := r.stale
		if stale > generations {
			stale = generations
		}
		confidence = 1.0 - float32(stale)/float32(generations)
		if confidence < 0 {
			confidence = 0
		}
	}
	if generations < 1 {
		generations = 1
	}
	return Convergence{
		Generations:      generations,
		StaleGenerations: r.stale,
		Confidence:       confidence,
	}
}

// evolve runs the generational loop. Bounds are floored (population 8,
// generations 4, stale 4, tournament 2) so degenerate configs still
// terminate with a usable answer.
func (g *GaQace) evolve(fitness *routeFitness, geneCount int, rng *rand.Rand) evolveRun {
	popSize := max(g.config.PopulationSize, 8)
	maxGenerations := max(g.config.MaxGenerations, 4)
	maxStale := max(g.config.MaxStaleGenerations, 4)
	tournament := max(g.config.TournamentSize, 2)
	eliteCount := max(int(g.config.ElitismRate*float32(popSize)), 1)

	population := make([][]int, popSize)
	for i := range population {
		population[i] = randomChromosome(geneCount, rng)
	}

	run := evolveRun{bestScore: int64(-1) << 62}

	for gen := 0; gen < maxGenerations; gen++ {
		run.generations = uint32(gen + 1)

		scores := make([]int64, popSize)
		for i, chrom := range population {
			scores[i] = fitness.score(chrom)
		}

		order := make([]int, popSize)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return scores[order[a]] > scores[order[b]]
		})

		genBest := order[0]
		if scores[genBest] > run.bestScore {
			run.bestScore = scores[genBest]
			run.best = append([]int(nil), population[genBest]...)
			run.stale = 0
		} else {
			run.stale++
		}
		if run.stale >= uint32(maxStale) {
			break
		}

		next := make([][]int, 0, popSize)
		for i := 0; i < eliteCount && i < popSize; i++ {
			next = append(next, append([]int(nil), population[order[i]]...))
		}

		for len(next) < popSize {
			parentA := tournamentSelect(population, scores, tournament, rng)
			parentB := tournamentSelect(population, scores, tournament, rng)

			childA, childB := parentA, parentB
			if rng.Float32() < g.config.CrossoverRate {
				childA, childB = uniformCrossover(parentA, parentB, rng)
			} else {
				childA = append([]int(nil), parentA...)
				childB = append([]int(nil), parentB...)
			}

			mutateSingleGene(childA, geneCount, g.config.MutationProbability, rng)
			mutateSingleGene(childB, geneCount, g.config.MutationProbability, rng)

			next = append(next, childA)
			if len(next) < popSize {
				next = append(next, childB)
			}
		}
		population = next
	}

	return run
}

func randomChromosome(geneCount int, rng *rand.Rand) []int {
	genes := make([]int, geneCount)
	for i := range genes {
		genes[i] = rng.Intn(geneCount)
	}
	return genes
}

func tournamentSelect(population [][]int, scores []int64, size int, rng *rand.Rand) []int {
	best := rng.Intn(len(population))
	for i := 1; i < size; i++ {
		contender := rng.Intn(len(population))
		if scores[contender] > scores[best] {
			best = contender
		}
	}
	return population[best]
}

func uniformCrossover(a, b []int, rng *rand.Rand) ([]int, []int) {
	childA := append([]int(nil), a...)
	childB := append([]int(nil), b...)
	for i := range childA {
		if rng.Intn(2) == 0 {
			childA[i], childB[i] = childB[i], childA[i]
		}
	}
	return childA, childB
}

func mutateSingleGene(genes []int, geneCount int, probability float32, rng *rand.Rand) {
	if rng.Float32() >= probability {
		return
	}
	genes[rng.Intn(len(genes))] = rng.Intn(geneCount)
}

// routeFitness scores a chromosome: per-slot route attributes scaled by a
// stability multiplier, minus a slot-weighted telemetry penalty, minus a
// flat penalty per duplicated route index.
type routeFitness struct {
	metrics          *Metrics
	weights          *Weights
	attributes       []routeAttributes
	duplicatePenalty int64
}

type routeAttributes struct {
	hopCount  int64
	qosBias   int64
	freshness int64
}

func newRouteFitness(candidates []mesh.RoutePlan, metrics *Metrics, weights *Weights, duplicatePenalty int64) *routeFitness {
	attrs := make([]routeAttributes, len(candidates))
	for i := range candidates {
		attrs[i] = routeAttributes{
			hopCount:  int64(len(candidates[i].Hops)),
			qosBias:   qosBias(candidates[i].QoS),
			freshness: int64(candidates[i].Epoch),
		}
	}
	return &routeFitness{
		metrics:          metrics,
		weights:          weights,
		attributes:       attrs,
		duplicatePenalty: duplicatePenalty,
	}
}

func qosBias(q mesh.QoSClass) int64 {
	switch q {
	case mesh.QoSLowLatency:
		return 5
	case mesh.QoSControl:
		return 3
	default:
		return 1
	}
}

func (f *routeFitness) baseScore(attr *routeAttributes) int64 {
	qos := attr.qosBias * int64(f.weights.QoSGain)
	hops := -attr.hopCount * int64(f.weights.HopPenalty)
	freshness := attr.freshness * int64(f.weights.Freshness)
	return qos + hops + freshness
}

func (f *routeFitness) slotMultiplier(slot int) int64 {
	stability := int64(f.weights.Stability)
	switch slot {
	case 0:
		return 3 * stability
	case 1:
		return 2 * stability
	default:
		return stability
	}
}

func (f *routeFitness) metricPenalty(slot int) int64 {
	slotFactor := int64(slot + 1)
	latency := int64(f.metrics.LatencyMS) * int64(f.weights.Latency)
	loss := int64(f.metrics.LossBPS/500) * int64(f.weights.Loss)
	threat := int64(f.metrics.ThreatScore) * int64(f.weights.Threat)
	jitter := int64(f.metrics.JitterMS) * int64(f.weights.Jitter)
	congestion := int64(f.metrics.BandwidthMbps) * int64(f.weights.Congestion)
	return (latency + loss + threat + jitter + congestion) * slotFactor
}

func (f *routeFitness) score(genes []int) int64 {
	count := len(f.attributes)
	seen := make(map[int]bool, count)
	var score int64
	for slot, allele := range genes {
		idx := allele % count
		attr := &f.attributes[idx]
		score += f.baseScore(attr) * f.slotMultiplier(slot)
		score -= f.metricPenalty(slot)
		if seen[idx] {
			score -= f.duplicatePenalty
		}
		seen[idx] = true
	}
	return score
}
