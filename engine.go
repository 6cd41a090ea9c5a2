// Package condfmt is the conditional-formatting evaluation core of a
// spreadsheet data model: given declarative formatting rules attached to
// cell ranges, it determines, for any cell, which rules match and what
// visual attributes result, while staying cheap under repeated small edits
// to a large grid.
//
// The engine is synchronous and single-threaded by design: every operation
// is a plain call with no background work. It pulls cell values through a
// host-supplied accessor and is driven by host-pushed invalidation; it
// never subscribes to change events itself. Rendering, cell storage, and
// formula-expression evaluation are external collaborators.
package condfmt

import (
	"fmt"
	"log/slog"
	"time"
)

// Engine wires the evaluation components together the way a worksheet
// layer consumes them: register rules per range, begin a batch, evaluate
// cells, notify edits.
type Engine struct {
	services Services
	cache    *StatisticsCache
	logger   *slog.Logger

	// rulesByRange keys registered rule lists by the range signature they
	// were supplied under; order preserves registration for stable
	// priority ties.
	rulesByRange map[string][]*Rule
	rangeOrder   []string

	index *DependencyIndex
	batch *PreprocessResult
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFormulaEvaluator supplies the host's expression engine for formula
// rules. Without one, formula rules simply never match.
func WithFormulaEvaluator(f FormulaEvaluator) EngineOption {
	return func(e *Engine) { e.services.Formula = f }
}

// WithStatisticsCache replaces the engine's default statistics cache, for
// hosts that share one cache across engines or want custom capacity,
// logging, or metrics.
func WithStatisticsCache(cache *StatisticsCache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// WithClock injects the clock date-occurring rules compare against.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.services.Now = now }
}

// WithLogger attaches a logger for debug diagnostics. Order-independent
// with the other options: the logger lands on whichever cache the engine
// ends up with.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an evaluation engine over the host's value accessor.
func NewEngine(accessor ValueAccessor, opts ...EngineOption) *Engine {
	e := &Engine{
		services:     Services{GetValue: accessor},
		cache:        NewStatisticsCache(0),
		rulesByRange: make(map[string][]*Rule),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger != nil {
		e.cache.logger = e.logger
	}
	e.services.Stats = e.cache
	e.rebuildIndex()
	return e
}

// SetRules registers the rules targeting a range. With replace true, any
// rules previously supplied under the same range are dropped first;
// otherwise the new rules append after them. Each rule is validated and
// assigned an ID if it has none; rules without explicit target ranges
// adopt rng. Statistics cached for superseded rules are invalidated.
func (e *Engine) SetRules(rng Range, rules []*Rule, replace bool) error {
	rng = rng.Normalize()
	sig := rng.Signature()

	for _, rule := range rules {
		if rule == nil {
			return fmt.Errorf("nil rule for range %s", rng.Ref())
		}
		rule.ensureID()
		if len(rule.Ranges) == 0 {
			rule.Ranges = []Range{rng}
		}
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	if replace {
		for _, old := range e.rulesByRange[sig] {
			e.cache.InvalidateRule(old.ID)
		}
		e.rulesByRange[sig] = nil
	}
	if !containsString(e.rangeOrder, sig) {
		e.rangeOrder = append(e.rangeOrder, sig)
	}
	e.rulesByRange[sig] = append(e.rulesByRange[sig], rules...)

	e.rebuildIndex()
	e.batch = nil
	return nil
}

// Rules returns every registered rule in registration order.
func (e *Engine) Rules() []*Rule {
	var all []*Rule
	for _, sig := range e.rangeOrder {
		all = append(all, e.rulesByRange[sig]...)
	}
	return all
}

func (e *Engine) rebuildIndex() {
	e.index = NewDependencyIndex(e.Rules())
}

// BeginBatch runs the classifier pass over the registered rules and warms
// the statistics each range group needs. targetRange limits the batch to
// rules intersecting it (evaluate only the visible viewport); nil takes
// everything. Call once per batch of cell evaluations, and again after
// rule changes.
func (e *Engine) BeginBatch(targetRange *Range) *PreprocessResult {
	e.batch = Preprocess(e.Rules(), targetRange)

	// One scan per shared range, reused for every rule in the group that
	// has no live cache entry yet.
	for sig, group := range e.batch.StatsGroups {
		var shared *BatchRangeStatistics
		for _, pre := range group {
			rng, ok := ruleRangeBySignature(pre.Rule, sig)
			if !ok {
				continue
			}
			if _, ok := e.cache.Get(pre.Rule.ID, rng); ok {
				continue
			}
			if shared == nil {
				shared = ComputeRangeStatistics(rng, e.services.GetValue)
			}
			e.cache.Set(pre.Rule.ID, rng, shared)
		}
	}
	return e.batch
}

// ruleRangeBySignature resolves which of the rule's ranges a stats group
// refers to.
func ruleRangeBySignature(rule *Rule, sig string) (Range, bool) {
	for _, rng := range rule.Ranges {
		if rng.Signature() == sig {
			return rng, true
		}
	}
	return Range{}, false
}

// EvaluateCell evaluates one cell against the current batch, starting a
// full batch implicitly if none is active. The result is fresh per call.
func (e *Engine) EvaluateCell(addr Address) Result {
	if e.batch == nil {
		e.BeginBatch(nil)
	}
	value := e.services.GetValue(addr)
	return ApplyRules(value, addr, e.batch, &e.services)
}

// NotifyEdits tells the engine a set of cells mutated in the host's store.
// For each edited cell the dependency walk drops stale cached statistics;
// the returned rule IDs (deduplicated) are the rules whose output may have
// changed, for the host to repaint. Must be called before the next
// evaluation that could observe the mutation.
func (e *Engine) NotifyEdits(addrs []Address) []string {
	seen := make(map[string]bool)
	var affected []string
	for _, addr := range addrs {
		for _, id := range e.index.Invalidate(addr, e.cache) {
			if !seen[id] {
				seen[id] = true
				affected = append(affected, id)
			}
		}
	}
	return affected
}

// Cache exposes the engine's statistics cache for diagnostics and direct
// invalidation.
func (e *Engine) Cache() *StatisticsCache {
	return e.cache
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
