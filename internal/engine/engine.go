// Package engine drives the explore/analyze loop: plan a batch, explore it,
// record every result in the trace store, fold it into the hypothesis graph,
// and repeat until the graph is closed and confident or a ceiling is hit.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/warren/internal/ambiguity"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/emitter"
	"github.com/dyluth/warren/internal/hypothesis"
	"github.com/dyluth/warren/internal/planner"
	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
)

// ErrBudgetExhausted is returned by Run when the iteration ceiling or the
// query budget ran out before the graph became closed and confident. The
// accompanying Result still carries the best hypothesis.
var ErrBudgetExhausted = errors.New("engine: budget exhausted")

// Explorer submits a batch of plans and returns one label sequence per plan.
// It is implemented by the HTTP client and by the in-process simulator.
type Explorer interface {
	Explore(ctx context.Context, plans []maze.Plan) ([][]maze.Label, error)
}

// Options configures an Engine.
type Options struct {
	Session       string
	MaxIterations int
	QueryBudget   int // 0 = unlimited
	Hypothesis    hypothesis.Options
	Resolver      ambiguity.Options
	Planner       planner.Options
}

// OptionsFromConfig maps a validated warren.yml onto engine options.
func OptionsFromConfig(cfg *config.WarrenConfig) Options {
	rooms := cfg.Problem.Rooms
	return Options{
		Session:       cfg.Session,
		MaxIterations: cfg.Explore.MaxIterations,
		QueryBudget:   cfg.Explore.QueryBudget,
		Hypothesis: hypothesis.Options{
			RoomCount:    rooms,
			ConfirmDepth: cfg.Hypothesis.ConfirmDepth,
			MaxRollbacks: cfg.Hypothesis.MaxRollbacks,
			MaxPaths:     cfg.Hypothesis.MaxPaths,
		},
		Resolver: ambiguity.Options{
			Workers: cfg.Explore.Workers,
		},
		Planner: planner.Options{
			MaxPlanLength:    cfg.Explore.MaxPlanLength,
			MaxPlansPerBatch: cfg.Explore.MaxPlansPerBatch,
			TailLength:       cfg.Explore.TailLength,
			RandomWalks:      cfg.Explore.RandomWalks,
			Seed:             cfg.Explore.Seed,
		},
	}
}

// Result is the outcome of Run. Map is nil when the graph never closed.
type Result struct {
	Map          *maze.Map
	Snapshot     *hypothesis.Snapshot
	Stats        hypothesis.Stats
	Iterations   int
	Queries      int
	Observations int
	Done         bool
}

// Engine owns the hypothesis graph for one session. It is not safe for
// concurrent use; Run must not be called twice at the same time.
type Engine struct {
	opts     Options
	explorer Explorer
	store    trace.Store
	builder  *hypothesis.Builder
	resolver *ambiguity.Resolver
	planner  *planner.Planner
	queries  int
}

// New creates an engine that explores through explorer and records into
// store.
func New(explorer Explorer, store trace.Store, opts Options) *Engine {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100
	}
	return &Engine{
		opts:     opts,
		explorer: explorer,
		store:    store,
		builder:  hypothesis.New(store, opts.Hypothesis),
		resolver: ambiguity.New(opts.Resolver),
		planner:  planner.New(opts.Planner),
	}
}

// Builder exposes the hypothesis graph builder.
func (e *Engine) Builder() *hypothesis.Builder {
	return e.builder
}

// Queries returns the query cost spent by this engine so far: one per explore
// call plus one per plan.
func (e *Engine) Queries() int {
	return e.queries
}

// Run rebuilds the graph from any observations already in the trace store and
// then explores until the graph is closed and confident. On success the
// Result carries the emitted map. When a ceiling is hit first, Run returns
// the best hypothesis together with ErrBudgetExhausted.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	log.Printf("[Engine] Starting session '%s'", e.opts.Session)

	n, err := e.store.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace length: %w", err)
	}
	if n > 0 {
		if err := e.builder.Rebuild(ctx); err != nil {
			return nil, fmt.Errorf("failed to rebuild hypothesis: %w", err)
		}
		e.logEvent("hypothesis_rebuilt", map[string]interface{}{
			"observations": n,
		})
	}
	e.observeGraph()

	iterations := 0
	reason := ""
	for !planner.Done(e.builder) {
		if err := ctx.Err(); err != nil {
			return e.result(iterations, false), err
		}
		if iterations >= e.opts.MaxIterations {
			reason = fmt.Sprintf("iteration ceiling %d reached", e.opts.MaxIterations)
			break
		}

		plans, err := e.plan(ctx)
		if err != nil {
			return e.result(iterations, false), err
		}
		plans = e.fitBudget(plans)
		if len(plans) == 0 {
			reason = fmt.Sprintf("query budget %d spent (%d used)", e.opts.QueryBudget, e.queries)
			break
		}

		if err := e.step(ctx, plans); err != nil {
			return e.result(iterations, false), err
		}
		iterations++
		iterationsTotal.Inc()
	}

	if reason != "" {
		res := e.result(iterations, false)
		if res.Snapshot.Closed() {
			if m, err := emitter.Emit(res.Snapshot); err == nil {
				res.Map = m
			}
		}
		log.Printf("[Engine] Stopping without a confident graph: %s", reason)
		e.logEvent("budget_exhausted", map[string]interface{}{
			"reason":     reason,
			"iterations": iterations,
			"queries":    e.queries,
		})
		return res, fmt.Errorf("%w: %s", ErrBudgetExhausted, reason)
	}

	res := e.result(iterations, true)
	m, err := emitter.Emit(res.Snapshot)
	if err != nil {
		return res, fmt.Errorf("failed to emit solution: %w", err)
	}
	res.Map = m
	e.logEvent("solution_emitted", map[string]interface{}{
		"rooms":      len(m.Rooms),
		"iterations": iterations,
		"queries":    e.queries,
	})
	return res, nil
}

// plan resolves ambiguities on a fresh snapshot and asks the planner for the
// next batch.
func (e *Engine) plan(ctx context.Context) ([]maze.Plan, error) {
	snap := e.builder.Snapshot()
	ds, err := e.resolver.Resolve(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ambiguities: %w", err)
	}
	discriminatorsTotal.Add(float64(len(ds)))
	return e.planner.Next(snap, ds), nil
}

// fitBudget drops trailing plans that would overspend the query budget.
func (e *Engine) fitBudget(plans []maze.Plan) []maze.Plan {
	if e.opts.QueryBudget <= 0 {
		return plans
	}
	left := e.opts.QueryBudget - e.queries - 1
	if left <= 0 {
		return nil
	}
	if len(plans) > left {
		log.Printf("[Engine] Trimming batch from %d to %d plans to fit the query budget", len(plans), left)
		plans = plans[:left]
	}
	return plans
}

// step explores one batch and applies every result in order before
// returning.
func (e *Engine) step(ctx context.Context, plans []maze.Plan) error {
	start := time.Now()
	results, err := e.explorer.Explore(ctx, plans)
	exploreDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		exploreCallsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to explore %d plans: %w", len(plans), err)
	}
	exploreCallsTotal.WithLabelValues("ok").Inc()
	e.queries += 1 + len(plans)
	queriesTotal.Add(float64(1 + len(plans)))
	plansTotal.Add(float64(len(plans)))
	if len(results) != len(plans) {
		return fmt.Errorf("explorer returned %d results for %d plans", len(results), len(plans))
	}

	for i, plan := range plans {
		obs, err := e.store.Record(ctx, plan, results[i])
		if errors.Is(err, trace.ErrMalformedObservation) {
			observationsTotal.WithLabelValues("malformed").Inc()
			log.Printf("[Engine] Dropping result for plan %s: %v", plan, err)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to record observation: %w", err)
		}

		report, err := e.builder.Apply(ctx, obs)
		e.observeReport(report)
		var ce *hypothesis.ContradictionError
		switch {
		case errors.As(err, &ce):
			result := "rejected"
			if ce.Recovered {
				result = "recovered"
			}
			observationsTotal.WithLabelValues(result).Inc()
			e.logEvent("label_contradiction", map[string]interface{}{
				"seq":       obs.Seq,
				"step":      ce.Step,
				"expected":  int(ce.Expected),
				"observed":  int(ce.Observed),
				"recovered": ce.Recovered,
				"rollbacks": report.Rollbacks,
			})
		case err != nil:
			return fmt.Errorf("failed to apply observation %d: %w", obs.Seq, err)
		default:
			observationsTotal.WithLabelValues("applied").Inc()
		}
	}

	e.observeGraph()
	st := e.builder.Stats()
	e.logEvent("batch_applied", map[string]interface{}{
		"plans":           len(plans),
		"queries":         e.queries,
		"representatives": st.Representatives,
		"known_doors":     st.KnownDoors,
		"unconfirmed":     st.Unconfirmed,
	})
	return nil
}

func (e *Engine) observeReport(r hypothesis.Report) {
	mergesTotal.WithLabelValues("speculative").Add(float64(r.SpeculativeMerges))
	mergesTotal.WithLabelValues("forced").Add(float64(r.ForcedMerges))
	mergesTotal.WithLabelValues("deduced").Add(float64(r.DeducedMerges))
	mergeConflictsTotal.Add(float64(r.Conflicts))
	rollbacksTotal.Add(float64(r.Rollbacks))
}

func (e *Engine) observeGraph() {
	st := e.builder.Stats()
	representativesGauge.Set(float64(st.Representatives))
	knownDoorsGauge.Set(float64(st.KnownDoors))
	unconfirmedGauge.Set(float64(st.Unconfirmed))
}

func (e *Engine) result(iterations int, done bool) *Result {
	n, err := e.store.Len(context.Background())
	if err != nil {
		log.Printf("[Engine] Failed to read trace length: %v", err)
	}
	return &Result{
		Snapshot:     e.builder.Snapshot(),
		Stats:        e.builder.Stats(),
		Iterations:   iterations,
		Queries:      e.queries,
		Observations: n,
		Done:         done,
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["session"] = e.opts.Session

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
