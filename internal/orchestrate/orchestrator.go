package orchestrate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/dedupe"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/ratelimit"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/internal/score"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/internal/taxonomy"
	"github.com/sells-group/prospector/internal/validate"
)

// Request describes one collection run.
type Request struct {
	Sector       string
	Region       string
	MaxLeads     int
	QualityFloor float64
}

// Result is what a collection run produced. It is returned even when the
// run failed, so callers always see the summary.
type Result struct {
	Run     *model.CollectionRun
	Leads   []*model.Lead
	Summary *model.RunSummary
}

// Options wires an Orchestrator.
type Options struct {
	Adapters     []source.Adapter
	Limiter      *ratelimit.Limiter
	Validator    *validate.Validator
	Scorer       *score.Scorer
	Store        store.Store
	Fingerprints *dedupe.Fingerprinter
	Taxonomy     *taxonomy.Taxonomy
	Sources      config.SourcesConfig
	Breaker      resilience.BreakerConfig
}

// Orchestrator runs the full collect → validate → dedup → score pipeline
// across all configured sources.
type Orchestrator struct {
	adapters  map[model.SourceID]source.Adapter
	limiter   *ratelimit.Limiter
	validator *validate.Validator
	scorer    *score.Scorer
	store     store.Store
	fp        *dedupe.Fingerprinter
	tax       *taxonomy.Taxonomy
	sources   config.SourcesConfig
	breakers  *resilience.SourceBreakers
	log       *zap.Logger
}

// New creates an Orchestrator from its wired dependencies.
func New(opts Options) *Orchestrator {
	adapters := make(map[model.SourceID]source.Adapter, len(opts.Adapters))
	for _, a := range opts.Adapters {
		adapters[a.ID()] = a
	}
	return &Orchestrator{
		adapters:  adapters,
		limiter:   opts.Limiter,
		validator: opts.Validator,
		scorer:    opts.Scorer,
		store:     opts.Store,
		fp:        opts.Fingerprints,
		tax:       opts.Taxonomy,
		sources:   opts.Sources,
		breakers:  resilience.NewSourceBreakers(opts.Breaker),
		log:       zap.L().With(zap.String("component", "orchestrator")),
	}
}

// indexedStrategy pins a strategy to its position in the priority order
// so accepted leads can be replayed in collection order after the
// per-source workers finish.
type indexedStrategy struct {
	index    int
	strategy model.SearchStrategy
}

// Collect runs one collection. The returned error is non-nil only for
// hard failures (dedup persistence, run bookkeeping); source outages,
// throttling, and scoring problems degrade the summary instead. The
// Result is non-nil in both cases.
func (o *Orchestrator) Collect(ctx context.Context, req Request) (*Result, error) {
	run := &model.CollectionRun{
		ID:       uuid.New().String(),
		Sector:   req.Sector,
		Region:   req.Region,
		MaxLeads: req.MaxLeads,
		Status:   model.RunStatusRunning,
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "orchestrate: create run")
	}

	log := o.log.With(zap.String("run_id", run.ID), zap.String("sector", req.Sector), zap.String("region", req.Region))
	log.Info("collection started", zap.Int("max_leads", req.MaxLeads))

	keywords := o.tax.Keywords(req.Sector)
	strategies := BuildStrategies(o.sources, keywords)

	acc := newAccumulator(req.MaxLeads)
	deduper := dedupe.New(o.store, o.fp)

	bySource := make(map[model.SourceID][]indexedStrategy)
	for i, st := range strategies {
		if _, ok := o.adapters[st.Source]; !ok {
			log.Warn("no adapter for source, skipping", zap.String("source", string(st.Source)))
			continue
		}
		bySource[st.Source] = append(bySource[st.Source], indexedStrategy{index: i, strategy: st})
	}

	g, gctx := errgroup.WithContext(ctx)
	for id, strats := range bySource {
		g.Go(func() error {
			return o.runSource(gctx, log, run.ID, id, strats, req, keywords, deduper, acc)
		})
	}
	err := g.Wait()

	fatal := err != nil && !eris.Is(err, context.Canceled) && !eris.Is(err, context.DeadlineExceeded)
	accepted := acc.acceptedInOrder()

	if !fatal && ctx.Err() == nil && len(accepted) > 0 {
		outcome, scoreErr := o.scorer.ScoreAll(ctx, accepted, keywords, req.QualityFloor)
		if scoreErr != nil {
			log.Warn("scoring pass incomplete", zap.Error(scoreErr))
		}
		if outcome != nil {
			acc.summary.Scored = outcome.Scored
			acc.summary.BelowFloor = outcome.BelowFloor
			acc.summary.IntelCostUSD = outcome.CostUSD
		}
	}

	// Rank by score descending. Unscored leads carry the neutral default
	// and, on an exact tie, sort after scored ones; otherwise collection
	// order is preserved.
	sort.SliceStable(accepted, func(i, j int) bool {
		si, sj := accepted[i].Score(), accepted[j].Score()
		if si != sj {
			return si > sj
		}
		return accepted[i].Scored() && !accepted[j].Scored()
	})

	status := model.RunStatusComplete
	var runErrMsg string
	if fatal {
		status = model.RunStatusFailed
		runErrMsg = err.Error()
		log.Error("collection failed", zap.Error(err))
	}

	// Persist whatever was collected even when the context was cancelled
	// mid-run.
	pctx := context.WithoutCancel(ctx)
	var persistErr error
	if all := acc.allLeads(); len(all) > 0 {
		if saveErr := o.store.SaveLeads(pctx, all); saveErr != nil {
			persistErr = eris.Wrap(saveErr, "orchestrate: save leads")
		}
	}
	if ce := o.store.CompleteRun(pctx, run.ID, status, acc.summary, runErrMsg); ce != nil && persistErr == nil {
		persistErr = eris.Wrap(ce, "orchestrate: complete run")
	}

	now := time.Now().UTC()
	run.Status = status
	run.Summary = acc.summary
	run.Error = runErrMsg
	run.CompletedAt = &now

	result := &Result{Run: run, Leads: accepted, Summary: acc.summary}
	if fatal {
		return result, err
	}
	if persistErr != nil {
		return result, persistErr
	}

	log.Info("collection finished",
		zap.Int("accepted", acc.summary.Accepted),
		zap.Int("rejected", acc.summary.TotalRejected()),
		zap.Int("duplicates", acc.summary.Duplicates),
		zap.Int("scored", acc.summary.Scored),
	)
	return result, nil
}

// runSource executes one source's strategies in priority order. Calls to
// the same source are serialized here; concurrency exists only across
// sources. A non-nil return aborts the whole run.
func (o *Orchestrator) runSource(
	ctx context.Context,
	log *zap.Logger,
	runID string,
	id model.SourceID,
	strats []indexedStrategy,
	req Request,
	keywords []string,
	deduper *dedupe.Deduper,
	acc *accumulator,
) error {
	adapter := o.adapters[id]
	breaker := o.breakers.For(id)
	log = log.With(zap.String("source", string(id)))

	for _, st := range strats {
		seq := 0
		for _, kw := range st.strategy.Keywords {
			if ctx.Err() != nil || acc.full() {
				return nil
			}
			if err := breaker.Allow(); err != nil {
				log.Warn("source circuit open, skipping remaining strategies")
				return nil
			}

			if err := o.limiter.Acquire(ctx, id); err != nil {
				if eris.Is(err, ratelimit.ErrRateExceeded) {
					acc.rateExceeded(id)
					log.Warn("rate budget exhausted, skipping strategy", zap.String("keyword", kw))
					break
				}
				// Context ended while waiting for a slot.
				return nil
			}

			acc.attempted(id)
			records, err := adapter.Search(ctx, source.Query{Keyword: kw, Region: req.Region})
			if err != nil {
				if eris.Is(err, context.Canceled) || eris.Is(err, context.DeadlineExceeded) {
					return nil
				}
				breaker.Record(err)
				acc.sourceError(id)
				if eris.Is(err, source.ErrThrottled) {
					o.limiter.ReportThrottle(id)
					log.Warn("source throttled, skipping strategy", zap.String("keyword", kw))
				} else {
					log.Warn("source query failed, skipping strategy",
						zap.String("keyword", kw), zap.Error(err))
				}
				break
			}
			breaker.Record(nil)
			o.limiter.ReportSuccess(id)

			for _, rec := range records {
				if ctx.Err() != nil || acc.full() {
					return nil
				}
				acc.record(id)

				lead := &model.Lead{
					RunID:       runID,
					RawName:     rec.Name,
					Address:     rec.Address,
					Phone:       rec.Phone,
					Website:     rec.Website,
					Snippet:     rec.Snippet,
					Source:      id,
					SectorHint:  req.Sector,
					Region:      req.Region,
					CollectedAt: time.Now().UTC(),
				}

				res := o.validator.Validate(rec, keywords)
				lead.ValidationState = res.State
				lead.RejectionReason = res.Reason
				lead.QualityFlag = res.QualityFlag
				if res.State == model.ValidationRejected {
					acc.rejected(lead, res.Reason)
					continue
				}

				// Claim a slot before Admit: once the fingerprint is
				// durably recorded the lead must be emitted, so the cap
				// cannot be allowed to drop it afterwards.
				if !acc.reserve() {
					return nil
				}
				admitted, err := deduper.Admit(ctx, lead)
				if err != nil {
					acc.release()
					if eris.Is(err, dedupe.ErrNoIdentity) {
						log.Debug("record has no identity fields, skipping", zap.String("name", rec.Name))
						continue
					}
					// Dedup persistence is the one failure that must stop
					// the run: without it every record would be re-admitted.
					return eris.Wrap(err, "orchestrate: admit lead")
				}
				if !admitted {
					acc.release()
					acc.duplicate()
					continue
				}

				acc.commit(lead, st.index, seq)
				seq++
			}
		}
	}
	return nil
}

// acceptedEntry tags an accepted lead with its collection position.
type acceptedEntry struct {
	lead     *model.Lead
	strategy int
	seq      int
}

// accumulator gathers run output from concurrent source workers. The
// lead cap is enforced through reservations: a worker claims a slot with
// reserve before registering a fingerprint, then either commits the lead
// into it or releases it, so admitted leads are never silently dropped.
type accumulator struct {
	mu       sync.Mutex
	maxLeads int
	reserved int
	entries  []acceptedEntry
	rejects  []*model.Lead
	summary  *model.RunSummary
}

func newAccumulator(maxLeads int) *accumulator {
	return &accumulator{maxLeads: maxLeads, summary: model.NewRunSummary()}
}

func (a *accumulator) full() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxLeads > 0 && a.reserved >= a.maxLeads
}

// reserve claims one accepted-lead slot, reporting false when the cap is
// already spoken for.
func (a *accumulator) reserve() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.maxLeads > 0 && a.reserved >= a.maxLeads {
		return false
	}
	a.reserved++
	return true
}

func (a *accumulator) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved--
}

func (a *accumulator) commit(l *model.Lead, strategy, seq int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, acceptedEntry{lead: l, strategy: strategy, seq: seq})
	a.summary.Accepted++
}

func (a *accumulator) rejected(l *model.Lead, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects = append(a.rejects, l)
	a.summary.Rejected[reason]++
}

func (a *accumulator) duplicate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.Duplicates++
}

func (a *accumulator) attempted(id model.SourceID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.SourceStatsFor(id).Attempted++
}

func (a *accumulator) record(id model.SourceID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.SourceStatsFor(id).Records++
}

func (a *accumulator) sourceError(id model.SourceID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.SourceStatsFor(id).Errors++
}

func (a *accumulator) rateExceeded(id model.SourceID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.SourceStatsFor(id).RateExceeded++
}

// acceptedInOrder returns accepted leads in collection order: strategy
// priority position first, then record order within the strategy.
func (a *accumulator) acceptedInOrder() []*model.Lead {
	a.mu.Lock()
	defer a.mu.Unlock()
	sort.SliceStable(a.entries, func(i, j int) bool {
		if a.entries[i].strategy != a.entries[j].strategy {
			return a.entries[i].strategy < a.entries[j].strategy
		}
		return a.entries[i].seq < a.entries[j].seq
	})
	leads := make([]*model.Lead, len(a.entries))
	for i, e := range a.entries {
		leads[i] = e.lead
	}
	return leads
}

// allLeads returns every lead to persist: accepted plus rejected, so the
// store keeps the full audit trail of the run.
func (a *accumulator) allLeads() []*model.Lead {
	a.mu.Lock()
	defer a.mu.Unlock()
	all := make([]*model.Lead, 0, len(a.entries)+len(a.rejects))
	for _, e := range a.entries {
		all = append(all, e.lead)
	}
	return append(all, a.rejects...)
}
