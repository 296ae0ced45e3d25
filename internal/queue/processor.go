package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/applyflow/applyflow/internal/ai"
	"github.com/applyflow/applyflow/internal/filtering"
	"github.com/applyflow/applyflow/internal/gateway"
	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/applyflow/applyflow/internal/scoring"
	"github.com/applyflow/applyflow/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMinDelay = 2 * time.Second
	defaultMaxDelay = 5 * time.Second
)

// ErrAlreadyRunning is returned when Start is called while a run is in flight.
var ErrAlreadyRunning = errors.New("a run is already in progress")

// Config holds the per-run settings of the processor.
type Config struct {
	Preferences *jobs.RunPreferences
	// ExcludedIDs feed the excluded_ids eligibility gate.
	ExcludedIDs []string
	// Message is the cover message used when no composer is configured or
	// composing fails.
	Message string
	// MinDelay and MaxDelay bound the randomized wait between consecutive
	// submissions. Zero values fall back to the 2-5s defaults.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Deps aggregates the collaborators of the processor.
type Deps struct {
	Engine  *scoring.Engine
	Profile *jobs.CandidateProfile
	Gateway gateway.Gateway
	Store   Store
	// Composer optionally generates a per-posting cover message.
	Composer ai.Composer
	Logger   *zap.Logger
}

// Processor drives a batch of postings through the apply pipeline, one
// submission at a time. Submissions are intentionally sequential: job
// platforms rate-limit and fingerprint bursty traffic.
//
// The queue and the application records are owned exclusively by the
// processor; Pause, Resume and Stop are cooperative signals honored between
// items only.
type Processor struct {
	cfg     *Config
	deps    *Deps
	filters []filtering.Filter

	mu            sync.Mutex
	cond          *sync.Cond
	state         State
	stopRequested bool
	runID         string
	items         []*Item
	applications  []ApplicationRecord
	processed     int
	successful    int
	failed        int
	subscriber    func(Progress)
	rng           *rand.Rand
}

func New(cfg *Config, deps *Deps) *Processor {
	if cfg == nil {
		cfg = &Config{}
	}
	if deps == nil {
		deps = &Deps{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = defaultMinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = defaultMaxDelay
		if cfg.MaxDelay < cfg.MinDelay {
			cfg.MaxDelay = cfg.MinDelay
		}
	}

	p := &Processor{
		cfg:     cfg,
		deps:    deps,
		filters: filtering.DefaultChain(),
		state:   StateIdle,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Subscribe registers the progress callback. The base design carries a
// single subscriber; a later call replaces the previous one.
func (p *Processor) Subscribe(fn func(Progress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriber = fn
}

// State returns the current processor state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Items returns a snapshot of the current run's queue.
func (p *Processor) Items() []*Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]*Item, len(p.items))
	copy(items, p.items)
	return items
}

// Applications returns a copy of the in-memory application history.
func (p *Processor) Applications() []ApplicationRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	records := make([]ApplicationRecord, len(p.applications))
	copy(records, p.applications)
	return records
}

// Pause suspends processing after the in-flight item completes. The state
// transition is announced to the subscriber right away.
func (p *Processor) Pause() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StatePaused
	p.deps.Logger.Info("queue paused", zap.String("run_id", p.runID))
	p.mu.Unlock()

	p.emit(nil)
}

// Resume continues a paused run.
func (p *Processor) Resume() {
	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return
	}
	p.state = StateRunning
	p.deps.Logger.Info("queue resumed", zap.String("run_id", p.runID))
	p.cond.Broadcast()
	p.mu.Unlock()

	p.emit(nil)
}

// Stop ends the run before the next item. An in-flight submission is never
// cancelled forcibly.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.state != StateRunning && p.state != StatePaused {
		p.mu.Unlock()
		return
	}
	p.stopRequested = true
	p.state = StateStopped
	p.deps.Logger.Info("queue stop requested", zap.String("run_id", p.runID))
	p.cond.Broadcast()
	p.mu.Unlock()

	p.emit(nil)
}

// Start filters the batch, then processes eligible postings sequentially
// under the configured daily cap and inter-submission delay. It blocks until
// the run completes, is stopped, or the context is cancelled; callers wanting
// a background run wrap it in a goroutine.
func (p *Processor) Start(ctx context.Context, postings *jobs.Postings) (*Summary, error) {
	if err := p.cfg.Preferences.Validate(); err != nil {
		return nil, fmt.Errorf("preferences: %w", err)
	}
	if p.deps.Gateway == nil {
		return nil, errors.New("submission gateway is required")
	}

	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		p.deps.Logger.Warn("start rejected", zap.String("reason", "run already in progress"))
		return nil, ErrAlreadyRunning
	}
	p.state = StateRunning
	p.stopRequested = false
	p.runID = uuid.NewString()
	p.processed, p.successful, p.failed = 0, 0, 0
	runID := p.runID
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
	}()

	logger := p.deps.Logger.With(zap.String("run_id", runID))
	logger.Info("starting a run", zap.Int("postings", postings.Len()))

	p.seedHistory(ctx, logger)

	filtered, err := filtering.Run(ctx, &filtering.Config{
		Preferences: p.cfg.Preferences,
		ExcludedIDs: p.cfg.ExcludedIDs,
	}, filtering.Deps{
		Engine:  p.deps.Engine,
		Profile: p.deps.Profile,
		Logger:  logger,
	}, p.filters, postings)
	if err != nil {
		return nil, fmt.Errorf("filtering: %w", err)
	}

	items := make([]*Item, 0, filtered.Len())
	for _, posting := range filtered.Items {
		items = append(items, &Item{Posting: posting, Status: StatusPending})
	}

	p.mu.Lock()
	p.items = items
	p.mu.Unlock()

	p.persist(ctx, logger)
	p.emit(nil)

	// Wake the pause wait when the context goes away.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			p.cond.Broadcast()
		case <-watchDone:
		}
	}()

	dailyCap := p.cfg.Preferences.MaxApplicationsPerDay
	for _, item := range items {
		if dailyCap > 0 && p.processedCount() >= dailyCap {
			logger.Info("daily application cap reached", zap.Int("cap", dailyCap))
			break
		}

		if !p.waitReady(ctx) {
			break
		}

		if p.processedCount() > 0 {
			if err := p.delayBetweenSubmissions(ctx); err != nil {
				break
			}
			// The delay is a suspension point too.
			if !p.waitReady(ctx) {
				break
			}
		}

		p.processItem(ctx, logger, item)
		p.persist(ctx, logger)
		p.emit(item)
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("run cancelled", zap.Error(err))
		return nil, err
	}

	p.mu.Lock()
	if !p.stopRequested {
		p.state = StateIdle
	}
	p.mu.Unlock()

	summary := p.summary()
	logger.Info("run finished",
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
	)
	p.emit(nil)

	return summary, nil
}

// processItem re-scores the posting (the profile may have been refined since
// filtering), submits the application and updates the item in place. Gateway
// failures are per-item and never abort the run.
func (p *Processor) processItem(ctx context.Context, logger *zap.Logger, item *Item) {
	score := 0
	if p.deps.Engine != nil && p.deps.Profile != nil {
		score = p.deps.Engine.Score(p.deps.Profile, item.Posting).Overall
	}

	message := p.composeMessage(ctx, logger, item.Posting)

	ok, err := p.deps.Gateway.Submit(ctx, item.Posting, &gateway.RunContext{
		RunID:   p.runID,
		Message: message,
	})

	now := time.Now().UTC()

	p.mu.Lock()
	item.MatchScore = &score
	switch {
	case err != nil:
		item.Status = StatusFailed
		item.Error = err.Error()
	case !ok:
		item.Status = StatusFailed
		item.Error = "submission rejected by platform"
	default:
		item.Status = StatusSuccess
		item.AppliedAt = &now
	}

	p.processed++
	if item.Status == StatusSuccess {
		p.successful++
	} else {
		p.failed++
	}
	p.applications = append(p.applications, item.record())
	p.mu.Unlock()

	if item.Status == StatusSuccess {
		logger.Info("applied to posting",
			zap.String("posting_id", item.Posting.ID),
			zap.String("posting_title", item.Posting.Title),
			zap.Int("match_score", score),
		)
		return
	}

	logger.Warn("application failed",
		zap.String("posting_id", item.Posting.ID),
		zap.String("error", item.Error),
	)
}

func (p *Processor) composeMessage(ctx context.Context, logger *zap.Logger, posting *jobs.JobPosting) string {
	if p.deps.Composer == nil {
		return p.cfg.Message
	}

	message, err := p.deps.Composer.Compose(ctx, p.deps.Profile, posting)
	if err != nil || message == "" {
		logger.Warn("falling back to configured message",
			zap.String("posting_id", posting.ID),
			zap.Error(err),
		)
		return p.cfg.Message
	}
	return message
}

// waitReady blocks while the processor is paused. It reports false when the
// run must end because of a stop request or context cancellation.
func (p *Processor) waitReady(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.state == StatePaused && !p.stopRequested && ctx.Err() == nil {
		p.cond.Wait()
	}
	return !p.stopRequested && ctx.Err() == nil
}

func (p *Processor) delayBetweenSubmissions(ctx context.Context) error {
	p.mu.Lock()
	delay := p.cfg.MinDelay
	if window := p.cfg.MaxDelay - p.cfg.MinDelay; window > 0 {
		delay += time.Duration(p.rng.Int63n(int64(window)))
	}
	p.mu.Unlock()

	return utils.WaitFor(ctx, delay)
}

// persist writes the queue snapshot and the application history. Writes are
// best-effort: a failing store must not abort the run because the queue can
// be reconstructed from the applications list on the next read.
func (p *Processor) persist(ctx context.Context, logger *zap.Logger) {
	if p.deps.Store == nil {
		return
	}

	p.mu.Lock()
	items := make([]*Item, len(p.items))
	copy(items, p.items)
	records := make([]ApplicationRecord, len(p.applications))
	copy(records, p.applications)
	p.mu.Unlock()

	if err := p.deps.Store.SaveQueue(ctx, items); err != nil {
		logger.Warn("saving queue snapshot", zap.Error(err))
	}
	if err := p.deps.Store.SaveApplications(ctx, records); err != nil {
		logger.Warn("saving application history", zap.Error(err))
	}
}

// seedHistory loads the persisted application history so records appended by
// this run keep the history append-only across restarts.
func (p *Processor) seedHistory(ctx context.Context, logger *zap.Logger) {
	if p.deps.Store == nil {
		return
	}

	records, err := p.deps.Store.LoadApplications(ctx)
	if err != nil {
		logger.Warn("loading application history", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.applications = records
	p.mu.Unlock()
}

func (p *Processor) processedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed
}

func (p *Processor) summary() *Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Summary{
		Total:      p.processed,
		Successful: p.successful,
		Failed:     p.failed,
	}
}

// emit delivers a progress snapshot to the subscriber outside the lock.
func (p *Processor) emit(last *Item) {
	p.mu.Lock()
	subscriber := p.subscriber
	progress := Progress{
		RunID:       p.runID,
		State:       p.state,
		Paused:      p.state == StatePaused,
		QueueLength: len(p.items),
		Processed:   p.processed,
		Successful:  p.successful,
		Failed:      p.failed,
		Last:        last,
	}
	p.mu.Unlock()

	if subscriber != nil {
		subscriber(progress)
	}
}
