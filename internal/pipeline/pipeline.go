package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jobcatcher/jobcatcher/internal/ai"
	"github.com/jobcatcher/jobcatcher/internal/contact"
	"github.com/jobcatcher/jobcatcher/internal/filtering"
	"github.com/jobcatcher/jobcatcher/internal/history"
	"github.com/jobcatcher/jobcatcher/internal/jobsource"
	"github.com/jobcatcher/jobcatcher/internal/resume"
	"github.com/jobcatcher/jobcatcher/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers       = 3
	defaultFetchAttempts = 3
	defaultCallTimeout   = 60 * time.Second
)

var fetchBackoff = 2 * time.Second

// Notifier delivers a tailored resume to a recruiter address.
type Notifier interface {
	Send(ctx context.Context, to string, doc *resume.Document) error
}

// RecordStore persists the fact that a posting was emailed.
type RecordStore interface {
	Record(ctx context.Context, rec history.SentRecord) (bool, error)
}

// StatusReporter receives best-effort run status messages.
type StatusReporter interface {
	Notify(ctx context.Context, text string)
}

type Config struct {
	Workers       int
	MaxPostings   int
	CallTimeout   time.Duration
	RateLimit     float64
	RateBurst     int
	OutputDir     string
	DryRun        bool
	FetchAttempts int
}

type Deps struct {
	Sources  []jobsource.Source
	Filters  []filtering.Filter
	History  filtering.SeenStore
	Template *resume.Template
	Tailor   ai.Tailor
	Notifier Notifier
	Records  RecordStore
	Status   StatusReporter
	Logger   *zap.Logger
}

// Result summarizes one pipeline pass.
type Result struct {
	Fetched            int
	Eligible           int
	Sent               int
	SkippedNoContact   int
	GenerationFailures int
	DeliveryFailures   int
}

// Pipeline runs one pass: fetch postings, filter them, and per posting
// resolve a contact, tailor the resume and email it. Postings are processed
// independently: a failure on one never aborts the others.
type Pipeline struct {
	cfg     *Config
	deps    *Deps
	limiter *rate.Limiter

	// successful sends across all passes of this process
	sent atomic.Int64
}

func New(cfg *Config, deps *Deps) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = defaultFetchAttempts
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Pipeline{
		cfg:     cfg,
		deps:    deps,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Run executes one full pass.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.status(ctx, "starting jobcatcher run")

	postings, err := p.Collect(ctx)
	if err != nil {
		p.status(ctx, fmt.Sprintf("run aborted: %v", err))
		return nil, err
	}

	result := p.Process(ctx, postings)

	p.status(ctx, fmt.Sprintf(
		"run finished: %d fetched, %d eligible, %d sent, %d without contact, %d tailoring failures, %d delivery failures",
		result.Fetched, result.Eligible, result.Sent,
		result.SkippedNoContact, result.GenerationFailures, result.DeliveryFailures,
	))

	return result, nil
}

// Collect fetches postings from all sources and applies the configured
// filters. The returned list is capped at MaxPostings.
func (p *Pipeline) Collect(ctx context.Context) (*jobsource.Postings, error) {
	if len(p.deps.Sources) == 0 {
		return nil, fmt.Errorf("no job sources configured")
	}

	var g errgroup.Group
	results := make(chan *jobsource.Postings, len(p.deps.Sources))
	failures := make(chan error, len(p.deps.Sources))

	for _, source := range p.deps.Sources {
		g.Go(func() error {
			postings, err := p.fetchWithRetry(ctx, source)
			if err != nil {
				// best-effort: one failing provider must not cancel siblings
				p.deps.Logger.Warn("job source failed",
					zap.String("source", source.Name()),
					zap.Error(err),
				)
				failures <- err
				return nil
			}
			results <- postings
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	close(failures)

	merged := &jobsource.Postings{}
	succeeded := 0
	for postings := range results {
		merged.Append(postings)
		succeeded++
	}

	// the pass is skipped only when every provider failed
	if succeeded == 0 {
		if err := <-failures; err != nil {
			return nil, err
		}
		return merged, nil
	}

	filtered, err := filtering.Run(ctx, filtering.Deps{
		Logger:  p.deps.Logger,
		History: p.deps.History,
	}, p.deps.Filters, merged)
	if err != nil {
		return nil, fmt.Errorf("filtering postings: %w", err)
	}

	filtered.Truncate(p.cfg.MaxPostings)

	return filtered, nil
}

func (p *Pipeline) fetchWithRetry(ctx context.Context, source jobsource.Source) (*jobsource.Postings, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.FetchAttempts; attempt++ {
		fctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		postings, err := source.Fetch(fctx)
		cancel()
		if err == nil {
			p.deps.Logger.Info("fetched postings",
				zap.String("source", source.Name()),
				zap.Int("count", postings.Len()),
			)
			return postings, nil
		}

		lastErr = err
		if attempt == p.cfg.FetchAttempts {
			break
		}

		backoff := time.Duration(attempt) * fetchBackoff
		p.deps.Logger.Debug("retrying job source",
			zap.String("source", source.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		if err := utils.WaitFor(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

type tally struct {
	sent               atomic.Int64
	skippedNoContact   atomic.Int64
	generationFailures atomic.Int64
	deliveryFailures   atomic.Int64
}

// Process runs the per-posting stages over a bounded worker pool.
func (p *Pipeline) Process(ctx context.Context, postings *jobsource.Postings) *Result {
	result := &Result{
		Fetched:  postings.Len(),
		Eligible: postings.Len(),
	}

	var counts tally
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)

	for _, posting := range postings.Items {
		g.Go(func() error {
			p.process(ctx, posting, &counts)
			return nil
		})
	}

	_ = g.Wait()

	result.Sent = int(counts.sent.Load())
	result.SkippedNoContact = int(counts.skippedNoContact.Load())
	result.GenerationFailures = int(counts.generationFailures.Load())
	result.DeliveryFailures = int(counts.deliveryFailures.Load())

	return result
}

func (p *Pipeline) process(ctx context.Context, posting *jobsource.Posting, counts *tally) {
	logger := p.deps.Logger.With(
		zap.String("posting_id", posting.ID),
		zap.String("posting_title", posting.Title),
	)

	// Resolving the contact first keeps postings without one from costing
	// a generation call.
	addr, ok := contact.Resolve(posting)
	if !ok {
		logger.Info("skipping posting", zap.String("reason", "no contact"))
		counts.skippedNoContact.Add(1)
		return
	}

	if err := p.limiter.Wait(ctx); err != nil {
		logger.Warn("rate limiter wait interrupted", zap.Error(err))
		return
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	doc, err := p.deps.Tailor.Tailor(tctx, p.deps.Template, posting)
	cancel()
	if err != nil {
		logger.Warn("tailoring failed", zap.Error(err))
		counts.generationFailures.Add(1)
		return
	}

	if p.cfg.DryRun {
		path, err := p.dumpDocument(doc)
		if err != nil {
			logger.Warn("dumping tailored resume failed", zap.Error(err))
			return
		}
		logger.Info("tailored resume written",
			zap.String("path", path),
			zap.String("would_send_to", addr),
		)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	err = p.deps.Notifier.Send(sctx, addr, doc)
	cancel()
	if err != nil {
		logger.Warn("delivery failed", zap.Error(err))
		counts.deliveryFailures.Add(1)
		return
	}

	if p.deps.Records != nil {
		added, err := p.deps.Records.Record(ctx, history.SentRecord{
			PostingID: posting.ID,
			Title:     posting.Title,
			Contact:   addr,
			SentAt:    time.Now().UTC(),
		})
		if err != nil {
			logger.Warn("recording sent posting failed", zap.Error(err))
		} else if !added {
			logger.Debug("posting was already recorded")
		}
	}

	counts.sent.Add(1)
	p.sent.Add(1)

	logger.Info("posting handled",
		zap.String("recipient", addr),
	)
}

var unsafeNameRe = regexp.MustCompile(`[^\w\-]+`)

func (p *Pipeline) dumpDocument(doc *resume.Document) (string, error) {
	dir := p.cfg.OutputDir
	if dir == "" {
		dir = "output/resumes"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := unsafeNameRe.ReplaceAllString(doc.PostingTitle, "_")
	name = strings.Trim(name, "_")
	if len(name) > 120 {
		name = name[:120]
	}
	if name == "" {
		name = "posting"
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", name, doc.PostingID))
	if err := os.WriteFile(path, []byte(doc.Body), 0o644); err != nil {
		return "", err
	}

	return path, nil
}

// TotalSent returns the number of successful sends across all passes of
// this process.
func (p *Pipeline) TotalSent() int64 {
	return p.sent.Load()
}

func (p *Pipeline) status(ctx context.Context, text string) {
	if p.deps.Status == nil {
		return
	}
	p.deps.Status.Notify(ctx, text)
}
