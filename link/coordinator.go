package link

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/omeka"
)

// Run failure classes
var (
	// ErrPrecondition marks a missing destination or source item set.
	// Nothing has been written when it is returned.
	ErrPrecondition = errors.New("precondition failed")

	// ErrRetrieval marks a failed page request. Writes already issued stand.
	ErrRetrieval = errors.New("page retrieval failed")
)

// Remote is the Omeka S surface a run needs
type Remote interface {
	ItemLister
	ItemStore
	ItemSetExists(ctx context.Context, id int64) (bool, error)
}

// Request describes one run
type Request struct {
	SourceItemSet *int64           // nil = every item in the repository
	Targets       map[string]int64 // property term -> destination item set
}

// Options configures a Coordinator
type Options struct {
	PerPage int // items per page request
	Workers int // concurrent writers within a page, 1 = sequential

	// PageSource overrides the item pager, mainly for tests
	PageSource func(req Request) PageSource

	Logger  *zap.SugaredLogger
	Metrics *Metrics
}

// Coordinator drives a streaming link run
type Coordinator struct {
	remote    Remote
	perPage   int
	workers   int
	pages     func(req Request) PageSource
	extractor *Extractor
	writer    *MembershipWriter
	logger    *zap.SugaredLogger
	metrics   *Metrics
}

// NewCoordinator creates a coordinator over remote
func NewCoordinator(remote Remote, opts Options) *Coordinator {
	log := logger.OrNop(opts.Logger)

	c := &Coordinator{
		remote:    remote,
		perPage:   opts.PerPage,
		workers:   opts.Workers,
		pages:     opts.PageSource,
		extractor: NewExtractor(log.Named("extract")),
		writer:    NewMembershipWriter(remote, log.Named("writer"), opts.Metrics),
		logger:    log,
		metrics:   opts.Metrics,
	}
	if c.workers < 1 {
		c.workers = 1
	}
	if c.perPage < 1 {
		c.perPage = 100
	}
	if c.pages == nil {
		c.pages = func(req Request) PageSource {
			return NewItemPager(remote, c.perPage, req.SourceItemSet)
		}
	}
	return c
}

// writeJob is one newly discovered id to add to its property's item set
type writeJob struct {
	field     string
	itemID    int64
	itemSetID int64
}

// Run checks that every item set exists, then streams pages until the
// source is exhausted.
//
// A missing item set fails with ErrPrecondition before any page is read.
// A failed page request stops the run with ErrRetrieval; cancelling ctx
// stops it after in-flight writes. In both cases the partial report is
// returned alongside the error.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Report, error) {
	if len(req.Targets) == 0 {
		return nil, errors.WithHint(errors.New("no target properties given"),
			"map at least one property to an item set, e.g. --target artists=12")
	}
	for field, itemSet := range req.Targets {
		if field == "" || itemSet <= 0 {
			return nil, errors.Newf("invalid target %q=%d", field, itemSet)
		}
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx, c.logger)

	if err := c.checkPreconditions(ctx, req); err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(req.Targets))
	for field := range req.Targets {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	report := newReport(runID, req)
	log.Infow("Link run started",
		logger.FieldCount, len(fields),
		logger.FieldWorkers, c.workers,
		logger.FieldPerPage, c.perPage,
	)

	err := c.stream(ctx, c.pages(req), req, fields, report)
	report.FinishedAt = time.Now()

	totals := report.Totals()
	if err != nil {
		report.Interrupted = true
		log.Warnw("Link run stopped early",
			logger.FieldPage, report.Pages,
			logger.FieldFound, totals.Found,
			logger.FieldError, err.Error(),
		)
		return report, err
	}

	log.Infow("Link run complete",
		logger.FieldPage, report.Pages,
		logger.FieldFound, totals.Found,
		"added", totals.Added,
		"skipped", totals.Skipped,
		"errors", totals.Errors,
		logger.FieldDurationMS, report.Duration().Milliseconds(),
	)
	return report, nil
}

// checkPreconditions probes each distinct item set once
func (c *Coordinator) checkPreconditions(ctx context.Context, req Request) error {
	byItemSet := make(map[int64][]string)
	for field, itemSet := range req.Targets {
		byItemSet[itemSet] = append(byItemSet[itemSet], field)
	}
	ids := make([]int64, 0, len(byItemSet))
	for id := range byItemSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		exists, err := c.remote.ItemSetExists(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "failed to check destination item set %d", id)
		}
		if !exists {
			fields := byItemSet[id]
			sort.Strings(fields)
			return precondition(errors.Newf("destination item set %d not found (properties: %v)", id, fields),
				"create item set %d in Omeka S or fix the target mapping", id)
		}
	}

	if req.SourceItemSet != nil {
		id := *req.SourceItemSet
		exists, err := c.remote.ItemSetExists(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "failed to check source item set %d", id)
		}
		if !exists {
			return precondition(errors.Newf("source item set %d not found", id),
				"omit --source to scan the whole repository")
		}
	}
	return nil
}

func precondition(err error, hint string, args ...interface{}) error {
	err = errors.Mark(err, errors.ErrNotFound)
	err = errors.Mark(err, ErrPrecondition)
	return errors.WithHintf(err, hint, args...)
}

// stream runs the page loop. Each page is fully written before the next is requested.
func (c *Coordinator) stream(ctx context.Context, src PageSource, req Request, fields []string, report *Report) error {
	seen := NewSeenSets()
	log := logger.FromContext(ctx, c.logger)

	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "link run cancelled")
		}

		page, ok, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), "link run cancelled")
			}
			return errors.Mark(errors.Wrapf(err, "failed to retrieve page %d", report.Pages+1), ErrRetrieval)
		}
		if !ok {
			return nil
		}

		report.Pages++
		report.Items += len(page.Resources)
		c.metrics.observePage(len(page.Resources))

		newIDs := c.extractor.Extract(page.Resources, fields, seen)

		var jobs []writeJob
		for _, field := range fields {
			ids := newIDs[field]
			report.Fields[field].Found += len(ids)
			c.metrics.observeFound(field, len(ids))
			for _, id := range ids {
				jobs = append(jobs, writeJob{field: field, itemID: id, itemSetID: req.Targets[field]})
			}
		}

		log.Infow("Page processed",
			logger.FieldPage, report.Pages,
			logger.FieldCount, len(page.Resources),
			logger.FieldFound, len(jobs),
		)

		if err := c.dispatch(ctx, jobs, report); err != nil {
			return err
		}
	}
}

// jobResult is filled by one writer; attempted is false when cancellation
// prevented the write from being issued
type jobResult struct {
	outcome   Outcome
	attempted bool
}

// dispatch writes one page's jobs and merges the outcomes into report.
// With more than one worker the writes run concurrently and are merged
// after all of them finish.
func (c *Coordinator) dispatch(ctx context.Context, jobs []writeJob, report *Report) error {
	if len(jobs) == 0 {
		return nil
	}

	results := make([]jobResult, len(jobs))

	if c.workers == 1 {
		for i, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			outcome, _ := c.writer.EnsureMember(ctx, job.itemID, job.itemSetID)
			results[i] = jobResult{outcome: outcome, attempted: true}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.workers)
		for i, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				outcome, _ := c.writer.EnsureMember(ctx, job.itemID, job.itemSetID)
				results[i] = jobResult{outcome: outcome, attempted: true}
				return nil
			})
		}
		// Write failures are counted, not propagated
		_ = g.Wait()
	}

	for i, job := range jobs {
		if !results[i].attempted {
			continue
		}
		report.Fields[job.field].record(results[i].outcome)
		c.metrics.observeOutcome(job.field, results[i].outcome)
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "link run cancelled")
	}
	return nil
}

var _ Remote = (*omeka.Client)(nil)
