// Package titlesync copies item titles from one Omeka S instance to another.
//
// Items are enumerated on the target instance, looked up by id on the source
// instance, and the target's dcterms:title is replaced by the source's first
// title value.
package titlesync

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/omekalink/am"
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/link"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/omeka"
)

const (
	// TitleProperty is the term whose value is synchronised
	TitleProperty = "dcterms:title"

	// DefaultTitlePropertyID is used when the target item has no title yet
	DefaultTitlePropertyID int64 = 1
)

// Source is the instance titles are read from
type Source interface {
	GetItem(ctx context.Context, id int64) (omeka.Resource, error)
}

// Target is the instance whose items are enumerated and updated
type Target interface {
	link.ItemLister
	GetItem(ctx context.Context, id int64) (omeka.Resource, error)
	ReplaceItem(ctx context.Context, id int64, item omeka.Resource) (omeka.Resource, error)
}

// Outcome of syncing one item
type Outcome int

const (
	OutcomeError Outcome = iota
	OutcomeUpdated
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "error"
	}
}

// Report summarises one run
type Report struct {
	Processed   int  `json:"processed"`
	Updated     int  `json:"updated"`
	Skipped     int  `json:"skipped"`
	Errors      int  `json:"errors"`
	Pages       int  `json:"pages"`
	Interrupted bool `json:"interrupted,omitempty"`
}

func (r *Report) record(outcome Outcome) {
	r.Processed++
	switch outcome {
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Errors++
	}
}

// Syncer copies titles from source to target
type Syncer struct {
	source  Source
	target  Target
	perPage int
	logger  *zap.SugaredLogger
}

// New creates a Syncer. log may be nil.
func New(source Source, target Target, perPage int, log *zap.SugaredLogger) *Syncer {
	if perPage < 1 {
		perPage = am.DefaultPerPage
	}
	return &Syncer{source: source, target: target, perPage: perPage, logger: logger.OrNop(log)}
}

// Run syncs the titles of every target item in itemSetID, or of every
// target item when it is nil.
func (s *Syncer) Run(ctx context.Context, itemSetID *int64) (*Report, error) {
	pager := link.NewItemPager(s.target, s.perPage, itemSetID)
	report := &Report{}

	for {
		page, ok, err := pager.Next(ctx)
		if err != nil {
			report.Interrupted = true
			if ctx.Err() != nil {
				return report, errors.Wrap(ctx.Err(), "title sync cancelled")
			}
			return report, errors.Mark(errors.Wrapf(err, "failed to retrieve page %d", report.Pages+1), link.ErrRetrieval)
		}
		if !ok {
			break
		}
		report.Pages++

		for _, item := range page.Resources {
			if ctx.Err() != nil {
				report.Interrupted = true
				return report, errors.Wrap(ctx.Err(), "title sync cancelled")
			}
			outcome, _ := s.SyncItem(ctx, item.ID())
			report.record(outcome)
		}
	}

	s.logger.Infow("Title sync complete",
		"processed", report.Processed,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"errors", report.Errors,
	)
	return report, nil
}

// SyncItem copies the title of one item. An item missing on either side, or
// without a title on the source, is skipped. A target whose title already
// matches is skipped without a write.
func (s *Syncer) SyncItem(ctx context.Context, id int64) (Outcome, error) {
	log := s.logger.With(logger.FieldItemID, id)

	sourceItem, err := s.source.GetItem(ctx, id)
	if omeka.IsNotFound(err) {
		log.Warnw("Item not found on source instance, skipping")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return s.fail(log, err)
	}

	title := sourceItem.FirstValue(TitleProperty)
	if title == "" {
		log.Warnw("No title on source instance, skipping")
		return OutcomeSkipped, nil
	}

	targetItem, err := s.target.GetItem(ctx, id)
	if omeka.IsNotFound(err) {
		log.Warnw("Item not found on target instance, skipping")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return s.fail(log, err)
	}

	current := targetItem.Values(TitleProperty)
	if len(current) == 1 && targetItem.FirstValue(TitleProperty) == title {
		log.Debugw("Title already in sync", logger.FieldTitle, title)
		return OutcomeSkipped, nil
	}

	updated, err := targetItem.Set(TitleProperty, []omeka.LiteralValue{{
		Type:       omeka.KindLiteral,
		PropertyID: targetItem.PropertyID(TitleProperty, DefaultTitlePropertyID),
		Value:      title,
	}})
	if err != nil {
		return s.fail(log, err)
	}
	if _, err := s.target.ReplaceItem(ctx, id, updated.Stripped()); err != nil {
		return s.fail(log, err)
	}

	log.Infow("Title updated", logger.FieldTitle, title)
	return OutcomeUpdated, nil
}

func (s *Syncer) fail(log *zap.SugaredLogger, err error) (Outcome, error) {
	log.Errorw("Title sync failed", logger.FieldStatus, omeka.StatusCode(err), logger.FieldError, err.Error())
	return OutcomeError, err
}
