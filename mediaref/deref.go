package mediaref

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/omekalink/am"
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/link"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/omeka"
)

// Remote is the Omeka S surface the pipeline needs
type Remote interface {
	link.ItemLister
	GetItem(ctx context.Context, id int64) (omeka.Resource, error)
	GetMedia(ctx context.Context, id int64) (omeka.Resource, error)
	CreateMedia(ctx context.Context, media omeka.Resource) (omeka.Resource, error)
}

var _ Remote = (*omeka.Client)(nil)

// Outcome of dereferencing one item
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSucceeded
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Report summarises one run
type Report struct {
	Processed   int  `json:"processed"`
	Succeeded   int  `json:"succeeded"`
	Failed      int  `json:"failed"`
	Skipped     int  `json:"skipped"`
	Created     int  `json:"media_created"`
	Pages       int  `json:"pages"`
	Interrupted bool `json:"interrupted,omitempty"`
}

func (r *Report) record(outcome Outcome) {
	r.Processed++
	switch outcome {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Options configures a Dereferencer
type Options struct {
	ImageProperty string // defaults to rcl:image
	PerPage       int
	Logger        *zap.SugaredLogger
}

// Dereferencer runs the pipeline one item at a time
type Dereferencer struct {
	remote        Remote
	imageProperty string
	perPage       int
	logger        *zap.SugaredLogger
}

// New creates a Dereferencer over remote
func New(remote Remote, opts Options) *Dereferencer {
	d := &Dereferencer{
		remote:        remote,
		imageProperty: opts.ImageProperty,
		perPage:       opts.PerPage,
		logger:        logger.OrNop(opts.Logger),
	}
	if d.imageProperty == "" {
		d.imageProperty = am.DefaultImageProperty
	}
	if d.perPage < 1 {
		d.perPage = am.DefaultPerPage
	}
	return d
}

// Run dereferences every item of sourceItemSet, or of the whole repository
// when it is nil. Per-item failures are counted; a failed page request or a
// cancelled ctx stops the run and returns the partial report.
func (d *Dereferencer) Run(ctx context.Context, sourceItemSet *int64) (*Report, error) {
	pager := link.NewItemPager(d.remote, d.perPage, sourceItemSet)
	report := &Report{}

	for {
		page, ok, err := pager.Next(ctx)
		if err != nil {
			report.Interrupted = true
			if ctx.Err() != nil {
				return report, errors.Wrap(ctx.Err(), "media dereference cancelled")
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
				return report, errors.Wrap(ctx.Err(), "media dereference cancelled")
			}
			outcome, created, _ := d.Dereference(ctx, item)
			report.record(outcome)
			report.Created += created
		}
	}

	d.logger.Infow("Media dereference complete",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

// Dereference recreates the media of the image item referenced by item on
// item itself. It returns the number of media created. The outcome is
// failed when the image item cannot be read, has no usable media, or any
// create request fails; the remaining media are still attempted.
func (d *Dereferencer) Dereference(ctx context.Context, item omeka.Resource) (Outcome, int, error) {
	itemID := item.ID()
	log := d.logger.With(logger.FieldItemID, itemID)

	entries := item.Values(d.imageProperty)
	if len(entries) == 0 {
		log.Debugw("No image reference, skipping", logger.FieldProperty, d.imageProperty)
		return OutcomeSkipped, 0, nil
	}

	imageID := entries[0].Get(omeka.KeyValueResourceID).Int()
	if imageID <= 0 {
		return d.fail(log, errors.Newf("%s of item %d has no value_resource_id", d.imageProperty, itemID))
	}

	image, err := d.remote.GetItem(ctx, imageID)
	if err != nil {
		return d.fail(log, err)
	}
	mediaIDs := image.MediaIDs()
	if len(mediaIDs) == 0 {
		return d.fail(log, errors.Newf("referenced item %d has no media", imageID))
	}

	var payloads []omeka.Resource
	for _, mediaID := range mediaIDs {
		media, err := d.remote.GetMedia(ctx, mediaID)
		if err != nil {
			log.Warnw("Could not fetch media", logger.FieldMediaID, mediaID, logger.FieldError, err.Error())
			continue
		}
		payload, err := IngestPayload(media, itemID)
		if err != nil {
			log.Warnw("Media cannot be re-ingested", logger.FieldMediaID, mediaID, logger.FieldError, err.Error())
			continue
		}
		payloads = append(payloads, payload)
	}
	if len(payloads) == 0 {
		return d.fail(log, errors.Newf("no usable media on referenced item %d", imageID))
	}

	created := 0
	var failures error
	for _, payload := range payloads {
		media, err := d.remote.CreateMedia(ctx, payload)
		if err != nil {
			failures = errors.CombineErrors(failures, err)
			continue
		}
		created++
		log.Infow("Media created", logger.FieldMediaID, media.ID())
	}
	if failures != nil {
		log.Errorw("Media dereference failed", "created", created, logger.FieldError, failures.Error())
		return OutcomeFailed, created, failures
	}
	return OutcomeSucceeded, created, nil
}

func (d *Dereferencer) fail(log *zap.SugaredLogger, err error) (Outcome, int, error) {
	log.Errorw("Media dereference failed", logger.FieldError, err.Error())
	return OutcomeFailed, 0, err
}
