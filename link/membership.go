package link

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/omeka"
)

// Outcome of one EnsureMember call
type Outcome int

const (
	OutcomeError Outcome = iota
	OutcomeAdded
	OutcomeAlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeAlreadyPresent:
		return "already_present"
	default:
		return "error"
	}
}

// ItemStore reads and replaces items on one Omeka S instance
type ItemStore interface {
	GetItem(ctx context.Context, id int64) (omeka.Resource, error)
	ReplaceItem(ctx context.Context, id int64, item omeka.Resource) (omeka.Resource, error)
	ItemSetRef(id int64) omeka.Reference
}

// MembershipWriter adds items to item sets with a read-modify-write
type MembershipWriter struct {
	store   ItemStore
	logger  *zap.SugaredLogger
	metrics *Metrics
}

// NewMembershipWriter creates a writer. log and metrics may be nil.
func NewMembershipWriter(store ItemStore, log *zap.SugaredLogger, metrics *Metrics) *MembershipWriter {
	return &MembershipWriter{store: store, logger: logger.OrNop(log), metrics: metrics}
}

// EnsureMember makes itemID a member of itemSetID.
//
// The item is always fetched fresh. If it already lists the item set nothing
// is written; otherwise the reference is appended and the stripped item is
// sent back with one PUT. Failures are returned with OutcomeError and are
// never retried.
func (w *MembershipWriter) EnsureMember(ctx context.Context, itemID, itemSetID int64) (Outcome, error) {
	start := time.Now()
	outcome, err := w.ensureMember(ctx, itemID, itemSetID)
	w.metrics.observeWrite(outcome, time.Since(start))

	log := logger.FromContext(ctx, w.logger)
	if err != nil {
		log.Errorw("Failed to add item to item set",
			logger.FieldItemID, itemID,
			logger.FieldItemSetID, itemSetID,
			logger.FieldStatus, omeka.StatusCode(err),
			logger.FieldError, err.Error(),
		)
		return outcome, err
	}

	log.Infow("Item set membership ensured",
		logger.FieldItemID, itemID,
		logger.FieldItemSetID, itemSetID,
		logger.FieldOutcome, outcome.String(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return outcome, nil
}

func (w *MembershipWriter) ensureMember(ctx context.Context, itemID, itemSetID int64) (Outcome, error) {
	item, err := w.store.GetItem(ctx, itemID)
	if err != nil {
		return OutcomeError, err
	}

	if item.InItemSet(itemSetID) {
		return OutcomeAlreadyPresent, nil
	}

	updated, err := item.WithItemSet(w.store.ItemSetRef(itemSetID))
	if err != nil {
		return OutcomeError, errors.Wrapf(err, "failed to add item set %d to item %d", itemSetID, itemID)
	}

	if _, err := w.store.ReplaceItem(ctx, itemID, updated.Stripped()); err != nil {
		return OutcomeError, err
	}
	return OutcomeAdded, nil
}
