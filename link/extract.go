package link

import (
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/omeka"
)

// EntryStatus classifies one relationship value
type EntryStatus int

const (
	EntrySkipped EntryStatus = iota
	EntryAccepted
)

func (s EntryStatus) String() string {
	if s == EntryAccepted {
		return "accepted"
	}
	return "skipped"
}

// Skip reasons
const (
	ReasonNotObject     = "entry is not an object"
	ReasonWrongKind     = "entry type is not resource:item"
	ReasonMissingTarget = "entry has no value_resource_id"
	ReasonInvalidTarget = "value_resource_id is not a positive integer"
)

// EntryResult is the outcome of classifying one relationship value
type EntryResult struct {
	Status   EntryStatus
	TargetID int64  // set when Accepted
	Reason   string // set when Skipped
}

// ClassifyEntry accepts an entry only when its type is resource:item and
// it carries a positive integer value_resource_id
func ClassifyEntry(entry gjson.Result) EntryResult {
	if !entry.IsObject() {
		return EntryResult{Status: EntrySkipped, Reason: ReasonNotObject}
	}
	if kind := entry.Get(omeka.KeyType); kind.Type != gjson.String || kind.Str != omeka.KindResourceItem {
		return EntryResult{Status: EntrySkipped, Reason: ReasonWrongKind}
	}

	target := entry.Get(omeka.KeyValueResourceID)
	if !target.Exists() || target.Type == gjson.Null {
		return EntryResult{Status: EntrySkipped, Reason: ReasonMissingTarget}
	}
	if target.Type != gjson.Number || target.Num != float64(target.Int()) || target.Int() <= 0 {
		return EntryResult{Status: EntrySkipped, Reason: ReasonInvalidTarget}
	}
	return EntryResult{Status: EntryAccepted, TargetID: target.Int()}
}

// Extractor pulls referenced item ids out of a page
type Extractor struct {
	logger *zap.SugaredLogger
}

// NewExtractor creates an extractor. A nil logger discards output.
func NewExtractor(log *zap.SugaredLogger) *Extractor {
	return &Extractor{logger: logger.OrNop(log)}
}

// Extract scans each resource's fields and returns, per field, the ids that
// were not yet in seen, in order of first appearance. Every returned id has
// already been added to seen. Fields with nothing new are omitted.
// Resources are only read.
func (e *Extractor) Extract(resources []omeka.Resource, fields []string, seen SeenSets) map[string][]int64 {
	found := make(map[string][]int64)

	for _, resource := range resources {
		for _, field := range fields {
			raw, ok := resource.Field(field)
			if !ok {
				continue
			}

			value := gjson.ParseBytes(raw)
			if !value.IsArray() {
				if value.Type != gjson.Null {
					e.logger.Warnw("Relationship property is not a list, treating as empty",
						logger.FieldItemID, resource.ID(),
						logger.FieldProperty, field,
					)
				}
				continue
			}

			value.ForEach(func(_, entry gjson.Result) bool {
				result := ClassifyEntry(entry)
				if result.Status != EntryAccepted {
					e.logger.Debugw("Skipped relationship entry",
						logger.FieldItemID, resource.ID(),
						logger.FieldProperty, field,
						logger.FieldReason, result.Reason,
					)
					return true
				}
				if seen.Add(field, result.TargetID) {
					found[field] = append(found[field], result.TargetID)
				}
				return true
			})
		}
	}

	return found
}
