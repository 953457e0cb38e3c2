package omeka

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/teranos/omekalink/errors"
)

// JSON-LD keys read or written by this package
const (
	KeyID              = "o:id"
	KeyTitle           = "o:title"
	KeyItemSet         = "o:item_set"
	KeyMedia           = "o:media"
	KeyItem            = "o:item"
	KeyAtID            = "@id"
	KeyValue           = "@value"
	KeyType            = "type"
	KeyPropertyID      = "property_id"
	KeyValueResourceID = "value_resource_id"
	KeyIngester        = "o:ingester"
	KeyOriginalURL     = "o:original_url"
	KeySource          = "o:source"
	KeyIngestURL       = "ingest_url"
)

// Value types
const (
	KindResourceItem = "resource:item"
	KindLiteral      = "literal"
)

// Resource is an Omeka S JSON-LD document keyed by term.
// Values are kept raw so unknown keys survive a read-modify-write cycle.
type Resource map[string]json.RawMessage

// Reference points at another resource, as found in o:item_set and o:media
type Reference struct {
	AtID string `json:"@id,omitempty"`
	ID   int64  `json:"o:id"`
}

// ID returns o:id, or 0 when absent or not a number
func (r Resource) ID() int64 {
	raw, ok := r[KeyID]
	if !ok {
		return 0
	}
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.Number {
		return 0
	}
	return res.Int()
}

// Title returns o:title, or "" when absent
func (r Resource) Title() string {
	return r.Text(KeyTitle)
}

// Text returns a top-level string value such as o:ingester, or "" when
// absent or not a string
func (r Resource) Text(key string) string {
	raw, ok := r[key]
	if !ok {
		return ""
	}
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.String {
		return ""
	}
	return res.String()
}

// Field returns the raw value of a property and whether it is present
func (r Resource) Field(name string) (json.RawMessage, bool) {
	raw, ok := r[name]
	return raw, ok
}

// Values returns the entries of a property value list.
// A missing or non-array value yields nil.
func (r Resource) Values(name string) []gjson.Result {
	raw, ok := r[name]
	if !ok {
		return nil
	}
	res := gjson.ParseBytes(raw)
	if !res.IsArray() {
		return nil
	}
	return res.Array()
}

// FirstValue returns @value of the first entry of a property, or ""
func (r Resource) FirstValue(name string) string {
	values := r.Values(name)
	if len(values) == 0 {
		return ""
	}
	return values[0].Get(gjson.Escape(KeyValue)).String()
}

// References returns the o:id of each entry in a reference list such as
// o:item_set or o:media. Entries without a usable id fall back to the
// trailing segment of @id, and are otherwise ignored.
func (r Resource) References(name string) []int64 {
	var ids []int64
	for _, entry := range r.Values(name) {
		if id := referenceID(entry); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func referenceID(entry gjson.Result) int64 {
	if oid := entry.Get(gjson.Escape(KeyID)); oid.Type == gjson.Number {
		return oid.Int()
	}
	atID := entry.Get(gjson.Escape(KeyAtID)).String()
	if atID == "" {
		return 0
	}
	id, err := strconv.ParseInt(atID[strings.LastIndex(atID, "/")+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// ItemSetIDs returns the ids of the item sets the item belongs to
func (r Resource) ItemSetIDs() []int64 {
	return r.References(KeyItemSet)
}

// InItemSet reports whether the item already belongs to itemSetID
func (r Resource) InItemSet(itemSetID int64) bool {
	for _, id := range r.ItemSetIDs() {
		if id == itemSetID {
			return true
		}
	}
	return false
}

// MediaIDs returns the ids of the item's media
func (r Resource) MediaIDs() []int64 {
	return r.References(KeyMedia)
}

// Clone returns a shallow copy; raw values are shared and never mutated
func (r Resource) Clone() Resource {
	out := make(Resource, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Set returns a copy of r with key set to the JSON encoding of value
func (r Resource) Set(key string, value interface{}) (Resource, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", key)
	}
	out := r.Clone()
	out[key] = raw
	return out, nil
}

// WithItemSet returns a copy of r with ref appended to o:item_set.
// Existing entries are kept byte-for-byte and in order. A missing or
// non-array o:item_set is replaced by a list holding only ref.
func (r Resource) WithItemSet(ref Reference) (Resource, error) {
	encoded, err := json.Marshal(ref)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode item set reference")
	}

	var entries []json.RawMessage
	if raw, ok := r[KeyItemSet]; ok && gjson.ParseBytes(raw).IsArray() {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, errors.Wrap(err, "failed to decode o:item_set")
		}
	}
	entries = append(entries, encoded)

	return r.Set(KeyItemSet, entries)
}

// Stripped returns the write payload for a full-replace PUT
func (r Resource) Stripped() Resource {
	return StripReadOnly(r)
}

// LiteralValue is a literal property value in a write payload
type LiteralValue struct {
	Type       string `json:"type"`
	PropertyID int64  `json:"property_id"`
	Value      string `json:"@value"`
}

// PropertyID returns property_id of the first entry of a property, or def
func (r Resource) PropertyID(name string, def int64) int64 {
	values := r.Values(name)
	if len(values) == 0 {
		return def
	}
	pid := values[0].Get(KeyPropertyID)
	if pid.Type != gjson.Number || pid.Int() <= 0 {
		return def
	}
	return pid.Int()
}
