package omeka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResource(t *testing.T, doc string) Resource {
	t.Helper()
	var r Resource
	require.NoError(t, json.Unmarshal([]byte(doc), &r))
	return r
}

func TestResourceAccessors(t *testing.T) {
	r := mustResource(t, `{
		"o:id": 77,
		"o:title": "Portrait",
		"o:item_set": [
			{"@id": "https://x.org/api/item_sets/5", "o:id": 5},
			{"@id": "https://x.org/api/item_sets/9"},
			{"junk": true},
			"not-an-object"
		],
		"o:media": [{"o:id": 301}, {"o:id": 302}],
		"dcterms:title": [{"type": "literal", "property_id": 1, "@value": "Portrait of X"}]
	}`)

	assert.Equal(t, int64(77), r.ID())
	assert.Equal(t, "Portrait", r.Title())
	assert.Equal(t, []int64{5, 9}, r.ItemSetIDs())
	assert.True(t, r.InItemSet(5))
	assert.True(t, r.InItemSet(9))
	assert.False(t, r.InItemSet(12))
	assert.Equal(t, []int64{301, 302}, r.MediaIDs())
	assert.Equal(t, "Portrait of X", r.FirstValue("dcterms:title"))
	assert.Equal(t, int64(1), r.PropertyID("dcterms:title", 99))
	assert.Equal(t, int64(99), r.PropertyID("dcterms:description", 99))
}

func TestResourcePermissiveReads(t *testing.T) {
	r := mustResource(t, `{"o:id": "77", "o:title": 5, "o:item_set": {"o:id": 5}, "rcl:artist": "x"}`)

	assert.Zero(t, r.ID())
	assert.Empty(t, r.Title())
	assert.Empty(t, r.ItemSetIDs())
	assert.Nil(t, r.Values("rcl:artist"))
	assert.Nil(t, r.Values("rcl:missing"))
	assert.Empty(t, r.FirstValue("dcterms:title"))

	raw, ok := r.Field("rcl:artist")
	assert.True(t, ok)
	assert.JSONEq(t, `"x"`, string(raw))
}

func TestWithItemSetPreservesExistingEntries(t *testing.T) {
	r := mustResource(t, `{
		"o:id": 77,
		"o:item_set": [{"@id":"https://x.org/api/item_sets/5","o:id":5,"o:title":"kept"}],
		"ex:unknown": {"nested": [1, 2, 3]}
	}`)

	updated, err := r.WithItemSet(Reference{AtID: "https://x.org/api/item_sets/12", ID: 12})
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 12}, updated.ItemSetIDs())
	assert.JSONEq(t, `[
		{"@id":"https://x.org/api/item_sets/5","o:id":5,"o:title":"kept"},
		{"@id":"https://x.org/api/item_sets/12","o:id":12}
	]`, string(updated[KeyItemSet]))
	assert.JSONEq(t, `{"nested": [1, 2, 3]}`, string(updated["ex:unknown"]))

	// Original untouched
	assert.Equal(t, []int64{5}, r.ItemSetIDs())
}

func TestWithItemSetOnMissingOrMalformedList(t *testing.T) {
	for name, doc := range map[string]string{
		"missing":   `{"o:id": 1}`,
		"not array": `{"o:id": 1, "o:item_set": {"o:id": 3}}`,
		"null":      `{"o:id": 1, "o:item_set": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			updated, err := mustResource(t, doc).WithItemSet(Reference{ID: 12})
			require.NoError(t, err)
			assert.Equal(t, []int64{12}, updated.ItemSetIDs())
		})
	}
}

func TestStripReadOnly(t *testing.T) {
	doc := map[string]interface{}{
		"dcterms:title": []interface{}{map[string]interface{}{"@value": "kept"}},
		"o:item_set":    []interface{}{},
		"o:is_public":   true,
	}
	for _, key := range ReadOnlyFields {
		doc[key] = "server-managed"
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	r := mustResource(t, string(raw))

	stripped := r.Stripped()

	for _, key := range ReadOnlyFields {
		assert.NotContains(t, stripped, key)
		assert.Contains(t, r, key, "source resource must not be modified")
	}
	assert.Contains(t, stripped, "dcterms:title")
	assert.Contains(t, stripped, "o:item_set")
	assert.Contains(t, stripped, "o:is_public")
}

func TestReadOnlyFieldsAreExhaustive(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"o:id", "o:created", "o:modified", "o:owner", "o:resource_class",
		"o:resource_template", "thumbnail_display_urls", "o:thumbnail_display_urls",
		"o:primary_media", "o:media", "o:site", "@reverse", "@context", "@id", "@type",
	}, ReadOnlyFields)
}

func TestSet(t *testing.T) {
	r := mustResource(t, `{"o:id": 1}`)
	out, err := r.Set("dcterms:title", []LiteralValue{{Type: KindLiteral, PropertyID: 1, Value: "New"}})
	require.NoError(t, err)

	assert.Equal(t, "New", out.FirstValue("dcterms:title"))
	assert.NotContains(t, r, "dcterms:title")
}
