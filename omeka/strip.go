package omeka

// ReadOnlyFields are server-managed keys that must not be sent back in a
// full-replace PUT. Omeka S rejects or misinterprets several of them, and
// o:media in particular would replace the item's media list.
var ReadOnlyFields = []string{
	"o:id",
	"o:created",
	"o:modified",
	"o:owner",
	"o:resource_class",
	"o:resource_template",
	"thumbnail_display_urls",
	"o:thumbnail_display_urls",
	"o:primary_media",
	"o:media",
	"o:site",
	"@reverse",
	"@context",
	"@id",
	"@type",
}

// StripReadOnly returns a copy of r without ReadOnlyFields. r is not modified.
func StripReadOnly(r Resource) Resource {
	out := r.Clone()
	for _, key := range ReadOnlyFields {
		delete(out, key)
	}
	return out
}
