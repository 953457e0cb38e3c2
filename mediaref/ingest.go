package mediaref

import (
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/omeka"
)

// Ingesters understood by Omeka S core
const (
	IngesterURL    = "url"
	IngesterUpload = "upload"
)

// ErrNoSource marks a media without a URL it could be re-ingested from
var ErrNoSource = errors.New("media has no ingest source")

// copiedProperties are carried from the original media to the new one
var copiedProperties = []string{"dcterms:title", "dcterms:description", "dcterms:creator"}

// IngestPayload builds the POST /api/media body that recreates media on itemID.
//
//	url      ingest_url = o:original_url, else o:source
//	upload   re-ingested with the url ingester from o:original_url
//	other    ingester kept, ingest_url = o:source
func IngestPayload(media omeka.Resource, itemID int64) (omeka.Resource, error) {
	ingester := media.Text(omeka.KeyIngester)
	if ingester == "" {
		ingester = IngesterURL
	}

	var source string
	switch ingester {
	case IngesterURL:
		source = media.Text(omeka.KeyOriginalURL)
		if source == "" {
			source = media.Text(omeka.KeySource)
		}
	case IngesterUpload:
		ingester = IngesterURL
		source = media.Text(omeka.KeyOriginalURL)
	default:
		source = media.Text(omeka.KeySource)
	}
	if source == "" {
		return nil, errors.Wrapf(ErrNoSource, "media %d (ingester %s)", media.ID(), ingester)
	}

	payload := omeka.Resource{}
	for _, prop := range copiedProperties {
		if raw, ok := media.Field(prop); ok {
			payload[prop] = raw
		}
	}

	fields := []struct {
		key   string
		value interface{}
	}{
		{omeka.KeyIngester, ingester},
		{omeka.KeyIngestURL, source},
		{omeka.KeyItem, omeka.Reference{ID: itemID}},
	}
	for _, f := range fields {
		var err error
		if payload, err = payload.Set(f.key, f.value); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
