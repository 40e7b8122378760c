package orchestrator

import (
	"net/url"
	"strings"
)

// encodeArchiveHref percent-encodes each "/"-delimited segment of an
// article id for use as a browser-safe relative href inside the archive.
func encodeArchiveHref(articleID string) string {
	segments := strings.Split(articleID, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// decodeArchiveHref reverses encodeArchiveHref, recovering the original
// article id from an archive-relative href.
func decodeArchiveHref(encoded string) string {
	segments := strings.Split(encoded, "/")
	for i, segment := range segments {
		if decoded, err := url.PathUnescape(segment); err == nil {
			segments[i] = decoded
		}
	}
	return strings.Join(segments, "/")
}
