package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/tozd/mwarchive/internal/archive"
)

func TestDocumentForBuildsIDAndBody(t *testing.T) {
	entry := archive.Entry{
		Namespace:   archive.NamespaceArticle,
		Path:        "Dog",
		ContentType: "text/html",
		Body:        []byte("<html></html>"),
		Indexable:   true,
	}

	id, doc := documentFor(entry)

	assert.Equal(t, "A/Dog", id)
	assert.Equal(t, Document{
		Namespace:   "A",
		Path:        "Dog",
		ContentType: "text/html",
		Body:        "<html></html>",
	}, doc)
}
