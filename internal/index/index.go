// Package index is an optional sink that mirrors indexable archive entries
// into an Elasticsearch index as they are written, so a running archive can
// be searched before (or instead of) being opened from disk.
package index

import (
	"context"
	"fmt"
	"net/http"

	"github.com/olivere/elastic/v7"
	"github.com/rs/zerolog"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/archive"
)

const bulkProcessorWorkers = 2

// indexMapping is a minimal index configuration: the body as the one text
// field, and namespace, path and contentType as keywords so results can be
// filtered by entry type.
const indexMapping = `{
	"mappings": {
		"properties": {
			"namespace": {"type": "keyword"},
			"path": {"type": "keyword"},
			"contentType": {"type": "keyword"},
			"body": {"type": "text"}
		}
	}
}`

type loggerAdapter struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (a loggerAdapter) Printf(format string, v ...interface{}) {
	a.log.WithLevel(a.level).Msgf(format, v...)
}

var _ elastic.Logger = (*loggerAdapter)(nil)

// Document is the Elasticsearch representation of one indexable archive
// entry.
type Document struct {
	Namespace   string `json:"namespace"`
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// Sink mirrors indexable entries into one Elasticsearch index through a
// bulk processor, so indexing does not block the archive writer.
type Sink struct {
	client    *elastic.Client
	processor *elastic.BulkProcessor
	index     string
	logger    zerolog.Logger
}

// NewSink connects to url, ensures index exists, and starts a bulk
// processor. Call Close when the run is done to flush pending requests.
// Sniffing and healthchecks are disabled since a single freshly-started
// Elasticsearch container is not yet node-discoverable.
func NewSink(ctx context.Context, httpClient *http.Client, logger zerolog.Logger, url, index string) (*Sink, errors.E) {
	esClient, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetHttpClient(httpClient),
		elastic.SetErrorLog(loggerAdapter{logger, zerolog.ErrorLevel}),
		elastic.SetInfoLog(loggerAdapter{logger, zerolog.DebugLevel}),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	exists, err := esClient.IndexExists(index).Do(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		created, err := esClient.CreateIndex(index).BodyString(indexMapping).Do(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if !created.Acknowledged {
			return nil, errors.New("create index not acknowledged")
		}
	}

	processor, err := esClient.BulkProcessor().Workers(bulkProcessorWorkers).Stats(true).After(
		func(executionID int64, requests []elastic.BulkableRequest, response *elastic.BulkResponse, err error) {
			if err != nil {
				logger.Error().Err(err).Int64("execution", executionID).Msg("bulk index request failed")
				return
			}
			if response != nil && response.Errors {
				for _, failed := range response.Failed() {
					logger.Error().Int("status", failed.Status).Str("reason", failed.Error.Reason).Msg("document indexing failed")
				}
			}
		},
	).Do(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Sink{client: esClient, processor: processor, index: index, logger: logger}, nil
}

// Index enqueues entry for indexing if entry.Indexable is set; otherwise it
// is a no-op.
func (s *Sink) Index(entry archive.Entry) {
	if !entry.Indexable {
		return
	}
	id, doc := documentFor(entry)
	req := elastic.NewBulkIndexRequest().Index(s.index).Id(id).Doc(&doc)
	s.processor.Add(req)
}

// documentFor converts an archive entry into its Elasticsearch id and body.
func documentFor(entry archive.Entry) (string, Document) {
	id := fmt.Sprintf("%s/%s", entry.Namespace, entry.Path)
	doc := Document{
		Namespace:   string(entry.Namespace),
		Path:        entry.Path,
		ContentType: entry.ContentType,
		Body:        string(entry.Body),
	}
	return id, doc
}

// Close flushes pending bulk requests and releases the processor.
func (s *Sink) Close() errors.E {
	return errors.WithStack(s.processor.Close())
}

// Writer wraps an archive.Writer so every added entry is also mirrored into
// a Sink, without the archive package itself knowing indexing exists.
type Writer struct {
	archive.Writer

	Sink *Sink
}

// AddEntry writes entry through the wrapped Writer, then indexes it.
func (w Writer) AddEntry(entry archive.Entry) errors.E {
	if errE := w.Writer.AddEntry(entry); errE != nil {
		return errE
	}
	w.Sink.Index(entry)
	return nil
}

// Finalize finalizes the wrapped Writer, then flushes the Sink.
func (w Writer) Finalize() errors.E {
	if errE := w.Writer.Finalize(); errE != nil {
		return errE
	}
	return w.Sink.Close()
}
