package orchestrator

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/archive"
)

// phase9Finalize is phase 9: finalize the Archive Writer and clear every
// store, so a subsequent run in the same scratch directory starts empty.
func (o *Orchestrator) phase9Finalize(ctx context.Context) errors.E {
	if errE := o.archive.AddEntry(archive.Entry{
		Namespace: archive.NamespaceMetadata,
		Path:      "run.txt",
		Body:      []byte(o.runID),
	}); errE != nil {
		return errE
	}

	if errE := o.archive.Finalize(); errE != nil {
		return errE
	}

	if o.downloader.Scratch != nil {
		if errE := o.downloader.Scratch.Cleanup(); errE != nil {
			return errE
		}
	}

	o.articleDetails.Clear()
	o.filesToDownload.Clear()
	o.filesToRetry.Clear()
	o.redirects.Clear()

	if errE := o.dumpStores(); errE != nil {
		return errE
	}

	snapshot := o.status.Snapshot()
	o.cfg.Logger.Info().
		Int64("articles_success", snapshot.ArticlesSuccess).
		Int64("articles_fail", snapshot.ArticlesFail).
		Int64("files_success", snapshot.FilesSuccess).
		Int64("files_fail", snapshot.FilesFail).
		Msg("All dumping(s) finished with success")

	return nil
}
