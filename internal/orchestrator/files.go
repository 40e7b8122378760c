package orchestrator

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/archive"
	"gitlab.com/tozd/mwarchive/internal/model"
)

const fileQueueWorkerFactor = 5

// phase7FetchFilesPass1 is phase 7: iterate filesToDownload with speed*5
// workers; failures spill to filesToRetry rather than failing the run.
func (o *Orchestrator) phase7FetchFilesPass1(ctx context.Context) errors.E {
	workers := o.downloader.Speed() * fileQueueWorkerFactor
	if workers < 1 {
		workers = 1
	}

	return errors.WithStack(o.filesToDownload.Iterate(ctx, workers, func(ctx context.Context, path string, task model.FileTask) error {
		if errE := o.fetchFile(ctx, task); errE != nil {
			o.cfg.Logger.Warn().Err(errE).Str("path", path).Msg("file fetch failed, queued for retry")
			o.filesToRetry.Set(path, task)
			return nil
		}
		o.status.FileSucceeded()
		return nil
	}))
}

// phase8RetryFiles is phase 8: filesToRetry is drained after
// pass 1 fully completes; failures here are
// terminal and only counted.
func (o *Orchestrator) phase8RetryFiles(ctx context.Context) errors.E {
	workers := o.downloader.Speed() * fileQueueWorkerFactor
	if workers < 1 {
		workers = 1
	}

	return errors.WithStack(o.filesToRetry.Iterate(ctx, workers, func(ctx context.Context, path string, task model.FileTask) error {
		if errE := o.fetchFile(ctx, task); errE != nil {
			o.status.FileFailed()
			o.cfg.Logger.Error().Err(errE).Str("path", path).Msg("file fetch failed permanently")
			return nil
		}
		o.status.FileSucceeded()
		return nil
	}))
}

func (o *Orchestrator) fetchFile(ctx context.Context, task model.FileTask) errors.E {
	body, _, errE := o.downloader.DownloadContent(ctx, task.SourceURL)
	if errE != nil {
		return errE
	}
	ns := archive.NamespaceImage
	if task.Namespace != "" {
		ns = archive.Namespace(task.Namespace)
	}
	return errors.WithStack(o.archive.AddEntry(archive.Entry{
		Namespace: ns,
		Path:      task.ArchivePath,
		Body:      body,
	}))
}
