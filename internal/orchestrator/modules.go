package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/archive"
)

// startupScriptLiteral is the exact substring the startup module's source
// contains that must be replaced.
const startupScriptLiteral = `script=document.createElement('script');`

// startupReplacement listens for the fireStartUp event that the patched
// mediawiki module fires, instead of letting startup re-invoke load.php
// (which is unavailable offline).
const startupReplacement = `document.body.addEventListener('fireStartUp',function(){});return;`

// mediawikiEventSuffix is appended to the mediawiki module's source so it
// dispatches the event startup now waits for.
const mediawikiEventSuffix = `
document.body.dispatchEvent(new Event('fireStartUp'));`

// phase5FetchModules is phase 5: each accumulated module name is fetched
// twice (scripts, styles) from load.php; the startup and mediawiki modules
// receive the one-time source hack applied by applyModuleSourceHack.
func (o *Orchestrator) phase5FetchModules(ctx context.Context) errors.E {
	modules := o.moduleDependencies.ToSlice()

	var cssBuilder strings.Builder

	for _, module := range modules {
		script, errE := o.fetchModule(ctx, module, "scripts")
		if errE != nil {
			o.cfg.Logger.Warn().Err(errE).Str("module", module).Msg("module script fetch failed")
		} else {
			script = applyModuleSourceHack(module, script)
			if errE := o.archive.AddEntry(archive.Entry{
				Namespace:   archive.NamespaceAsset,
				Path:        module + ".js",
				ContentType: "application/javascript",
				Body:        []byte(script),
			}); errE != nil {
				return errE
			}
		}

		style, errE := o.fetchModule(ctx, module, "styles")
		if errE != nil {
			o.cfg.Logger.Warn().Err(errE).Str("module", module).Msg("module style fetch failed")
			continue
		}
		cssBuilder.WriteString(style)
		cssBuilder.WriteByte('\n')
	}

	if cssBuilder.Len() == 0 {
		return nil
	}

	return errors.WithStack(o.archive.AddEntry(archive.Entry{
		Namespace:   archive.NamespaceAsset,
		Path:        "modules.css",
		ContentType: "text/css",
		Body:        []byte(cssBuilder.String()),
	}))
}

func (o *Orchestrator) fetchModule(ctx context.Context, module, only string) (string, errors.E) {
	query := url.Values{}
	query.Set("modules", module)
	query.Set("only", only)
	query.Set("skin", "vector")
	query.Set("lang", o.metadata.LanguageISO2)
	loadURL := fmt.Sprintf("%sload.php?%s", o.metadata.BaseURL, query.Encode())

	body, _, errE := o.downloader.DownloadContent(ctx, loadURL)
	if errE != nil {
		return "", errE
	}
	return string(body), nil
}

// applyModuleSourceHack applies the exactly-once startup/mediawiki source
// edits that let the archived startup module wait for a synthetic event
// instead of re-invoking load.php.
func applyModuleSourceHack(module, source string) string {
	switch module {
	case "startup":
		return strings.Replace(source, startupScriptLiteral, startupReplacement, 1)
	case "mediawiki":
		return source + mediawikiEventSuffix
	default:
		return source
	}
}
