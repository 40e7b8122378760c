package main

import (
	"github.com/alecthomas/kong"
)

// Config provides configuration.
// It is used as configuration for Kong command-line parser as well.
type Config struct {
	Version kong.VersionFlag `short:"V" help:"Show program's version and exit."`

	Verbose bool `short:"v" help:"Log everything, including debug messages."`

	APIURL  string `placeholder:"URL" required:"" help:"Base URL of the wiki's action API, e.g. https://en.wikipedia.org/w/api.php."`
	RESTURL string `placeholder:"URL" help:"Base URL of the wiki's REST API, if available."`
	VEURL   string `placeholder:"URL" help:"Base URL of the wiki's VisualEditor API, if available."`

	Output string `short:"o" placeholder:"DIR" required:"" type:"path" help:"Directory to write the archive to."`

	ArticleList string `placeholder:"PATH" type:"path" help:"File with one article title per line. If not given, all content-namespace pages are enumerated."`

	Speed int `default:"2" help:"Relative concurrency factor used to size every worker pool."`

	RequestTimeout int `default:"30" help:"Per-request timeout, in seconds."`

	ScratchDir        string `placeholder:"DIR" type:"path" default:".mwarchive-scratch" help:"Directory used for the on-disk scratch cache and crash-recovery snapshots."`
	SkipCacheCleaning bool   `help:"Do not remove scratch cache entries not used by this run when the run finishes."`

	BlobCacheURL string `placeholder:"URL" help:"Base URL of an optional shared blob cache used to avoid re-downloading unchanged resources across runs."`

	Format string `default:"" placeholder:"FLAGS" help:"Comma or plus separated format flags: nozim, nopictures, novideo, nodetails."`

	AllowLocalFallback bool     `help:"Allow starting local Parsoid/MCS instances (--local-parsoid-cmd, --local-mcs-cmd) when neither REST nor VisualEditor is reachable."`
	LocalParsoidCmd    []string `placeholder:"CMD" help:"Command (and arguments) used to start a local Parsoid instance when falling back. Required for --allow-local-fallback to do more than error out."`
	LocalMCSCmd        []string `placeholder:"CMD" help:"Command (and arguments) used to start a local MCS (mobileapps) instance when falling back."`
	LocalParsoidAddr   string   `default:"http://127.0.0.1:8000" help:"Address the local Parsoid instance listens on."`
	LocalMCSAddr       string   `default:"http://127.0.0.1:8001" help:"Address the local MCS instance listens on."`

	Creator string `default:"mwarchive" help:"Creator name recorded in generated page footers."`

	IndexURL  string `placeholder:"URL" help:"Base URL of an Elasticsearch instance to mirror indexable archive entries into as the run progresses."`
	IndexName string `default:"mwarchive" help:"Elasticsearch index name used with --index-url."`
}
