package downloader

import (
	"context"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"gitlab.com/tozd/go/errors"
)

// imageExtensionMatcher identifies URLs that name a bitmap image, the
// trigger for Blob Cache consultation and the optimisation pipeline.
type imageExtensionMatcher struct {
	re *regexp.Regexp
}

func newImageExtensionMatcher() *imageExtensionMatcher {
	return &imageExtensionMatcher{re: regexp.MustCompile(`(?i)\.(png|jpe?g|gif)$`)}
}

func (m *imageExtensionMatcher) Match(url string) bool {
	clean := url
	if i := strings.IndexByte(clean, '?'); i >= 0 {
		clean = clean[:i]
	}
	return m.re.MatchString(path.Ext(clean))
}

// DownloadContent fetches url as a byte stream, returning the body and the
// upstream response headers. It threads the fetch through the scratch
// cache, the Blob Cache and the image optimisation pipeline.
func (d *Downloader) DownloadContent(ctx context.Context, rawURL string) ([]byte, http.Header, errors.E) {
	url := DeserializeURL(d.urls, rawURL)
	isImage := d.imageExtensionRE.Match(url)

	if d.Scratch != nil {
		if body, rawHeaders, ok, errE := d.Scratch.Get(url); errE != nil {
			d.Logger.Warn().Str("url", url).Err(errE).Msg("scratch cache get failed")
		} else if ok {
			headers := http.Header(rawHeaders)
			if isImage {
				if optimized, errE := d.Optimizer.Run(ctx, headers.Get("Content-Type"), body); errE == nil {
					body = optimized
				}
			}
			return body, headers, nil
		}
	}

	var cachedEtag string
	if isImage && d.Blob != nil {
		obj, errE := d.Blob.Get(ctx, url)
		if errE != nil {
			d.Logger.Warn().Str("url", url).Err(errE).Msg("blob cache get failed")
		} else if obj != nil {
			cachedEtag = obj.ETag
		}
		if obj != nil && cachedEtag != "" {
			body, headers, errE := d.conditionalGet(ctx, url, cachedEtag, obj.Body)
			if errE != nil {
				return nil, nil, errE
			}
			if body != nil {
				return body, headers, nil
			}
		}
	}

	var body []byte
	var headers http.Header
	errE := d.withSlot(ctx, func() errors.E {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		resp, err := d.Client.Do(req)
		if err != nil {
			errE := errors.WithStack(err)
			errors.Details(errE)["url"] = url
			return errE
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode == http.StatusNotFound {
			errE := errors.WithMessage(ErrSkipped, "not found")
			errors.Details(errE)["url"] = url
			return errE
		}
		if resp.StatusCode != http.StatusOK {
			errE := errors.New("bad response status")
			errors.Details(errE)["url"] = url
			errors.Details(errE)["code"] = resp.StatusCode
			return errE
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.WithStack(err)
		}
		body = b
		headers = resp.Header
		return nil
	})
	if errE != nil {
		return nil, nil, errE
	}

	if d.Scratch != nil {
		if errE := d.Scratch.Put(url, body, headers); errE != nil {
			d.Logger.Warn().Str("url", url).Err(errE).Msg("scratch cache put failed")
		}
	}

	if isImage && d.Blob != nil {
		etag := headers.Get("ETag")
		if etag != "" {
			go func() {
				if errE := d.Blob.Put(context.WithoutCancel(ctx), url, body, etag); errE != nil {
					d.Logger.Warn().Str("url", url).Err(errE).Msg("blob cache put failed")
				}
			}()
		}
	}

	if isImage {
		optimized, errE := d.Optimizer.Run(ctx, headers.Get("Content-Type"), body)
		if errE != nil {
			d.Logger.Warn().Str("url", url).Err(errE).Msg("image optimisation failed, using original bytes")
		} else {
			body = optimized
		}
	}

	return body, headers, nil
}

// conditionalGet performs the upstream GET with If-None-Match set to
// etag, accepting 200 and 304. On 304 it returns cachedBody. On 200 it
// stores the new body in the Blob Cache (when the response carries an
// ETag) and returns the optimised body. A nil body with no error, which
// makes the caller fall through to a plain GET, is returned only when a
// 200 yielded no body.
func (d *Downloader) conditionalGet(ctx context.Context, url, etag string, cachedBody []byte) ([]byte, http.Header, errors.E) {
	var body []byte
	var headers http.Header
	var notModified bool

	errE := d.withSlot(ctx, func() errors.E {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		req.Header.Set("If-None-Match", etag)

		resp, err := d.Client.Do(req)
		if err != nil {
			errE := errors.WithStack(err)
			errors.Details(errE)["url"] = url
			return errE
		}
		defer resp.Body.Close() //nolint:errcheck

		switch resp.StatusCode {
		case http.StatusNotModified:
			notModified = true
			headers = resp.Header
			return nil
		case http.StatusOK:
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.WithStack(err)
			}
			body = b
			headers = resp.Header
			return nil
		default:
			errE := errors.New("bad response status")
			errors.Details(errE)["url"] = url
			errors.Details(errE)["code"] = resp.StatusCode
			return errE
		}
	})
	if errE != nil {
		return nil, nil, errE
	}

	if notModified {
		return cachedBody, headers, nil
	}

	if body != nil {
		etag := headers.Get("ETag")
		if etag != "" {
			go func() {
				if errE := d.Blob.Put(context.WithoutCancel(ctx), url, body, etag); errE != nil {
					d.Logger.Warn().Str("url", url).Err(errE).Msg("blob cache put failed")
				}
			}()
		}
		optimized, errE := d.Optimizer.Run(ctx, headers.Get("Content-Type"), body)
		if errE == nil {
			body = optimized
		}
		return body, headers, nil
	}

	// A 2xx with no body read (should not happen) falls through to a
	// fresh, non-conditional GET by the caller.
	return nil, nil, nil
}
