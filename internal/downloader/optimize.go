package downloader

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Step is one stage of the image optimisation pipeline: it receives the
// current bytes and returns the optimised bytes.
type Step func(ctx context.Context, body []byte) ([]byte, error)

// Pipeline is the fixed, conservative image optimisation pipeline: lossy
// PNG quantisation, adv-PNG re-compression, JPEG optimisation, GIF
// optimisation. Each step shells out to an external binary; a missing
// binary degrades that step to a no-op rather than failing the download.
type Pipeline struct {
	PNG  []Step
	JPEG []Step
	GIF  []Step
}

// NewPipeline wires the default external-tool steps.
func NewPipeline() *Pipeline {
	return &Pipeline{
		PNG:  []Step{runTool("pngquant", "--force", "--skip-if-larger", "--output", "-", "-"), runTool("advpng", "-z", "-4")},
		JPEG: []Step{runTool("jpegoptim", "--stdout", "--max=85", "-")},
		GIF:  []Step{runTool("gifsicle", "--optimize=3")},
	}
}

// Run applies the steps appropriate for contentType, skipping any tool
// that is not installed on the host.
func (p *Pipeline) Run(ctx context.Context, contentType string, body []byte) ([]byte, errors.E) {
	var steps []Step
	switch {
	case strings.Contains(contentType, "png"):
		steps = p.PNG
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		steps = p.JPEG
	case strings.Contains(contentType, "gif"):
		steps = p.GIF
	default:
		return body, nil
	}

	current := body
	for _, step := range steps {
		next, err := step(ctx, current)
		if err != nil {
			// A missing or failing tool is not fatal: the unoptimised
			// bytes from the previous step are still valid image data.
			continue
		}
		current = next
	}
	return current, nil
}

// runTool shells the body through name with args, feeding it on stdin and
// reading the result from stdout. If name is not on PATH, it returns an
// error so Run falls back to the prior step's bytes.
func runTool(name string, args ...string) Step {
	return func(ctx context.Context, body []byte) ([]byte, error) {
		if _, err := exec.LookPath(name); err != nil {
			return nil, err
		}
		cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
		cmd.Stdin = bytes.NewReader(body)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return nil, err
		}
		if out.Len() == 0 {
			return nil, errors.New(name + ": empty output")
		}
		return out.Bytes(), nil
	}
}
