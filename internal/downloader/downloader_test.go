package downloader

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestDownloader(speed int) *Downloader {
	return New("https://example.com/", "https://example.com/rest/", "https://example.com/ve/", speed, time.Second, nil, nil, zerolog.Nop())
}

func TestSpeedReturnsConfiguredValue(t *testing.T) {
	d := newTestDownloader(3)
	assert.Equal(t, 3, d.Speed())
	assert.Equal(t, int32(30), d.MaxActiveRequests())
}

func TestThrottleOnlyDecreases(t *testing.T) {
	d := newTestDownloader(2)
	before := d.MaxActiveRequests()

	d.throttle()
	after := d.MaxActiveRequests()
	assert.Less(t, after, before)

	// Repeated throttling settles at 9: from 9 on, ceil(0.9*n) == n, so the
	// ceiling stops decreasing there.
	for i := 0; i < 50; i++ {
		d.throttle()
	}
	assert.Equal(t, int32(9), d.MaxActiveRequests())
}

func TestImageExtensionMatcher(t *testing.T) {
	m := newImageExtensionMatcher()
	assert.True(t, m.Match("https://example.com/a/b/Cat.PNG"))
	assert.True(t, m.Match("https://example.com/a/b/Cat.jpg?width=300"))
	assert.False(t, m.Match("https://example.com/a/b/Cat.svg"))
	assert.False(t, m.Match("https://example.com/a/b/page.html"))
}
