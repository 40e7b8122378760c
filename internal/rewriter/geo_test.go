package rewriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGeoURLDecimalDegrees(t *testing.T) {
	lat, lon, ok := parseGeoURL("//geohack.toolforge.org/geohack.php?pagename=London&params=51.5033;-0.1196")
	assert.True(t, ok)
	assert.InDelta(t, 51.5033, lat, 0.0001)
	assert.InDelta(t, -0.1196, lon, 0.0001)
}

func TestParseGeoURLDegreeMinuteSecond(t *testing.T) {
	lat, lon, ok := parseGeoURL("//geohack.toolforge.org/geohack.php?params=51_30_12_N_0_7_39_W")
	assert.True(t, ok)
	assert.InDelta(t, 51.50333, lat, 0.001)
	assert.InDelta(t, -0.1275, lon, 0.001)
}

func TestParseGeoURLOuestMarker(t *testing.T) {
	_, lon, ok := parseGeoURL("//geohack.toolforge.org/geohack.php?params=45_0_0_N_1_0_0_O")
	assert.True(t, ok)
	assert.Less(t, lon, 0.0)
}

func TestParseGeoURLLatLonQueryParams(t *testing.T) {
	lat, lon, ok := parseGeoURL("https://example.org/map?lat=10.5&lon=20.25")
	assert.True(t, ok)
	assert.InDelta(t, 10.5, lat, 0.0001)
	assert.InDelta(t, 20.25, lon, 0.0001)
}

func TestParseGeoURLUnrecognized(t *testing.T) {
	_, _, ok := parseGeoURL("https://example.org/not-a-geo-link")
	assert.False(t, ok)
}

func TestFormatGeoURI(t *testing.T) {
	assert.Equal(t, "geo:51.5,-0.12", formatGeoURI(51.5, -0.12))
}
