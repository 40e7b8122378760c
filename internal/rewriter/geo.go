package rewriter

import (
	"net/url"
	"strconv"
	"strings"
)

// dmsFactors are the degree/minute/second divisors applied to a geohack DMS
// token sequence.
var dmsFactors = [3]float64{1, 60, 3600}

// parseGeoURL recognises three geo-hack URL shapes and returns the decoded
// (lat, lon) pair.
func parseGeoURL(rawURL string) (lat, lon float64, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, 0, false
	}
	query := u.Query()

	if params := query.Get("params"); params != "" {
		return parseGeoHackParams(params)
	}

	if latS, lonS := query.Get("lat"), query.Get("lon"); latS != "" && lonS != "" {
		return parseDecimalPair(latS, lonS)
	}

	if center := query.Get("center"); center != "" {
		parts := strings.SplitN(center, ",", 2)
		if len(parts) == 2 {
			return parseDecimalPair(parts[0], parts[1])
		}
	}

	return 0, 0, false
}

// parseGeoHackParams decodes the geohack.php?params= token string, which is
// either semicolon-separated decimal degrees ("51.5033;-0.1196") or two
// runs of degree-minute-second tokens each terminated by an N/S/E/W/O
// direction marker ("51_30_12_N_0_7_39_W").
func parseGeoHackParams(params string) (lat, lon float64, ok bool) {
	if semi := strings.Index(params, ";"); semi >= 0 {
		latStr := params[:semi]
		lonStr := params[semi+1:]
		if underscore := strings.IndexByte(lonStr, '_'); underscore >= 0 {
			lonStr = lonStr[:underscore]
		}
		return parseDecimalPair(latStr, lonStr)
	}

	tokens := strings.Split(params, "_")
	i := 0

	readComponent := func() (float64, string, bool) {
		var nums []float64
		for i < len(tokens) {
			t := tokens[i]
			if dir, isDir := directionMarker(t); isDir {
				i++
				var value float64
				for j, n := range nums {
					if j >= len(dmsFactors) {
						break
					}
					value += n / dmsFactors[j]
				}
				return value, dir, len(nums) > 0
			}
			n, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return 0, "", false
			}
			nums = append(nums, n)
			i++
		}
		return 0, "", false
	}

	latVal, latDir, latOK := readComponent()
	lonVal, lonDir, lonOK := readComponent()
	if !latOK || !lonOK {
		return 0, 0, false
	}
	if latDir == "S" {
		latVal = -latVal
	}
	if lonDir == "W" || lonDir == "O" {
		lonVal = -lonVal
	}
	return latVal, lonVal, true
}

func directionMarker(token string) (string, bool) {
	switch token {
	case "N", "S", "E", "W", "O":
		return token, true
	default:
		return "", false
	}
}

func parseDecimalPair(latStr, lonStr string) (lat, lon float64, ok bool) {
	latVal, err1 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lonVal, err2 := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return latVal, lonVal, true
}

// formatGeoURI renders the geo: URI that replaces a recognised geo-hack link.
func formatGeoURI(lat, lon float64) string {
	return "geo:" + strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
