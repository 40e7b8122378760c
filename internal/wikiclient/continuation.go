package wikiclient

import "encoding/json"

// cursor is the set of continuation tokens the upstream API may return,
// flattened from whichever shape the server used.
type cursor map[string]string

// extractCursor reads the continuation tokens out of a decoded API
// response, handling both response shapes a MediaWiki server may use: a
// top-level "continue" map (current core), or, if absent, a nested
// "query-continue" map keyed by submodule name whose values become the
// same flat cursor fields the rest of this package expects.
func extractCursor(raw map[string]json.RawMessage) cursor {
	c := cursor{}

	if continueRaw, ok := raw["continue"]; ok {
		var flat map[string]string
		if err := json.Unmarshal(continueRaw, &flat); err == nil {
			for k, v := range flat {
				c[k] = v
			}
			return c
		}
	}

	if queryContinueRaw, ok := raw["query-continue"]; ok {
		var bySubmodule map[string]map[string]string
		if err := json.Unmarshal(queryContinueRaw, &bySubmodule); err == nil {
			for _, fields := range bySubmodule {
				for k, v := range fields {
					c[k] = v
				}
			}
		}
	}

	return c
}

func (c cursor) empty() bool { return len(c) == 0 }
