package search

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ResolveTopK picks the result count from, in order, the URL parameter, the
// JSON body value and the default. Missing, malformed or non-positive values
// fall through to the next source.
func ResolveTopK(param string, body json.RawMessage, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(param)); err == nil && n > 0 {
		return n
	}

	if len(body) > 0 {
		var n int
		if err := json.Unmarshal(body, &n); err == nil && n > 0 {
			return n
		}
		// Accept "7" as well as 7.
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
				return n
			}
		}
	}

	return def
}
