// Package output provides utilities for consistent CLI output formatting.
package output

import (
	"encoding/json"
)

// MarshalJSONPretty marshals v to JSON with explicit formatting control.
// When pretty is true, output is indented with 2 spaces.
// When pretty is false, output is compact single-line JSON.
func MarshalJSONPretty(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
