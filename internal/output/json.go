package output

import (
	"encoding/json"
	"io"

	"github.com/vulnverified/orbit/internal/engine"
)

// WriteJSON writes the discovery result as indented JSON to w.
func WriteJSON(w io.Writer, result *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
