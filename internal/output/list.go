package output

import (
	"fmt"
	"io"

	"github.com/vulnverified/orbit/internal/engine"
)

// WriteList prints one accepted host per line in ranked order.
func WriteList(w io.Writer, result *engine.Result) {
	for _, h := range result.Hosts {
		fmt.Fprintln(w, h.Host)
	}
}
