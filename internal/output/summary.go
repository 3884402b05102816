package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/vulnverified/orbit/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

// WriteHeader prints the orbit banner.
func WriteHeader(w io.Writer, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "orbit %s: related-host discovery\n\n", Version)
	} else {
		fmt.Fprintf(w, "\033[1morbit %s\033[0m: related-host discovery\n\n", Version)
	}
}

// WriteSummary prints the post-run counts.
func WriteSummary(w io.Writer, result *engine.Result, noColor bool) {
	s := result.Summary
	label := func(name string) string {
		if noColor {
			return name + ":"
		}
		return "\033[1m" + name + ":\033[0m"
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", label("Seeds"), strings.Join(result.Seeds, ", "))
	for _, t := range result.Hierarchy {
		if t.CoreHost != "" && t.CoreHost != t.Seed {
			fmt.Fprintf(w, "  %s crawled as %s\n", t.Seed, t.CoreHost)
		}
	}
	fmt.Fprintf(w, "%s %d accepted of %d candidates\n", label("Hosts"), s.HostsAccepted, s.CandidatesFound)
	fmt.Fprintf(w, "%s %d pages, %d CT names\n", label("Evidence"), s.PagesVisited, s.CTNames)
	if len(result.BrandTokens) > 0 {
		fmt.Fprintf(w, "%s %s\n", label("Brand"), strings.Join(result.BrandTokens, ", "))
	}
	fmt.Fprintf(w, "%s %.1fs\n", label("Duration"), result.DurationSecs)
}
