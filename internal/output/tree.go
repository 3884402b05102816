package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/vulnverified/orbit/internal/engine"
)

const noRelatedHosts = "(no related hosts)"

// WriteTree renders each seed's discovery history as a tree: the seed at
// the root and one "host (reason)" child per distinct discovery.
func WriteTree(w io.Writer, result *engine.Result, noColor bool) {
	for _, seed := range result.Hierarchy {
		fmt.Fprintln(w)
		if noColor {
			writeSimpleTree(w, seed)
			continue
		}

		t := tree.Root(seedLabel(seed)).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			RootStyle(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))).
			ItemStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("250")))

		children := treeChildren(seed)
		if len(children) == 0 {
			t.Child(noRelatedHosts)
		}
		for _, c := range children {
			t.Child(c)
		}
		fmt.Fprintln(w, t.String())
	}
}

func seedLabel(seed engine.SeedTree) string {
	if seed.CoreHost != "" && seed.CoreHost != seed.Seed {
		return fmt.Sprintf("%s (core: %s)", seed.Seed, seed.CoreHost)
	}
	return seed.Seed
}

func treeChildren(seed engine.SeedTree) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range seed.Children {
		label := fmt.Sprintf("%s (%s)", d.Host, d.Reason)
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func writeSimpleTree(w io.Writer, seed engine.SeedTree) {
	fmt.Fprintln(w, seedLabel(seed))
	children := treeChildren(seed)
	if len(children) == 0 {
		fmt.Fprintf(w, "└─ %s\n", noRelatedHosts)
		return
	}
	for i, c := range children {
		prefix := "├─"
		if i == len(children)-1 {
			prefix = "└─"
		}
		fmt.Fprintf(w, "%s %s\n", prefix, c)
	}
}
