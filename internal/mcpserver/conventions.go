package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/velocity/internal/notebook"
)

const conventionsURI = "velocity://conventions"

// Conventions describes how titles map to files in nb, so an LLM client can
// name notes the way the notebook will accept them.
func Conventions(nb *notebook.NoteBook) string {
	var b strings.Builder
	b.WriteString("# Velocity Notebook Conventions\n\n")
	fmt.Fprintf(&b, "Notes are plain-text files under `%s`.\n\n", nb.Root())

	b.WriteString("## Titles\n\n")
	b.WriteString("- A note's title is its path relative to the notes directory, without the extension.\n")
	b.WriteString("- Use `/` to place a note in a subdirectory, e.g. `work/standup`.\n")
	b.WriteString("- Leading and trailing spaces are trimmed. Titles are case-sensitive and unique.\n")
	b.WriteString("- Titles may not be absolute, contain `..` that leaves the directory, start with `.`, or end with `/`.\n\n")

	b.WriteString("## Extensions\n\n")
	fmt.Fprintf(&b, "- New notes get `%s` unless the title ends with a recognized extension.\n", nb.DefaultExtension())
	fmt.Fprintf(&b, "- Recognized: %s.\n", codeList(nb.Extensions()))
	b.WriteString("- Hidden files and names ending in `~` are never notes.\n")
	if ex := nb.Excluded(); len(ex) > 0 {
		fmt.Fprintf(&b, "- Ignored anywhere in the tree: %s.\n", codeList(ex))
	}

	b.WriteString("\n## Search\n\n")
	b.WriteString("- A note matches when every word of the query appears in its title or content.\n")
	b.WriteString("- A query with no uppercase letters is case-insensitive; otherwise matching is exact.\n")
	b.WriteString("- Results are ordered most recently modified first.\n")
	return b.String()
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}
