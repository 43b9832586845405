package parser

import "strings"

// Separator is the line that divides test cases in a document.
const Separator = "---"

// FilterComments drops every line whose trimmed content starts with '#'.
// All other lines, blank ones included, are kept in order.
func FilterComments(doc string) string {
	lines := strings.Split(doc, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// SplitBlocks cuts a document at separator lines and returns the trimmed,
// non-empty blocks in document order. A separator must be alone on its line;
// "---" inside a value such as "description: a --- b" stays in the block.
func SplitBlocks(doc string) []string {
	var (
		blocks  []string
		current []string
	)

	flush := func() {
		block := strings.TrimSpace(strings.Join(current, "\n"))
		if block != "" {
			blocks = append(blocks, block)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(doc, "\n") {
		if strings.TrimSpace(line) == Separator {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return blocks
}
