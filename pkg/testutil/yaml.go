package testutil

import "strings"

// StripYAMLCommentHeader removes the leading comment banner (and any blank
// lines after it) from generated YAML, so tests can compare document content
// without caring about the header. Input that is nothing but comments is
// returned unchanged.
func StripYAMLCommentHeader(content string) string {
	lines := strings.Split(content, "\n")

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			i++
			continue
		}
		break
	}

	if i == len(lines) {
		// Only comments and blank lines; nothing to strip down to.
		return content
	}

	return strings.Join(lines[i:], "\n")
}
