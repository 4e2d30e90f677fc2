// Package parser extracts generation artifacts from a provider's free-text reply.
//
// Parsing is total: every malformed input degrades to a defined fallback and
// no function in this package returns an error.
package parser

import (
	"regexp"
	"strings"
)

const fence = "```"

// descriptionLines is how many leading prose lines form the description.
const descriptionLines = 3

var (
	sourceTags   = map[string]bool{"python": true, "py": true}
	manifestTags = map[string]bool{"txt": true, "text": true, "requirements": true}

	fileMarker = regexp.MustCompile(`^#\s*([\w.\-/]+\.[A-Za-z0-9]+)\s*$`)
)

// DefaultDependencies is used when the reply carries no manifest block.
func DefaultDependencies() []string {
	return []string{
		"python-telegram-bot==20.7",
		"python-dotenv==1.0.0",
		"requests==2.31.0",
	}
}

// Result is the structured view of one reply.
type Result struct {
	Source       string
	Description  string
	Dependencies []string
	// Files holds every block that opens with a "# name.ext" marker line,
	// keyed by that name, marker stripped.
	Files map[string]string
}

type block struct {
	tag  string
	body string
}

// Parse splits raw into source, description and dependency manifest.
func Parse(raw string) Result {
	lines := splitLines(raw)
	blocks := scanBlocks(lines)

	return Result{
		Source:       extractSource(raw, blocks),
		Description:  extractDescription(lines),
		Dependencies: extractDependencies(blocks),
		Files:        extractFiles(blocks),
	}
}

func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

func isFenceLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), fence)
}

func fenceTag(line string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fence))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// scanBlocks returns closed fenced blocks in document order. An opening fence
// without a matching bare closing fence does not form a block.
func scanBlocks(lines []string) []block {
	var blocks []block
	for i := 0; i < len(lines); i++ {
		if !isFenceLine(lines[i]) {
			continue
		}
		tag := fenceTag(lines[i])
		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == fence {
				end = j
				break
			}
		}
		if end < 0 {
			break
		}
		blocks = append(blocks, block{
			tag:  tag,
			body: strings.TrimSpace(strings.Join(lines[i+1:end], "\n")),
		})
		i = end
	}
	return blocks
}

func extractSource(raw string, blocks []block) string {
	for _, b := range blocks {
		if sourceTags[b.tag] {
			return b.body
		}
	}
	if len(blocks) > 0 {
		return blocks[0].body
	}
	return raw
}

func extractDescription(lines []string) string {
	var prose []string
	for _, line := range lines {
		if isFenceLine(line) {
			break
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			prose = append(prose, trimmed)
		}
		if len(prose) == descriptionLines {
			break
		}
	}
	return strings.Join(prose, " ")
}

func extractDependencies(blocks []block) []string {
	for _, b := range blocks {
		if !manifestTags[b.tag] {
			continue
		}
		var deps []string
		for _, line := range strings.Split(b.body, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				deps = append(deps, trimmed)
			}
		}
		if deps == nil {
			deps = []string{}
		}
		return deps
	}
	return DefaultDependencies()
}

func extractFiles(blocks []block) map[string]string {
	files := make(map[string]string)
	for _, b := range blocks {
		first, rest, _ := strings.Cut(b.body, "\n")
		m := fileMarker.FindStringSubmatch(strings.TrimSpace(first))
		if m == nil {
			continue
		}
		if _, seen := files[m[1]]; seen {
			continue
		}
		files[m[1]] = strings.TrimSpace(rest)
	}
	return files
}
