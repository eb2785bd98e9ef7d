package resume

import (
	"strings"
)

// Sections holds the tailored fragments produced by the generation step.
type Sections struct {
	Summary    string
	Skills     []string
	Highlights []string
}

// Document is a tailored copy of the template for one posting. Its lifetime
// ends once it has been emailed or dumped to disk.
type Document struct {
	PostingID    string
	PostingTitle string
	Body         string
}

var summaryHeadings = []string{"profile summary", "summary", "about"}

var skillsHeadings = []string{"core competencies", "skills"}

// Derive produces a new Document from the template and the tailored
// sections. The template itself is never modified: all edits happen on a
// copied line slice.
func (t *Template) Derive(postingID, postingTitle string, s *Sections) *Document {
	lines := strings.Split(t.text, "\n")
	copied := make([]string, len(lines))
	copy(copied, lines)

	if s != nil {
		if summary := strings.TrimSpace(s.Summary); summary != "" {
			copied = replaceSection(copied, summaryHeadings, splitLines(summary))
		}
		if len(s.Skills) > 0 {
			copied = replaceSection(copied, skillsHeadings, []string{strings.Join(s.Skills, ", ")})
		}
		if len(s.Highlights) > 0 {
			copied = append(copied, "", "Highlights for "+postingTitle)
			for _, highlight := range s.Highlights {
				copied = append(copied, "- "+strings.TrimSpace(highlight))
			}
		}
	}

	body := strings.Join(copied, "\n")
	if postingTitle != "" && !strings.Contains(body, postingTitle) {
		body = "Tailored for: " + postingTitle + "\n\n" + body
	}

	return &Document{
		PostingID:    postingID,
		PostingTitle: postingTitle,
		Body:         body,
	}
}

// replaceSection finds the first line matching one of the heading keywords
// and replaces the lines that follow it, up to the next blank line, with the
// provided content. When no heading matches, the lines are left untouched.
func replaceSection(lines []string, headings, content []string) []string {
	idx := -1
	for i, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		for _, heading := range headings {
			if strings.Contains(lower, heading) {
				idx = i
				break
			}
		}
		if idx != -1 {
			break
		}
	}

	if idx == -1 {
		return lines
	}

	end := idx + 1
	for end < len(lines) && strings.TrimSpace(lines[end]) != "" {
		end++
	}

	result := make([]string, 0, len(lines)-(end-idx-1)+len(content))
	result = append(result, lines[:idx+1]...)
	result = append(result, content...)
	result = append(result, lines[end:]...)

	return result
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
