package content

import (
	"fmt"
	"regexp"
	"strings"

	"legalis/internal/anchor"
	"legalis/internal/domain"
)

var headingLine = regexp.MustCompile(`^(#{1,6})\s+(.+)$|^(\d+[.)])\s+(\S.*)$`)

// AnalyzeStructure splits plain document text into sections on markdown
// and numbered headings, issuing an anchor for each through gen. Text with
// no headings becomes a single section. The generator session belongs to
// this one document; callers reuse a generator only after Reset.
func AnalyzeStructure(text string, gen *anchor.Generator) []domain.DocumentSection {
	lines := strings.Split(text, "\n")

	var sections []domain.DocumentSection
	var current *domain.DocumentSection
	var body []string

	// flush closes the open section, or turns loose text before the first
	// heading into its own leading section so no source text is dropped.
	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if current != nil {
			current.Content = text
			sections = append(sections, *current)
		} else if text != "" {
			id := fmt.Sprintf("section_%d", len(sections))
			sections = append(sections, domain.DocumentSection{
				ID:      id,
				Title:   extractTitle(text),
				Content: text,
				Level:   1,
				Anchor:  gen.Generate(id),
			})
		}
		current = nil
		body = nil
	}

	for _, line := range lines {
		m := headingLine.FindStringSubmatch(line)
		if m == nil {
			body = append(body, line)
			continue
		}
		flush()

		title, level := headingFrom(m)
		id := fmt.Sprintf("section_%d", len(sections))
		current = &domain.DocumentSection{
			ID:     id,
			Title:  title,
			Level:  level,
			Anchor: gen.Generate(id),
		}
	}
	flush()

	if len(sections) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []domain.DocumentSection{{
			ID:      "section_0",
			Title:   extractTitle(trimmed),
			Content: trimmed,
			Level:   1,
			Anchor:  gen.Generate("section_0"),
		}}
	}

	return sections
}

func headingFrom(m []string) (title string, level int) {
	if m[1] != "" {
		return strings.TrimSpace(m[2]), len(m[1])
	}
	return strings.TrimSpace(m[4]), 1
}

// AnnotateSections renders sections with their anchor markers embedded,
// producing the content body sent to the model so it can tag its output
// per source position.
func AnnotateSections(sections []domain.DocumentSection) string {
	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(anchor.Marker(s.Anchor))
		sb.WriteString("\n")
		if s.Title != "" {
			sb.WriteString(s.Title)
			sb.WriteString("\n")
		}
		sb.WriteString(s.Content)
	}
	return sb.String()
}
