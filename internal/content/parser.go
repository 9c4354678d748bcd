// Package content recovers structure from the marker protocol embedded in
// LLM responses: anchor tokens, translation blocks, and the tagged spans
// inside them. The grammar is deliberately loose; parsing never fails on
// malformed markers and always produces a best-effort result.
package content

import (
	"fmt"
	"regexp"
	"strings"

	"legalis/internal/anchor"
	"legalis/internal/domain"
)

// Inline tags inside a translation block. These are the literal tokens the
// prompt instructs the model to emit and downstream rendering consumes;
// they must not be altered.
const (
	TagTranslation   = "**[Переведено]:**"
	TagRisk          = "**[Найден риск]:**"
	TagWarning       = "**[Внимание]:**"
	TagContradiction = "**[Найдено противоречие]:**"
)

const (
	titleMaxLen  = 80
	mainSection  = "main"
	defaultTitle = "Document"
)

var (
	blockPattern  = regexp.MustCompile(`(?s)<!--\s*TRANSLATION_BLOCK_START\s+type="([^"]*)"\s*-->(.*?)<!--\s*TRANSLATION_BLOCK_END\s*-->`)
	anchorPattern = regexp.MustCompile(`<!--\s*(` + anchor.Prefix + `[A-Za-z0-9_]+)\s*-->`)

	inlineTagPattern = regexp.MustCompile(
		regexp.QuoteMeta(TagTranslation) + `|` +
			regexp.QuoteMeta(TagRisk) + `|` +
			regexp.QuoteMeta(TagWarning) + `|` +
			regexp.QuoteMeta(TagContradiction))

	headingMarkers = regexp.MustCompile(`^(#{1,6}\s+|\d+[.)]\s+)`)
)

// taggedSpan is one inline-tagged run of text inside a block interior.
type taggedSpan struct {
	tag  string
	text string
}

// scanTags splits a block interior at every inline tag; each span runs
// from the end of its tag to the start of the next tag or end of block.
func scanTags(interior string) []taggedSpan {
	locs := inlineTagPattern.FindAllStringIndex(interior, -1)
	spans := make([]taggedSpan, 0, len(locs))
	for i, loc := range locs {
		end := len(interior)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		spans = append(spans, taggedSpan{
			tag:  interior[loc[0]:loc[1]],
			text: strings.TrimSpace(interior[loc[1]:end]),
		})
	}
	return spans
}

// ParseContent splits raw marker-annotated text into sections. Text
// preceding each translation block is treated as the original content the
// block answers. Content with no blocks at all collapses into a single
// synthetic "Document" section; that is the degraded path, not an error.
func ParseContent(raw string) domain.ParsedContent {
	parsed := domain.ParsedContent{
		OriginalContent: raw,
		Anchors:         findAnchors(raw),
	}

	matches := blockPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		parsed.Sections = []domain.Section{{
			ID:                mainSection,
			Title:             defaultTitle,
			OriginalContent:   strings.TrimSpace(RemoveAnchors(raw)),
			TranslatedContent: []string{},
			Risks:             []domain.Risk{},
		}}
		return parsed
	}

	prevEnd := 0
	for i, m := range matches {
		preceding := raw[prevEnd:m[0]]
		interior := raw[m[4]:m[5]]
		prevEnd = m[1]

		section := domain.Section{
			ID:                fmt.Sprintf("section_%d", i),
			Title:             extractTitle(preceding),
			OriginalContent:   strings.TrimSpace(RemoveAnchors(preceding)),
			TranslatedContent: extractTranslations(interior),
			Risks:             extractRisks(interior),
		}
		if ids := findAnchors(preceding); len(ids) > 0 {
			section.Anchor = ids[0]
		}
		parsed.Sections = append(parsed.Sections, section)
	}
	return parsed
}

// extractTitle returns a human-readable title from the first non-blank
// line of text: heading and ordinal markers stripped, truncated to 80
// runes with an ellipsis.
func extractTitle(text string) string {
	for _, line := range strings.Split(RemoveAnchors(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = headingMarkers.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > titleMaxLen {
			return string(runes[:titleMaxLen]) + "..."
		}
		return line
	}
	return "Untitled"
}

// extractTranslations collects every translated span in order. A block
// with no translation tags degrades to its whole interior as a single
// translated string rather than failing.
func extractTranslations(interior string) []string {
	var out []string
	for _, span := range scanTags(interior) {
		if span.tag == TagTranslation && span.text != "" {
			out = append(out, span.text)
		}
	}
	if out == nil {
		if whole := strings.TrimSpace(interior); whole != "" {
			return []string{whole}
		}
		return []string{}
	}
	return out
}

// extractRisks collects every risk-type span in the block interior; a
// block may contribute any number of mixed-type risks.
func extractRisks(interior string) []domain.Risk {
	risks := []domain.Risk{}
	for _, span := range scanTags(interior) {
		if span.text == "" {
			continue
		}
		switch span.tag {
		case TagRisk:
			risks = append(risks, domain.Risk{Type: domain.RiskTypeRisk, Text: span.text})
		case TagWarning:
			risks = append(risks, domain.Risk{Type: domain.RiskTypeWarning, Text: span.text})
		case TagContradiction:
			risks = append(risks, domain.Risk{Type: domain.RiskTypeContradiction, Text: span.text})
		}
	}
	return risks
}

func findAnchors(text string) []string {
	var out []string
	for _, m := range anchorPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// RemoveAnchors strips every anchor marker, producing clean text for
// end-user display.
func RemoveAnchors(text string) string {
	return anchorPattern.ReplaceAllString(text, "")
}

// ReplaceAnchors substitutes each anchor marker whose id appears in
// replacements. Map keys with no occurrence in the content are silently
// ignored; content anchors with no map entry are left untouched.
func ReplaceAnchors(text string, replacements map[string]string) string {
	return anchorPattern.ReplaceAllStringFunc(text, func(marker string) string {
		id := anchorPattern.FindStringSubmatch(marker)[1]
		if repl, ok := replacements[id]; ok {
			return repl
		}
		return marker
	})
}
