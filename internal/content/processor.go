package content

import (
	"fmt"
	"strconv"
	"strings"

	"legalis/internal/domain"
)

// ParseLLMResponse parses one raw model response against the anchor list
// the prompt was built with. Malformed or missing markers degrade into
// warnings and per-anchor failures; the only hard error is empty input.
func ParseLLMResponse(raw string, expectedAnchors []string, schemaType string) (*domain.ParsedResponse, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, domain.ErrInvalidParseInput
	}

	parsed := ParseContent(raw)
	resp := &domain.ParsedResponse{
		Valid:      true,
		Content:    parsed,
		SchemaType: schemaType,
		Raw:        raw,
	}

	if len(expectedAnchors) > 0 {
		resp.AnchorResults = make(map[string]domain.AnchorValidation, len(expectedAnchors))
		found := make(map[string]bool, len(parsed.Anchors))
		for _, id := range parsed.Anchors {
			found[id] = true
		}

		matched := 0
		for _, id := range expectedAnchors {
			if found[id] {
				resp.AnchorResults[id] = domain.AnchorValidation{Valid: true}
				matched++
				continue
			}
			resp.AnchorResults[id] = domain.AnchorValidation{
				Valid:  false,
				Reason: "anchor not present in response",
			}
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("anchor %s missing from response", id))
		}

		// The model ignoring the anchor protocol entirely is not
		// recoverable per-section; everything else is partial success.
		if matched == 0 {
			resp.Valid = false
			resp.Errors = append(resp.Errors, "response contains none of the expected anchors")
		}
	}

	if len(parsed.Sections) == 1 && parsed.Sections[0].ID == mainSection && blocklessResponse(parsed) {
		resp.Warnings = append(resp.Warnings, "no translation blocks found; response kept as a single document section")
	}

	resp.Metadata = map[string]string{
		"sections":         strconv.Itoa(len(parsed.Sections)),
		"anchors_found":    strconv.Itoa(len(parsed.Anchors)),
		"anchors_expected": strconv.Itoa(len(expectedAnchors)),
	}
	return resp, nil
}

func blocklessResponse(parsed domain.ParsedContent) bool {
	s := parsed.Sections[0]
	return len(s.TranslatedContent) == 0 && len(s.Risks) == 0
}

// BuildResult assembles the persisted translation result from a parsed
// response: sections in parse order, with the response's warnings carried
// over so consumers can tell a degraded result from a clean one.
func BuildResult(resp *domain.ParsedResponse) *domain.TranslationResult {
	return &domain.TranslationResult{
		Sections: resp.Content.Sections,
		Anchors:  resp.Content.Anchors,
		Warnings: resp.Warnings,
		Partial:  resp.Partial(),
	}
}
