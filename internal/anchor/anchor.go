// Package anchor issues the per-section marker tokens that correlate LLM
// output back to source positions.
package anchor

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Prefix is the shared identifier prefix of every anchor token.
const Prefix = "SECTION_ANCHOR_"

var idPattern = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Generator issues anchors unique within one document-generation session.
// Call Reset before starting a new document; sessions must never be shared
// across unrelated documents.
type Generator struct {
	mu   sync.Mutex
	used map[string]bool
}

// NewGenerator creates an empty Generator.
func NewGenerator() *Generator {
	return &Generator{used: make(map[string]bool)}
}

// Generate returns a unique anchor id for sectionID. Collisions within a
// session get a numeric suffix so the same source id can be issued more
// than once without ever repeating an anchor.
func (g *Generator) Generate(sectionID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := Prefix + sanitize(sectionID)
	candidate := base
	for n := 2; g.used[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
	g.used[candidate] = true
	return candidate
}

// Reset clears the session's used-anchor set.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.used = make(map[string]bool)
}

// Marker wraps an anchor id in the HTML-comment token embedded in text
// sent to and received from the model.
func Marker(id string) string {
	return fmt.Sprintf("<!-- %s -->", id)
}

func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "section"
	}
	return idPattern.ReplaceAllString(id, "_")
}
