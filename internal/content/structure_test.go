package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalis/internal/anchor"
)

const sampleDocument = `Настоящий договор заключён между сторонами.

# 1. Предмет договора
Арендодатель передаёт помещение.

## 1.1 Срок аренды
Срок аренды составляет 11 месяцев.

2) Ответственность сторон
Неустойка 0,5% в день.`

func TestAnalyzeStructureSplitsOnHeadings(t *testing.T) {
	sections := AnalyzeStructure(sampleDocument, anchor.NewGenerator())

	require.Len(t, sections, 4)

	// Preamble before the first heading survives as its own section.
	assert.Equal(t, "section_0", sections[0].ID)
	assert.Contains(t, sections[0].Content, "заключён между сторонами")

	assert.Equal(t, "1. Предмет договора", sections[1].Title)
	assert.Equal(t, 1, sections[1].Level)
	assert.Contains(t, sections[1].Content, "передаёт помещение")

	assert.Equal(t, "1.1 Срок аренды", sections[2].Title)
	assert.Equal(t, 2, sections[2].Level)

	// Numbered headings count as level 1.
	assert.Equal(t, "Ответственность сторон", sections[3].Title)
	assert.Equal(t, 1, sections[3].Level)
}

func TestAnalyzeStructureAnchorsAreUnique(t *testing.T) {
	sections := AnalyzeStructure(sampleDocument, anchor.NewGenerator())

	seen := make(map[string]bool)
	for _, s := range sections {
		require.True(t, strings.HasPrefix(s.Anchor, anchor.Prefix))
		require.False(t, seen[s.Anchor], "duplicate anchor %s", s.Anchor)
		seen[s.Anchor] = true
	}
}

func TestAnalyzeStructureNoHeadings(t *testing.T) {
	sections := AnalyzeStructure("Сплошной текст без заголовков.\nВторая строка.", anchor.NewGenerator())

	require.Len(t, sections, 1)
	assert.Equal(t, "section_0", sections[0].ID)
	assert.Equal(t, "Сплошной текст без заголовков.", sections[0].Title)
	assert.Contains(t, sections[0].Content, "Вторая строка.")
}

func TestAnalyzeStructureEmptyText(t *testing.T) {
	assert.Nil(t, AnalyzeStructure("  \n  ", anchor.NewGenerator()))
}

func TestAnnotateSections(t *testing.T) {
	gen := anchor.NewGenerator()
	sections := AnalyzeStructure("# Раздел\nТело раздела.", gen)
	require.Len(t, sections, 1)

	out := AnnotateSections(sections)

	assert.Contains(t, out, anchor.Marker(sections[0].Anchor))
	assert.Contains(t, out, "Раздел")
	assert.Contains(t, out, "Тело раздела.")
	// Marker precedes the section body.
	assert.Less(t, strings.Index(out, sections[0].Anchor), strings.Index(out, "Тело раздела."))
}

func TestAnnotateSectionsRoundTripsThroughParser(t *testing.T) {
	gen := anchor.NewGenerator()
	sections := AnalyzeStructure(sampleDocument, gen)
	annotated := AnnotateSections(sections)

	found := findAnchors(annotated)
	require.Len(t, found, len(sections))
	for i, s := range sections {
		assert.Equal(t, s.Anchor, found[i])
	}
}
