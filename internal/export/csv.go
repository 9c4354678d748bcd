package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"legalis/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row, one row per document section.
var columns = []string{
	"Section ID",
	"Section Title",
	"Anchor",
	"Original Content",
	"Translation",
	"Risks",
	"Warnings",
	"Contradictions",
}

// CSVWriter wraps csv.Writer for exporting translation results section by
// section.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes CSV to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteSections converts translated sections to CSV rows and writes them.
func (w *CSVWriter) WriteSections(sections []domain.Section) error {
	for i := range sections {
		if err := w.csv.Write(sectionToRow(&sections[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// sectionToRow converts a single section to a row. Translation fragments are
// joined with blank lines; risks are split by type into the three trailing
// columns.
func sectionToRow(sec *domain.Section) []string {
	row := make([]string, len(columns))
	row[0] = sec.ID
	row[1] = sec.Title
	row[2] = sec.Anchor
	row[3] = sec.OriginalContent
	row[4] = strings.Join(sec.TranslatedContent, "\n\n")
	row[5] = joinRisks(sec.Risks, domain.RiskTypeRisk)
	row[6] = joinRisks(sec.Risks, domain.RiskTypeWarning)
	row[7] = joinRisks(sec.Risks, domain.RiskTypeContradiction)
	return row
}

func joinRisks(risks []domain.Risk, kind domain.RiskType) string {
	var texts []string
	for _, r := range risks {
		if r.Type == kind {
			texts = append(texts, r.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document title for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for the Content-Disposition
// header. Format: {sanitized_title}_{YYYY-MM-DD}.{ext}
func BuildFilename(title, ext string) string {
	sanitized := SanitizeFilename(title)
	if sanitized == "" {
		sanitized = "document"
	}
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.%s", sanitized, date, ext)
}
