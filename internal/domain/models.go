package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Document represents a legal document submitted for translation.
type Document struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	Title          string            `db:"title" json:"title"`
	DocumentType   DocumentType      `db:"document_type" json:"document_type"`
	TargetAudience string            `db:"target_audience" json:"target_audience"`
	Content        string            `db:"content" json:"content"`
	Status         TranslationStatus `db:"status" json:"status"`
	StatusError    string            `db:"status_error" json:"status_error"`
	Attempts       int               `db:"attempts" json:"attempts"`
	RetryAfter     *time.Time        `db:"retry_after" json:"retry_after"`
	ModelUsed      string            `db:"model_used" json:"model_used"`
	Result         json.RawMessage   `db:"result" json:"result"`
	ProcessedAt    *time.Time        `db:"processed_at" json:"processed_at"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// Risk is a single finding the model attached to a section.
type Risk struct {
	Type RiskType `json:"type"`
	Text string   `json:"text"`
}

// Section is one translated unit of a document, as presented to consumers.
type Section struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	OriginalContent   string   `json:"original_content"`
	TranslatedContent []string `json:"translated_content"`
	Risks             []Risk   `json:"risks"`
	Anchor            string   `json:"anchor,omitempty"`
}

// DocumentSection is a source-side section produced by structure analysis,
// before any model output exists for it.
type DocumentSection struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Level   int    `json:"level"`
	Anchor  string `json:"anchor"`
}

// ParsedContent is the structured view recovered from marker-annotated text.
type ParsedContent struct {
	OriginalContent string    `json:"original_content"`
	Sections        []Section `json:"sections"`
	Anchors         []string  `json:"anchors"`
}

// AnchorValidation records whether a single expected anchor was satisfied
// by the model response.
type AnchorValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ParsedResponse is the outcome of parsing one raw LLM response.
type ParsedResponse struct {
	Valid         bool                        `json:"valid"`
	Content       ParsedContent               `json:"content"`
	AnchorResults map[string]AnchorValidation `json:"anchor_results,omitempty"`
	Warnings      []string                    `json:"warnings,omitempty"`
	Errors        []string                    `json:"errors,omitempty"`
	SchemaType    string                      `json:"schema_type,omitempty"`
	Raw           string                      `json:"raw"`
	Metadata      map[string]string           `json:"metadata,omitempty"`
}

// Successful reports whether the parse produced a fully valid result.
func (p *ParsedResponse) Successful() bool {
	return p.Valid && len(p.Errors) == 0
}

// Partial reports whether the parse recovered a usable but degraded result.
func (p *ParsedResponse) Partial() bool {
	return p.Valid && len(p.Warnings) > 0
}

// TranslationResult is the persisted outcome of processing one document.
type TranslationResult struct {
	Sections []Section `json:"sections"`
	Anchors  []string  `json:"anchors,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
	Partial  bool      `json:"partial"`
}

// RequestMetadata carries bookkeeping attached to an LLM request.
type RequestMetadata struct {
	RequestType  RequestType  `json:"request_type"`
	DocumentType DocumentType `json:"document_type"`
	BatchIndex   int          `json:"batch_index"`
	BatchTotal   int          `json:"batch_total"`
	CreatedAt    time.Time    `json:"created_at"`
}

// LLMRequest is a single generation request. Build it once and do not
// mutate it afterwards; it may be read from multiple goroutines.
type LLMRequest struct {
	Content      string            `json:"content"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Model        string            `json:"model,omitempty"`
	MaxTokens    int               `json:"max_tokens"`
	Temperature  float64           `json:"temperature"`
	Options      map[string]string `json:"options,omitempty"`
	Metadata     RequestMetadata   `json:"metadata"`
}

// NewLLMRequest builds a request with metadata timestamped at creation.
func NewLLMRequest(content string, meta RequestMetadata) *LLMRequest {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	return &LLMRequest{
		Content:  content,
		Metadata: meta,
	}
}

// LLMResponse is the outcome of one successful provider call. Produced
// only by the LLM service; treat as immutable.
type LLMResponse struct {
	Text         string            `json:"text"`
	InputTokens  int               `json:"input_tokens"`
	OutputTokens int               `json:"output_tokens"`
	Cost         float64           `json:"cost"`
	Model        string            `json:"model"`
	Latency      time.Duration     `json:"latency"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UsageRecord is one row of recorded LLM consumption.
type UsageRecord struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	Provider     string      `db:"provider" json:"provider"`
	Model        string      `db:"model" json:"model"`
	RequestType  RequestType `db:"request_type" json:"request_type"`
	InputTokens  int         `db:"input_tokens" json:"input_tokens"`
	OutputTokens int         `db:"output_tokens" json:"output_tokens"`
	Cost         float64     `db:"cost" json:"cost"`
	LatencyMs    int64       `db:"latency_ms" json:"latency_ms"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// UsageSummary is an aggregate of usage records over a period.
type UsageSummary struct {
	Day          time.Time `db:"day" json:"day"`
	Provider     string    `db:"provider" json:"provider"`
	Requests     int       `db:"requests" json:"requests"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	Cost         float64   `db:"cost" json:"cost"`
}
