// Package prompt orchestrates one full prompt execution: resolve a named
// system, render its template, invoke the LLM service, and parse the raw
// response back into structure.
package prompt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"legalis/internal/content"
	"legalis/internal/domain"
	"legalis/internal/llm"
	"legalis/internal/template"
)

// ExecuteInput describes one prompt execution.
type ExecuteInput struct {
	System    string
	Template  string // template name within the system; DefaultTemplate if empty
	Variables map[string]interface{}
	Options   map[string]string
	// Sections, when present, are embedded into the prompt with their
	// anchor markers and validated against the parsed response.
	Sections     []domain.DocumentSection
	DocumentType domain.DocumentType
}

// ExecutionResult bundles everything one execution produced.
type ExecutionResult struct {
	System         string
	RenderedPrompt string
	RawResponse    string
	Parsed         *domain.ParsedResponse
	Response       *domain.LLMResponse
	Duration       time.Duration
}

// Manager wires the template engine, the LLM service, and the response
// parser together.
type Manager struct {
	registry *Registry
	engine   *template.Engine
	llm      *llm.Service
}

// NewManager creates a Manager. The engine's missing-variable policy
// decides whether unresolved template variables fail the execution or
// render empty.
func NewManager(registry *Registry, engine *template.Engine, svc *llm.Service) *Manager {
	return &Manager{registry: registry, engine: engine, llm: svc}
}

// ExecutePrompt runs one prompt end to end. Validation failures (unknown
// system or template, missing strict variables) happen before any LLM
// call is made.
func (m *Manager) ExecutePrompt(ctx context.Context, input ExecuteInput) (*ExecutionResult, error) {
	start := time.Now()

	system, err := m.registry.Resolve(input.System)
	if err != nil {
		return nil, fmt.Errorf("resolving prompt system %q: %w", input.System, err)
	}

	tmplName := input.Template
	if tmplName == "" {
		tmplName = DefaultTemplate
	}
	body, ok := system.Templates[tmplName]
	if !ok {
		return nil, fmt.Errorf("prompt system %q has no template %q: %w", input.System, tmplName, domain.ErrUnknownPromptSystem)
	}

	vars := mergeVariables(system.Defaults, input.Variables)

	var expectedAnchors []string
	if len(input.Sections) > 0 {
		vars["content"] = content.AnnotateSections(input.Sections)
		for _, s := range input.Sections {
			expectedAnchors = append(expectedAnchors, s.Anchor)
		}
	}
	if input.DocumentType != "" {
		vars["document_type"] = string(input.DocumentType)
	}

	rendered, err := m.engine.Render(body, vars)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt %s/%s: %w", input.System, tmplName, err)
	}

	req := domain.NewLLMRequest(rendered, domain.RequestMetadata{
		RequestType:  system.RequestType,
		DocumentType: input.DocumentType,
	})
	req.SystemPrompt = system.SystemPrompt
	req.MaxTokens = system.MaxTokens
	req.Temperature = system.Temperature
	req.Options = input.Options

	resp, err := m.llm.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing prompt %s/%s: %w", input.System, tmplName, err)
	}

	parsed, err := content.ParseLLMResponse(resp.Text, expectedAnchors, system.SchemaType)
	if err != nil {
		return nil, fmt.Errorf("parsing response for %s/%s: %w", input.System, tmplName, err)
	}

	result := &ExecutionResult{
		System:         input.System,
		RenderedPrompt: rendered,
		RawResponse:    resp.Text,
		Parsed:         parsed,
		Response:       resp,
		Duration:       time.Since(start),
	}

	log.Printf("prompt.Manager: executed %s/%s model=%s sections=%d warnings=%d duration=%s",
		input.System, tmplName, resp.Model, len(parsed.Content.Sections), len(parsed.Warnings), result.Duration)
	return result, nil
}

// ValidateVariables reports missing and unused variables for a system's
// template without executing anything.
func (m *Manager) ValidateVariables(systemName, templateName string, vars map[string]interface{}) (missing, unused []string, err error) {
	system, err := m.registry.Resolve(systemName)
	if err != nil {
		return nil, nil, err
	}
	if templateName == "" {
		templateName = DefaultTemplate
	}
	body, ok := system.Templates[templateName]
	if !ok {
		return nil, nil, domain.ErrUnknownPromptSystem
	}
	merged := mergeVariables(system.Defaults, vars)
	missing, unused = m.engine.Validate(body, merged)
	return missing, unused, nil
}

// mergeVariables overlays caller variables on system defaults; caller
// values win on conflict.
func mergeVariables(defaults, vars map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(vars))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	if c, ok := merged["content"].(string); ok {
		merged["content"] = strings.TrimRight(c, "\n")
	}
	return merged
}
