package prompt

import (
	"legalis/internal/domain"
)

// System is a named prompt family: template bodies, default parameters,
// and the schema type its responses are parsed against.
type System struct {
	Name       string
	Templates  map[string]string
	Defaults   map[string]interface{}
	SchemaType string
	// SystemPrompt is sent as the provider-level system message.
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	RequestType  domain.RequestType
}

// DefaultTemplate is the template name used when the caller does not pick one.
const DefaultTemplate = "default"

// Registry resolves prompt systems by name.
type Registry struct {
	systems map[string]*System
}

// NewRegistry creates a registry preloaded with the built-in systems.
func NewRegistry() *Registry {
	r := &Registry{systems: make(map[string]*System)}
	for _, s := range builtinSystems() {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a system.
func (r *Registry) Register(s *System) {
	r.systems[s.Name] = s
}

// Resolve returns the named system, or domain.ErrUnknownPromptSystem.
func (r *Registry) Resolve(name string) (*System, error) {
	s, ok := r.systems[name]
	if !ok {
		return nil, domain.ErrUnknownPromptSystem
	}
	return s, nil
}

const legalTranslationTemplate = `Ты — юридический переводчик. Твоя задача — перевести юридический документ на простой, понятный язык{% if target_audience %} для аудитории: {{ target_audience }}{% endif %}.

Документ размечен якорями вида <!-- SECTION_ANCHOR_... -->. Сохраняй каждый якорь в ответе ровно там, где начинается соответствующий раздел.

Для каждого раздела документа выведи блок строго в таком формате:

<!-- TRANSLATION_BLOCK_START type="{{ document_type }}" -->
**[Переведено]:** упрощённый текст раздела
**[Найден риск]:** описание риска, если он есть
**[Внимание]:** предупреждение, если оно есть
**[Найдено противоречие]:** найденное противоречие, если оно есть
<!-- TRANSLATION_BLOCK_END -->

Правила:
- Строки с рисками, предупреждениями и противоречиями включай только если они действительно найдены; рисков в одном блоке может быть несколько.
- Не добавляй никакого текста вне блоков, кроме исходного текста раздела и его якоря.
- Не изменяй и не переводи сами маркеры.
{% if glossary %}
Используй следующий глоссарий:
{% for term in glossary %}- {{ term }}
{% endfor %}{% endif %}
Документ ({{ document_type }}):

{{ content }}`

const summaryTemplate = `Кратко изложи суть юридического документа простым языком, не более {{ max_points }} пунктов. Не используй юридический жаргон.

Документ:

{{ content }}`

func builtinSystems() []*System {
	return []*System{
		{
			Name: "legal_translation",
			Templates: map[string]string{
				DefaultTemplate: legalTranslationTemplate,
			},
			Defaults: map[string]interface{}{
				"document_type":   string(domain.DocTypeContract),
				"target_audience": "",
			},
			SchemaType:   "translation_blocks",
			SystemPrompt: "Ты помогаешь людям без юридического образования понимать юридические документы.",
			MaxTokens:    8192,
			Temperature:  0.3,
			RequestType:  domain.RequestTypeTranslation,
		},
		{
			Name: "document_summary",
			Templates: map[string]string{
				DefaultTemplate: summaryTemplate,
			},
			Defaults: map[string]interface{}{
				"max_points": 7,
			},
			SchemaType:  "plain_text",
			MaxTokens:   2048,
			Temperature: 0.3,
			RequestType: domain.RequestTypeSummary,
		},
	}
}
