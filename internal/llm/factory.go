package llm

import (
	"fmt"

	"legalis/internal/config"
	"legalis/internal/port"
)

// AdapterFactory is a function that creates an LLMAdapter from a provider config.
type AdapterFactory func(cfg *config.ProviderConfig) (port.LLMAdapter, error)

// registry of adapter factories, populated explicitly via RegisterProvider.
var providers = map[string]AdapterFactory{}

// RegisterProvider registers an adapter factory by provider name.
func RegisterProvider(name string, factory AdapterFactory) {
	providers[name] = factory
}

// NewAdapter creates an LLMAdapter from a provider config using the registered factory.
func NewAdapter(cfg *config.ProviderConfig) (port.LLMAdapter, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
	return factory(cfg)
}
