package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/erika/internal/ai"
)

//go:embed persona.yaml
var defaultPersona []byte

// Persona is the character definition file. Empty fields fall back to the
// built-in persona.
type Persona struct {
	SystemPrompt  string `yaml:"system_prompt"`
	QuotePrompt   string `yaml:"quote_prompt"`
	Fallback      string `yaml:"fallback"`
	QuoteFallback string `yaml:"quote_fallback"`
	HelpText      string `yaml:"help_text"`
}

// DefaultPersona returns the embedded persona.
func DefaultPersona() (Persona, error) {
	return ParsePersona(defaultPersona)
}

// LoadPersona reads a persona file. An empty path selects the embedded one.
func LoadPersona(path string) (Persona, error) {
	base, err := DefaultPersona()
	if err != nil {
		return Persona{}, err
	}
	if path == "" {
		return base, nil
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return Persona{}, fmt.Errorf("persona file not found: %s", path)
	}
	content, err := os.ReadFile(path) // #nosec G304 - Path comes from config and is expected to be dynamic
	if err != nil {
		return Persona{}, fmt.Errorf("failed to read persona: %w", err)
	}

	p, err := ParsePersona(content)
	if err != nil {
		return Persona{}, fmt.Errorf("%s: %w", path, err)
	}
	return p.merge(base), nil
}

// ParsePersona decodes and validates a persona document.
func ParsePersona(content []byte) (Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(content, &p); err != nil {
		return Persona{}, fmt.Errorf("failed to parse persona: %w", err)
	}
	if err := ValidateSystemPrompt(p.SystemPrompt); err != nil {
		return Persona{}, err
	}
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	return p, nil
}

// ValidateSystemPrompt ensures the system prompt is non-empty after trimming.
func ValidateSystemPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("system prompt is empty")
	}
	return nil
}

// AI converts the persona for the responder.
func (p Persona) AI() ai.Persona {
	return ai.Persona{
		SystemPrompt:  p.SystemPrompt,
		QuotePrompt:   p.QuotePrompt,
		Fallback:      p.Fallback,
		QuoteFallback: p.QuoteFallback,
	}
}

func (p Persona) merge(base Persona) Persona {
	if p.QuotePrompt == "" {
		p.QuotePrompt = base.QuotePrompt
	}
	if p.Fallback == "" {
		p.Fallback = base.Fallback
	}
	if p.QuoteFallback == "" {
		p.QuoteFallback = base.QuoteFallback
	}
	if p.HelpText == "" {
		p.HelpText = base.HelpText
	}
	return p
}
