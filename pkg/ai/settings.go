package ai

import (
	"fmt"
	"strings"
	"sync"
)

// Models names the model used for each pipeline role.
type Models struct {
	Research string `json:"researchModel"`
	Writer   string `json:"writerModel"`
}

// ModelSettings holds the runtime-mutable model selection.
type ModelSettings struct {
	mu     sync.RWMutex
	models Models
}

func NewModelSettings(research, writer string) *ModelSettings {
	return &ModelSettings{models: Models{Research: research, Writer: writer}}
}

func (s *ModelSettings) Get() Models {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.models
}

func (s *ModelSettings) ResearchModel() string {
	return s.Get().Research
}

func (s *ModelSettings) WriterModel() string {
	return s.Get().Writer
}

// Update replaces the non-empty fields of m and returns the resulting selection.
func (s *ModelSettings) Update(m Models) (Models, error) {
	m.Research = strings.TrimSpace(m.Research)
	m.Writer = strings.TrimSpace(m.Writer)
	if m.Research == "" && m.Writer == "" {
		return Models{}, fmt.Errorf("at least one of researchModel or writerModel is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Research != "" {
		s.models.Research = m.Research
	}
	if m.Writer != "" {
		s.models.Writer = m.Writer
	}
	return s.models, nil
}
