package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"macmarket/internal/domain"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

//go:embed modes.yaml
var defaultModes []byte

type modesFile struct {
	Default string               `yaml:"default"`
	Modes   []domain.ModeProfile `yaml:"modes"`
}

// Modes is an ordered, read-only set of mode profiles.
type Modes struct {
	def   string
	order []string
	byKey map[string]domain.ModeProfile
}

// LoadModes reads profiles from path, or the embedded defaults when path
// is empty.
func LoadModes(path string) (*Modes, error) {
	data := defaultModes
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mode profiles: %w", err)
		}
		data = b
	}
	return ParseModes(data)
}

func ParseModes(data []byte) (*Modes, error) {
	var f modesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mode profiles: %w", err)
	}
	if len(f.Modes) == 0 {
		return nil, fmt.Errorf("parse mode profiles: no modes defined")
	}

	m := &Modes{byKey: make(map[string]domain.ModeProfile, len(f.Modes))}
	for _, p := range f.Modes {
		if err := defaults.Set(&p); err != nil {
			return nil, fmt.Errorf("mode %q defaults: %w", p.Key, err)
		}
		p.Key = strings.ToLower(strings.TrimSpace(p.Key))
		if p.Key == "" {
			return nil, fmt.Errorf("mode without key")
		}
		if _, dup := m.byKey[p.Key]; dup {
			return nil, fmt.Errorf("duplicate mode %q", p.Key)
		}
		if !domain.IsSupportedTimeframe(p.Timeframe) {
			return nil, fmt.Errorf("mode %q: unsupported timeframe %q", p.Key, p.Timeframe)
		}
		if p.Lookback <= 0 {
			return nil, fmt.Errorf("mode %q: lookback must be positive", p.Key)
		}
		m.byKey[p.Key] = p
		m.order = append(m.order, p.Key)
	}

	m.def = strings.ToLower(strings.TrimSpace(f.Default))
	if _, ok := m.byKey[m.def]; !ok {
		m.def = m.order[0]
	}
	return m, nil
}

// Get resolves a mode key. An empty key selects the default mode.
func (m *Modes) Get(key string) (domain.ModeProfile, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		key = m.def
	}
	p, ok := m.byKey[key]
	if !ok {
		return domain.ModeProfile{}, &domain.ParameterError{Name: "mode", Value: key, Reason: fmt.Sprintf("expected one of %v", m.order)}
	}
	return p, nil
}

func (m *Modes) Default() string { return m.def }

func (m *Modes) Keys() []string {
	return append([]string(nil), m.order...)
}

// All returns the profiles in file order.
func (m *Modes) All() []domain.ModeProfile {
	out := make([]domain.ModeProfile, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.byKey[k])
	}
	return out
}
