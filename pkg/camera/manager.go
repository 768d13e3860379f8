package camera

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Manager holds the passthrough camera settings of the viewfinder.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange runs after a valid update, outside the lock. An error
	// is reported to the caller; the new settings stay applied.
	OnConfigChange func(cfg Config) error
}

// NewManager starts from DefaultConfig.
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// NewManagerWithPreset starts from a named preset.
func NewManagerWithPreset(name string) (*Manager, error) {
	preset := GetPreset(name)
	if preset == nil {
		return nil, fmt.Errorf("camera: unknown preset %q", name)
	}
	return &Manager{config: *preset}, nil
}

// GetConfig returns the current settings.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and applies cfg as a whole.
func (m *Manager) SetConfig(cfg Config) error {
	m.mu.Lock()
	onChange, err := m.store(cfg)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return notify(onChange, cfg)
}

// store validates and applies cfg. Callers hold m.mu.
func (m *Manager) store(cfg Config) (func(Config) error, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	m.config = cfg
	return m.OnConfigChange, nil
}

func notify(onChange func(Config) error, cfg Config) error {
	if onChange == nil {
		return nil
	}
	if err := onChange(cfg); err != nil {
		return fmt.Errorf("camera: apply config: %w", err)
	}
	return nil
}

// setters apply one JSON field onto a Config. Values of the wrong type
// are ignored; a non-empty return is a problem that rejects the update.
var setters = map[string]func(*Config, any) string{
	"facing": func(c *Config, v any) string {
		if s, ok := lower(v); ok {
			c.Facing = Facing(s)
		}
		return ""
	},
	"flash": func(c *Config, v any) string {
		if s, ok := lower(v); ok {
			c.Flash = Flash(s)
		}
		return ""
	},
	"filter_resize_mode": func(c *Config, v any) string {
		if s, ok := lower(v); ok {
			c.FilterResizeMode = ResizeMode(s)
		}
		return ""
	},
	"filter_asset": func(c *Config, v any) string {
		if s, ok := v.(string); ok {
			c.FilterAsset = s
		}
		return ""
	},
	"width":   intSetter("width", func(c *Config) *int { return &c.Width }),
	"height":  intSetter("height", func(c *Config) *int { return &c.Height }),
	"quality": intSetter("quality", func(c *Config) *int { return &c.Quality }),
}

// UpdateConfig applies a partial update decoded from JSON. A "preset" key
// is applied first and the other keys override it. Unknown keys and values
// of the wrong type are ignored; the result must still validate. The update
// is applied atomically with respect to other updates.
func (m *Manager) UpdateConfig(params map[string]any) error {
	m.mu.Lock()
	cfg := m.config

	if name, ok := params["preset"].(string); ok {
		preset := GetPreset(name)
		if preset == nil {
			m.mu.Unlock()
			return fmt.Errorf("camera: unknown preset %q", name)
		}
		cfg = *preset
	}

	var problems []string
	for key, value := range params {
		if set, ok := setters[key]; ok {
			if p := set(&cfg, value); p != "" {
				problems = append(problems, p)
			}
		}
	}
	if len(problems) > 0 {
		m.mu.Unlock()
		sort.Strings(problems)
		return &ValidationError{Problems: problems}
	}

	onChange, err := m.store(cfg)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return notify(onChange, cfg)
}

// GetConfigJSON returns the settings as a generic JSON object.
func (m *Manager) GetConfigJSON() map[string]any {
	data, _ := json.Marshal(m.GetConfig())
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}

// ValidationError lists every invalid field of a rejected config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "camera: invalid config: " + strings.Join(e.Problems, "; ")
}

func lower(v any) (string, bool) {
	s, ok := v.(string)
	return strings.ToLower(strings.TrimSpace(s)), ok
}

func intSetter(name string, field func(*Config) *int) func(*Config, any) string {
	return func(c *Config, v any) string {
		var n int
		switch val := v.(type) {
		case int:
			n = val
		case int64:
			n = int(val)
		case float64:
			if val != math.Trunc(val) {
				return fmt.Sprintf("%s must be a whole number, got %v", name, val)
			}
			n = int(val)
		case json.Number:
			i, err := val.Int64()
			if err != nil {
				return fmt.Sprintf("%s must be a whole number, got %s", name, val)
			}
			n = int(i)
		default:
			return ""
		}
		*field(c) = n
		return ""
	}
}
