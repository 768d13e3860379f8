package camera

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Facing != Front || cfg.Flash != FlashOn {
		t.Errorf("DefaultConfig: got %s/%s, want front/on", cfg.Facing, cfg.Flash)
	}
	if cfg.FilterAsset != "filter.png" || cfg.FilterResizeMode != ResizeCover {
		t.Errorf("DefaultConfig filter: got %s/%s", cfg.FilterAsset, cfg.FilterResizeMode)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("DefaultConfig should be valid: %v", errs)
	}
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if cfg == nil {
				t.Fatalf("GetPreset(%q) = nil", name)
			}
			if errs := cfg.Validate(); len(errs) != 0 {
				t.Errorf("preset %s invalid: %v", name, errs)
			}
		})
	}
	if len(Presets()) != len(PresetNames()) {
		t.Error("Presets() and PresetNames() disagree")
	}
	if GetPreset("ultra") != nil {
		t.Error("GetPreset(ultra) should be nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errors int
	}{
		{"valid", func(c *Config) {}, 0},
		{"bad facing", func(c *Config) { c.Facing = "side" }, 1},
		{"bad flash", func(c *Config) { c.Flash = "strobe" }, 1},
		{"tiny width", func(c *Config) { c.Width = 10 }, 1},
		{"huge height", func(c *Config) { c.Height = 10000 }, 1},
		{"zero quality", func(c *Config) { c.Quality = 0 }, 1},
		{"no filter asset", func(c *Config) { c.FilterAsset = "" }, 1},
		{"bad resize", func(c *Config) { c.FilterResizeMode = "tile" }, 1},
		{"several", func(c *Config) { c.Facing = ""; c.Flash = ""; c.Quality = 101 }, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if got := cfg.Validate(); len(got) != tc.errors {
				t.Errorf("Validate() = %v, want %d errors", got, tc.errors)
			}
		})
	}
}

func TestManager_SetConfig(t *testing.T) {
	m := NewManager()

	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	cfg := RearConfig()
	if err := m.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if m.GetConfig() != cfg || len(applied) != 1 {
		t.Errorf("config not applied: %+v, callbacks %d", m.GetConfig(), len(applied))
	}

	bad := cfg
	bad.Flash = "strobe"
	err := m.SetConfig(bad)
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 1 {
		t.Fatalf("SetConfig(bad) error = %v, want ValidationError", err)
	}
	if m.GetConfig() != cfg || len(applied) != 1 {
		t.Error("invalid config changed state")
	}
}

func TestManager_CallbackError(t *testing.T) {
	m := NewManager()
	m.OnConfigChange = func(cfg Config) error { return errors.New("device offline") }

	if err := m.SetConfig(LowPowerConfig()); err == nil {
		t.Error("SetConfig() should report callback failure")
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:   "single field",
			params: map[string]any{"flash": "AUTO"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Flash != FlashAuto || cfg.Facing != Front {
					t.Errorf("got %+v", cfg)
				}
			},
		},
		{
			name:   "preset with override",
			params: map[string]any{"preset": "night", "quality": float64(70)},
			check: func(t *testing.T, cfg Config) {
				if cfg.Flash != FlashTorch || cfg.Facing != Back || cfg.Quality != 70 {
					t.Errorf("got %+v", cfg)
				}
			},
		},
		{
			name:   "unknown keys ignored",
			params: map[string]any{"zoom": 2, "width": "wide"},
			check: func(t *testing.T, cfg Config) {
				if cfg != DefaultConfig() {
					t.Errorf("got %+v", cfg)
				}
			},
		},
		{
			name:    "unknown preset",
			params:  map[string]any{"preset": "ultra"},
			wantErr: true,
		},
		{
			name:    "invalid value",
			params:  map[string]any{"facing": "up"},
			wantErr: true,
		},
		{
			name:    "fractional width",
			params:  map[string]any{"width": 1280.7},
			wantErr: true,
		},
		{
			name:    "fractional json number",
			params:  map[string]any{"height": json.Number("720.5")},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager()
			err := m.UpdateConfig(tc.params)
			if (err != nil) != tc.wantErr {
				t.Fatalf("UpdateConfig() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if m.GetConfig() != DefaultConfig() {
					t.Error("failed update changed config")
				}
				return
			}
			tc.check(t, m.GetConfig())
		})
	}
}

func TestManager_UpdateConfigFractionalProblem(t *testing.T) {
	err := NewManager().UpdateConfig(map[string]any{"width": 1280.7, "quality": 80})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("UpdateConfig() error = %v, want *ValidationError", err)
	}
	if len(verr.Problems) != 1 || !strings.Contains(verr.Problems[0], "width") {
		t.Errorf("Problems = %v", verr.Problems)
	}
}

func TestManager_ConcurrentUpdatesKeepBothFields(t *testing.T) {
	for i := 0; i < 200; i++ {
		m := NewManager()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.UpdateConfig(map[string]any{"flash": "auto"})
		}()
		go func() {
			defer wg.Done()
			m.UpdateConfig(map[string]any{"quality": float64(55)})
		}()
		wg.Wait()

		if cfg := m.GetConfig(); cfg.Flash != FlashAuto || cfg.Quality != 55 {
			t.Fatalf("round %d: lost update, got flash=%s quality=%d", i, cfg.Flash, cfg.Quality)
		}
	}
}

func TestNewManagerWithPreset(t *testing.T) {
	m, err := NewManagerWithPreset(PresetLowPower)
	if err != nil || m.GetConfig() != LowPowerConfig() {
		t.Fatalf("NewManagerWithPreset() = %+v, %v", m, err)
	}
	if _, err := NewManagerWithPreset("nope"); err == nil {
		t.Error("unknown preset should fail")
	}
}

func TestGetConfigJSON(t *testing.T) {
	got := NewManager().GetConfigJSON()
	if got["facing"] != "front" || got["flash"] != "on" || got["filter_asset"] != "filter.png" {
		t.Errorf("GetConfigJSON() = %v", got)
	}
}
