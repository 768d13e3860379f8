package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetRear     = "rear"
	PresetNight    = "night"
	PresetLowPower = "low_power"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetRear:     RearConfig(),
		PresetNight:    NightConfig(),
		PresetLowPower: LowPowerConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetRear, PresetNight, PresetLowPower}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// RearConfig uses the back lens for scanning the scene, flash on demand.
func RearConfig() Config {
	cfg := DefaultConfig()
	cfg.Facing = Back
	cfg.Flash = FlashAuto
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// NightConfig keeps the torch lit for continuous low-light preview.
func NightConfig() Config {
	cfg := RearConfig()
	cfg.Flash = FlashTorch
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// LowPowerConfig trades resolution and flash for battery.
func LowPowerConfig() Config {
	cfg := DefaultConfig()
	cfg.Flash = FlashOff
	cfg.Width = 640
	cfg.Height = 480
	cfg.Quality = 60
	return cfg
}
