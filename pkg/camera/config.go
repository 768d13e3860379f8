// Package camera holds the runtime-configurable settings of the camera view:
// which lens is used, the flash, capture size and the filter overlay.
package camera

import "slices"

// Facing selects the lens.
type Facing string

const (
	Front Facing = "front"
	Back  Facing = "back"
)

// Flash is the flash mode.
type Flash string

const (
	FlashOff   Flash = "off"
	FlashOn    Flash = "on"
	FlashAuto  Flash = "auto"
	FlashTorch Flash = "torch"
)

// ResizeMode is how the filter image is fitted to the preview.
type ResizeMode string

const (
	ResizeCover   ResizeMode = "cover"
	ResizeContain ResizeMode = "contain"
	ResizeStretch ResizeMode = "stretch"
)

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	Facing Facing `json:"facing"`
	Flash  Flash  `json:"flash"`

	// === Capture ===
	Width   int `json:"width"`   // Frame width in pixels
	Height  int `json:"height"`  // Frame height in pixels
	Quality int `json:"quality"` // JPEG quality 1-100

	// === Filter overlay ===
	// FilterAsset is drawn over the camera preview when the filter mode is on.
	FilterAsset      string     `json:"filter_asset"`
	FilterResizeMode ResizeMode `json:"filter_resize_mode"`
}

const (
	MaxWidth  = 4096
	MaxHeight = 4096
)

var (
	facings     = []Facing{Front, Back}
	flashModes  = []Flash{FlashOff, FlashOn, FlashAuto, FlashTorch}
	resizeModes = []ResizeMode{ResizeCover, ResizeContain, ResizeStretch}
)

// DefaultConfig returns the selfie setup: front lens with the flash on.
func DefaultConfig() Config {
	return Config{
		Facing:           Front,
		Flash:            FlashOn,
		Width:            1280,
		Height:           720,
		Quality:          85,
		FilterAsset:      "filter.png",
		FilterResizeMode: ResizeCover,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if !slices.Contains(facings, c.Facing) {
		errors = append(errors, "facing must be front or back")
	}
	if !slices.Contains(flashModes, c.Flash) {
		errors = append(errors, "flash must be off, on, auto, or torch")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 4096")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.FilterAsset == "" {
		errors = append(errors, "filter_asset must not be empty")
	}
	if !slices.Contains(resizeModes, c.FilterResizeMode) {
		errors = append(errors, "filter_resize_mode must be cover, contain, or stretch")
	}

	return errors
}

// Capabilities returns what the camera settings accept.
func Capabilities() map[string]any {
	return map[string]any{
		"facings":      facings,
		"flash_modes":  flashModes,
		"resize_modes": resizeModes,
		"max_width":    MaxWidth,
		"max_height":   MaxHeight,
		"presets":      PresetNames(),
	}
}
