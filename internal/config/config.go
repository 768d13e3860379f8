// Package config loads go-viewfinder configuration from defaults, an
// optional config file and VIEWFINDER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (server.port → VIEWFINDER_SERVER_PORT).
const EnvPrefix = "VIEWFINDER"

// Default values.
const (
	DefaultHost       = "0.0.0.0"
	DefaultPort       = 8090
	DefaultLogLevel   = "info"
	DefaultModelPath  = "models/yolov8n.onnx"
	DefaultMaxResults = 10
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Detector DetectorConfig `mapstructure:"detector"`
	Picker   PickerConfig   `mapstructure:"picker"`
	Overlay  OverlayConfig  `mapstructure:"overlay"`
	Camera   CameraConfig   `mapstructure:"camera"`
}

// ServerConfig holds the HTTP/websocket listener settings.
type ServerConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// Addr returns host:port for fiber's Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DetectorConfig selects and configures detection backends.
// Backends are tried in order; valid names are "cloudvision" and "yolo".
type DetectorConfig struct {
	Backends    []string          `mapstructure:"backends"`
	YOLO        YOLOConfig        `mapstructure:"yolo"`
	CloudVision CloudVisionConfig `mapstructure:"cloudvision"`
}

// YOLOConfig configures the on-device ONNX detector.
type YOLOConfig struct {
	ModelPath        string  `mapstructure:"model_path"`
	ConfidenceThresh float64 `mapstructure:"confidence_thresh"`
	NMSThresh        float64 `mapstructure:"nms_thresh"`
	InputWidth       int     `mapstructure:"input_width"`
	InputHeight      int     `mapstructure:"input_height"`
}

// CloudVisionConfig configures Google Cloud Vision object localization.
// With no credentials file, application default credentials are used.
type CloudVisionConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
	MaxResults      int    `mapstructure:"max_results"`
}

// PickerConfig holds the options passed to the image picker.
type PickerConfig struct {
	AllowEditing bool `mapstructure:"allow_editing"`
	AspectWidth  int  `mapstructure:"aspect_width"`
	AspectHeight int  `mapstructure:"aspect_height"`
}

// OverlayConfig tunes anchor placement.
type OverlayConfig struct {
	LabelDepth float64 `mapstructure:"label_depth"` // meters in front of the camera
	ModelScale float64 `mapstructure:"model_scale"`
}

// CameraConfig selects the startup camera preset.
type CameraConfig struct {
	Preset string `mapstructure:"preset"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.debug", false)
	v.SetDefault("log.level", DefaultLogLevel)

	// yolo needs a gocv build; cloudvision covers default builds.
	v.SetDefault("detector.backends", []string{"yolo", "cloudvision"})
	v.SetDefault("detector.yolo.model_path", DefaultModelPath)
	v.SetDefault("detector.yolo.confidence_thresh", 0.5)
	v.SetDefault("detector.yolo.nms_thresh", 0.45)
	v.SetDefault("detector.yolo.input_width", 640)
	v.SetDefault("detector.yolo.input_height", 640)
	v.SetDefault("detector.cloudvision.credentials_file", "")
	v.SetDefault("detector.cloudvision.endpoint", "")
	v.SetDefault("detector.cloudvision.max_results", DefaultMaxResults)

	// Matches the original picker call: editing allowed, 4:3 crop.
	v.SetDefault("picker.allow_editing", true)
	v.SetDefault("picker.aspect_width", 4)
	v.SetDefault("picker.aspect_height", 3)

	v.SetDefault("overlay.label_depth", 0.5)
	v.SetDefault("overlay.model_scale", 0.01)

	v.SetDefault("camera.preset", "default")
}

// Load reads configuration from file and env.
// The file is VIEWFINDER_CONFIG if set, else $HOME/.config/viewfinder/config.{yaml,toml,json}.
// A missing file is not an error.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "viewfinder"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if p, ok := Port(); ok {
		c.Server.Port = p
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Default returns the configuration with no file and no env applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return c
}

// Validate checks the values a running service depends on.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	for _, b := range c.Detector.Backends {
		switch b {
		case "yolo", "cloudvision":
		default:
			return fmt.Errorf("config: unknown detector backend %q", b)
		}
	}
	if c.Picker.AspectWidth < 0 || c.Picker.AspectHeight < 0 {
		return fmt.Errorf("config: picker aspect must be positive")
	}
	return nil
}

// Port returns the port from the PORT env var, which hosting platforms set.
// It takes precedence over VIEWFINDER_SERVER_PORT.
func Port() (int, bool) {
	raw := os.Getenv("PORT")
	if raw == "" {
		return 0, false
	}
	p, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return p, true
}
