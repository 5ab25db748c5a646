package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Serial   SerialConfig   `yaml:"serial"`
	Storage  StorageConfig  `yaml:"storage"`
	Display  DisplayConfig  `yaml:"display"`
	Settings SettingsConfig `yaml:"settings"`
}

// CameraConfig contains camera acquisition configuration.
type CameraConfig struct {
	Index        int           `yaml:"index"`         // -1 means auto-detect
	MaxScan      int           `yaml:"max_scan"`      // highest index probed during auto-detect
	FrameWidth   int           `yaml:"frame_width"`   // requested capture width (cameras may ignore it)
	FrameHeight  int           `yaml:"frame_height"`  // requested capture height
	TickInterval time.Duration `yaml:"tick_interval"` // period of the frame-processing cycle
}

// SerialConfig contains serial forwarding configuration.
type SerialConfig struct {
	Port string `yaml:"port"` // empty means no hardware forwarding
	Baud int    `yaml:"baud"`
}

// StorageConfig contains scan persistence configuration.
type StorageConfig struct {
	SaveRoot string `yaml:"save_root"` // empty means current working directory
	Order    string `yaml:"order"`
}

// DisplayConfig contains the target box for the display frame.
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SettingsConfig contains operator settings.
type SettingsConfig struct {
	BeepEnabled bool   `yaml:"beep_enabled"`
	Theme       string `yaml:"theme"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Index:        -1,
			MaxScan:      8,
			FrameWidth:   1280,
			FrameHeight:  720,
			TickInterval: 30 * time.Millisecond,
		},
		Serial: SerialConfig{
			Port: "",
			Baud: 9600,
		},
		Storage: StorageConfig{
			SaveRoot: "",
			Order:    "",
		},
		Display: DisplayConfig{
			Width:  640,
			Height: 480,
		},
		Settings: SettingsConfig{
			BeepEnabled: true,
			Theme:       "Dark",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Camera.MaxScan == 0 {
		c.Camera.MaxScan = def.Camera.MaxScan
	}
	if c.Camera.FrameWidth == 0 {
		c.Camera.FrameWidth = def.Camera.FrameWidth
	}
	if c.Camera.FrameHeight == 0 {
		c.Camera.FrameHeight = def.Camera.FrameHeight
	}
	if c.Camera.TickInterval == 0 {
		c.Camera.TickInterval = def.Camera.TickInterval
	}

	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Display.Width == 0 {
		c.Display.Width = def.Display.Width
	}
	if c.Display.Height == 0 {
		c.Display.Height = def.Display.Height
	}

	if c.Settings.Theme == "" {
		c.Settings.Theme = def.Settings.Theme
	}
}
