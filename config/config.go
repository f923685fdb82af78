package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX    ControllerType = "launchpad-x"
	ControllerLaunchpadMini ControllerType = "launchpad-mini"
	ControllerLaunchpadPro  ControllerType = "launchpad-pro"
	ControllerKeyboard      ControllerType = "keyboard"
)

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName     string         `json:"portName"`
	Type         ControllerType `json:"type"`
	AutoConnect  bool           `json:"autoConnect"`
	InputChannel int            `json:"inputChannel,omitempty"` // 1-16, 0 = every channel
	ShowLights   bool           `json:"showLights,omitempty"`   // mirror the frame on a Launchpad's pads
}

// SerialOutputConfig is an LED strip behind a serial bridge
type SerialOutputConfig struct {
	Port string `json:"port,omitempty"`
	Baud int    `json:"baud,omitempty"`
}

// ArtNetOutputConfig is a DMX node reached over Art-Net
type ArtNetOutputConfig struct {
	Addr     string `json:"addr,omitempty"` // host:port, port defaults to 6454
	Universe int    `json:"universe,omitempty"`
}

// OutputsConfig lists the light outputs besides Launchpad pads
type OutputsConfig struct {
	Serial SerialOutputConfig `json:"serial,omitempty"`
	ArtNet ArtNetOutputConfig `json:"artnet,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Monitor  bool   `json:"monitor"`
	LastShow string `json:"lastShow,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	Outputs     OutputsConfig      `json:"outputs,omitempty"`
	UI          UIConfig           `json:"ui,omitempty"`
	ShowPath    string             `json:"showPath,omitempty"`
	TickHz      int                `json:"tickHz,omitempty"`
	HTTPAddr    string             `json:"httpAddr,omitempty"`
	LogLevel    string             `json:"logLevel,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Type:        ControllerLaunchpadX,
				AutoConnect: true,
				ShowLights:  true,
			},
		},
		Outputs: OutputsConfig{
			Serial: SerialOutputConfig{Baud: 115200},
		},
		UI: UIConfig{
			Monitor: true,
		},
		ShowPath: "show.yaml",
		TickHz:   60,
		HTTPAddr: ":8080",
		LogLevel: "info",
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-lightsynth"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config from path. Missing fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
