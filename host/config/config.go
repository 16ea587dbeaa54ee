// Package config loads the description of a test bench: the module consoles
// the host is wired to and the slave modules expected behind them.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"oihost/host/oi"
	"oihost/host/serial"
	"oihost/protocol"
)

// Config is a bench description
type Config struct {
	Consoles []Console `yaml:"consoles"`
	Modules  []Module  `yaml:"modules"`
}

// Console is one serial console on a module
type Console struct {
	Name           string `yaml:"name"`
	Device         string `yaml:"device"`
	Baud           int    `yaml:"baud"`
	Backend        string `yaml:"backend"`
	Role           string `yaml:"role"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	ReplyTimeoutMs int    `yaml:"reply_timeout_ms"`
}

// Module is a slave expected on the bus of a console
type Module struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // board name or number
	SerialNumber int    `yaml:"serial_number"`
	ExpectedID   int    `yaml:"expected_id"` // 0 when not checked
	Console      string `yaml:"console"`
}

// Load reads and parses the bench file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Parse decodes a bench description and applies defaults. It does not
// validate; call Validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in missing values
func applyDefaults(cfg *Config) {
	def := serial.DefaultConfig("")
	for i := range cfg.Consoles {
		c := &cfg.Consoles[i]
		if c.Baud == 0 {
			c.Baud = def.Baud
		}
		if c.Backend == "" {
			c.Backend = def.Backend
		}
		if c.Role == "" {
			c.Role = protocol.RoleCore
		}
		if c.ReadTimeoutMs == 0 {
			c.ReadTimeoutMs = def.ReadTimeout
		}
		if c.ReplyTimeoutMs == 0 {
			c.ReplyTimeoutMs = int(oi.DefaultTimeout / time.Millisecond)
		}
	}

	// A single console serves every module
	if len(cfg.Consoles) == 1 {
		for i := range cfg.Modules {
			if cfg.Modules[i].Console == "" {
				cfg.Modules[i].Console = cfg.Consoles[0].Name
			}
		}
	}
}

// SerialConfig returns the port settings of the console
func (c Console) SerialConfig() *serial.Config {
	return &serial.Config{
		Device:      c.Device,
		Baud:        c.Baud,
		ReadTimeout: c.ReadTimeoutMs,
		Backend:     c.Backend,
	}
}

// Prompt returns the prompt printed by the console
func (c Console) Prompt() string {
	return protocol.PromptFor(c.Role)
}

// ReplyTimeout returns the per-reply timeout
func (c Console) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutMs) * time.Millisecond
}

// BoardType parses the module type
func (m Module) BoardType() (oi.BoardType, error) {
	return oi.ParseBoardType(m.Type)
}

// Console returns the console named name
func (cfg *Config) Console(name string) (Console, bool) {
	for _, c := range cfg.Consoles {
		if c.Name == name {
			return c, true
		}
	}
	return Console{}, false
}

// ModulesOn returns the modules expected behind the named console
func (cfg *Config) ModulesOn(console string) []Module {
	var out []Module
	for _, m := range cfg.Modules {
		if m.Console == console {
			out = append(out, m)
		}
	}
	return out
}
