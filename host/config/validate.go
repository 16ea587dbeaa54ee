package config

import (
	"fmt"
	"strings"

	"oihost/host/serial"
)

// ValidationError lists every problem found in a configuration
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration without modifying it
func (cfg *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(cfg.Consoles) == 0 {
		addf("no consoles defined")
	}

	consoles := make(map[string]bool)
	for i, c := range cfg.Consoles {
		if c.Name == "" {
			addf("console #%d: missing name", i)
		} else if consoles[c.Name] {
			addf("console %q: duplicate name", c.Name)
		}
		consoles[c.Name] = true

		if c.Device == "" {
			addf("console %q: missing device", c.Name)
		}
		if c.Backend != serial.BackendTarm && c.Backend != serial.BackendBugst {
			addf("console %q: unknown backend %q", c.Name, c.Backend)
		}
		if c.Baud < 0 || c.ReadTimeoutMs < 0 || c.ReplyTimeoutMs < 0 {
			addf("console %q: negative baud or timeout", c.Name)
		}
	}

	modules := make(map[string]bool)
	// key = console | expected id
	ids := make(map[string]string)
	for i, m := range cfg.Modules {
		if m.Name == "" {
			addf("module #%d: missing name", i)
		} else if modules[m.Name] {
			addf("module %q: duplicate name", m.Name)
		}
		modules[m.Name] = true

		if _, err := m.BoardType(); err != nil {
			addf("module %q: %v", m.Name, err)
		}
		if !consoles[m.Console] {
			addf("module %q: unknown console %q", m.Name, m.Console)
		}
		if m.ExpectedID < 0 {
			addf("module %q: negative expected_id", m.Name)
		}

		if m.ExpectedID > 0 {
			key := fmt.Sprintf("%s|%d", m.Console, m.ExpectedID)
			if prev, exists := ids[key]; exists {
				addf("expected_id %d on console %q used by modules %q and %q", m.ExpectedID, m.Console, prev, m.Name)
			}
			ids[key] = m.Name
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
