// Package config handles configuration for pageflow.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/pageflow/pkg/fixture"
)

// Supported browser drivers.
const (
	DriverPlaywright = "playwright"
	DriverCDP        = "cdp"
	DriverMock       = "mock"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	BaseURL string `yaml:"baseUrl"` // Relative goto targets resolve against it

	// Flow selection
	Flows       []string `yaml:"flows"`       // Glob patterns for flows
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	Fixtures string            `yaml:"fixtures"` // Fixtures file
	Env      map[string]string `yaml:"env"`      // Variables available as $NAME

	// Cases chain flows on one session each. Without cases every selected
	// flow runs as its own case.
	Cases []Case `yaml:"cases"`

	// Execution settings
	Parallelism int    `yaml:"parallelism"` // Max concurrent cases (0 = sequential)
	StopOnFail  bool   `yaml:"stopOnFail"`
	Output      string `yaml:"output"` // Report directory

	Browser  Browser  `yaml:"browser"`
	Timeouts Timeouts `yaml:"timeouts"`
	Log      Log      `yaml:"log"`

	dir string // directory the file was loaded from
}

// Case is a named chain of flows run on one fresh session.
type Case struct {
	Name     string      `yaml:"name"`
	Start    string      `yaml:"start"`    // Path navigated to first
	Flows    []string    `yaml:"flows"`    // Flow names or files, in order
	Fixtures fixture.Set `yaml:"fixtures"` // Layered over the fixtures file
}

// Browser configures the browser driver.
type Browser struct {
	Driver      string       `yaml:"driver"`   // playwright, cdp or mock
	Headless    *bool        `yaml:"headless"` // Default true
	Permissions []string     `yaml:"permissions"`
	Geolocation *Geolocation `yaml:"geolocation"`
	SlowMo      Duration     `yaml:"slowMo"`
	Viewport    *Viewport    `yaml:"viewport"`
}

// IsHeadless reports whether the browser runs without a window.
func (b Browser) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// Geolocation overrides the browser's reported position.
type Geolocation struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Accuracy  float64 `yaml:"accuracy"`
}

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Timeouts are the session budgets.
type Timeouts struct {
	Resolve    Duration `yaml:"resolve"`
	Action     Duration `yaml:"action"`
	Gate       Duration `yaml:"gate"`
	Navigation Duration `yaml:"navigation"`
	Poll       Duration `yaml:"poll"`  // Interval between observations
	Frame      Duration `yaml:"frame"` // Delay between the two stability reads
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	File   string `yaml:"file"`   // Optional log file, rotated
	Format string `yaml:"format"` // console or json
}

// Duration is a time.Duration read from YAML as "1.5s" or as milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var ms int64
	if err := node.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	cfg.ApplyDefaults()

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	cfg := Default()
	cfg.dir = dir
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if len(c.Flows) == 0 {
		c.Flows = []string{"**/*.yaml"}
	}
	if c.Browser.Driver == "" {
		c.Browser.Driver = DriverPlaywright
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Output == "" {
		c.Output = "reports"
	}
	setDefault(&c.Timeouts.Resolve, 5*time.Second)
	setDefault(&c.Timeouts.Action, 5*time.Second)
	setDefault(&c.Timeouts.Gate, 10*time.Second)
	setDefault(&c.Timeouts.Navigation, 30*time.Second)
	setDefault(&c.Timeouts.Poll, 100*time.Millisecond)
	setDefault(&c.Timeouts.Frame, 16*time.Millisecond)
}

func setDefault(d *Duration, v time.Duration) {
	if *d <= 0 {
		*d = Duration(v)
	}
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error
	switch c.Browser.Driver {
	case DriverPlaywright, DriverCDP, DriverMock:
	default:
		errs = append(errs, fmt.Errorf("browser.driver: unknown driver %q", c.Browser.Driver))
	}
	if c.Parallelism < 0 {
		errs = append(errs, errors.New("parallelism must not be negative"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if g := c.Browser.Geolocation; g != nil {
		if g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180 {
			errs = append(errs, errors.New("browser.geolocation: out of range"))
		}
	}
	seen := make(map[string]bool)
	for i, cs := range c.Cases {
		switch {
		case cs.Name == "":
			errs = append(errs, fmt.Errorf("cases[%d]: name is required", i))
		case seen[cs.Name]:
			errs = append(errs, fmt.Errorf("cases[%d]: duplicate name %q", i, cs.Name))
		}
		seen[cs.Name] = true
		if len(cs.Flows) == 0 {
			errs = append(errs, fmt.Errorf("cases[%d]: no flows", i))
		}
	}
	return errors.Join(errs...)
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string { return c.dir }

// ResolvePath resolves a path relative to the configuration's directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// LoadFixtures reads the fixtures file, if any, with environment
// overrides applied.
func (c *Config) LoadFixtures() (fixture.Set, error) {
	set := fixture.Set{}
	if c.Fixtures != "" {
		var err error
		if set, err = fixture.Load(c.ResolvePath(c.Fixtures)); err != nil {
			return nil, fmt.Errorf("fixtures: %w", err)
		}
	}
	return set.WithEnv(os.Environ()), nil
}
