// Package config loads portalkeeper settings from an optional YAML file and
// the portal account from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/portalkeeper/pkg/logging"
	"github.com/entrhq/portalkeeper/pkg/portal"
	"github.com/entrhq/portalkeeper/pkg/probe"
)

// DefaultInterval is the pause between connectivity checks.
const DefaultInterval = 10 * time.Second

// Config is the full portalkeeper configuration.
type Config struct {
	// Interval is the pause after every check cycle
	Interval time.Duration `yaml:"interval" json:"interval"`

	Probe   ProbeConfig   `yaml:"probe" json:"probe"`
	Portal  PortalConfig  `yaml:"portal" json:"portal"`
	Browser BrowserConfig `yaml:"browser" json:"browser"`
	History HistoryConfig `yaml:"history" json:"history"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// ConfigFilePath is the file this config was read from, if any
	ConfigFilePath string `yaml:"-" json:"-"`
}

// ProbeConfig controls reachability checks.
type ProbeConfig struct {
	Endpoints          []string      `yaml:"endpoints" json:"endpoints"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	DetectInterception bool          `yaml:"detect_interception" json:"detect_interception"`
	PortalHosts        []string      `yaml:"portal_hosts" json:"portal_hosts"` // glob patterns, '.' separated
}

// PortalConfig describes the login page.
type PortalConfig struct {
	URL         string        `yaml:"url" json:"url"`
	Fields      portal.Fields `yaml:"fields" json:"fields"`
	WaitTimeout time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// BrowserConfig controls the automated browser.
type BrowserConfig struct {
	Headless bool   `yaml:"headless" json:"headless"`
	Channel  string `yaml:"channel" json:"channel"` // e.g. "chrome"; empty uses bundled chromium
	RelaxTLS bool   `yaml:"relax_tls" json:"relax_tls"`
	TempRoot string `yaml:"temp_root" json:"temp_root"`
}

// HistoryConfig enables the sqlite event log. Empty Path disables it.
type HistoryConfig struct {
	Path string `yaml:"path" json:"path"`
}

// NotifyConfig enables desktop notifications.
type NotifyConfig struct {
	Desktop bool `yaml:"desktop" json:"desktop"`
}

// LoggingConfig configures logging behavior
type LoggingConfig struct {
	// Verbosity: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Interval: DefaultInterval,
		Probe: ProbeConfig{
			Endpoints: append([]string(nil), probe.DefaultEndpoints...),
			Timeout:   probe.DefaultTimeout,
		},
		Portal: PortalConfig{
			URL:         portal.DefaultURL,
			Fields:      portal.DefaultFields,
			WaitTimeout: portal.DefaultWaitTimeout,
			SettleDelay: portal.DefaultSettleDelay,
		},
		Browser: BrowserConfig{
			RelaxTLS: true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// LoadFile reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ConfigFilePath = path

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	if len(c.Probe.Endpoints) == 0 {
		return fmt.Errorf("at least one probe endpoint is required")
	}
	for i, ep := range c.Probe.Endpoints {
		if ep == "" {
			return fmt.Errorf("probe endpoint %d is empty", i)
		}
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if _, err := probe.CompileHosts(c.Probe.PortalHosts); err != nil {
		return err
	}

	if c.Portal.URL == "" {
		return fmt.Errorf("portal url is required")
	}
	if err := c.Portal.Fields.Validate(); err != nil {
		return err
	}
	if c.Portal.WaitTimeout <= 0 {
		return fmt.Errorf("portal wait_timeout must be positive")
	}
	if c.Portal.SettleDelay < 0 {
		return fmt.Errorf("portal settle_delay cannot be negative")
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if _, err := logging.ParseVerbosity(c.Logging.Verbosity); err != nil {
		return err
	}

	return nil
}

// ProberConfig converts the probe section.
func (c *Config) ProberConfig() probe.Config {
	fields := c.Portal.Fields
	return probe.Config{
		Endpoints:          c.Probe.Endpoints,
		Timeout:            c.Probe.Timeout,
		DetectInterception: c.Probe.DetectInterception,
		PortalHosts:        c.Probe.PortalHosts,
		FormFields:         []string{fields.Identifier, fields.Secret},
	}
}

// PortalOptions converts the portal and browser sections.
func (c *Config) PortalOptions() portal.Options {
	return portal.Options{
		URL:         c.Portal.URL,
		Fields:      c.Portal.Fields,
		WaitTimeout: c.Portal.WaitTimeout,
		SettleDelay: c.Portal.SettleDelay,
		Headless:    c.Browser.Headless,
		Channel:     c.Browser.Channel,
		RelaxTLS:    c.Browser.RelaxTLS,
		TempRoot:    c.Browser.TempRoot,
	}
}
