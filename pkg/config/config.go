// Package config loads tmplcheck's TOML configuration.
//
//	[engine]
//	timeout = "5s"
//	trace = false
//	concurrency = 4
//
//	[checks.RemoteAsset]
//	enabled = true
//	severity = "suggestion"
//	cdn_root = "https://cdn.shopify.com/"
//
// Keys of a check section other than enabled and severity are passed to the check as options.
package config

import (
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/offense"
)

const DefaultPath = ".tmplcheck.toml"

var ErrUnknownCheck = errors.Base("unknown check")

type Engine struct {
	Timeout     time.Duration `toml:"timeout"`
	Trace       bool          `toml:"trace"`
	Concurrency int           `toml:"concurrency"`
}

type Config struct {
	Engine Engine                    `toml:"engine"`
	Checks map[string]map[string]any `toml:"checks"`
}

func Default() *Config {
	return &Config{
		Engine: Engine{
			Timeout:     check.DefaultTimeout,
			Concurrency: 4,
		},
		Checks: map[string]map[string]any{},
	}
}

// Load reads path from fs over the defaults. known lists the check names a section may
// name; a nil known accepts any.
func Load(fs afero.Fs, path string, known []string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config: %w", err)
	}

	cfg := Default()
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Errorf("%s: parsing TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	if cfg.Engine.Timeout <= 0 {
		return nil, errors.Errorf("%s: [engine].timeout must be positive", path)
	}

	if known != nil {
		allowed := map[string]bool{}
		for _, name := range known {
			allowed[name] = true
		}
		for _, name := range cfg.sectionNames() {
			if !allowed[name] {
				return nil, errors.WithDetails(ErrUnknownCheck, "check", name, "path", path)
			}
		}
	}

	for _, name := range cfg.sectionNames() {
		if raw, ok := cfg.Checks[name]["severity"]; ok {
			s, ok := raw.(string)
			if !ok {
				return nil, errors.Errorf("%s: [checks.%s].severity must be a string", path, name)
			}
			if _, err := offense.ParseSeverity(s); err != nil {
				return nil, errors.Errorf("%s: [checks.%s]: %w", path, name, err)
			}
		}
	}

	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when path does not exist.
func LoadOrDefault(fs afero.Fs, path string, known []string) (*Config, error) {
	ok, err := afero.Exists(fs, path)
	if err != nil {
		return nil, errors.Errorf("checking config: %w", err)
	}
	if !ok {
		return Default(), nil
	}
	return Load(fs, path, known)
}

func (c *Config) sectionNames() []string {
	names := make([]string, 0, len(c.Checks))
	for name := range c.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled reports whether the named check should run. Checks are enabled unless
// configured otherwise.
func (c *Config) Enabled(name string) bool {
	v, ok := c.Checks[name]["enabled"].(bool)
	return !ok || v
}

type configurable interface {
	Configure(map[string]any)
	SetSeverity(offense.Severity)
}

// Apply returns the enabled checks of cs with their configured severity and options set.
func (c *Config) Apply(cs []check.Check) ([]check.Check, error) {
	var out []check.Check
	for _, ch := range cs {
		if !c.Enabled(ch.Name()) {
			continue
		}

		section := c.Checks[ch.Name()]
		if len(section) > 0 {
			cc, ok := ch.(configurable)
			if !ok {
				return nil, errors.Errorf("check %s cannot be configured", ch.Name())
			}

			opts := map[string]any{}
			for k, v := range section {
				switch k {
				case "enabled":
				case "severity":
					name, _ := v.(string)
					s, err := offense.ParseSeverity(name)
					if err != nil {
						return nil, errors.Errorf("[checks.%s]: %w", ch.Name(), err)
					}
					cc.SetSeverity(s)
				default:
					opts[k] = v
				}
			}
			cc.Configure(opts)
		}

		out = append(out, ch)
	}
	return out, nil
}
