package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/migadu/sievevm"
	"github.com/migadu/sievevm/interp"
)

// Config is the host-side configuration; everything the engine needs at
// run time is folded into a Runtime from here.
type Config struct {
	// Extensions allowed for scripts. Empty means all known extensions.
	Extensions []string `yaml:"extensions"`

	Limits struct {
		MaxNestedIncludes  int `yaml:"max_nested_includes"`
		MaxIncludedScripts int `yaml:"max_included_scripts"`
		MaxInstructions    int `yaml:"max_instructions"`
		MaxMessageSize     int `yaml:"max_message_size"`
	} `yaml:"limits"`

	// Environment items served to RFC 5183 tests.
	Environment map[string]string `yaml:"environment"`

	// SpamScore (0..10) and VirusScore (1..5); -1 leaves the tests to
	// suspend and be answered false.
	SpamScore  int `yaml:"spam_score"`
	VirusScore int `yaml:"virus_score"`

	// Lists backs extlists membership events.
	Lists map[string][]string `yaml:"lists"`

	// ScriptsDir is where include looks up scripts (<name>.sieve).
	ScriptsDir string `yaml:"scripts_dir"`

	// DuplicatesDB is the sqlite database path for the duplicate test.
	DuplicatesDB string `yaml:"duplicates_db"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Environment:  map[string]string{},
		SpamScore:    -1,
		VirusScore:   -1,
		ScriptsDir:   ".",
		DuplicatesDB: "duplicates.db",
	}
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) buildRuntime() *sievevm.Runtime {
	var caps []sievevm.Capability
	if len(cfg.Extensions) == 0 {
		caps = sievevm.AllCapabilities()
	} else {
		for _, e := range cfg.Extensions {
			caps = append(caps, interp.ParseCapability(e))
		}
	}

	limits := sievevm.DefaultLimits()
	if cfg.Limits.MaxNestedIncludes > 0 {
		limits.MaxNestedIncludes = cfg.Limits.MaxNestedIncludes
	}
	if cfg.Limits.MaxIncludedScripts > 0 {
		limits.MaxIncludedScripts = cfg.Limits.MaxIncludedScripts
	}
	if cfg.Limits.MaxInstructions > 0 {
		limits.MaxInstructions = cfg.Limits.MaxInstructions
	}
	if cfg.Limits.MaxMessageSize > 0 {
		limits.MaxMessageSize = cfg.Limits.MaxMessageSize
	}

	rt := sievevm.NewRuntime(caps, limits)
	for k, v := range cfg.Environment {
		rt.Environment[k] = v
	}
	rt.SpamScore = cfg.SpamScore
	rt.VirusScore = cfg.VirusScore
	return rt
}
