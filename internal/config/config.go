// Package config carries the named runtime configuration shared by the
// recording and replay managers. Everything here has a usable default;
// a YAML file can override the defaults for a whole tool installation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultManifestName is the fixed name of the manifest file inside a
// recording directory.
const DefaultManifestName = "manifest.json"

// Options is the named configuration for recording and replay.
type Options struct {
	// ManifestName is the manifest filename inside a recording directory.
	ManifestName string

	// SkippableExecutables lists wrapper executables (shell-env wrappers
	// and the like) skipped when deriving the human identifier in a
	// recorded entry's basename.
	SkippableExecutables []string

	// ReplayDelay is the artificial scheduling delay before a fabricated
	// replay process emits its captured output. Zero still defers
	// emission by at least one scheduling tick.
	ReplayDelay time.Duration
}

// fileOptions is the YAML shape of Options. Durations are parsed from
// time.ParseDuration strings ("50ms").
type fileOptions struct {
	ManifestName         string   `yaml:"manifest_name"`
	SkippableExecutables []string `yaml:"skippable_executables"`
	ReplayDelay          string   `yaml:"replay_delay"`
}

// Default returns the options used when no file overrides them.
func Default() Options {
	return Options{
		ManifestName:         DefaultManifestName,
		SkippableExecutables: []string{"env", "nice", "time"},
	}
}

// Load reads options from a YAML file, filling unset fields from Default.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var file fileOptions
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Options{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	opts := Options{
		ManifestName:         file.ManifestName,
		SkippableExecutables: file.SkippableExecutables,
	}
	if file.ReplayDelay != "" {
		delay, err := time.ParseDuration(file.ReplayDelay)
		if err != nil {
			return Options{}, fmt.Errorf("parse config %s: replay_delay: %w", path, err)
		}
		opts.ReplayDelay = delay
	}
	return opts.withDefaults(), nil
}

// withDefaults fills zero-valued fields from Default. ReplayDelay is left
// alone: zero is a meaningful setting there.
func (o Options) withDefaults() Options {
	d := Default()
	if o.ManifestName == "" {
		o.ManifestName = d.ManifestName
	}
	if o.SkippableExecutables == nil {
		o.SkippableExecutables = d.SkippableExecutables
	}
	return o
}

// Skippable reports whether the executable name is one of the wrapper
// executables excluded from basename identifiers.
func (o Options) Skippable(executable string) bool {
	for _, s := range o.SkippableExecutables {
		if s == executable {
			return true
		}
	}
	return false
}
