// Package settings loads the physics scheduler's configuration.
package settings

import (
	"os"

	"github.com/pelletier/go-toml"

	physics "github.com/embervale/physics"
)

// Physics holds the scheduler tunables read from the [physics] table.
type Physics struct {
	// StepDuration is the fixed simulation step size in seconds.
	StepDuration float32 `toml:"step_duration"`
	// AsyncNumThreads is the worker pool size; 0 runs synchronously.
	AsyncNumThreads int `toml:"async_num_threads"`
	// LOSCacheExpiry is how many frames an unused line-of-sight result is
	// kept before eviction.
	LOSCacheExpiry int `toml:"lineofsight_cache_expiry"`
}

// Settings is the root of the configuration file.
type Settings struct {
	Physics Physics `toml:"physics"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	return Settings{
		Physics: Physics{
			StepDuration:    1.0 / 60.0,
			AsyncNumThreads: 1,
			LOSCacheExpiry:  0,
		},
	}
}

// Options converts the physics table into scheduler options. The solver,
// mechanics sink and logger are runtime collaborators; callers fill those in
// before handing the options to physics.New.
func (s Settings) Options() physics.Options {
	return physics.Options{
		StepDuration:   s.Physics.StepDuration,
		NumThreads:     s.Physics.AsyncNumThreads,
		LOSCacheExpiry: s.Physics.LOSCacheExpiry,
	}
}

// Load reads a TOML settings file, filling unset values from Default.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}
