// Package config holds the driver configuration: detector parameters,
// script location, quadrature and overlap settings, and logging.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazu/detgeom/pkg/detector"
	"github.com/chazu/detgeom/pkg/mean"
	"github.com/chazu/detgeom/pkg/overlap"
	"github.com/chazu/detgeom/pkg/script"
)

const (
	DefaultMeshCells = 200
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the full configuration of the detgeom tools. Load fills it over
// DefaultConfig, so a file only needs the keys it changes.
type Config struct {
	Detector   detector.Params  `yaml:"detector"`
	Script     ScriptConfig     `yaml:"script"`
	Quadrature QuadratureConfig `yaml:"quadrature"`
	Overlap    OverlapConfig    `yaml:"overlap"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Log        LogConfig        `yaml:"log"`
}

// ScriptConfig points at a detector script. An empty Path selects the
// built-in reference detector.
type ScriptConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// QuadratureConfig tunes the weighted-mean estimator.
type QuadratureConfig struct {
	RelTol       float64 `yaml:"rel_tol"`
	AbsTol       float64 `yaml:"abs_tol"`
	MaxIntervals int     `yaml:"max_intervals"`
}

// OverlapConfig tunes the overlap probe.
type OverlapConfig struct {
	Samples   int     `yaml:"samples"`
	Tolerance float64 `yaml:"tolerance"`
	Seed      uint64  `yaml:"seed"`
}

// MeshConfig sets the marching-cubes resolution along the longest axis of
// each shape.
type MeshConfig struct {
	Cells int `yaml:"cells"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

func DefaultConfig() *Config {
	return &Config{
		Detector: detector.DefaultParams(),
		Script:   ScriptConfig{Timeout: script.EvalTimeout},
		Quadrature: QuadratureConfig{
			RelTol:       mean.DefaultRelTol,
			AbsTol:       mean.DefaultAbsTol,
			MaxIntervals: mean.DefaultMaxIntervals,
		},
		Overlap: OverlapConfig{
			Samples:   overlap.DefaultSamples,
			Tolerance: overlap.DefaultTolerance,
			Seed:      overlap.DefaultSeed,
		},
		Mesh: MeshConfig{Cells: DefaultMeshCells},
		Log:  LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Estimator returns a mean estimator with the configured tolerances.
func (c *Config) Estimator() *mean.Estimator {
	q := c.Quadrature
	return mean.New(
		mean.WithRelTol(q.RelTol),
		mean.WithAbsTol(q.AbsTol),
		mean.WithMaxIntervals(q.MaxIntervals),
	)
}

// OverlapOptions returns the checker options for the configured probe.
func (c *Config) OverlapOptions() []overlap.Option {
	o := c.Overlap
	return []overlap.Option{
		overlap.WithSamples(o.Samples),
		overlap.WithTolerance(o.Tolerance),
		overlap.WithSeed(o.Seed),
	}
}
