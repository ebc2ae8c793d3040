package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prism-data/prism/internal/projection"
)

// DefaultConfigPath is the path to the canonical projection defaults file.
// This is the single source of truth for all default projection settings.
const DefaultConfigPath = "config/projection.defaults.json"

// ProjectionConfig represents the root configuration for the projection
// engine. The schema matches the /api/projections request body so the same
// JSON can be used for both startup configuration and per-request overrides.
// All fields are pointers so partial configs only override what they name.
type ProjectionConfig struct {
	// Sampling params
	NProjSamples   *int      `json:"n_proj_samples,omitempty"`
	NHiddenSamples *int      `json:"n_hidden_samples,omitempty"`
	ImplCut        []float64 `json:"impl_cut,omitempty"`
	Seed           *int64    `json:"seed,omitempty"`
	Workers        *int      `json:"workers,omitempty"`

	// Output params
	Smooth        *bool   `json:"smooth,omitempty"`
	Figure        *bool   `json:"figure,omitempty"`
	ShowCuts      *bool   `json:"show_cuts,omitempty"`
	UseParSpace   *bool   `json:"use_par_space,omitempty"`
	FullImplRange *bool   `json:"full_impl_range,omitempty"`
	Align         *string `json:"align,omitempty"` // "col" or "row"
	OutputDir     *string `json:"output_dir,omitempty"`

	// Service params
	DBPath     *string `json:"db_path,omitempty"`
	ListenAddr *string `json:"listen_addr,omitempty"`
}

// EmptyProjectionConfig returns a ProjectionConfig with all fields set to
// nil. Use LoadProjectionConfig to load actual values from a file.
func EmptyProjectionConfig() *ProjectionConfig {
	return &ProjectionConfig{}
}

// LoadProjectionConfig loads a ProjectionConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadProjectionConfig(path string) (*ProjectionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyProjectionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ProjectionConfig) Validate() error {
	if c.NProjSamples != nil && *c.NProjSamples < 2 {
		return fmt.Errorf("n_proj_samples must be at least 2, got %d", *c.NProjSamples)
	}
	if c.NHiddenSamples != nil && *c.NHiddenSamples < 1 {
		return fmt.Errorf("n_hidden_samples must be positive, got %d", *c.NHiddenSamples)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Align != nil {
		switch projection.Alignment(*c.Align) {
		case projection.AlignColumn, projection.AlignRow:
		default:
			return fmt.Errorf("align must be %q or %q, got %q",
				projection.AlignColumn, projection.AlignRow, *c.Align)
		}
	}
	if len(c.ImplCut) > 0 {
		// Non-wildcard entries must be positive; wildcards are zero.
		for i, v := range c.ImplCut {
			if v < 0 {
				return fmt.Errorf("impl_cut[%d] must be non-negative, got %g", i, v)
			}
		}
		allWild := true
		for _, v := range c.ImplCut {
			if v != 0 {
				allWild = false
				break
			}
		}
		if allWild {
			return fmt.Errorf("impl_cut needs at least one non-zero entry")
		}
	}
	return nil
}

// GetNProjSamples returns the grid resolution or the default.
func (c *ProjectionConfig) GetNProjSamples() int {
	if c.NProjSamples == nil {
		return 15 // default
	}
	return *c.NProjSamples
}

// GetNHiddenSamples returns the hidden-sample depth or the default.
func (c *ProjectionConfig) GetNHiddenSamples() int {
	if c.NHiddenSamples == nil {
		return 150 // default
	}
	return *c.NHiddenSamples
}

// GetImplCut returns the implausibility cut-off vector or the default.
func (c *ProjectionConfig) GetImplCut() []float64 {
	if len(c.ImplCut) == 0 {
		return []float64{0, 4.0, 3.8, 3.5} // default
	}
	return append([]float64(nil), c.ImplCut...)
}

// GetAlign returns the panel alignment or the default.
func (c *ProjectionConfig) GetAlign() projection.Alignment {
	if c.Align == nil {
		return projection.AlignColumn
	}
	return projection.Alignment(*c.Align)
}

// GetOutputDir returns the figure output directory or the default.
func (c *ProjectionConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "figures"
	}
	return *c.OutputDir
}

// GetDBPath returns the projection store path or the default.
func (c *ProjectionConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "prism.db"
	}
	return *c.DBPath
}

// GetListenAddr returns the HTTP listen address or the default.
func (c *ProjectionConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// Overlay returns a copy of c with every field set in o taking precedence.
// The API uses it to apply per-request overrides on top of the server config.
func (c *ProjectionConfig) Overlay(o *ProjectionConfig) *ProjectionConfig {
	merged := *c
	if o == nil {
		return &merged
	}
	if o.NProjSamples != nil {
		merged.NProjSamples = o.NProjSamples
	}
	if o.NHiddenSamples != nil {
		merged.NHiddenSamples = o.NHiddenSamples
	}
	if len(o.ImplCut) > 0 {
		merged.ImplCut = o.ImplCut
	}
	if o.Seed != nil {
		merged.Seed = o.Seed
	}
	if o.Workers != nil {
		merged.Workers = o.Workers
	}
	if o.Smooth != nil {
		merged.Smooth = o.Smooth
	}
	if o.Figure != nil {
		merged.Figure = o.Figure
	}
	if o.ShowCuts != nil {
		merged.ShowCuts = o.ShowCuts
	}
	if o.UseParSpace != nil {
		merged.UseParSpace = o.UseParSpace
	}
	if o.FullImplRange != nil {
		merged.FullImplRange = o.FullImplRange
	}
	if o.Align != nil {
		merged.Align = o.Align
	}
	if o.OutputDir != nil {
		merged.OutputDir = o.OutputDir
	}
	if o.DBPath != nil {
		merged.DBPath = o.DBPath
	}
	if o.ListenAddr != nil {
		merged.ListenAddr = o.ListenAddr
	}
	return &merged
}

// Options builds projection options from the configured values, falling back
// to defaults for anything unset.
func (c *ProjectionConfig) Options() projection.Options {
	opts := projection.DefaultOptions()
	opts.Resolution = c.GetNProjSamples()
	opts.BaseDepth = c.GetNHiddenSamples()
	opts.Align = c.GetAlign()
	if c.Smooth != nil {
		opts.Smooth = *c.Smooth
	}
	if c.Figure != nil {
		opts.Figure = *c.Figure
	}
	if c.ShowCuts != nil {
		opts.ShowCuts = *c.ShowCuts
	}
	if c.UseParSpace != nil {
		opts.UseParSpace = *c.UseParSpace
	}
	if c.FullImplRange != nil {
		opts.FullImplRange = *c.FullImplRange
	}
	if c.Seed != nil {
		opts.Seed = *c.Seed
	}
	if c.Workers != nil {
		opts.Workers = *c.Workers
	}
	return opts
}
