// Package config defines the structured configuration surface the
// rasterizer core accepts (spec §6's "CLI / configuration surface"). The
// core never loads configuration itself — that is the out-of-scope
// top-level driver's job (spec §1) — but this package defines the shape and
// a convenience YAML loader so callers and tests have one canonical
// representation to build.
package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ProxyMaskMode names how LINEAR/TINY proxy strategies mark coverage. No
// rasterization path reads it: LINEAR and TINY stamps always set the
// minimal proxy flag, whatever the value; "off" does not suppress it and
// "fill" adds no areal fill.
type ProxyMaskMode string

const (
	ProxyMaskOff     ProxyMaskMode = "off"
	ProxyMaskMinimal ProxyMaskMode = "minmask"
	ProxyMaskFill    ProxyMaskMode = "fill"
)

// ModelPresenceMode selects which layer(s) count as "model present" for the
// overlap/metrics derivations (spec §4.6, §4.8).
type ModelPresenceMode string

const (
	PresenceInk   ModelPresenceMode = "ink"
	PresenceEdge  ModelPresenceMode = "edge"
	PresenceProxy ModelPresenceMode = "proxy"
	PresenceOcc   ModelPresenceMode = "occ"
	PresenceAny   ModelPresenceMode = "any"
)

// GridConfig controls cell sizing and the hard grid cap.
type GridConfig struct {
	CellSizePaperIn  float64 `yaml:"cell_size_paper_in"`
	MaxSheetWidthIn  float64 `yaml:"max_sheet_width_in"`
	MaxSheetHeightIn float64 `yaml:"max_sheet_height_in"`
	BoundsBufferIn   float64 `yaml:"bounds_buffer_in"`
	TileSize         int     `yaml:"tile_size"`
	AdaptiveTileSize bool    `yaml:"adaptive_tile_size"`
}

// ClassificationConfig controls the TINY/LINEAR/AREAL strategy ladder
// thresholds (spec §4.4) including the opt-in adaptive-percentile mode
// (SPEC_FULL.md §C.1).
type ClassificationConfig struct {
	TinyMax int `yaml:"tiny_max"`
	ThinMax int `yaml:"thin_max"`

	UseAdaptiveThresholds bool               `yaml:"use_adaptive_thresholds"`
	Adaptive              AdaptiveThresholds `yaml:"adaptive"`
}

// AdaptiveThresholds parameterizes the percentile-based classifier.
type AdaptiveThresholds struct {
	PercentileTiny   float64 `yaml:"percentile_tiny"`
	PercentileMedium float64 `yaml:"percentile_medium"`
	PercentileLarge  float64 `yaml:"percentile_large"`
	WinsorizeLower   float64 `yaml:"winsorize_lower"`
	WinsorizeUpper   float64 `yaml:"winsorize_upper"`
	MinElements      int     `yaml:"min_elements"`
	MinTinyCells     int     `yaml:"min_tiny_cells"`
	MaxTinyCells     int     `yaml:"max_tiny_cells"`
	MinThinCells     int     `yaml:"min_thin_cells"`
	MaxThinCells     int     `yaml:"max_thin_cells"`
}

// AnnotationConfig controls annotation-driven bounds expansion (spec §4.1
// step 4).
type AnnotationConfig struct {
	CropMarginIn   float64 `yaml:"anno_crop_margin_in"`
	ExpandCapIn    float64 `yaml:"anno_expand_cap_in"`
	ExpandCapCells int     `yaml:"anno_expand_cap_cells"` // legacy

	// LinesBandWidthCells controls the LINES stamping rule (spec §4.6): 1
	// stamps a bare Bresenham line, >1 stamps an oriented band that many
	// cells wide (matches legacy behaviour).
	LinesBandWidthCells int `yaml:"lines_band_width_cells"`
	// AbsurdBBoxFactor drops an annotation whose projected bbox exceeds
	// this multiple of the raster in either dimension (spec §4.6).
	AbsurdBBoxFactor float64 `yaml:"absurd_bbox_factor"`
}

// OverlapConfig controls proxy/presence policy for the overlap metric.
type OverlapConfig struct {
	ProxyMaskMode            ProxyMaskMode     `yaml:"proxy_mask_mode"`
	OverModelIncludesProxies bool              `yaml:"over_model_includes_proxies"`
	ModelPresenceMode        ModelPresenceMode `yaml:"model_presence_mode"`
}

// ExtentsScanConfig bounds the fallback element-extents scan (spec §4.1
// step 3).
type ExtentsScanConfig struct {
	MaxElements    int     `yaml:"max_elements"`
	TimeBudgetSecs float64 `yaml:"time_budget_s"`
}

// SpatialFilterConfig controls the collector's coarse spatial prefilter
// (spec §4.2).
type SpatialFilterConfig struct {
	Enabled bool    `yaml:"enabled"`
	PadFt   float64 `yaml:"pad_ft"`
}

// PolicyConfig toggles collector-side filtering behavior.
type PolicyConfig struct {
	EnableMulticategoryFilter bool `yaml:"enable_multicategory_filter"`
}

// DiagnosticsConfig bounds the diagnostics ring (spec §4.9).
type DiagnosticsConfig struct {
	MaxEvents int `yaml:"max_events"`
}

// Config is the full configuration surface named in spec §6.
type Config struct {
	Grid           GridConfig           `yaml:"grid"`
	Classification ClassificationConfig `yaml:"classification"`
	Annotation     AnnotationConfig     `yaml:"annotation"`
	Overlap        OverlapConfig        `yaml:"overlap"`
	ExtentsScan    ExtentsScanConfig    `yaml:"extents_scan"`
	SpatialFilter  SpatialFilterConfig  `yaml:"spatial_filter"`
	Policy         PolicyConfig         `yaml:"policy"`
	Diagnostics    DiagnosticsConfig    `yaml:"diagnostics"`
	DepthEpsFt     float64              `yaml:"depth_eps_ft"`
}

// Default returns the documented default configuration, mirroring
// original_source/core/config.py's CONFIG dict where it names concrete
// numbers.
func Default() Config {
	return Config{
		Grid: GridConfig{
			CellSizePaperIn:  0.125,
			MaxSheetWidthIn:  42,
			MaxSheetHeightIn: 30,
			BoundsBufferIn:   0.5,
			TileSize:         16,
			AdaptiveTileSize: false,
		},
		Classification: ClassificationConfig{
			TinyMax: 2,
			ThinMax: 6,
			Adaptive: AdaptiveThresholds{
				PercentileTiny:   25,
				PercentileMedium: 50,
				PercentileLarge:  75,
				WinsorizeLower:   5,
				WinsorizeUpper:   95,
				MinElements:      50,
				MinTinyCells:     1,
				MaxTinyCells:     5,
				MinThinCells:     3,
				MaxThinCells:     20,
			},
		},
		Annotation: AnnotationConfig{
			CropMarginIn:        0.25,
			ExpandCapIn:         6,
			ExpandCapCells:      40,
			LinesBandWidthCells: 1,
			AbsurdBBoxFactor:    2,
		},
		Overlap: OverlapConfig{
			ProxyMaskMode:            ProxyMaskMinimal,
			OverModelIncludesProxies: false,
			ModelPresenceMode:        PresenceAny,
		},
		ExtentsScan: ExtentsScanConfig{
			MaxElements:    20000,
			TimeBudgetSecs: 5,
		},
		SpatialFilter: SpatialFilterConfig{
			Enabled: true,
			PadFt:   2,
		},
		Policy: PolicyConfig{
			EnableMulticategoryFilter: true,
		},
		Diagnostics: DiagnosticsConfig{
			MaxEvents: 2000,
		},
		DepthEpsFt: 1e-4,
	}
}

// Load decodes a Config from YAML. Callers (tests, an eventual driver) own
// when and whether this is invoked; the core packages never call it.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}
