// Package rasterizer is the public entry point for the Interwoven
// Occlusion-Aware Rasterizer: a thin facade over the internal packages
// that wires one document's worth of host capabilities, configuration,
// and an optional on-disk cache into a runnable per-view pipeline,
// mirroring pkg/v1's role of exposing a clean public API over an
// internal/ implementation (see pkg/v1/s57.go).
package rasterizer

import (
	"fmt"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/cache"
	"github.com/beetlebugorg/rasteroccl/internal/footprint"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/metrics"
	"github.com/beetlebugorg/rasteroccl/internal/policy"
	"github.com/beetlebugorg/rasteroccl/internal/runner"
)

// View, Element, Annotation, Capability, and AnnotationCapability are the
// host-facing types a caller implements; re-exported here so a consumer
// never needs to import internal/host directly.
type (
	View                 = host.View
	Element              = host.Element
	Annotation           = host.Annotation
	Capability           = host.Capability
	AnnotationCapability = host.AnnotationCapability
	ViewKind             = host.ViewKind
)

// ViewMetrics and ViewOutcome are re-exported result types.
type (
	ViewMetrics = metrics.ViewMetrics
	ViewOutcome = runner.ViewOutcome
)

// CacheOptions identifies the cache file and the three fields that
// invalidate it wholesale on mismatch (spec §4.7).
type CacheOptions struct {
	Path            string
	ExporterVersion string
	ProjectGUID     string
}

// Rasterizer is one document's worth of rasterization state: the host
// capabilities it will call, the configuration driving every threshold,
// and (optionally) a loaded cache file. Construct with New; it is not
// safe for concurrent use by multiple goroutines without the caller
// giving each its own Rasterizer instance pointed at a distinct
// *cache.Store, per spec §5's "Shared resources" concurrency model.
type Rasterizer struct {
	pipeline *runner.Pipeline
	cacheRef *cache.Store
}

// New builds a Rasterizer. annotations may be nil if the caller has no
// annotation capability to offer (every view is then processed as if
// AnnotationOnly views had nothing to stamp).
func New(capability Capability, annotations AnnotationCapability, cfg config.Config) *Rasterizer {
	return &Rasterizer{
		pipeline: &runner.Pipeline{
			Capability:  capability,
			Annotations: annotations,
			Policy:      policy.Default(),
			Config:      cfg,
			Tolerances:  footprint.DefaultTolerances(),
		},
	}
}

// WithPolicy overrides the default category inclusion/exclusion table
// (internal/policy.Default) a Rasterizer uses.
func (r *Rasterizer) WithPolicy(table policy.Table) *Rasterizer {
	r.pipeline.Policy = table
	return r
}

// EnableCache opens (or creates) the project's cache file at opts.Path and
// wires it into subsequent RunView calls. The config hash is derived from
// this Rasterizer's own configuration (the one passed to New), since that
// is what actually drove — or will drive — every view's metrics. Returns
// an error only if the configuration cannot be marshaled for its hash;
// Open itself never returns an error (spec §7 item 6: a missing,
// unreadable, or mismatched cache file is treated as "start fresh").
func (r *Rasterizer) EnableCache(opts CacheOptions) error {
	configHash, err := cache.ConfigHash(r.pipeline.Config)
	if err != nil {
		return fmt.Errorf("rasterizer: enable cache: %w", err)
	}
	store, err := cache.Open(opts.Path, opts.ExporterVersion, configHash, opts.ProjectGUID)
	if err != nil {
		return fmt.Errorf("rasterizer: enable cache: %w", err)
	}
	r.cacheRef = store
	r.pipeline.Cache = store
	return nil
}

// SaveCache persists the cache file if EnableCache was called; it is a
// no-op otherwise. Callers should invoke this once at end-of-run (spec
// §5: "read once at start-of-run and written once at end via temp+rename").
func (r *Rasterizer) SaveCache() error {
	if r.cacheRef == nil {
		return nil
	}
	return r.cacheRef.Save()
}

// RunView processes one view and invokes onComplete with its outcome
// (success, rejection, or a recovered fatal error), never panicking and
// never returning an error itself — spec §7's per-view failure isolation
// means a caller iterating many views never needs its own recover().
func (r *Rasterizer) RunView(v View, onComplete func(ViewOutcome)) {
	r.pipeline.Run(v, onComplete)
}
