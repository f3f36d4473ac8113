// Package runner implements the per-view run boundary (SPEC_FULL.md §A.3):
// a Pipeline that drives one view through basis resolution, collection, the
// model pass, the annotation pass, and metrics aggregation, recovering from
// any InvariantError or host-callback panic so that one bad view can never
// abort a caller iterating many views (the Go-native replacement for
// original_source/ssm_exporter_main.py's per-view try/except).
package runner

import (
	"fmt"
	"time"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/annotate"
	"github.com/beetlebugorg/rasteroccl/internal/cache"
	"github.com/beetlebugorg/rasteroccl/internal/classify"
	"github.com/beetlebugorg/rasteroccl/internal/collect"
	"github.com/beetlebugorg/rasteroccl/internal/diag"
	"github.com/beetlebugorg/rasteroccl/internal/footprint"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/metrics"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/modelpass"
	"github.com/beetlebugorg/rasteroccl/internal/policy"
	"github.com/beetlebugorg/rasteroccl/internal/raster"
	"github.com/beetlebugorg/rasteroccl/internal/safehost"
	"github.com/beetlebugorg/rasteroccl/internal/viewbasis"
)

// ViewOutcome is what Pipeline.Run hands to onComplete for every view,
// success or failure (SPEC_FULL.md §A.3). Err is non-nil only for a
// structural or invariant failure (spec §7 items 5 and 7); a view rejected
// by GateMode is reported as Rejected, not Err.
type ViewOutcome struct {
	ViewID      int64
	Metrics     metrics.ViewMetrics
	Diagnostics *diag.Recorder
	FromCache   bool
	Rejected    bool
	Err         error
}

// Pipeline wires the core packages together for one document's worth of
// views. It owns no state beyond what's passed in; the out-of-scope
// top-level driver (spec §1) is responsible for enumerating views, running
// Pipeline.Run per view (optionally concurrently, one ViewRaster per
// worker per spec §5), and draining Cache.Save once at the end of the run.
type Pipeline struct {
	Capability  host.Capability
	Annotations host.AnnotationCapability
	Policy      policy.Table
	Config      config.Config
	Tolerances  footprint.Tolerances

	// Cache is optional; nil disables content-addressed caching entirely.
	Cache *cache.Store
}

// Run implements spec §4's full per-view pipeline inside the recovery
// boundary of SPEC_FULL.md §A.3, then invokes onComplete exactly once with
// the outcome. onComplete lets a caller stream results (export a CSV row,
// discard the ViewRaster) without the Pipeline buffering every view's
// output (SPEC_FULL.md §C.6).
func (p *Pipeline) Run(v host.View, onComplete func(ViewOutcome)) {
	rec := diag.New(p.Config.Diagnostics.MaxEvents)
	outcome := ViewOutcome{ViewID: v.ID, Diagnostics: rec}

	defer func() {
		if r := recover(); r != nil {
			rec.Record(diag.Event{
				Phase: diag.PhaseMetrics, Callsite: "Pipeline.Run", Level: diag.LevelFatal,
				ViewID: v.ID, ExcType: "panic", ExcMsg: fmt.Sprint(r),
			})
			outcome.Err = fmt.Errorf("runner: view %d: panic recovered: %v", v.ID, r)
			onComplete(outcome)
		}
	}()

	m, fromCache, err := p.run(v, rec)
	outcome.Metrics = m
	outcome.FromCache = fromCache
	if err == errRejected {
		outcome.Rejected = true
	} else {
		outcome.Err = err
	}
	onComplete(outcome)
}

var errRejected = fmt.Errorf("runner: view rejected by gate (spec §4.1 step 1)")

// inchesPerFoot mirrors internal/viewbasis's own unexported constant of the
// same name; paper measurements are always inches, model measurements
// always feet, and every place that crosses that boundary divides by 12.
const inchesPerFoot = 12.0

func (p *Pipeline) run(v host.View, rec *diag.Recorder) (metrics.ViewMetrics, bool, error) {
	start := time.Now()

	mode := viewbasis.GateMode(v)
	if mode == viewbasis.Rejected {
		return metrics.ViewMetrics{}, false, errRejected
	}

	basisStart := time.Now()

	// A throwaway recorder+call gets just the basis (buildBasis depends
	// only on the view, never on bounds), so the real extents-scan
	// candidates below can be projected into the same UV space bounds
	// resolution will ultimately use. The real Resolve call further down
	// records diagnostics for keeps.
	prelim := viewbasis.Resolve(v, p.Config, nil, nil, diag.New(0))
	basis := prelim.Basis

	scanStart := time.Now()
	elems, annos := p.queryCandidates(v, rec)
	scanElapsedSecs := time.Since(scanStart).Seconds()

	// budgetFired downgrades extents-scan confidence to "low" (spec §4.1
	// step 3) whenever the scan actually exceeded either configured budget,
	// not unconditionally.
	extentsScan := func() ([]model.Bounds2D, bool) {
		budgetFired := len(elems) > p.Config.ExtentsScan.MaxElements ||
			scanElapsedSecs > p.Config.ExtentsScan.TimeBudgetSecs
		return projectedExtents(elems, basis), budgetFired
	}

	var annoExtents []model.UV
	for _, a := range annos {
		annoExtents = append(annoExtents, a.BBoxMin, a.BBoxMax)
	}
	res := viewbasis.Resolve(v, p.Config, extentsScan, annoExtents, rec)
	basisMs := msSince(basisStart)

	collectStart := time.Now()
	var cropUV *model.Bounds2D
	if p.Config.SpatialFilter.Enabled {
		b := res.Bounds
		cropUV = &b
	}
	colResult, err := collect.Collect(v, p.Capability, p.Policy, p.Config, res.Basis, cropUV, rec)
	if err != nil {
		return metrics.ViewMetrics{}, false, fmt.Errorf("runner: view %d: collect: %w", v.ID, err)
	}
	collectMs := msSince(collectStart)

	visibleIDs := make([]int64, len(elems))
	for i, e := range elems {
		visibleIDs[i] = e.ID
	}

	var sig string
	if p.Cache != nil {
		sig = cache.Signature(v, res.Bounds, visibleIDs)
		if e, ok := p.Cache.Lookup(v.ID, sig); ok {
			m := e.Metrics
			m.Timing = metrics.Timings{} // spec §4.7: elapsed time on a hit is reported as zero
			return m, true, nil
		}
	}

	r := raster.New(res.W, res.H, p.Config.Grid.TileSize)
	thresholds := classify.Thresholds{TinyMax: p.Config.Classification.TinyMax, ThinMax: p.Config.Classification.ThinMax}
	if p.Config.Classification.UseAdaptiveThresholds {
		if adaptive, ok := classify.DeriveAdaptiveThresholds(collectedExtentsCells(colResult.Elements, res.Basis, res.CellSizeFtEffective), adaptiveConfigFrom(p.Config.Classification.Adaptive)); ok {
			thresholds = adaptive
		}
	}
	planLike := v.Kind == host.ViewKindFloorPlan || v.Kind == host.ViewKindCeilingPlan

	var strategy modelpass.Stats
	modelStart := time.Now()
	if mode == viewbasis.ModelAndAnnotation {
		strategy = modelpass.Run(colResult.Elements, p.Capability, res.Basis, res.Bounds, res.CellSizeFtEffective, thresholds, p.Tolerances, planLike, r, rec, v.ID)
	}
	modelMs := msSince(modelStart)

	annoStart := time.Now()
	if p.Annotations != nil {
		annotate.Run(annos, res.Bounds, res.CellSizeFtEffective, p.Config, r)
	} else {
		r.FinalizeOverlap(raster.PresenceModeFromConfig(p.Config.Overlap.ModelPresenceMode))
	}
	annoMs := msSince(annoStart)

	requestedCellFt := p.Config.Grid.CellSizePaperIn / inchesPerFoot
	m, err := metrics.Aggregate(v.ID, r, raster.PresenceModeFromConfig(p.Config.Overlap.ModelPresenceMode),
		requestedCellFt, res.CellSizeFtEffective, res.Reason, res.Capped,
		metrics.StrategyCounts{
			Tiny: strategy.Tiny, Linear: strategy.Linear, Areal: strategy.Areal,
			ImportedCAD: strategy.ImportedCAD, MissingBBox: strategy.MissingBBox,
			ArealByFootprintStrategy: strategy.ArealByFootprintStrategy,
		})
	if err != nil {
		return metrics.ViewMetrics{}, false, err
	}

	m.Timing = metrics.Timings{
		CollectMs: collectMs, BasisMs: basisMs, ModelPassMs: modelMs, AnnotateMs: annoMs,
		TotalMs: msSince(start),
	}

	if p.Cache != nil {
		p.Cache.Put(v.ID, cache.Entry{ViewSignature: sig, Metrics: m, Timings: m.Timing, CachedUTC: time.Now().Unix()})
	}

	return m, false, nil
}

// queryCandidates runs the broad, unfiltered element and annotation query
// once so both the bounds resolver's extents scan and the cache
// signature's "all visible ids" input (spec §4.7) see the same candidate
// set collect.Collect will later filter by policy.
func (p *Pipeline) queryCandidates(v host.View, rec *diag.Recorder) ([]host.Element, []host.Annotation) {
	elems, _ := safehost.Call(func() ([]host.Element, error) { return p.Capability.QueryVisibleInView(v) }, nil, safehost.Options{
		Recorder: rec, Phase: diag.PhaseCollect, Callsite: "runner.queryCandidates.QueryVisibleInView",
		ViewID: v.ID, Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
	})

	var annos []host.Annotation
	if p.Annotations != nil {
		annos, _ = safehost.Call(func() ([]host.Annotation, error) { return p.Annotations.QueryAnnotationsInView(v) }, nil, safehost.Options{
			Recorder: rec, Phase: diag.PhaseAnnotation, Callsite: "runner.queryCandidates.QueryAnnotationsInView",
			ViewID: v.ID, Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
		})
	}

	return elems, annos
}

func projectedExtents(elems []host.Element, basis model.ViewBasis) []model.Bounds2D {
	out := make([]model.Bounds2D, 0, len(elems))
	for _, e := range elems {
		if e.BBoxSource == host.BBoxNone {
			continue
		}
		corners := model.BBox8(e.BBoxMin, e.BBoxMax)
		uv := make([]model.UV, len(corners))
		for i, c := range corners {
			uv[i] = basis.ProjectUV(e.WorldTransform.Apply(c))
		}
		out = append(out, model.BoundsOf(uv))
	}
	return out
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// collectedExtentsCells projects every collected element's bbox max-extent
// into grid cells, the sample population SPEC_FULL.md §C.1's adaptive
// classifier derives its percentile thresholds from.
func collectedExtentsCells(elems []collect.Collected, basis model.ViewBasis, cellSizeFt float64) []float64 {
	if cellSizeFt <= 0 {
		cellSizeFt = 1
	}
	out := make([]float64, 0, len(elems))
	for _, ce := range elems {
		e := ce.Element
		if e.BBoxSource == host.BBoxNone {
			continue
		}
		corners := model.BBox8(e.BBoxMin, e.BBoxMax)
		uv := make([]model.UV, len(corners))
		for i, c := range corners {
			uv[i] = basis.ProjectUV(e.WorldTransform.Apply(c))
		}
		b := model.BoundsOf(uv)
		maxExtentFt := b.Width()
		if b.Height() > maxExtentFt {
			maxExtentFt = b.Height()
		}
		out = append(out, maxExtentFt/cellSizeFt)
	}
	return out
}

func adaptiveConfigFrom(a config.AdaptiveThresholds) classify.AdaptiveConfig {
	return classify.AdaptiveConfig{
		PercentileTiny:  a.PercentileTiny,
		PercentileLarge: a.PercentileLarge,
		WinsorizeLower:  a.WinsorizeLower,
		WinsorizeUpper:  a.WinsorizeUpper,
		MinElements:     a.MinElements,
		MinTinyCells:    a.MinTinyCells,
		MaxTinyCells:    a.MaxTinyCells,
		MinThinCells:    a.MinThinCells,
		MaxThinCells:    a.MaxThinCells,
	}
}
