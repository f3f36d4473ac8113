package cache

import (
	"path/filepath"
	"testing"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/metrics"
	"github.com/beetlebugorg/rasteroccl/internal/model"
)

func testView() host.View {
	return host.View{ID: 1, Kind: host.ViewKindFloorPlan, Scale: 96, DetailLevel: "Fine", TemplateID: 0, Discipline: "Architectural", Phase: "New"}
}

func testBounds() model.Bounds2D { return model.Bounds2D{XMin: 0, YMin: 0, XMax: 100, YMax: 80} }

func TestSignatureIsOrderIndependentOverElementIDs(t *testing.T) {
	a := Signature(testView(), testBounds(), []int64{3, 1, 2})
	b := Signature(testView(), testBounds(), []int64{1, 2, 3})
	if a != b {
		t.Fatalf("signature depends on input order: %q vs %q", a, b)
	}
}

func TestSignatureChangesWithElementSet(t *testing.T) {
	a := Signature(testView(), testBounds(), []int64{1, 2, 3})
	b := Signature(testView(), testBounds(), []int64{1, 2, 3, 4})
	if a == b {
		t.Fatalf("expected differing element sets to produce differing signatures")
	}
}

func TestSignatureChangesWithCropFingerprint(t *testing.T) {
	a := Signature(testView(), testBounds(), []int64{1})
	b := Signature(testView(), model.Bounds2D{XMin: 0, YMin: 0, XMax: 200, YMax: 80}, []int64{1})
	if a == b {
		t.Fatalf("expected differing bounds to produce differing signatures")
	}
}

func TestSignatureIsEightLowercaseHexChars(t *testing.T) {
	sig := Signature(testView(), testBounds(), []int64{1, 2})
	if len(sig) != 8 {
		t.Fatalf("len(sig) = %d, want 8", len(sig))
	}
	for _, c := range sig {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("sig %q contains non-lowercase-hex char %q", sig, c)
		}
	}
}

func TestConfigHashDiffersWhenConfigDiffers(t *testing.T) {
	a, err := ConfigHash(config.Default())
	if err != nil {
		t.Fatalf("ConfigHash: %v", err)
	}
	cfg2 := config.Default()
	cfg2.Grid.CellSizePaperIn = 0.25
	b, err := ConfigHash(cfg2)
	if err != nil {
		t.Fatalf("ConfigHash: %v", err)
	}
	if a == b {
		t.Fatalf("expected differing configs to hash differently")
	}
}

func TestOpenMissingFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s, err := Open(path, "v1", "cfghash", "guid-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.Lookup(1, "abcd1234"); ok {
		t.Fatalf("expected no entries in a fresh store")
	}
}

func TestSaveThenOpenRoundTripsEntryIV9(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	s, err := Open(path, "v1", "cfghash", "guid-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := metrics.ViewMetrics{TotalCells: 16, Empty: 10, ModelOnly: 4, AnnoOnly: 1, Overlap: 1}
	s.Put(42, Entry{ViewSignature: "deadbeef", Metrics: want, Timings: metrics.Timings{TotalMs: 12.5}, CachedUTC: 1000})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(path, "v1", "cfghash", "guid-1")
	if err != nil {
		t.Fatalf("Open (reload): %v", err)
	}
	got, ok := reopened.Lookup(42, "deadbeef")
	if !ok {
		t.Fatalf("expected cached entry for view 42 to survive reload")
	}
	if got.Metrics.TotalCells != want.TotalCells || got.Metrics.Empty != want.Empty ||
		got.Metrics.ModelOnly != want.ModelOnly || got.Metrics.AnnoOnly != want.AnnoOnly ||
		got.Metrics.Overlap != want.Overlap {
		t.Fatalf("metrics round-trip mismatch: got %+v, want %+v", got.Metrics, want)
	}
}

func TestLookupMissesOnSignatureMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s, _ := Open(path, "v1", "cfghash", "guid-1")
	s.Put(1, Entry{ViewSignature: "aaaaaaaa", Metrics: metrics.ViewMetrics{TotalCells: 4}})
	if _, ok := s.Lookup(1, "bbbbbbbb"); ok {
		t.Fatalf("expected signature mismatch to miss")
	}
}

func TestOpenIgnoresFileOnExporterVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s, _ := Open(path, "v1", "cfghash", "guid-1")
	s.Put(1, Entry{ViewSignature: "aaaaaaaa", Metrics: metrics.ViewMetrics{TotalCells: 4}})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(path, "v2", "cfghash", "guid-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := reopened.Lookup(1, "aaaaaaaa"); ok {
		t.Fatalf("expected exporter_version mismatch to invalidate the whole file")
	}
}

func TestOpenIgnoresFileOnConfigHashMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s, _ := Open(path, "v1", "cfghash-a", "guid-1")
	s.Put(1, Entry{ViewSignature: "aaaaaaaa", Metrics: metrics.ViewMetrics{TotalCells: 4}})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(path, "v1", "cfghash-b", "guid-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := reopened.Lookup(1, "aaaaaaaa"); ok {
		t.Fatalf("expected config_hash mismatch to invalidate the whole file")
	}
}

func TestOpenIgnoresFileOnProjectGUIDMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s, _ := Open(path, "v1", "cfghash", "guid-a")
	s.Put(1, Entry{ViewSignature: "aaaaaaaa", Metrics: metrics.ViewMetrics{TotalCells: 4}})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(path, "v1", "cfghash", "guid-b")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := reopened.Lookup(1, "aaaaaaaa"); ok {
		t.Fatalf("expected project_guid mismatch to invalidate the whole file")
	}
}
