package collect

import (
	"errors"
	"testing"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/policy"
)

type fakeCap struct {
	visible   []host.Element
	linkElems map[int64][]host.Element
	linkErr   error
}

func (f fakeCap) QueryVisibleInView(host.View) ([]host.Element, error) { return f.visible, nil }
func (f fakeCap) PlanarFaces(host.Element) ([]host.PlanarFace, error)  { return nil, nil }
func (f fakeCap) Triangulate(host.Element, float64) ([][3]model.Point, error) { return nil, nil }
func (f fakeCap) GeometryPolygon(host.Element) ([]model.Point, error)  { return nil, nil }
func (f fakeCap) SketchProfile(host.Element) ([][]model.Point, error)  { return nil, nil }
func (f fakeCap) ImportedPolylines(host.Element) ([][]model.Point, error) { return nil, nil }
func (f fakeCap) LinkDocumentElements(v host.View, linkInstID int64) ([]host.Element, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return f.linkElems[linkInstID], nil
}

func basis() model.ViewBasis {
	return model.ViewBasis{Right: model.Vector{X: 1}, Up: model.Vector{Y: 1}, Forward: model.Vector{Z: -1}}
}

func TestCollectAppliesPolicyAndReportsExclusions(t *testing.T) {
	cap := fakeCap{visible: []host.Element{
		{ID: 1, CategoryName: "Walls", Source: host.SourceHost},
		{ID: 2, CategoryName: "Rooms", Source: host.SourceHost}, // globally excluded
	}}
	res, err := Collect(host.View{}, cap, policy.Default(), config.Default(), basis(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Elements) != 1 || res.Elements[0].Element.ID != 1 {
		t.Fatalf("expected exactly element 1 to survive, got %+v", res.Elements)
	}
	if res.Report.ExcludedByCategory["Rooms"] != 1 {
		t.Fatalf("expected Rooms exclusion to be reported")
	}
}

func TestCollectExpandsLinkedElements(t *testing.T) {
	cap := fakeCap{
		visible: []host.Element{
			{ID: 1, CategoryName: "Walls", Source: host.SourceLink, LinkInstID: 42},
		},
		linkElems: map[int64][]host.Element{
			42: {{ID: 100, CategoryName: "Floors"}},
		},
	}
	res, err := Collect(host.View{}, cap, policy.Default(), config.Default(), basis(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawLinked bool
	for _, c := range res.Elements {
		if c.Element.ID == 100 {
			sawLinked = true
			if c.Element.Source != host.SourceLink || c.Element.LinkInstID != 42 {
				t.Fatalf("linked element must carry SourceLink and the link instance id: %+v", c.Element)
			}
		}
	}
	if !sawLinked {
		t.Fatalf("expected the linked document's Floors element to be collected")
	}
}

func TestCollectLinkQueryFailureDoesNotAbortCollection(t *testing.T) {
	cap := fakeCap{
		visible: []host.Element{
			{ID: 1, CategoryName: "Walls", Source: host.SourceLink, LinkInstID: 42},
		},
		linkErr: errors.New("host unavailable"),
	}
	res, err := Collect(host.View{}, cap, policy.Default(), config.Default(), basis(), nil, nil)
	if err != nil {
		t.Fatalf("a failed link query must not abort the whole collection: %v", err)
	}
	if len(res.Elements) != 1 {
		t.Fatalf("the host element itself should still be collected: %+v", res.Elements)
	}
}

func TestCollectSpatialPrefilterDropsFarElements(t *testing.T) {
	cap := fakeCap{visible: []host.Element{
		{ID: 1, CategoryName: "Walls", Source: host.SourceHost,
			WorldTransform: model.Identity(),
			BBoxMin:        model.Point{X: 0, Y: 0}, BBoxMax: model.Point{X: 1, Y: 1}},
		{ID: 2, CategoryName: "Walls", Source: host.SourceHost,
			WorldTransform: model.Identity(),
			BBoxMin:        model.Point{X: 1000, Y: 1000}, BBoxMax: model.Point{X: 1001, Y: 1001}},
	}}
	cfg := config.Default()
	cfg.SpatialFilter.Enabled = true
	cfg.SpatialFilter.PadFt = 2
	crop := model.Bounds2D{XMin: 0, YMin: 0, XMax: 5, YMax: 5}

	res, err := Collect(host.View{}, cap, policy.Default(), cfg, basis(), &crop, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range res.Elements {
		if c.Element.ID == 2 {
			t.Fatalf("far element should have been dropped by the spatial prefilter")
		}
	}
}

func TestCollectQueryErrorPropagates(t *testing.T) {
	cap := errCap{}
	_, err := Collect(host.View{}, cap, policy.Default(), config.Default(), basis(), nil, nil)
	if err == nil {
		t.Fatalf("expected the host query error to propagate")
	}
}

type errCap struct{ fakeCap }

func (errCap) QueryVisibleInView(host.View) ([]host.Element, error) {
	return nil, errors.New("boom")
}
