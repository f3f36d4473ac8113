// Package cache implements the content-addressed per-view metrics cache
// (spec §4.7): a per-view signature over everything that can change a
// view's output, a single JSON file per project persisted atomically, and
// the invalidation rules spec §7's error taxonomy lists under "cache
// inconsistency". Only metrics are stored, never raster arrays, so the
// file stays small and safe to read whole at start-of-run.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/metrics"
	"github.com/beetlebugorg/rasteroccl/internal/model"
)

// Signature computes the per-view signature (spec §4.7): SHA-1 of a
// canonical string over the view's identity-relevant scalars, its crop
// fingerprint to 2 decimals, and the sorted list of every element id
// visible in the view (all ids, not just the ones that ended up included).
// The spec's §4.7 prose says "first 8 bytes of SHA-1" while its §6 cache
// file format shows an 8 lowercase hex char example; this implementation
// follows the latter since that's the on-disk, round-trippable form.
func Signature(v host.View, bounds model.Bounds2D, visibleElementIDs []int64) string {
	ids := append([]int64(nil), visibleElementIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.FormatInt(id, 10)
	}

	canonical := fmt.Sprintf("%d|%.6f|%s|%d|%s|%s|%.2f,%.2f,%.2f,%.2f|%s",
		v.Kind, v.Scale, v.DetailLevel, v.TemplateID, v.Discipline, v.Phase,
		bounds.XMin, bounds.YMin, bounds.XMax, bounds.YMax,
		joinIDs(idStrs))

	sum := sha1.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])[:8]
}

func joinIDs(ids []string) string {
	out := ""
	for i, s := range ids {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// ConfigHash derives the invalidation token stored alongside the cache
// file (spec §6's cache file format, "config_hash"): a run with a
// different effective configuration must not reuse an older run's cached
// metrics, so the hash covers the whole decoded Config.
func ConfigHash(cfg config.Config) (string, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("cache: hash config: %w", err)
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// Entry is one cached view's stored payload. Only metrics and timings are
// kept, per spec §4.7 ("never raster arrays").
type Entry struct {
	ViewSignature string              `json:"view_signature"`
	Metrics       metrics.ViewMetrics `json:"metrics"`
	Timings       metrics.Timings     `json:"timings"`
	CachedUTC     int64               `json:"cached_utc"`
}

// file is the on-disk JSON shape (spec §6).
type file struct {
	ExporterVersion string           `json:"exporter_version"`
	ConfigHash      string           `json:"config_hash"`
	ProjectGUID     string           `json:"project_guid"`
	Views           map[string]Entry `json:"views"`
}

// Store is a project's cache file, loaded once at start-of-run and written
// once at end (spec §5's "Shared resources"). It is not safe for
// concurrent use from multiple goroutines without external synchronization
// — the spec's scheduling model serializes cache writes via the
// atomic-rename pattern, not via in-process locking.
type Store struct {
	path string
	f    file
}

// Open loads path if it exists and its identity fields match
// (exporterVersion, configHash, projectGUID); on any mismatch, a missing
// file, or a decode failure, it starts fresh with those identity fields
// (spec §7's "cache inconsistency: ignore the cache file, proceed with a
// fresh run").
func Open(path, exporterVersion, configHash, projectGUID string) (*Store, error) {
	s := &Store{path: path, f: file{
		ExporterVersion: exporterVersion,
		ConfigHash:      configHash,
		ProjectGUID:     projectGUID,
		Views:           map[string]Entry{},
	}}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s, nil // missing file: fresh cache, not an error
	}

	var loaded file
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return s, nil // corrupt file: fresh cache
	}
	if loaded.ExporterVersion != exporterVersion || loaded.ConfigHash != configHash || loaded.ProjectGUID != projectGUID {
		return s, nil // identity mismatch: fresh cache
	}
	if loaded.Views == nil {
		loaded.Views = map[string]Entry{}
	}
	s.f = loaded
	return s, nil
}

// Lookup implements the hit rule (spec §4.7): a hit requires the stored
// entry's signature to equal sig exactly.
func (s *Store) Lookup(viewID int64, sig string) (Entry, bool) {
	e, ok := s.f.Views[strconv.FormatInt(viewID, 10)]
	if !ok || e.ViewSignature != sig {
		return Entry{}, false
	}
	return e, true
}

// Put records or replaces a view's cached entry.
func (s *Store) Put(viewID int64, e Entry) {
	s.f.Views[strconv.FormatInt(viewID, 10)] = e
}

// Save writes the store atomically: encode to a temp file in the same
// directory, then rename over the target (spec §4.7). The temp name is
// salted with a uuid so concurrent Store instances pointed at the same
// directory (which the spec's concurrency model does not otherwise
// support) never collide on the same temp path.
func (s *Store) Save() error {
	b, err := json.MarshalIndent(s.f, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(s.path), uuid.NewString()))

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: rename: %w", err)
	}
	return nil
}
