package discovery

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/smy-101/skillpack/internal/cache"
	"github.com/smy-101/skillpack/internal/github"
	"github.com/smy-101/skillpack/internal/types"
	"github.com/smy-101/skillpack/internal/walker"
)

type fakeDiscoverer struct {
	result *walker.Result
	err    error
	calls  int
}

func (f *fakeDiscoverer) Discover(_ context.Context, coord types.RepositoryCoordinate) (*walker.Result, error) {
	f.calls++
	if f.result == nil {
		return nil, f.err
	}
	res := *f.result
	res.Skills = append([]types.SkillDescriptor(nil), f.result.Skills...)
	return &res, f.err
}

type titleEnricher struct{}

func (titleEnricher) EnrichAll(_ context.Context, _ types.RepositoryCoordinate, skills []types.SkillDescriptor) []types.SkillDescriptor {
	out := make([]types.SkillDescriptor, len(skills))
	for i, s := range skills {
		s.Title = "Title of " + s.Name
		out[i] = s
	}
	return out
}

var coord = types.RepositoryCoordinate{Owner: "o", Name: "r", Branch: "dev"}

func newResult() *walker.Result {
	return &walker.Result{
		Coordinate: coord.WithBranch("main"),
		Skills: []types.SkillDescriptor{
			{Name: "Root Skill", Path: "/"},
			{Name: "Foo", Path: "foo"},
		},
		Visited: 3,
	}
}

func TestScanEnrichesAndCaches(t *testing.T) {
	d := &fakeDiscoverer{result: newResult()}
	store := cache.New(filepath.Join(t.TempDir(), "cache.json"))
	svc := NewService(d, titleEnricher{}, store)

	scan, err := svc.Scan(context.Background(), coord, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if scan.FromCache {
		t.Error("first scan should not come from cache")
	}
	if scan.Coordinate.Branch != "main" {
		t.Errorf("effective branch = %q, want main", scan.Coordinate.Branch)
	}
	if scan.Skills[1].Title != "Title of Foo" {
		t.Errorf("skills not enriched: %+v", scan.Skills)
	}

	again, err := svc.Scan(context.Background(), coord, ScanOptions{})
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	if !again.FromCache || d.calls != 1 {
		t.Errorf("second scan should be served from cache (calls=%d)", d.calls)
	}
	if !reflect.DeepEqual(again.Skills, scan.Skills) {
		t.Errorf("cached skills = %+v, want %+v", again.Skills, scan.Skills)
	}
}

func TestScanCacheIsPerBranch(t *testing.T) {
	d := &fakeDiscoverer{result: &walker.Result{
		Coordinate: coord.WithBranch("main"),
		Skills:     []types.SkillDescriptor{{Name: "Main Only", Path: "main-only"}},
	}}
	svc := NewService(d, nil, cache.New(filepath.Join(t.TempDir(), "cache.json")))

	if _, err := svc.Scan(context.Background(), coord.WithBranch("main"), ScanOptions{}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	d.result = &walker.Result{
		Coordinate: coord.WithBranch("release"),
		Skills:     []types.SkillDescriptor{{Name: "Release Only", Path: "release-only"}},
	}
	scan, err := svc.Scan(context.Background(), coord.WithBranch("release"), ScanOptions{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if scan.FromCache || d.calls != 2 {
		t.Errorf("another branch should not be served from cache (fromCache=%v calls=%d)", scan.FromCache, d.calls)
	}
	if scan.Coordinate.Branch != "release" || scan.Skills[0].Path != "release-only" {
		t.Errorf("scan = %+v", scan)
	}

	// 回退到 main 的扫描结果仍可按原分支命中
	d.result = newResult()
	if _, err := svc.Scan(context.Background(), coord, ScanOptions{}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	again, err := svc.Scan(context.Background(), coord, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !again.FromCache || d.calls != 3 {
		t.Errorf("fallback scan should be cached for %q (fromCache=%v calls=%d)", coord.Branch, again.FromCache, d.calls)
	}
}

func TestScanRefreshIsIdempotent(t *testing.T) {
	d := &fakeDiscoverer{result: newResult()}
	svc := NewService(d, titleEnricher{}, cache.New(filepath.Join(t.TempDir(), "cache.json")))

	first, err := svc.Scan(context.Background(), coord, ScanOptions{Refresh: true})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	second, err := svc.Scan(context.Background(), coord, ScanOptions{Refresh: true})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if d.calls != 2 {
		t.Errorf("refresh should rescan, calls = %d", d.calls)
	}
	if !reflect.DeepEqual(first.Skills, second.Skills) {
		t.Errorf("scans differ: %+v vs %+v", first.Skills, second.Skills)
	}
}

func TestScanErrors(t *testing.T) {
	t.Run("total failure", func(t *testing.T) {
		svc := NewService(&fakeDiscoverer{err: errors.New("boom")}, nil, nil)
		scan, err := svc.Scan(context.Background(), coord, ScanOptions{})
		if err == nil || scan != nil {
			t.Errorf("Scan() = %v, %v, want error", scan, err)
		}
	})

	t.Run("quota stops scan with partial results, nothing cached", func(t *testing.T) {
		store := cache.New(filepath.Join(t.TempDir(), "cache.json"))
		d := &fakeDiscoverer{result: newResult(), err: &github.Error{Kind: github.KindQuotaExceeded, Message: "rate limit exceeded"}}
		svc := NewService(d, titleEnricher{}, store)

		scan, err := svc.Scan(context.Background(), coord, ScanOptions{})
		if !github.IsQuotaExceeded(err) {
			t.Fatalf("Scan() error = %v, want QuotaExceeded", err)
		}
		if scan == nil || len(scan.Skills) != 2 {
			t.Errorf("partial scan = %+v", scan)
		}
		if _, ok, _ := store.Get(coord); ok {
			t.Error("incomplete scan should not be cached")
		}
	})
}

func TestScanWithoutManifests(t *testing.T) {
	d := &fakeDiscoverer{result: &walker.Result{Coordinate: coord}}
	svc := NewService(d, titleEnricher{}, nil)

	scan, err := svc.Scan(context.Background(), coord, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(scan.Skills) != 0 {
		t.Errorf("Skills = %v, want none", scan.Skills)
	}
}
