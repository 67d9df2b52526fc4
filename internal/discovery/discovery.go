// Package discovery runs a repository scan: walk for manifests, enrich the
// results, and keep them in the cache.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/smy-101/skillpack/internal/logger"
	"github.com/smy-101/skillpack/internal/types"
	"github.com/smy-101/skillpack/internal/walker"
)

type Discoverer interface {
	Discover(ctx context.Context, coord types.RepositoryCoordinate) (*walker.Result, error)
}

type Enricher interface {
	EnrichAll(ctx context.Context, coord types.RepositoryCoordinate, skills []types.SkillDescriptor) []types.SkillDescriptor
}

// Cache is the subset of cache.Store a scan needs.
type Cache interface {
	Get(coord types.RepositoryCoordinate) (*types.CachedDiscovery, bool, error)
	Record(requestedBranch string, coord types.RepositoryCoordinate, skills []types.SkillDescriptor) (*types.CachedDiscovery, error)
}

// Scan is the outcome of one repository scan.
type Scan struct {
	Coordinate types.RepositoryCoordinate
	Skills     []types.SkillDescriptor
	ScannedAt  time.Time
	// FromCache is true when no request was made.
	FromCache bool
	Failures  int
}

type Service struct {
	discoverer Discoverer
	enricher   Enricher
	cache      Cache
}

// NewService wires a scan pipeline. cache may be nil.
func NewService(d Discoverer, e Enricher, c Cache) *Service {
	return &Service{discoverer: d, enricher: e, cache: c}
}

type ScanOptions struct {
	// Refresh bypasses a cached result.
	Refresh bool
}

// Scan discovers and enriches the skills of a repository. A cached result
// for the same branch is returned unless opts.Refresh is set. Results are cached
// only when the walk completed.
func (s *Service) Scan(ctx context.Context, coord types.RepositoryCoordinate, opts ScanOptions) (*Scan, error) {
	log := logger.G(ctx).WithField("repo", coord.FullName())

	if s.cache != nil && !opts.Refresh {
		entry, ok, err := s.cache.Get(coord)
		if err != nil {
			log.WithError(err).Warn("failed to read discovery cache, scanning instead")
		} else if ok && !entry.Serves(coord.Branch) {
			log.WithField("cached_branch", entry.Coordinate.Branch).Debug("cached discovery is for another branch")
		} else if ok {
			log.Debug("using cached discovery")
			return &Scan{
				Coordinate: entry.Coordinate,
				Skills:     entry.Skills,
				ScannedAt:  entry.ScannedAt,
				FromCache:  true,
			}, nil
		}
	}

	res, err := s.discoverer.Discover(ctx, coord)
	if err != nil {
		if res == nil {
			return nil, fmt.Errorf("failed to scan %s: %w", coord.FullName(), err)
		}
		return &Scan{Coordinate: res.Coordinate, Skills: res.Skills, Failures: res.Failures},
			fmt.Errorf("scan of %s incomplete: %w", coord.FullName(), err)
	}

	skills := res.Skills
	if s.enricher != nil && len(skills) > 0 {
		skills = s.enricher.EnrichAll(ctx, res.Coordinate, skills)
	}

	scan := &Scan{
		Coordinate: res.Coordinate,
		Skills:     skills,
		ScannedAt:  time.Now().UTC(),
		Failures:   res.Failures,
	}

	log.WithField("skills", len(skills)).
		WithField("directories", res.Visited).
		WithField("failures", res.Failures).
		Info("scan complete")

	if s.cache != nil {
		entry, err := s.cache.Record(coord.Branch, res.Coordinate, skills)
		if err != nil {
			log.WithError(err).Warn("failed to write discovery cache")
		} else {
			scan.ScannedAt = entry.ScannedAt
		}
	}
	return scan, nil
}
