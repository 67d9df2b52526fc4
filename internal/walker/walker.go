// Package walker traverses a repository through the GitHub contents API.
//
// A traversal keeps a frontier of (path, depth) nodes and a visited set keyed
// by owner/repo/branch/path. Each frontier level is drained in batches of at
// most BatchSize concurrent listings; a batch fully settles before the next
// one starts. Directories deeper than MaxDepth are silently skipped.
//
// Listing failures are scoped to the subtree that failed: they are logged and
// that subtree contributes nothing. The only failure that stops the walk is
// an exhausted API quota, since every further request would fail the same way.
package walker

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/smy-101/skillpack/internal/github"
	"github.com/smy-101/skillpack/internal/logger"
	"github.com/smy-101/skillpack/internal/metadata"
	"github.com/smy-101/skillpack/internal/types"
	"github.com/sourcegraph/conc/pool"
)

const (
	MaxDepth  = 10
	BatchSize = 5

	// FallbackBranch is tried once when the requested branch has no root listing.
	FallbackBranch = "main"
)

// Lister lists one directory of a repository.
type Lister interface {
	ListContents(ctx context.Context, coord types.RepositoryCoordinate, path string) ([]types.DirectoryEntry, error)
}

// Mode selects what a traversal records.
type Mode int

const (
	// ModeDiscovery records manifest files only.
	ModeDiscovery Mode = iota
	// ModeEnumeration records every file.
	ModeEnumeration
)

func (m Mode) String() string {
	if m == ModeEnumeration {
		return "enumeration"
	}
	return "discovery"
}

// Walker runs discovery and enumeration traversals.
type Walker struct {
	lister    Lister
	maxDepth  int
	batchSize int
	manifest  string
}

type Option func(*Walker)

func WithMaxDepth(depth int) Option {
	return func(w *Walker) {
		if depth >= 0 {
			w.maxDepth = depth
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Walker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithManifestName(name string) Option {
	return func(w *Walker) {
		if name != "" {
			w.manifest = name
		}
	}
}

func New(lister Lister, opts ...Option) *Walker {
	w := &Walker{
		lister:    lister,
		maxDepth:  MaxDepth,
		batchSize: BatchSize,
		manifest:  metadata.DefaultManifestName,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Result is the outcome of one traversal.
type Result struct {
	// Coordinate is the coordinate actually walked; its branch differs from
	// the requested one when the fallback branch was used.
	Coordinate types.RepositoryCoordinate
	Skills     []types.SkillDescriptor
	Files      []types.FileRecord
	// Visited counts directories listed (or attempted).
	Visited int
	// Failures counts subtrees dropped because their listing failed.
	Failures int
}

// Discover finds every manifest file in the repository.
func (w *Walker) Discover(ctx context.Context, coord types.RepositoryCoordinate) (*Result, error) {
	return w.walk(ctx, coord, "", ModeDiscovery)
}

// Enumerate lists every file under root. Root "/" or "" means the whole
// repository.
func (w *Walker) Enumerate(ctx context.Context, coord types.RepositoryCoordinate, root string) (*Result, error) {
	root = strings.Trim(root, "/")
	return w.walk(ctx, coord, root, ModeEnumeration)
}

type node struct {
	path  string
	depth int
}

type traversal struct {
	w       *Walker
	mode    Mode
	coord   types.RepositoryCoordinate
	visited *visitedSet

	mu       sync.Mutex
	skills   []types.SkillDescriptor
	files    []types.FileRecord
	failures int
	quotaErr error
}

func (w *Walker) walk(ctx context.Context, coord types.RepositoryCoordinate, root string, mode Mode) (*Result, error) {
	t := &traversal{
		w:       w,
		mode:    mode,
		coord:   coord,
		visited: newVisitedSet(),
	}

	frontier := t.visitRoot(ctx, node{path: root, depth: 0})

	for len(frontier) > 0 && t.err() == nil {
		if err := ctx.Err(); err != nil {
			return t.result(), err
		}

		var next []node
		var nextMu sync.Mutex
		for start := 0; start < len(frontier); start += w.batchSize {
			if err := ctx.Err(); err != nil {
				return t.result(), err
			}
			end := min(start+w.batchSize, len(frontier))

			p := pool.New().WithMaxGoroutines(w.batchSize)
			for _, n := range frontier[start:end] {
				p.Go(func() {
					children := t.visit(ctx, n)
					nextMu.Lock()
					next = append(next, children...)
					nextMu.Unlock()
				})
			}
			p.Wait()

			if t.err() != nil {
				break
			}
		}
		frontier = next
	}

	return t.result(), t.err()
}

// visitRoot lists the starting directory, retrying once on the fallback
// branch when the requested branch is unknown.
func (t *traversal) visitRoot(ctx context.Context, root node) []node {
	entries, err := t.list(ctx, root)
	if err != nil && github.IsNotFound(err) && !isDefaultBranch(t.coord.Branch) {
		logger.G(ctx).WithField("repo", t.coord.FullName()).
			WithField("branch", t.coord.Branch).
			WithField("fallback", FallbackBranch).
			Info("branch not found, retrying on fallback branch")
		t.coord = t.coord.WithBranch(FallbackBranch)
		entries, err = t.list(ctx, root)
	}
	if err != nil {
		t.fail(ctx, root, err)
		return nil
	}
	return t.record(root, entries)
}

func (t *traversal) visit(ctx context.Context, n node) []node {
	entries, err := t.list(ctx, n)
	if err != nil {
		t.fail(ctx, n, err)
		return nil
	}
	return t.record(n, entries)
}

// list applies the depth and visited checks before issuing the request.
// A skipped node returns no entries and no error.
func (t *traversal) list(ctx context.Context, n node) ([]types.DirectoryEntry, error) {
	if n.depth > t.w.maxDepth {
		logger.G(ctx).WithField("path", n.path).WithField("depth", n.depth).Debug("max depth reached, skipping subtree")
		return nil, nil
	}
	if !t.visited.add(visitKey(t.coord, n.path)) {
		return nil, nil
	}
	return t.w.lister.ListContents(ctx, t.coord, n.path)
}

func (t *traversal) record(n node, entries []types.DirectoryEntry) []node {
	var children []node

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range entries {
		switch {
		case e.IsDir():
			children = append(children, node{path: e.Path, depth: n.depth + 1})
		case e.IsFile() && t.mode == ModeDiscovery:
			if e.Name == t.w.manifest {
				t.skills = append(t.skills, t.descriptor(e))
			}
		case e.IsFile() && t.mode == ModeEnumeration:
			t.files = append(t.files, types.FileRecord{
				Path:        e.Path,
				Name:        e.Name,
				DownloadURL: e.DownloadURL,
				Size:        e.Size,
			})
		}
	}
	return children
}

func (t *traversal) descriptor(e types.DirectoryEntry) types.SkillDescriptor {
	skillPath := path.Dir(strings.Trim(e.Path, "/"))
	if skillPath == "." || skillPath == "" {
		skillPath = types.RootSkillPath
	}
	return types.SkillDescriptor{
		Name:                metadata.SkillName(skillPath),
		Path:                skillPath,
		SourceURL:           e.HTMLURL,
		ManifestDownloadURL: e.DownloadURL,
		SHA:                 e.SHA,
	}
}

func (t *traversal) fail(ctx context.Context, n node, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if github.IsQuotaExceeded(err) {
		if t.quotaErr == nil {
			t.quotaErr = err
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	t.failures++
	logger.G(ctx).WithError(err).
		WithField("repo", t.coord.FullName()).
		WithField("path", displayPath(n.path)).
		WithField("mode", t.mode.String()).
		Warn("failed to list directory, skipping subtree")
}

func (t *traversal) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quotaErr
}

func (t *traversal) result() *Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	skills := append([]types.SkillDescriptor(nil), t.skills...)
	sort.Slice(skills, func(i, j int) bool { return skills[i].Path < skills[j].Path })
	files := append([]types.FileRecord(nil), t.files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return &Result{
		Coordinate: t.coord,
		Skills:     skills,
		Files:      files,
		Visited:    t.visited.len(),
		Failures:   t.failures,
	}
}

func isDefaultBranch(branch string) bool {
	return branch == "main" || branch == "master"
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
