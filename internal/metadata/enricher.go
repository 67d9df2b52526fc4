// Package metadata reads a skill's SKILL.md and extracts its title and
// description.
package metadata

import (
	"context"
	"strings"

	"github.com/smy-101/skillpack/internal/logger"
	"github.com/smy-101/skillpack/internal/types"
	"github.com/sourcegraph/conc/pool"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const (
	DefaultManifestName = "SKILL.md"
	defaultConcurrency  = 5
)

// RawFetcher loads a file from the raw content host.
type RawFetcher interface {
	FetchRaw(ctx context.Context, coord types.RepositoryCoordinate, path string) ([]byte, error)
}

// Manifest is what Parse extracts from a manifest file.
type Manifest struct {
	Title       string
	Description string
}

// Enricher adds manifest metadata to discovered skills.
type Enricher struct {
	fetcher     RawFetcher
	manifest    string
	concurrency int
}

type Option func(*Enricher)

func WithManifestName(name string) Option {
	return func(e *Enricher) {
		if name != "" {
			e.manifest = name
		}
	}
}

func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewEnricher(fetcher RawFetcher, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:     fetcher,
		manifest:    DefaultManifestName,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich fetches the skill's manifest and fills Title and Description.
// Any fetch failure returns the descriptor unchanged.
func (e *Enricher) Enrich(ctx context.Context, coord types.RepositoryCoordinate, skill types.SkillDescriptor) types.SkillDescriptor {
	manifestPath := ManifestPath(skill, e.manifest)

	content, err := e.fetcher.FetchRaw(ctx, coord, manifestPath)
	if err != nil {
		logger.G(ctx).WithError(err).
			WithField("skill", skill.Path).
			Warn("failed to fetch skill manifest, keeping discovered metadata")
		return skill
	}

	m := Parse(content)
	if m.Title != "" {
		skill.Title = m.Title
	}
	if m.Description != "" {
		skill.Description = m.Description
	}
	return skill
}

// EnrichAll enriches every skill concurrently. The output keeps input order.
func (e *Enricher) EnrichAll(ctx context.Context, coord types.RepositoryCoordinate, skills []types.SkillDescriptor) []types.SkillDescriptor {
	out := make([]types.SkillDescriptor, len(skills))
	p := pool.New().WithMaxGoroutines(e.concurrency)
	for i, skill := range skills {
		p.Go(func() {
			out[i] = e.Enrich(ctx, coord, skill)
		})
	}
	p.Wait()
	return out
}

// Parse extracts the first level-1 heading as the title and the first
// paragraph after it, past any sub-headings, as the description. YAML front matter keys "title",
// "name" and "description" fill whatever the body leaves empty.
func Parse(content []byte) Manifest {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	pctx := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(content), parser.WithContext(pctx))

	var m Manifest
	seenTitle := false
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			// 标题之后的小节标题跳过，继续找正文段落
			if !seenTitle && h.Level == 1 {
				m.Title = plainText(h, content)
				seenTitle = true
			}
			continue
		}
		if !seenTitle {
			continue
		}
		if p, ok := n.(*ast.Paragraph); ok {
			m.Description = plainText(p, content)
			break
		}
	}

	front := meta.Get(pctx)
	if m.Title == "" {
		m.Title = frontMatterString(front, "title")
	}
	if m.Title == "" {
		m.Title = frontMatterString(front, "name")
	}
	if m.Description == "" {
		m.Description = frontMatterString(front, "description")
	}
	return m
}

func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func frontMatterString(front map[string]interface{}, key string) string {
	if front == nil {
		return ""
	}
	v, ok := front[key].(string)
	if !ok {
		return ""
	}
	return strings.Join(strings.Fields(v), " ")
}
