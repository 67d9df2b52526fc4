// Package archive turns skill subtrees into deliverable bytes: the raw file
// for a single-file skill, or a ZIP for anything larger.
package archive

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/smy-101/skillpack/internal/logger"
	"github.com/smy-101/skillpack/internal/types"
	"github.com/smy-101/skillpack/internal/walker"
	"github.com/sourcegraph/conc/pool"
)

const defaultConcurrency = 5

// Enumerator lists every file under a skill directory.
type Enumerator interface {
	Enumerate(ctx context.Context, coord types.RepositoryCoordinate, root string) (*walker.Result, error)
}

// Downloader fetches file bytes by download URL.
type Downloader interface {
	Download(ctx context.Context, downloadURL string) ([]byte, error)
}

// Deliverable is a finished artifact ready to hand to a sink.
type Deliverable struct {
	Filename    string
	Data        []byte
	ContentType string
	// Archive is false when Data is a single raw file.
	Archive bool
	// Files counts the files packed.
	Files int
}

// BatchReport describes which skills made it into a batch archive.
type BatchReport struct {
	Packed []string
	Empty  []string
	// Failed is non-nil only under PolicyPartial.
	Failed *multierror.Error
}

// Assembler builds deliverables.
type Assembler struct {
	enumerator  Enumerator
	downloader  Downloader
	policy      Policy
	concurrency int
	now         func() time.Time
}

type Option func(*Assembler)

func WithPolicy(p Policy) Option {
	return func(a *Assembler) {
		if p != "" {
			a.policy = p
		}
	}
}

func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAssembler(enumerator Enumerator, downloader Downloader, opts ...Option) *Assembler {
	a := &Assembler{
		enumerator:  enumerator,
		downloader:  downloader,
		policy:      PolicyFailFast,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildSkill packages one skill.
func (a *Assembler) BuildSkill(ctx context.Context, coord types.RepositoryCoordinate, skill types.SkillDescriptor) (*Deliverable, error) {
	files, err := a.enumerate(ctx, coord, skill)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, emptyArchiveError(skill.Name)
	}

	entries, err := a.download(ctx, skill, files, "")
	if err != nil {
		return nil, err
	}

	if len(entries) == 1 {
		return &Deliverable{
			Filename:    SingleFileName(skill.Name, path.Base(files[0].Path)),
			Data:        entries[0].Data,
			ContentType: ContentTypeBinary,
			Files:       1,
		}, nil
	}

	data, err := WriteZip(entries)
	if err != nil {
		return nil, &SkillError{Skill: skill.Name, Err: err}
	}
	return &Deliverable{
		Filename:    SkillArchiveName(skill.Name),
		Data:        data,
		ContentType: ContentTypeZip,
		Archive:     true,
		Files:       len(entries),
	}, nil
}

// BuildBatch packages several skills into one archive, each under a
// directory named after the sanitized skill name. Repeated names get a
// numeric suffix.
func (a *Assembler) BuildBatch(ctx context.Context, coord types.RepositoryCoordinate, skills []types.SkillDescriptor) (*Deliverable, *BatchReport, error) {
	results := make([][]types.ArchiveEntry, len(skills))
	errs := make([]error, len(skills))
	prefixes := UniqueNames(skills)

	var p *pool.ContextPool
	if a.policy == PolicyPartial {
		p = pool.New().WithContext(ctx).WithMaxGoroutines(a.concurrency)
	} else {
		p = pool.New().WithContext(ctx).WithMaxGoroutines(a.concurrency).WithCancelOnError().WithFirstError()
	}

	for i, skill := range skills {
		p.Go(func(ctx context.Context) error {
			entries, err := a.collect(ctx, coord, skill, prefixes[i]+"/")
			if err != nil {
				if a.policy == PolicyPartial {
					errs[i] = err
					return nil
				}
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	report := &BatchReport{}
	var all []types.ArchiveEntry
	for i, skill := range skills {
		switch {
		case errs[i] != nil:
			report.Failed = multierror.Append(report.Failed, errs[i])
		case len(results[i]) == 0:
			logger.G(ctx).WithField("skill", skill.Path).Warn("skill has no files, leaving it out of the batch")
			report.Empty = append(report.Empty, skill.Path)
		default:
			report.Packed = append(report.Packed, skill.Path)
			all = append(all, results[i]...)
		}
	}

	if len(all) == 0 {
		if report.Failed != nil {
			return nil, report, report.Failed.ErrorOrNil()
		}
		return nil, report, fmt.Errorf("batch: %w", ErrEmptyArchive)
	}

	data, err := WriteZip(all)
	if err != nil {
		return nil, report, err
	}
	return &Deliverable{
		Filename:    BatchArchiveName(a.now()),
		Data:        data,
		ContentType: ContentTypeZip,
		Archive:     true,
		Files:       len(all),
	}, report, nil
}

// collect enumerates and downloads one batch member. An empty skill yields
// no entries and no error.
func (a *Assembler) collect(ctx context.Context, coord types.RepositoryCoordinate, skill types.SkillDescriptor, prefix string) ([]types.ArchiveEntry, error) {
	files, err := a.enumerate(ctx, coord, skill)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return a.download(ctx, skill, files, prefix)
}

func (a *Assembler) enumerate(ctx context.Context, coord types.RepositoryCoordinate, skill types.SkillDescriptor) ([]types.FileRecord, error) {
	res, err := a.enumerator.Enumerate(ctx, coord, skill.Path)
	if err != nil {
		return nil, &SkillError{Skill: skill.Name, Err: err}
	}
	if res.Failures > 0 {
		logger.G(ctx).WithField("skill", skill.Path).
			WithField("failures", res.Failures).
			Warn("some directories could not be listed, archive may be incomplete")
	}
	return res.Files, nil
}

// download fetches every file concurrently. Entries keep the order of files.
func (a *Assembler) download(ctx context.Context, skill types.SkillDescriptor, files []types.FileRecord, prefix string) ([]types.ArchiveEntry, error) {
	entries := make([]types.ArchiveEntry, len(files))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(a.concurrency).WithCancelOnError().WithFirstError()
	for i, f := range files {
		p.Go(func(ctx context.Context) error {
			if f.DownloadURL == "" {
				return fmt.Errorf("file %s has no download URL", f.Path)
			}
			data, err := a.downloader.Download(ctx, f.DownloadURL)
			if err != nil {
				return fmt.Errorf("failed to download %s: %w", f.Path, err)
			}
			entries[i] = types.ArchiveEntry{
				RelativePath: prefix + RelativePath(skill.Path, f.Path),
				Data:         data,
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, &SkillError{Skill: skill.Name, Err: err}
	}

	logger.G(ctx).WithField("skill", skill.Path).WithField("files", len(entries)).Debug("skill files downloaded")
	return entries, nil
}
