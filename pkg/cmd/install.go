package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/smy-101/skillpack/internal/archive"
	"github.com/smy-101/skillpack/internal/config"
	"github.com/smy-101/skillpack/internal/delivery"
	"github.com/smy-101/skillpack/internal/discovery"
	"github.com/smy-101/skillpack/internal/github"
	"github.com/smy-101/skillpack/internal/types"
	"github.com/smy-101/skillpack/internal/walker"
	"github.com/spf13/cobra"
)

type installOptions struct {
	branch   string
	all      bool
	match    string
	separate bool
	out      string
	force    bool
	noCache  bool
}

var installOpts installOptions

func init() {
	f := installCmd.Flags()
	f.StringVarP(&installOpts.branch, "branch", "b", "", "branch to install from (default main)")
	f.BoolVar(&installOpts.all, "all", false, "install every discovered skill")
	f.StringVar(&installOpts.match, "match", "", "select skills whose path matches a glob, e.g. 'skills/**'")
	f.BoolVar(&installOpts.separate, "separate", false, "write one file per skill instead of a single batch archive")
	f.StringVarP(&installOpts.out, "out", "o", "", "output directory (default from config output_dir)")
	f.BoolVarP(&installOpts.force, "force", "f", false, "overwrite existing files without asking")
	f.BoolVar(&installOpts.noCache, "no-cache", false, "rescan the repository before installing")
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install <repo> [skill-path...]",
	Short: "打包并下载技能",
	Long: `Install packages skills from a repository into {out}/claude-skills/.

Skills are chosen by path as shown by 'skillpack scan', with --all, or with
--match. A skill with a single file is written as that file; anything larger
becomes {name}_skill.zip. When several skills are selected they go into one
claude-skills-batch-{date}.zip unless --separate is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeInstall(cmd.Context(), args[0], args[1:], installOpts)
	},
}

func executeInstall(ctx context.Context, repo string, paths []string, opts installOptions) error {
	if len(paths) == 0 && !opts.all && opts.match == "" {
		return errors.New("specify skill paths, --all or --match")
	}
	if opts.match != "" && !doublestar.ValidatePattern(opts.match) {
		return fmt.Errorf("invalid --match pattern %q", opts.match)
	}

	coord, err := github.ParseRepository(repo, opts.branch)
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := openCache()
	if err != nil {
		return err
	}

	client := newClient(settings)
	scan, err := newScanService(settings, client, store).Scan(ctx, coord, discovery.ScanOptions{Refresh: opts.noCache})
	if err != nil {
		return err
	}

	selected, err := selectSkills(scan.Skills, paths, opts.all, opts.match)
	if err != nil {
		return err
	}

	outDir := settings.OutputDir
	if opts.out != "" {
		outDir = opts.out
	}
	sink := delivery.NewFileSink(outDir)
	sink.Overwrite = opts.force
	sink.Prompt = delivery.PromptOverwrite(os.Stdin, os.Stdout)

	assembler := archive.NewAssembler(walker.New(client), client,
		archive.WithPolicy(settings.BatchPolicy),
		archive.WithConcurrency(settings.Concurrency),
	)

	if !opts.separate && len(selected) > 1 {
		return installBatch(ctx, assembler, sink, scan.Coordinate, selected)
	}
	return installEach(ctx, assembler, sink, settings, scan.Coordinate, selected)
}

// selectSkills resolves the requested paths and pattern against the scan.
// The result keeps scan order and holds no duplicates.
func selectSkills(skills []types.SkillDescriptor, paths []string, all bool, pattern string) ([]types.SkillDescriptor, error) {
	if all {
		if len(skills) == 0 {
			return nil, errors.New("no skills found in repository")
		}
		return skills, nil
	}

	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[normalizeSkillPath(p)] = false
	}

	var selected []types.SkillDescriptor
	for _, s := range skills {
		_, byPath := wanted[s.Path]
		byPattern := false
		if pattern != "" {
			byPattern, _ = doublestar.Match(pattern, s.Path)
		}
		if byPath {
			wanted[s.Path] = true
		}
		if byPath || byPattern {
			selected = append(selected, s)
		}
	}

	var missing []string
	for p, found := range wanted {
		if !found {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("skill not found: %s (run 'skillpack scan' to see available paths)", strings.Join(missing, ", "))
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no skills match %q", pattern)
	}
	return selected, nil
}

func normalizeSkillPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return types.RootSkillPath
	}
	return p
}

func installBatch(ctx context.Context, a *archive.Assembler, sink delivery.Sink, coord types.RepositoryCoordinate, skills []types.SkillDescriptor) error {
	d, report, err := a.BuildBatch(ctx, coord, skills)
	if err != nil {
		return fmt.Errorf("failed to build batch archive: %w", err)
	}

	path, err := sink.Deliver(d)
	if err != nil {
		return err
	}
	printSuccess("%d skill(s), %d file(s) -> %s", len(report.Packed), d.Files, path)
	for _, p := range report.Empty {
		printWarning("skipped %s: no files", p)
	}
	if report.Failed != nil {
		for _, e := range report.Failed.Errors {
			printWarning("skipped %v", e)
		}
	}
	return nil
}

func installEach(ctx context.Context, a *archive.Assembler, sink delivery.Sink, settings *config.Settings, coord types.RepositoryCoordinate, skills []types.SkillDescriptor) error {
	var result *multierror.Error
	names := archive.UniqueNames(skills)
	for i, skill := range skills {
		if err := ctx.Err(); err != nil {
			return err
		}
		label := skill.DisplayName()
		// 同名技能改用带后缀的文件名，避免覆盖前一个
		if names[i] != archive.Sanitize(skill.Name) {
			skill.Name = names[i]
		}

		path, err := installOne(ctx, a, sink, coord, skill)
		if err != nil {
			if settings.BatchPolicy != archive.PolicyPartial {
				return err
			}
			printWarning("%v", err)
			result = multierror.Append(result, err)
			continue
		}
		printSuccess("%s -> %s", label, path)
	}
	return result.ErrorOrNil()
}

func installOne(ctx context.Context, a *archive.Assembler, sink delivery.Sink, coord types.RepositoryCoordinate, skill types.SkillDescriptor) (string, error) {
	d, err := a.BuildSkill(ctx, coord, skill)
	if err != nil {
		return "", err
	}
	return sink.Deliver(d)
}
