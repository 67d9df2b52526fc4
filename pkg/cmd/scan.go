package cmd

import (
	"context"
	"fmt"

	"github.com/smy-101/skillpack/internal/discovery"
	"github.com/smy-101/skillpack/internal/github"
	"github.com/spf13/cobra"
)

const (
	colName        = "Name"
	colPath        = "Path"
	colTitle       = "Title"
	colDescription = "Description"
	descWidth      = 60
)

var scanOpts struct {
	branch  string
	noCache bool
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.branch, "branch", "b", "", "branch to scan (default main)")
	scanCmd.Flags().BoolVar(&scanOpts.noCache, "no-cache", false, "rescan even when a cached result exists")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan <repo>",
	Short: "扫描仓库中的所有技能",
	Long: `Scan walks a GitHub repository for SKILL.md manifests and caches the result.

<repo> is owner/name or a github.com URL, optionally pointing at a branch:
  skillpack scan anthropics/skills
  skillpack scan https://github.com/anthropics/skills/tree/main`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeScan(cmd.Context(), args[0], scanOpts.branch, scanOpts.noCache)
	},
}

func executeScan(ctx context.Context, repo, branch string, noCache bool) error {
	coord, err := github.ParseRepository(repo, branch)
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

	svc := newScanService(settings, newClient(settings), store)
	scan, err := svc.Scan(ctx, coord, discovery.ScanOptions{Refresh: noCache})
	if err != nil {
		if scan != nil && len(scan.Skills) > 0 {
			printWarning("scan stopped early, showing %d skill(s) found so far", len(scan.Skills))
			_ = renderScan(scan)
		}
		return err
	}

	if scan.Coordinate.Branch != coord.Branch {
		printWarning("branch %q not found, scanned %q instead", coord.Branch, scan.Coordinate.Branch)
	}
	return renderScan(scan)
}

func renderScan(scan *discovery.Scan) error {
	c := scan.Coordinate
	if len(scan.Skills) == 0 {
		fmt.Printf("No skills found in %s.\n", repoLabel(c.Owner, c.Name, c.Branch))
		return nil
	}

	table := newTable()
	table.Header(colName, colPath, colTitle, colDescription)
	for _, s := range scan.Skills {
		table.Append(s.Name, s.Path, s.Title, truncate(s.Description, descWidth))
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	fmt.Printf("\nTotal: %d skills in %s\n", len(scan.Skills), repoLabel(c.Owner, c.Name, c.Branch))
	if scan.FromCache {
		printHint("cached %s, use --no-cache to rescan", scan.ScannedAt.Local().Format(dateFormat))
	}
	if scan.Failures > 0 {
		printWarning("%d director(ies) could not be listed", scan.Failures)
	}
	return nil
}
