package cmd

import (
	"fmt"

	"github.com/smy-101/skillpack/internal/discovery"
	"github.com/smy-101/skillpack/internal/github"
	"github.com/spf13/cobra"
)

const (
	colRepository = "Repository"
	colBranch     = "Branch"
	colSkills     = "Skills"
	colScannedAt  = "Scanned At"
	emptyMsg      = "No repositories scanned yet."
	usageHint     = "Use 'skillpack scan <repo>' to discover skills."
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [repo]",
	Short: "列出缓存的扫描结果",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return executeListRepo(args[0])
		}
		return executeList()
	},
}

// executeList displays every cached repository.
func executeList() error {
	store, err := openCache()
	if err != nil {
		return err
	}
	entries, err := store.All()
	if err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println(emptyMsg)
		fmt.Println(usageHint)
		return nil
	}

	table := newTable()
	table.Header(colRepository, colBranch, colSkills, colScannedAt)
	for _, e := range entries {
		table.Append(e.Coordinate.FullName(), e.Coordinate.Branch, fmt.Sprint(len(e.Skills)), e.ScannedAt.Local().Format(dateFormat))
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	fmt.Printf("\nTotal: %d repositories\n", len(entries))
	return nil
}

// executeListRepo displays the cached skills of one repository.
func executeListRepo(repo string) error {
	coord, err := github.ParseRepository(repo, "")
	if err != nil {
		return err
	}
	store, err := openCache()
	if err != nil {
		return err
	}
	entry, ok, err := store.Get(coord)
	if err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}
	if !ok {
		fmt.Printf("No cached scan for %s.\n", coord.FullName())
		fmt.Printf("Use 'skillpack scan %s' first.\n", coord.FullName())
		return nil
	}

	return renderScan(&discovery.Scan{
		Coordinate: entry.Coordinate,
		Skills:     entry.Skills,
		ScannedAt:  entry.ScannedAt,
		FromCache:  true,
	})
}
