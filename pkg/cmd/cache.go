package cmd

import (
	"fmt"

	"github.com/smy-101/skillpack/internal/github"
	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "管理扫描缓存",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [repo]",
	Short: "清除全部或单个仓库的缓存",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return executeCacheClearRepo(args[0])
		}
		return executeCacheClear()
	},
}

func executeCacheClear() error {
	store, err := openCache()
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	printSuccess("cache cleared")
	return nil
}

func executeCacheClearRepo(repo string) error {
	coord, err := github.ParseRepository(repo, "")
	if err != nil {
		return err
	}
	store, err := openCache()
	if err != nil {
		return err
	}

	removed, err := store.Delete(coord)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("No cached scan for %s.\n", coord.FullName())
		return nil
	}
	printSuccess("removed cached scan for %s", coord.FullName())
	return nil
}
