package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/smy-101/skillpack/internal/cache"
	"github.com/smy-101/skillpack/internal/config"
	"github.com/smy-101/skillpack/internal/discovery"
	"github.com/smy-101/skillpack/internal/github"
	"github.com/smy-101/skillpack/internal/metadata"
	"github.com/smy-101/skillpack/internal/ratelimit"
	"github.com/smy-101/skillpack/internal/walker"
	"github.com/spf13/viper"
)

const dateFormat = "2006-01-02 15:04"

// openCache is replaced in tests.
var openCache = cache.Open

func loadSettings() (*config.Settings, error) {
	return config.Load(viper.GetViper())
}

func newClient(s *config.Settings) *github.Client {
	return github.NewClient(s.GitHubToken,
		github.WithBaseURLs(s.APIBaseURL, s.RawBaseURL),
		github.WithTimeout(s.RequestTimeout),
		github.WithProxy(s.Proxy),
		github.WithGovernor(ratelimit.Default),
	)
}

func newScanService(s *config.Settings, client *github.Client, store *cache.Store) *discovery.Service {
	w := walker.New(client)
	e := metadata.NewEnricher(client, metadata.WithConcurrency(s.Concurrency))
	if store == nil {
		return discovery.NewService(w, e, nil)
	}
	return discovery.NewService(w, e, store)
}

func newTable() *tablewriter.Table {
	cnf := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}
	return tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(cnf))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

func printSuccess(format string, a ...any) {
	color.New(color.FgGreen, color.Bold).Fprintf(os.Stdout, "✓ "+format+"\n", a...)
}

func printWarning(format string, a ...any) {
	color.New(color.FgYellow, color.Bold).Fprintf(os.Stdout, "⚠ "+format+"\n", a...)
}

func printError(err error) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
}

func printHint(format string, a ...any) {
	color.New(color.Faint).Fprintf(os.Stdout, format+"\n", a...)
}

func repoLabel(owner, name, branch string) string {
	return fmt.Sprintf("%s/%s@%s", owner, name, branch)
}
