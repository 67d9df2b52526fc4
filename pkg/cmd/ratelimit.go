package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/smy-101/skillpack/internal/types"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rateLimitCmd)
}

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "查看 GitHub API 剩余配额",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRateLimit(cmd.Context())
	},
}

func executeRateLimit(ctx context.Context) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	state, err := newClient(settings).RateLimit(ctx)
	if err != nil {
		printWarning("could not query rate limit: %v", err)
		if state.Remaining == nil {
			return err
		}
		printHint("showing last observed values")
	}

	printRateLimit(state, settings.GitHubToken != "")
	return nil
}

func printRateLimit(state types.RateLimitState, authenticated bool) {
	fmt.Printf("Remaining: %s\n", intOrUnknown(state.Remaining))
	fmt.Printf("Limit:     %s\n", intOrUnknown(state.Limit))

	reset := state.ResetTime()
	if reset.IsZero() {
		fmt.Println("Resets at: unknown")
	} else {
		wait := time.Until(reset).Round(time.Minute)
		if wait < 0 {
			wait = 0
		}
		fmt.Printf("Resets at: %s (in %s)\n", reset.Local().Format(time.Kitchen), wait)
	}

	if authenticated {
		fmt.Println("Auth:      token")
	} else {
		fmt.Println("Auth:      none")
		printHint("Add a token for 5,000 requests/hour: skillpack config set github_token <token>")
	}
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprint(*v)
}
