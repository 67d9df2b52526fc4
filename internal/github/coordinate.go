package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/smy-101/skillpack/internal/types"
)

// DefaultBranch is assumed when a repository reference names no branch.
const DefaultBranch = "main"

// ParseRepository turns a repository reference into a coordinate.
//
// Accepted forms:
//
//	owner/repo
//	https://github.com/owner/repo
//	https://github.com/owner/repo/tree/<branch>/...
//	https://github.com/owner/repo/blob/<branch>/...
//
// An explicit branch argument overrides whatever the reference carries.
func ParseRepository(ref, branch string) (types.RepositoryCoordinate, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.RepositoryCoordinate{}, fmt.Errorf("repository reference cannot be empty")
	}

	var parts []string
	if strings.Contains(ref, "://") {
		parsed, err := url.Parse(ref)
		if err != nil {
			return types.RepositoryCoordinate{}, fmt.Errorf("invalid URL: %w", err)
		}
		if host := strings.ToLower(parsed.Hostname()); host != "github.com" && host != "www.github.com" {
			return types.RepositoryCoordinate{}, fmt.Errorf("only GitHub URLs are supported")
		}
		parts = strings.Split(strings.Trim(parsed.Path, "/"), "/")
	} else {
		parts = strings.Split(strings.Trim(ref, "/"), "/")
		if len(parts) != 2 {
			return types.RepositoryCoordinate{}, fmt.Errorf("invalid repository %q (use owner/repo or a GitHub URL)", ref)
		}
	}

	if len(parts) < 2 {
		return types.RepositoryCoordinate{}, fmt.Errorf("invalid GitHub URL format")
	}

	coord := types.RepositoryCoordinate{
		Owner:  parts[0],
		Name:   strings.TrimSuffix(parts[1], ".git"),
		Branch: DefaultBranch,
	}
	if coord.Owner == "" {
		return types.RepositoryCoordinate{}, fmt.Errorf("owner cannot be empty")
	}
	if coord.Name == "" {
		return types.RepositoryCoordinate{}, fmt.Errorf("repo cannot be empty")
	}

	if len(parts) >= 4 && (parts[2] == "tree" || parts[2] == "blob") {
		if parts[3] == "" {
			return types.RepositoryCoordinate{}, fmt.Errorf("branch cannot be empty in URL")
		}
		coord.Branch = parts[3]
	}

	if branch != "" {
		coord.Branch = branch
	}
	return coord, nil
}
