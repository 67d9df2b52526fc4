package types

import "time"

const (
	// EntryTypeFile GitHub contents API 中文件条目的类型
	EntryTypeFile = "file"
	// EntryTypeDir 目录条目的类型
	EntryTypeDir = "dir"

	// RootSkillPath is the path recorded for a manifest at the repository root.
	RootSkillPath = "/"
)

// RepositoryCoordinate 仓库坐标
type RepositoryCoordinate struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// FullName returns "owner/name".
func (c RepositoryCoordinate) FullName() string {
	return c.Owner + "/" + c.Name
}

// WithBranch returns a copy of the coordinate pointing at another branch.
func (c RepositoryCoordinate) WithBranch(branch string) RepositoryCoordinate {
	c.Branch = branch
	return c
}

// DirectoryEntry GitHub API返回的内容项
type DirectoryEntry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	HTMLURL     string `json:"html_url"`
	DownloadURL string `json:"download_url"`
}

func (e DirectoryEntry) IsFile() bool { return e.Type == EntryTypeFile }

func (e DirectoryEntry) IsDir() bool { return e.Type == EntryTypeDir }

// SkillDescriptor 技能描述
type SkillDescriptor struct {
	Name                string `json:"name"`
	Path                string `json:"path"`
	SourceURL           string `json:"source_url"`
	ManifestDownloadURL string `json:"manifest_download_url"`
	SHA                 string `json:"sha,omitempty"`
	Title               string `json:"title,omitempty"`
	Description         string `json:"description,omitempty"`
}

// DisplayName prefers the manifest title over the name derived from the path.
func (s SkillDescriptor) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// IsRoot reports whether the skill lives at the repository root.
func (s SkillDescriptor) IsRoot() bool {
	return s.Path == "" || s.Path == RootSkillPath
}

// FileRecord is one file found while enumerating a skill subtree.
type FileRecord struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	Size        int64  `json:"size"`
}

// RateLimitState mirrors the last X-RateLimit-* headers seen. Nil fields
// mean the value has not been observed yet.
type RateLimitState struct {
	Remaining              *int   `json:"remaining"`
	Limit                  *int   `json:"limit"`
	ResetEpochMillis       *int64 `json:"reset"`
	LastCheckedEpochMillis *int64 `json:"last_checked"`
}

// ResetTime returns the reset instant, or the zero time when unknown.
func (s RateLimitState) ResetTime() time.Time {
	if s.ResetEpochMillis == nil {
		return time.Time{}
	}
	return time.UnixMilli(*s.ResetEpochMillis)
}

// ArchiveEntry 压缩包中的一个文件
type ArchiveEntry struct {
	RelativePath string
	Data         []byte
}

// CachedDiscovery is what the scan cache stores per repository.
type CachedDiscovery struct {
	Coordinate RepositoryCoordinate `json:"coordinate"`
	// RequestedBranch is the branch asked for, which differs from
	// Coordinate.Branch after a fallback.
	RequestedBranch string            `json:"requested_branch,omitempty"`
	Skills          []SkillDescriptor `json:"skills"`
	ScannedAt       time.Time         `json:"scanned_at"`
}

// Serves reports whether the entry answers a scan of branch.
func (d CachedDiscovery) Serves(branch string) bool {
	return branch == d.Coordinate.Branch || (d.RequestedBranch != "" && branch == d.RequestedBranch)
}
