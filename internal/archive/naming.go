package archive

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smy-101/skillpack/internal/types"
)

const (
	ContentTypeZip    = "application/zip"
	ContentTypeBinary = "application/octet-stream"

	skillArchiveSuffix = "_skill.zip"
	batchArchivePrefix = "claude-skills-batch-"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Sanitize makes a skill name safe for file and entry names.
func Sanitize(name string) string {
	return strings.ToLower(unsafeNameChars.ReplaceAllString(name, "_"))
}

// UniqueNames returns the sanitized name of each skill. Later skills whose
// name is already taken get a _2, _3, ... suffix, so team-a/pdf and
// team-b/pdf become pdf and pdf_2.
func UniqueNames(skills []types.SkillDescriptor) []string {
	names := make([]string, len(skills))
	taken := make(map[string]bool, len(skills))
	for i, s := range skills {
		base := Sanitize(s.Name)
		name := base
		for n := 2; taken[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// SkillArchiveName 单个技能压缩包文件名
func SkillArchiveName(skillName string) string {
	return Sanitize(skillName) + skillArchiveSuffix
}

// SingleFileName names the deliverable of a skill holding exactly one file.
func SingleFileName(skillName, fileName string) string {
	return Sanitize(skillName) + "_" + fileName
}

// BatchArchiveName 批量压缩包文件名，按日期区分
func BatchArchiveName(now time.Time) string {
	return batchArchivePrefix + now.Format("2006-01-02") + ".zip"
}

// RelativePath strips the skill directory from a repository file path.
// Files of the root skill keep their full path.
func RelativePath(skillPath, filePath string) string {
	skillPath = strings.Trim(skillPath, "/")
	filePath = strings.TrimPrefix(filePath, "/")
	if skillPath == "" {
		return filePath
	}
	return strings.TrimPrefix(filePath, skillPath+"/")
}
