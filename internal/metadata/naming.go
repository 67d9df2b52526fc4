package metadata

import (
	"strings"

	"github.com/smy-101/skillpack/internal/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RootSkillName labels a manifest found at the repository root.
const RootSkillName = "Root Skill"

// SkillName derives a display name from a skill directory path:
// "skills/pdf-tools" becomes "Pdf Tools".
func SkillName(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return RootSkillName
	}

	last := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		last = path[i+1:]
	}
	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
	// Casers carry state, so one is built per call.
	return cases.Title(language.Und, cases.NoLower).String(last)
}

// ManifestPath is the repository path of a skill's manifest file.
func ManifestPath(skill types.SkillDescriptor, manifest string) string {
	if skill.IsRoot() {
		return manifest
	}
	return strings.Trim(skill.Path, "/") + "/" + manifest
}
