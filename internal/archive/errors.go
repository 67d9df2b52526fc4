package archive

import (
	"errors"
	"fmt"
)

// ErrEmptyArchive is returned when a skill has no files to pack.
var ErrEmptyArchive = errors.New("no files to archive")

// SkillError 单个技能打包失败
type SkillError struct {
	Skill string
	Err   error
}

func (e *SkillError) Error() string {
	return fmt.Sprintf("skill %s: %v", e.Skill, e.Err)
}

func (e *SkillError) Unwrap() error {
	return e.Err
}

func emptyArchiveError(skill string) error {
	return &SkillError{Skill: skill, Err: ErrEmptyArchive}
}
