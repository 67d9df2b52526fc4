package delivery

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathValidator 路径校验器，确保输出文件留在输出目录内
type PathValidator struct {
	BaseDir string
}

func NewPathValidator(baseDir string) *PathValidator {
	return &PathValidator{BaseDir: baseDir}
}

// Resolve validates filename and returns its absolute path under BaseDir.
func (v *PathValidator) Resolve(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}
	// 只接受单层文件名
	if filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("filename must not contain path separators: %s", filename)
	}
	if filename == "." || filename == ".." {
		return "", fmt.Errorf("path traversal detected: %s", filename)
	}

	absBase, err := filepath.Abs(v.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to get base absolute path: %w", err)
	}
	absTarget := filepath.Join(absBase, filename)

	// 检查是否在base目录内
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("target path outside of output directory: %s", absTarget)
	}

	return absTarget, nil
}
