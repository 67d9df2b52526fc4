// Package delivery hands finished deliverables to the user.
package delivery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/smy-101/skillpack/internal/archive"
)

// Subdir is created inside the output directory to hold deliverables.
const Subdir = "claude-skills"

var ErrExists = errors.New("target file already exists")

type Sink interface {
	Deliver(d *archive.Deliverable) (string, error)
}

// FileSink writes deliverables to {OutputDir}/claude-skills/{filename}.
type FileSink struct {
	OutputDir string
	// Overwrite replaces existing files without asking.
	Overwrite bool
	// Prompt is asked before replacing a file when Overwrite is false.
	// A nil Prompt refuses with ErrExists.
	Prompt func(path string) (bool, error)
}

func NewFileSink(outputDir string) *FileSink {
	return &FileSink{OutputDir: outputDir}
}

func (s *FileSink) Dir() string {
	return filepath.Join(s.OutputDir, Subdir)
}

// Deliver writes d and returns the path written.
func (s *FileSink) Deliver(d *archive.Deliverable) (string, error) {
	if d == nil {
		return "", fmt.Errorf("deliverable cannot be nil")
	}

	dir := s.Dir()
	target, err := NewPathValidator(dir).Resolve(d.Filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	exists, err := checkPathExists(target)
	if err != nil {
		return "", fmt.Errorf("failed to check target path: %w", err)
	}
	if exists && !s.Overwrite {
		if s.Prompt == nil {
			return "", fmt.Errorf("%w: %s", ErrExists, target)
		}
		ok, err := s.Prompt(target)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrExists, target)
		}
	}

	tmpPath := target + ".tmp"
	if err := os.WriteFile(tmpPath, d.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", d.Filename, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename %s: %w", d.Filename, err)
	}
	return target, nil
}

func checkPathExists(localPath string) (bool, error) {
	_, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PromptOverwrite asks on stdout and reads the answer from in.
func PromptOverwrite(in io.Reader, out io.Writer) func(string) (bool, error) {
	return func(path string) (bool, error) {
		fmt.Fprintf(out, "%s already exists. Overwrite? [y/N]: ", path)

		var response string
		if _, err := fmt.Fscanln(in, &response); err != nil {
			return false, nil
		}

		response = strings.TrimSpace(strings.ToLower(response))
		return response == "y" || response == "yes", nil
	}
}
