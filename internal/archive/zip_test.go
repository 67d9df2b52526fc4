package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/smy-101/skillpack/internal/types"
)

func TestWriteZipIsDeterministic(t *testing.T) {
	a := []types.ArchiveEntry{
		{RelativePath: "b.txt", Data: []byte("b")},
		{RelativePath: "a/c.txt", Data: []byte("c")},
	}
	b := []types.ArchiveEntry{a[1], a[0]}

	first, err := WriteZip(a)
	if err != nil {
		t.Fatalf("WriteZip() error = %v", err)
	}
	second, err := WriteZip(b)
	if err != nil {
		t.Fatalf("WriteZip() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("archives differ for the same entries in a different order")
	}

	zr, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "a/c.txt" {
		t.Errorf("entries not sorted: %v", zr.File)
	}
}

func TestWriteZipRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []types.ArchiveEntry
	}{
		{name: "empty name", entries: []types.ArchiveEntry{{RelativePath: ""}}},
		{name: "duplicate", entries: []types.ArchiveEntry{{RelativePath: "x"}, {RelativePath: "/x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := WriteZip(tt.entries); err == nil {
				t.Error("WriteZip() expected error")
			}
		})
	}
}

func TestNaming(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Sanitize("PDF Tools"), "pdf_tools"},
		{Sanitize("mcp-builder_v2"), "mcp-builder_v2"},
		{Sanitize("Ünïcode/../x"), "_n_code____x"},
		{SkillArchiveName("Web App"), "web_app_skill.zip"},
		{SingleFileName("Notes", "README.md"), "notes_README.md"},
		{RelativePath("skills/pdf", "skills/pdf/a/b.txt"), "a/b.txt"},
		{RelativePath("/", "lib/x.go"), "lib/x.go"},
		{RelativePath("skills/pdf", "skills/pdf-extra/a.txt"), "skills/pdf-extra/a.txt"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestUniqueNames(t *testing.T) {
	tests := []struct {
		name  string
		skill []string
		want  []string
	}{
		{name: "distinct", skill: []string{"Pdf", "Docx"}, want: []string{"pdf", "docx"}},
		{name: "repeated", skill: []string{"Pdf", "pdf", "PDF"}, want: []string{"pdf", "pdf_2", "pdf_3"}},
		{name: "suffix already taken", skill: []string{"pdf", "pdf_2", "pdf"}, want: []string{"pdf", "pdf_2", "pdf_3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var skills []types.SkillDescriptor
			for _, n := range tt.skill {
				skills = append(skills, types.SkillDescriptor{Name: n})
			}
			got := UniqueNames(skills)
			if len(got) != len(tt.want) {
				t.Fatalf("UniqueNames() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("UniqueNames() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}
