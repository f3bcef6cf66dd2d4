package index

import (
	"sort"
	"testing"
)

func meta(filename, ext string, mimeType *string, compressed bool) *Metadata {
	return &Metadata{
		Filename:     filename,
		Extension:    ext,
		MIMEType:     mimeType,
		IsCompressed: compressed,
	}
}

func strPtr(s string) *string { return &s }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		m    *Metadata
		want []string
	}{
		{"sql dump", meta("users.sql", ".sql", nil, false), []string{"database"}},
		{"database keyword", meta("database-export.bin", ".bin", nil, false), []string{"database"}},
		{"yaml config", meta("app.yaml", ".yaml", nil, false), []string{"config"}},
		{"config keyword", meta("nginx.config.bak", ".bak", nil, false), []string{"config"}},
		{"log extension", meta("app.out", ".out", nil, false), []string{"logs"}},
		{"pdf document", meta("report.pdf", ".pdf", strPtr("application/pdf"), false), []string{"documents"}},
		{"text mime", meta("notes", "", strPtr("text/plain"), false), []string{"documents"}},
		{"image", meta("photo.png", ".png", strPtr("image/png"), false), []string{"images"}},
		{"code", meta("main.go", ".go", nil, false), []string{"code"}},
		{"archive", meta("bundle.xz", ".xz", nil, true), []string{"archive"}},
		{"video mime", meta("clip.mkv", ".mkv", strPtr("video/x-matroska"), false), []string{"media"}},
		{"important keyword", meta("critical-notes.bin", ".bin", nil, false), []string{"important"}},
		{"no match", meta("data.bin", ".bin", nil, false), nil},
		{
			"multiple tags",
			meta("important-backup.sql", ".sql", nil, false),
			[]string{"database", "important"},
		},
		{
			// "log" as a substring also matches the logs rule.
			"catalog text file",
			meta("catalog.txt", ".txt", strPtr("text/plain"), false),
			[]string{"logs", "documents"},
		},
	}

	c := NewClassifier(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.m)
			sort.Strings(got)
			want := append([]string(nil), tt.want...)
			sort.Strings(want)
			if len(got) != len(want) {
				t.Fatalf("Classify() = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("Classify() = %v, want %v", got, want)
					break
				}
			}
		})
	}
}

func TestClassifyDisabled(t *testing.T) {
	c := NewClassifier(false)
	if got := c.Classify(meta("users.sql", ".sql", nil, false)); got != nil {
		t.Errorf("Classify() = %v, want nil when auto-tag disabled", got)
	}
}
