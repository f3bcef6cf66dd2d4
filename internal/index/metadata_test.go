package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func defaultExtractor() *Extractor {
	return NewExtractor(ExtractorConfig{
		ComputeChecksums: true,
		MD5:              true,
		SHA256:           true,
		MaxChecksumSize:  1 << 30,
	}, nil)
}

func TestExtractChecksums(t *testing.T) {
	path := writeFile(t, t.TempDir(), "greeting.txt", "hello world")

	m, err := defaultExtractor().Extract(path, "greeting.txt")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if m.ChecksumMD5 == nil {
		t.Fatal("ChecksumMD5 = nil, want value")
	}
	if got, want := *m.ChecksumMD5, "5eb63bbbe01eeed093cb22bb8f5acdc3"; got != want {
		t.Errorf("md5 = %q, want %q", got, want)
	}
	if m.ChecksumSHA256 == nil {
		t.Fatal("ChecksumSHA256 = nil, want value")
	}
	if got, want := *m.ChecksumSHA256, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"; got != want {
		t.Errorf("sha256 = %q, want %q", got, want)
	}
	if m.SizeBytes != 11 {
		t.Errorf("SizeBytes = %d, want 11", m.SizeBytes)
	}
}

func TestExtractChecksumSizePolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.bin", "0123456789")

	t.Run("at cutoff", func(t *testing.T) {
		e := NewExtractor(ExtractorConfig{
			ComputeChecksums: true, MD5: true, SHA256: true, MaxChecksumSize: 10,
		}, nil)
		m, err := e.Extract(path, "data.bin")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if m.ChecksumMD5 == nil || m.ChecksumSHA256 == nil {
			t.Error("checksums nil at cutoff, want computed")
		}
	})

	t.Run("above cutoff", func(t *testing.T) {
		e := NewExtractor(ExtractorConfig{
			ComputeChecksums: true, MD5: true, SHA256: true, MaxChecksumSize: 9,
		}, nil)
		m, err := e.Extract(path, "data.bin")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if m.ChecksumMD5 != nil || m.ChecksumSHA256 != nil {
			t.Error("checksums computed above cutoff, want nil")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		e := NewExtractor(ExtractorConfig{MaxChecksumSize: 1 << 30}, nil)
		m, err := e.Extract(path, "data.bin")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if m.ChecksumMD5 != nil || m.ChecksumSHA256 != nil {
			t.Error("checksums computed while disabled, want nil")
		}
	})

	t.Run("single algorithm", func(t *testing.T) {
		e := NewExtractor(ExtractorConfig{
			ComputeChecksums: true, SHA256: true, MaxChecksumSize: 1 << 30,
		}, nil)
		m, err := e.Extract(path, "data.bin")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if m.ChecksumMD5 != nil {
			t.Error("md5 computed, want nil")
		}
		if m.ChecksumSHA256 == nil {
			t.Error("sha256 = nil, want computed")
		}
	})
}

func TestExtractMIMEAndExtension(t *testing.T) {
	dir := t.TempDir()

	t.Run("known extension", func(t *testing.T) {
		path := writeFile(t, dir, "page.html", "<html></html>")
		m, err := defaultExtractor().Extract(path, "page.html")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if m.Extension != ".html" {
			t.Errorf("Extension = %q, want .html", m.Extension)
		}
		if m.MIMEType == nil {
			t.Fatal("MIMEType = nil, want value")
		}
		// Parameters like "; charset=utf-8" are stripped.
		if got, want := *m.MIMEType, "text/html"; got != want {
			t.Errorf("MIMEType = %q, want %q", got, want)
		}
	})

	t.Run("uppercase extension lowered", func(t *testing.T) {
		path := writeFile(t, dir, "SCAN.PDF", "%PDF")
		m, err := defaultExtractor().Extract(path, "SCAN.PDF")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if m.Extension != ".pdf" {
			t.Errorf("Extension = %q, want .pdf", m.Extension)
		}
	})

	t.Run("no extension", func(t *testing.T) {
		path := writeFile(t, dir, "README", "hi")
		m, err := defaultExtractor().Extract(path, "README")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if m.Extension != "" {
			t.Errorf("Extension = %q, want empty", m.Extension)
		}
		if m.MIMEType != nil {
			t.Errorf("MIMEType = %q, want nil", *m.MIMEType)
		}
	})
}

func TestExtractCompression(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "archive.tar", "data")
	m, err := defaultExtractor().Extract(path, "archive.tar")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !m.IsCompressed {
		t.Error("IsCompressed = false, want true")
	}
	if m.CompressionType == nil || *m.CompressionType != "tar" {
		t.Errorf("CompressionType = %v, want tar", m.CompressionType)
	}

	plain := writeFile(t, dir, "notes.txt", "data")
	m, err = defaultExtractor().Extract(plain, "notes.txt")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if m.IsCompressed || m.CompressionType != nil {
		t.Error("plain file marked compressed")
	}
}

func TestExtractModifiedTimeUTC(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", "x")

	m, err := defaultExtractor().Extract(path, "a.txt")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if m.ModifiedTime.Location() != time.UTC {
		t.Errorf("ModifiedTime location = %v, want UTC", m.ModifiedTime.Location())
	}
}

func TestExtractVanishedFile(t *testing.T) {
	_, err := defaultExtractor().Extract(filepath.Join(t.TempDir(), "gone.txt"), "gone.txt")
	if err == nil {
		t.Fatal("Extract() error = nil, want error for missing file")
	}
}
