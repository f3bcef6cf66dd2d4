package index

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// checksumChunkSize is the read buffer used when streaming file content
// through a hash accumulator.
const checksumChunkSize = 8 * 1024

// archiveExtensions maps compressed-file extensions to their compression type.
var archiveExtensions = map[string]string{
	".zip": "zip",
	".tar": "tar",
	".gz":  "gz",
	".bz2": "bz2",
	".xz":  "xz",
	".7z":  "7z",
	".rar": "rar",
}

// Metadata is the extracted description of one file at scan time.
// Checksum and MIME fields are nil when unknown or not computed — absence of
// a checksum is distinct from the checksum of an empty file.
type Metadata struct {
	RelativePath    string
	FullPath        string
	Filename        string
	Extension       string // lower-cased, with leading dot; "" if none
	SizeBytes       int64
	ModifiedTime    time.Time // UTC
	MIMEType        *string
	ChecksumMD5     *string
	ChecksumSHA256  *string
	IsCompressed    bool
	CompressionType *string
}

// ExtractorConfig controls checksum policy.
type ExtractorConfig struct {
	ComputeChecksums bool
	MD5              bool
	SHA256           bool
	// MaxChecksumSize is the largest file, in bytes, that gets checksummed.
	MaxChecksumSize int64
}

// Extractor turns a candidate path into a Metadata record.
type Extractor struct {
	cfg    ExtractorConfig
	logger Logger
}

// NewExtractor creates an Extractor with the given checksum policy.
func NewExtractor(cfg ExtractorConfig, logger Logger) *Extractor {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract stats the file and builds its metadata record. A stat failure —
// including the file vanishing between enumeration and extraction — returns
// an error; the caller counts it and moves on.
func (e *Extractor) Extract(absPath, relPath string) (*Metadata, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	filename := filepath.Base(absPath)
	ext := strings.ToLower(filepath.Ext(filename))

	m := &Metadata{
		RelativePath: relPath,
		FullPath:     absPath,
		Filename:     filename,
		Extension:    ext,
		SizeBytes:    info.Size(),
		ModifiedTime: info.ModTime().UTC(),
	}

	if mt := mime.TypeByExtension(ext); mt != "" {
		// Drop parameters like "; charset=utf-8"; the catalog stores bare types.
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		m.MIMEType = &mt
	}

	if e.cfg.ComputeChecksums && info.Size() <= e.cfg.MaxChecksumSize {
		if e.cfg.MD5 {
			m.ChecksumMD5 = e.checksum(absPath, "md5")
		}
		if e.cfg.SHA256 {
			m.ChecksumSHA256 = e.checksum(absPath, "sha256")
		}
	}

	if ctype, ok := archiveExtensions[ext]; ok {
		m.IsCompressed = true
		m.CompressionType = &ctype
	}

	return m, nil
}

// checksum streams the file through the named hash in 8 KiB chunks.
// A read failure aborts only this checksum: it is logged as a warning and
// nil is returned, leaving the column null rather than failing the record.
func (e *Extractor) checksum(path, algorithm string) *string {
	var h hash.Hash
	switch algorithm {
	case "md5":
		h = md5.New()
	case "sha256":
		h = sha256.New()
	default:
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("checksum skipped", "algorithm", algorithm, "path", path, "error", err)
		return nil
	}
	defer f.Close()

	buf := make([]byte, checksumChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		e.logger.Warn("checksum aborted", "algorithm", algorithm, "path", path, "error", err)
		return nil
	}

	sum := hex.EncodeToString(h.Sum(nil))
	return &sum
}
