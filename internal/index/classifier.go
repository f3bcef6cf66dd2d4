package index

import "strings"

// signals are the lower-cased inputs the tag rules match against.
type signals struct {
	ext        string // with leading dot
	name       string // full filename
	mime       string // "" when unknown
	compressed bool
}

// tagRule pairs a predicate with the tag it assigns. Rules are evaluated
// independently and in order; a file may match any number of them.
type tagRule struct {
	tag   string
	match func(s signals) bool
}

func extSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m["."+e] = true
	}
	return m
}

var (
	databaseExts = extSet("sql", "db", "sqlite", "dump", "backup")
	configExts   = extSet("conf", "config", "ini", "yaml", "yml", "json", "xml")
	logExts      = extSet("log", "out")
	documentExts = extSet("pdf", "doc", "docx", "txt", "md")
	imageExts    = extSet("jpg", "jpeg", "png", "gif", "bmp")
	codeExts     = extSet("py", "js", "java", "cpp", "c", "h", "php", "rb", "go", "rs")

	importantKeywords = []string{"important", "critical", "backup", "master"}
)

var tagRules = []tagRule{
	{"database", func(s signals) bool {
		return databaseExts[s.ext] || strings.Contains(s.name, "database")
	}},
	{"config", func(s signals) bool {
		return configExts[s.ext] || strings.Contains(s.name, "config")
	}},
	{"logs", func(s signals) bool {
		return logExts[s.ext] || strings.Contains(s.name, "log")
	}},
	{"documents", func(s signals) bool {
		return strings.HasPrefix(s.mime, "text/") || documentExts[s.ext]
	}},
	{"images", func(s signals) bool {
		return strings.HasPrefix(s.mime, "image/") || imageExts[s.ext]
	}},
	{"code", func(s signals) bool {
		return codeExts[s.ext]
	}},
	{"archive", func(s signals) bool {
		return s.compressed
	}},
	{"media", func(s signals) bool {
		return strings.HasPrefix(s.mime, "video/") || strings.HasPrefix(s.mime, "audio/")
	}},
	{"important", func(s signals) bool {
		for _, kw := range importantKeywords {
			if strings.Contains(s.name, kw) {
				return true
			}
		}
		return false
	}},
}

// Classifier derives a tag set from file metadata.
type Classifier struct {
	autoTag bool
}

// NewClassifier creates a Classifier. When autoTag is false, Classify always
// returns the empty set; stored tags are still replaced with empty on
// re-index (explicit de-tagging), not left untouched.
func NewClassifier(autoTag bool) *Classifier {
	return &Classifier{autoTag: autoTag}
}

// Classify is a pure function from metadata to tag names.
func (c *Classifier) Classify(m *Metadata) []string {
	if !c.autoTag {
		return nil
	}

	s := signals{
		ext:        m.Extension,
		name:       strings.ToLower(m.Filename),
		compressed: m.IsCompressed,
	}
	if m.MIMEType != nil {
		s.mime = strings.ToLower(*m.MIMEType)
	}

	var tags []string
	for _, r := range tagRules {
		if r.match(s) {
			tags = append(tags, r.tag)
		}
	}
	return tags
}
