// Package organize computes canonical storage paths for downloaded
// documents and moderates on-disk name allocation between workers.
package organize

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonesrussell/finfetch/internal/classify"
	"github.com/jonesrussell/finfetch/internal/domain"
)

// DefaultMaxFilenameLength bounds cleaned filenames (Windows paths cap at
// 260 characters).
const DefaultMaxFilenameLength = 200

// UnknownBucket is the directory used when year or period is missing.
const UnknownBucket = "Unknown"

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*` + `\x00-\x1f]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	genericNames = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^Icons.*\.pdf$`),
		regexp.MustCompile(`(?i)^Download icon.*\.pdf$`),
		regexp.MustCompile(`(?i)^Transcript\.pdf$`),
		regexp.MustCompile(`(?i)^Form 10-[QK]\.pdf$`),
	}
)

// Organizer builds relative storage paths of the form
// company/year/period/filename from a document's classification.
type Organizer struct {
	classifier *classify.Classifier
	maxNameLen int
}

// New creates an Organizer. maxNameLen <= 0 selects the default.
func New(classifier *classify.Classifier, maxNameLen int) *Organizer {
	if maxNameLen <= 0 {
		maxNameLen = DefaultMaxFilenameLength
	}
	return &Organizer{
		classifier: classifier,
		maxNameLen: maxNameLen,
	}
}

// Path returns the canonical relative path for a document. Missing year or
// period fall back to the Unknown bucket.
func (o *Organizer) Path(filename, sourceURL string) string {
	cls := o.classifier.Classify(filename, sourceURL)

	year := cls.Year
	if year == "" {
		year = UnknownBucket
	}
	period := cls.Period
	if period == "" {
		period = UnknownBucket
	}

	company := CleanFilename(cls.Company, o.maxNameLen)
	if company == "" {
		company = domain.UnknownCompany
	}

	return filepath.Join(company, year, period, CleanFilename(filename, o.maxNameLen))
}

// FilenameFor derives the on-disk filename for a candidate. The URL
// basename is preferred; generic or empty names are rebuilt from the link
// text or URL path segments.
func (o *Organizer) FilenameFor(cand domain.Candidate) string {
	name := basenameOf(cand.URL)

	if isGeneric(name) || name == "" || !strings.Contains(name, ".") {
		if rebuilt := rebuildName(cand); rebuilt != "" {
			name = rebuilt
		}
	}

	name = CleanFilename(name, o.maxNameLen)
	if name == "" {
		ext := classify.FileExtension(cand.URL)
		if ext == "" {
			ext = ".html"
		}
		name = "financial_doc" + ext
	}
	return name
}

// basenameOf extracts the final path segment of the URL, skipping index
// pages.
func basenameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	base := filepath.Base(u.Path)
	if base == "." || base == "/" || base == "index.html" || base == "index.htm" {
		return ""
	}
	return base
}

// isGeneric reports whether the filename matches a known placeholder
// pattern that should be replaced with something meaningful.
func isGeneric(name string) bool {
	for _, p := range genericNames {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// rebuildName reconstructs a filename from the link text or from year,
// quarter and form tokens found in the URL path.
func rebuildName(cand domain.Candidate) string {
	ext := classify.FileExtension(cand.URL)
	if ext == "" {
		ext = ".pdf"
	}

	if text := strings.TrimSpace(cand.LinkText); text != "" {
		return text + ext
	}

	lower := strings.ToLower(cand.URL)
	var parts []string
	if m := regexp.MustCompile(`(?i)q([1-4])`).FindStringSubmatch(cand.URL); m != nil {
		parts = append(parts, "Q"+m[1])
	}
	if m := regexp.MustCompile(`(20\d{2})`).FindString(cand.URL); m != "" {
		parts = append(parts, m)
	}
	switch {
	case strings.Contains(lower, "transcript"):
		parts = append(parts, "Transcript")
	case strings.Contains(lower, "10-q") || strings.Contains(lower, "10q"):
		parts = append(parts, "Form10-Q")
	case strings.Contains(lower, "10-k") || strings.Contains(lower, "10k"):
		parts = append(parts, "Form10-K")
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "_") + ext
}

// CleanFilename strips characters illegal in filesystem paths, collapses
// whitespace, and truncates to maxLen while preserving the extension.
func CleanFilename(name string, maxLen int) string {
	name = illegalChars.ReplaceAllString(name, "_")
	name = spaceRuns.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	if maxLen > 0 && len(name) > maxLen {
		ext := filepath.Ext(name)
		if len(ext) >= maxLen {
			ext = ""
		}
		// Back the cut off to a rune boundary so a multi-byte character is
		// never split.
		cut := maxLen - len(ext)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut] + ext
	}
	return name
}

// suffixed inserts a numeric disambiguator before the extension:
// report.pdf -> report_2.pdf.
func suffixed(name string, n int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%d%s", stem, n, ext)
}
