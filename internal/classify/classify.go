// Package classify derives (company, year, period) from a document's
// filename and source URL. Classification is deterministic, does no I/O,
// and always returns a best-effort result.
package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/finfetch/internal/domain"
	"github.com/jonesrussell/finfetch/internal/urlutil"
)

// minYear is the oldest year accepted as a document year.
const minYear = 1990

// adjacencyWindow is how close (in bytes) a year token must be to a
// quarter or annual keyword to be preferred over an earlier match.
const adjacencyWindow = 12

// Token separators such as "_" and "-" count as boundaries, which plain \b
// does not give us for strings like "2023_Q1_report".
var (
	digitRuns = regexp.MustCompile(`\d+`)
	quarterQN = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])q([1-4])(?:[^a-z0-9]|$)`)
	// The 1Q form is often followed by the year directly ("4Q2023"), so
	// only the leading boundary is enforced.
	quarterNQ        = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])([1-4])q`)
	dateYMD          = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	dateMDY          = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](\d{4})`)
	keywordLocations = regexp.MustCompile(`(?i)q[1-4]|[1-4]q|quarter|annual|10-?k|proxy`)
)

// ordinalQuarters maps spelled-out quarter names to period values.
var ordinalQuarters = []struct {
	phrase string
	period string
}{
	{"first quarter", domain.PeriodQ1},
	{"second quarter", domain.PeriodQ2},
	{"third quarter", domain.PeriodQ3},
	{"fourth quarter", domain.PeriodQ4},
}

// annualIndicators mark a document as an annual filing when no quarter
// signal matched.
var annualIndicators = []string{
	"10-k", "10k",
	"annual",
	"proxy",
	"year-end", "yearend",
	"full-year", "full year",
	"def 14a", "def14a",
}

// companyPatterns is the fallback table for deriving a company from the
// filename or URL when no explicit name is configured.
var companyPatterns = []struct {
	pattern *regexp.Regexp
	company string
}{
	{regexp.MustCompile(`(?i)\b(merck|mrk)\b`), "Merck"},
	{regexp.MustCompile(`(?i)\b(johnson|jnj)\b`), "Johnson"},
	{regexp.MustCompile(`(?i)\b(pfizer|pfe)\b`), "Pfizer"},
	{regexp.MustCompile(`(?i)\b(amgen|amgn)\b`), "Amgen"},
	{regexp.MustCompile(`(?i)\b(bristol|bmy)\b`), "Bristol"},
	{regexp.MustCompile(`(?i)\b(abbvie|abtv)\b`), "Abbvie"},
}

// Classifier derives classifications for one crawl run. The configured
// company name, when set, always wins over URL-derived guesses.
type Classifier struct {
	companyName string
	maxYear     int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMaxYear overrides the upper bound of the accepted year range.
// The default is the current year plus one.
func WithMaxYear(year int) Option {
	return func(c *Classifier) {
		c.maxYear = year
	}
}

// New creates a Classifier. companyName may be empty, in which case the
// company is derived from the filename or URL.
func New(companyName string, opts ...Option) *Classifier {
	c := &Classifier{
		companyName: strings.TrimSpace(companyName),
		maxYear:     time.Now().Year() + 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify derives the classification for a document.
func (c *Classifier) Classify(filename, sourceURL string) domain.Classification {
	return domain.Classification{
		Company: c.company(filename, sourceURL),
		Year:    c.year(filename, sourceURL),
		Period:  c.period(filename, sourceURL),
	}
}

// year scans the filename first, then the URL, for a 4-digit token within
// the accepted range. Among multiple candidates the one adjacent to a
// quarter or annual keyword wins, then the first occurrence.
func (c *Classifier) year(filename, sourceURL string) string {
	if y := c.yearFromText(filename); y != "" {
		return y
	}
	return c.yearFromText(sourceURL)
}

func (c *Classifier) yearFromText(text string) string {
	matches := digitRuns.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return ""
	}

	keywords := keywordLocations.FindAllStringIndex(text, -1)

	first := ""
	for _, m := range matches {
		token := text[m[0]:m[1]]
		// A year is a run of exactly four digits; longer runs are IDs.
		if len(token) != 4 {
			continue
		}
		y, err := strconv.Atoi(token)
		if err != nil || y < minYear || y > c.maxYear {
			continue
		}
		if first == "" {
			first = token
		}
		if nearKeyword(m, keywords) {
			return token
		}
	}
	return first
}

// nearKeyword reports whether the year match at span m sits within the
// adjacency window of any keyword match.
func nearKeyword(m []int, keywords [][]int) bool {
	for _, k := range keywords {
		if m[0] <= k[1]+adjacencyWindow && k[0] <= m[1]+adjacencyWindow {
			return true
		}
	}
	return false
}

// period applies the extraction rules in priority order. An explicit
// quarter token always beats date-derived inference.
func (c *Classifier) period(filename, sourceURL string) string {
	combined := strings.ToLower(filename + " " + sourceURL)

	if p := quarterToken(combined); p != "" {
		return p
	}

	for _, oq := range ordinalQuarters {
		if strings.Contains(combined, oq.phrase) {
			return oq.period
		}
	}

	for _, indicator := range annualIndicators {
		if strings.Contains(combined, indicator) {
			return domain.PeriodAnnual
		}
	}

	return quarterFromDate(combined)
}

// quarterToken matches the literal Q1..Q4 and 1Q..4Q forms.
func quarterToken(text string) string {
	if m := quarterQN.FindStringSubmatch(text); m != nil {
		return "Q" + m[1]
	}
	if m := quarterNQ.FindStringSubmatch(text); m != nil {
		return "Q" + m[1]
	}
	return ""
}

// quarterFromDate maps the month of a MM-DD-YYYY or YYYY-MM-DD date to a
// quarter. YYYY-MM-DD is tried first so its month field is not misread as
// a day.
func quarterFromDate(text string) string {
	month := 0
	if m := dateYMD.FindStringSubmatch(text); m != nil {
		month, _ = strconv.Atoi(m[2])
	} else if m := dateMDY.FindStringSubmatch(text); m != nil {
		month, _ = strconv.Atoi(m[1])
	}

	switch {
	case month >= 1 && month <= 3:
		return domain.PeriodQ1
	case month >= 4 && month <= 6:
		return domain.PeriodQ2
	case month >= 7 && month <= 9:
		return domain.PeriodQ3
	case month >= 10 && month <= 12:
		return domain.PeriodQ4
	default:
		return ""
	}
}

// company resolves the company bucket: the configured name wins, then the
// pattern table, then the URL domain, then Unknown.
func (c *Classifier) company(filename, sourceURL string) string {
	if c.companyName != "" {
		return c.companyName
	}

	combined := filename + " " + sourceURL
	for _, cp := range companyPatterns {
		if cp.pattern.MatchString(combined) {
			return cp.company
		}
	}

	if company := companyFromHost(sourceURL); company != "" {
		return company
	}
	return domain.UnknownCompany
}

// companyFromHost derives a company name from the URL's registered domain
// label, e.g. "investors.acme.com" yields "Acme".
func companyFromHost(sourceURL string) string {
	host := urlutil.Host(sourceURL)
	host = strings.TrimPrefix(host, "www.")

	label, _, found := strings.Cut(host, ".")
	if !found && host == "" {
		return ""
	}
	if label == "" || len(label) <= 2 {
		return ""
	}
	// Skip common non-company subdomain labels.
	if label == "investors" || label == "investor" || label == "ir" {
		rest := strings.TrimPrefix(host, label+".")
		label, _, _ = strings.Cut(rest, ".")
		if label == "" || len(label) <= 2 {
			return ""
		}
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
