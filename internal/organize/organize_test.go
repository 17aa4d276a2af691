package organize_test

import (
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/finfetch/internal/classify"
	"github.com/jonesrussell/finfetch/internal/domain"
	"github.com/jonesrussell/finfetch/internal/organize"
)

func newTestOrganizer(company string) *organize.Organizer {
	return organize.New(classify.New(company, classify.WithMaxYear(2026)), 0)
}

func TestPath(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		url      string
		want     string
	}{
		{
			name:     "fully classified",
			filename: "2023_Q1_report.pdf",
			want:     filepath.Join("Acme", "2023", "Q1", "2023_Q1_report.pdf"),
		},
		{
			name:     "annual bucket",
			filename: "Annual_Report_2022.pdf",
			want:     filepath.Join("Acme", "2022", "Annual", "Annual_Report_2022.pdf"),
		},
		{
			name:     "unknown year and period",
			filename: "random.pdf",
			want:     filepath.Join("Acme", "Unknown", "Unknown", "random.pdf"),
		},
		{
			name:     "year without period",
			filename: "presentation_2021.pdf",
			want:     filepath.Join("Acme", "2021", "Unknown", "presentation_2021.pdf"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrganizer("Acme")
			assert.Equal(t, tt.want, o.Path(tt.filename, tt.url))
		})
	}
}

func TestPathCleansCompany(t *testing.T) {
	o := newTestOrganizer("Acme/Global: Pharma")
	got := o.Path("random.pdf", "")
	assert.Equal(t, filepath.Join("Acme_Global_ Pharma", "Unknown", "Unknown", "random.pdf"), got)
}

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{
			name:  "illegal characters replaced",
			input: `q1<report>:2023?.pdf`,
			max:   200,
			want:  "q1_report__2023_.pdf",
		},
		{
			name:  "whitespace collapsed",
			input: "annual   report\t2023.pdf",
			max:   200,
			want:  "annual report_2023.pdf",
		},
		{
			name:  "truncation preserves extension",
			input: "aaaaaaaaaabbbbbbbbbb.pdf",
			max:   10,
			want:  "aaaaaa.pdf",
		},
		{
			name:  "short name untouched",
			input: "report.pdf",
			max:   200,
			want:  "report.pdf",
		},
		{
			// Each é is two bytes; a byte-index cut at max 9 would land
			// mid-rune and produce invalid UTF-8.
			name:  "truncation lands on rune boundary",
			input: "ééééé.pdf",
			max:   9,
			want:  "éé.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := organize.CleanFilename(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestFilenameFor(t *testing.T) {
	o := newTestOrganizer("Acme")

	tests := []struct {
		name string
		cand domain.Candidate
		want string
	}{
		{
			name: "url basename",
			cand: domain.Candidate{URL: "https://x.com/reports/2023_Q1.pdf"},
			want: "2023_Q1.pdf",
		},
		{
			name: "generic name rebuilt from link text",
			cand: domain.Candidate{
				URL:      "https://x.com/files/Transcript.pdf",
				LinkText: "Q3 2022 Earnings Call",
			},
			want: "Q3 2022 Earnings Call.pdf",
		},
		{
			name: "extensionless path rebuilt from url tokens",
			cand: domain.Candidate{URL: "https://x.com/filings/2023/q2/10-q?format=pdf"},
			want: "Q2_2023_Form10-Q.pdf",
		},
		{
			name: "nothing derivable falls back",
			cand: domain.Candidate{URL: "https://x.com/"},
			want: "financial_doc.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, o.FilenameFor(tt.cand))
		})
	}
}
