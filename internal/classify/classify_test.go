package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/finfetch/internal/classify"
	"github.com/jonesrussell/finfetch/internal/domain"
)

// testMaxYear pins the upper bound of the accepted year range so tests do
// not drift as the clock advances.
const testMaxYear = 2026

func newTestClassifier(company string) *classify.Classifier {
	return classify.New(company, classify.WithMaxYear(testMaxYear))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		url      string
		want     domain.Classification
	}{
		{
			name:     "quarter token with year",
			filename: "2023_Q1_report.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2023", Period: "Q1"},
		},
		{
			name:     "annual report",
			filename: "Annual_Report_2022.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2022", Period: "Annual"},
		},
		{
			name:     "ten-k filing",
			filename: "10-K_2021.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2021", Period: "Annual"},
		},
		{
			name:     "date-derived quarter",
			filename: "report_03-15-2024.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2024", Period: "Q1"},
		},
		{
			name:     "no signals",
			filename: "random.pdf",
			want:     domain.Classification{Company: "Acme"},
		},
		{
			name:     "reversed quarter form",
			filename: "4Q2023-earnings.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2023", Period: "Q4"},
		},
		{
			name:     "spelled out quarter",
			filename: "third quarter results 2020.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2020", Period: "Q3"},
		},
		{
			name:     "iso date maps month to quarter",
			filename: "results_2023-08-01.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2023", Period: "Q3"},
		},
		{
			name:     "proxy statement",
			filename: "proxy_statement_2024.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2024", Period: "Annual"},
		},
		{
			name:     "year from url when filename has none",
			filename: "earnings.pdf",
			url:      "https://example.com/financials/2022/q2/earnings.pdf",
			want:     domain.Classification{Company: "Acme", Year: "2022", Period: "Q2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier("Acme")
			got := c.Classify(tt.filename, tt.url)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyQuarterTokenBeatsDate(t *testing.T) {
	// An explicit quarter token wins over the conflicting date, and the
	// year adjacent to the token wins over the date's year.
	c := newTestClassifier("Acme")
	got := c.Classify("2023_Q1_report_01-15-2024.pdf", "")

	assert.Equal(t, "Q1", got.Period)
	assert.Equal(t, "2023", got.Year)
}

func TestClassifyYearBounds(t *testing.T) {
	c := newTestClassifier("Acme")

	// Out-of-range tokens are not years.
	assert.Empty(t, c.Classify("report_1776.pdf", "").Year)
	assert.Empty(t, c.Classify("report_2099.pdf", "").Year)

	// Boundary years are accepted.
	assert.Equal(t, "1990", c.Classify("report_1990.pdf", "").Year)
	assert.Equal(t, "2026", c.Classify("report_2026.pdf", "").Year)

	// Longer digit runs are identifiers, not years.
	assert.Empty(t, c.Classify("doc_20231.pdf", "").Year)
}

func TestClassifyCompanyFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		company  string
		filename string
		url      string
		want     string
	}{
		{
			name:     "configured name wins over pattern",
			company:  "Acme",
			filename: "merck_annual_2023.pdf",
			want:     "Acme",
		},
		{
			name:     "pattern table match",
			filename: "pfizer_q2_2023.pdf",
			want:     "Pfizer",
		},
		{
			name: "derived from host",
			url:  "https://www.contoso.com/reports/a.pdf",
			want: "Contoso",
		},
		{
			name: "investor subdomain skipped",
			url:  "https://investors.contoso.com/a.pdf",
			want: "Contoso",
		},
		{
			name: "nothing derivable",
			want: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(tt.company)
			got := c.Classify(tt.filename, tt.url)
			assert.Equal(t, tt.want, got.Company)
		})
	}
}

func TestIsFinancialDocument(t *testing.T) {
	assert.True(t, classify.IsFinancialDocument("https://x.com/annual-report", ""))
	assert.True(t, classify.IsFinancialDocument("https://x.com/doc.pdf", ""))
	assert.True(t, classify.IsFinancialDocument("https://x.com/page", "Quarterly Earnings"))
	assert.False(t, classify.IsFinancialDocument("https://x.com/careers", "Join us"))
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, classify.ShouldSkip("mailto:ir@example.com"))
	assert.True(t, classify.ShouldSkip("https://google-analytics.com/collect"))
	assert.False(t, classify.ShouldSkip("https://example.com/10-K.pdf"))
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://x.com/a.pdf", want: ".pdf"},
		{url: "https://x.com/a.XLSX", want: ".xlsx"},
		{url: "https://x.com/page.htm", want: ".htm"},
		{url: "https://x.com/download?format=pdf", want: ".pdf"},
		{url: "https://x.com/a.docx", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classify.FileExtension(tt.url), tt.url)
	}
}

func TestAllowedContentType(t *testing.T) {
	assert.True(t, classify.AllowedContentType("application/pdf"))
	assert.True(t, classify.AllowedContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.True(t, classify.AllowedContentType("text/html; charset=utf-8"))
	assert.False(t, classify.AllowedContentType("image/png"))
}
