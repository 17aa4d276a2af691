package classify

import (
	"net/url"
	"strings"
)

// AllowedExtensions are the document types the engine downloads.
var AllowedExtensions = []string{".pdf", ".xlsx", ".html", ".htm"}

// AllowedMIMETypes are the content-type substrings accepted for a download.
var AllowedMIMETypes = []string{
	"pdf",
	"excel",
	"spreadsheet",
	"html",
}

// financialKeywords flag a link as a likely financial document.
var financialKeywords = []string{
	"annual", "quarterly", "earnings", "financial", "statement",
	"balance sheet", "income statement", "cash flow", "10-k", "10-q",
	"8-k", "proxy", "form", "filing", "report", "sec", "investor",
	"relations", "quarter", "year", "fiscal", "revenue", "profit",
}

// skipDomains host non-document resources (analytics, social embeds).
var skipDomains = []string{
	"googletagmanager.com",
	"google-analytics.com",
	"doubleclick.net",
	"facebook.com",
	"twitter.com",
	"linkedin.com",
}

// IsFinancialDocument reports whether the URL and link text look like a
// financial document: either a financial keyword is present or the URL
// points at an allowed file type directly.
func IsFinancialDocument(rawURL, linkText string) bool {
	combined := strings.ToLower(rawURL + " " + linkText)

	for _, keyword := range financialKeywords {
		if strings.Contains(combined, keyword) {
			return true
		}
	}
	return FileExtension(rawURL) != ""
}

// ShouldSkip reports whether the URL belongs to a known non-document host
// or is not fetchable at all (mailto links).
func ShouldSkip(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "mailto:") {
		return true
	}

	for _, d := range skipDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// FileExtension returns the allowed extension of the URL path, or "" when
// the URL does not point at an allowed file type. Query parameters such as
// format=pdf are honored as a fallback.
func FileExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	path := strings.ToLower(u.Path)
	for _, ext := range AllowedExtensions {
		if strings.HasSuffix(path, ext) {
			return ext
		}
	}

	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, "format=pdf") || strings.Contains(lower, "type=pdf") {
		return ".pdf"
	}
	if strings.Contains(lower, "format=xlsx") || strings.Contains(lower, "type=xlsx") {
		return ".xlsx"
	}
	return ""
}

// AllowedContentType reports whether the response content type matches the
// allowed MIME set.
func AllowedContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, mime := range AllowedMIMETypes {
		if strings.Contains(ct, mime) {
			return true
		}
	}
	return false
}
