package domain

// Period values for a classified document.
const (
	PeriodQ1     = "Q1"
	PeriodQ2     = "Q2"
	PeriodQ3     = "Q3"
	PeriodQ4     = "Q4"
	PeriodAnnual = "Annual"
)

// UnknownCompany is the fallback company bucket when nothing can be derived.
const UnknownCompany = "Unknown"

// Classification is the derived (company, year, period) triple for a
// downloaded document. Year and Period are empty when no signal matched.
type Classification struct {
	Company string `json:"company"`
	Year    string `json:"year,omitempty"`
	Period  string `json:"period,omitempty"`
}
