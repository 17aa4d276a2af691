package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableRenderer displays a summary as formatted tables.
type TableRenderer struct {
	out io.Writer
}

// NewTableRenderer creates a TableRenderer. A nil writer renders to stdout.
func NewTableRenderer(out io.Writer) *TableRenderer {
	if out == nil {
		out = os.Stdout
	}
	return &TableRenderer{out: out}
}

// RenderSummary prints the aggregate counts by bucket.
func (r *TableRenderer) RenderSummary(s *Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Company", "Files", "Bytes"})
	for _, company := range sortedKeys(s.ByCompany) {
		var bytes int64
		for _, f := range s.Files {
			if f.Company == company {
				bytes += f.SizeBytes
			}
		}
		t.AppendRow(table.Row{company, s.ByCompany[company], bytes})
	}
	t.AppendFooter(table.Row{"Total", s.TotalFiles, s.TotalBytes})
	t.Render()

	fmt.Fprintf(r.out, "\nBy year: %s\n", countLine(s.ByYear))
	fmt.Fprintf(r.out, "By period: %s\n", countLine(s.ByPeriod))
	fmt.Fprintf(r.out, "By extension: %s\n", countLine(s.ByExtension))
}

// RenderFiles prints one row per organized file.
func (r *TableRenderer) RenderFiles(s *Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Company", "Year", "Period", "Filename", "Bytes"})
	for _, f := range s.Files {
		t.AppendRow(table.Row{f.Company, f.Year, f.Period, f.Filename, f.SizeBytes})
	}
	t.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func countLine(m map[string]int) string {
	parts := ""
	for i, k := range sortedKeys(m) {
		if i > 0 {
			parts += ", "
		}
		parts += fmt.Sprintf("%s=%d", k, m[k])
	}
	if parts == "" {
		parts = "(none)"
	}
	return parts
}
