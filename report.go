package initz

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// DefaultReportLimit is the number of entries kept in each ranked list.
const DefaultReportLimit = 10

// Dependency is an immediate child of a ranked span.
type Dependency struct {
	Name  string        `json:"name"`
	Total time.Duration `json:"total"`
}

// Ranked is an entry of the total-time ranking.
type Ranked struct {
	Record
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Report is the ranked summary produced when startup completes.
//
//nolint:govet // Field order follows JSON output order
type Report struct {
	RunID       string    `json:"run_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	// Count is the number of spans that finished with a positive total.
	Count   int      `json:"count"`
	ByTotal []Ranked `json:"by_total"`
	BySelf  []Record `json:"by_self"`
	// Records is the full registry snapshot the report was built from.
	Records []Record `json:"-"`
}

// BuildReport ranks records by total and by self duration. Spans without a
// positive duration are left out. Equal durations keep the input order.
// A non-positive limit means DefaultReportLimit.
func BuildReport(records []Record, limit int) Report {
	if limit <= 0 {
		limit = DefaultReportLimit
	}

	totals := make(map[string]time.Duration, len(records))
	byTotal := make([]Record, 0, len(records))
	bySelf := make([]Record, 0, len(records))
	for _, r := range records {
		totals[r.Name] = r.Total
		if r.Total > 0 {
			byTotal = append(byTotal, r)
		}
		if r.Self > 0 {
			bySelf = append(bySelf, r)
		}
	}

	sort.SliceStable(byTotal, func(i, j int) bool {
		return byTotal[i].Total > byTotal[j].Total
	})
	sort.SliceStable(bySelf, func(i, j int) bool {
		return bySelf[i].Self > bySelf[j].Self
	})

	report := Report{
		Count:   len(byTotal),
		Records: records,
	}

	for _, r := range byTotal[:min(limit, len(byTotal))] {
		ranked := Ranked{Record: r}
		for _, child := range r.Children {
			ranked.Dependencies = append(ranked.Dependencies, Dependency{
				Name:  child,
				Total: totals[child],
			})
		}
		report.ByTotal = append(report.ByTotal, ranked)
	}
	report.BySelf = bySelf[:min(limit, len(bySelf))]

	return report
}

// String renders the report as plain text.
func (r Report) String() string {
	var sb strings.Builder

	sb.WriteString("=== Bean Initialization Report ===\n")
	fmt.Fprintf(&sb, "Total initialized beans: %d\n", r.Count)

	sb.WriteString("\nTop beans by total initialization time (including dependencies):\n")
	for i, entry := range r.ByTotal {
		fmt.Fprintf(&sb, "%d. %s: %dms (self: %dms)\n",
			i+1, entry.Name, entry.Total.Milliseconds(), entry.Self.Milliseconds())
		if len(entry.Dependencies) > 0 {
			sb.WriteString("   Dependencies:\n")
			for _, dep := range entry.Dependencies {
				fmt.Fprintf(&sb, "   - %s: %dms\n", dep.Name, dep.Total.Milliseconds())
			}
		}
	}

	sb.WriteString("\nTop beans by self initialization time (excluding dependencies):\n")
	for i, entry := range r.BySelf {
		fmt.Fprintf(&sb, "%d. %s: %dms\n", i+1, entry.Name, entry.Self.Milliseconds())
	}

	sb.WriteString("\n=== End of Report ===\n")
	return sb.String()
}

// WriteTo writes the rendered report to w.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())
	return int64(n), err
}
