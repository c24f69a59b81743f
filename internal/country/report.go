package country

import (
	"sort"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Report decisions as written to reconciliation_report.csv.
const (
	ReportAliased   = "aliased"
	ReportExcluded  = "excluded"
	ReportUnmatched = "unmatched"
)

// ReportColumns is the header of the reconciliation report artifact.
var ReportColumns = []string{"source_name", "decision", "canonical_name"}

// ReportFrame renders r with aliases first, then exclusions, then unmatched
// names, each group sorted by source name.
func ReportFrame(r model.ReconciliationReport) *tabular.Frame {
	f := &tabular.Frame{Header: ReportColumns}

	aliased := make([]string, 0, len(r.Aliased))
	for name := range r.Aliased {
		aliased = append(aliased, name)
	}
	sort.Strings(aliased)
	for _, name := range aliased {
		f.Append(name, ReportAliased, r.Aliased[name])
	}
	for _, name := range r.Excluded {
		f.Append(name, ReportExcluded, "")
	}
	for _, name := range r.Unmatched {
		f.Append(name, ReportUnmatched, name)
	}
	return f
}
