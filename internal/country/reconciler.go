package country

import (
	"sort"

	"github.com/tigerroll/epiflow/internal/domain/model"
)

// AliasTable maps vaccination-source names to the case source's canonical name.
type AliasTable map[string]string

// ExclusionSet holds vaccination-source names dropped before any cross-source join.
type ExclusionSet map[string]struct{}

// DefaultAliases returns the curated vaccination → canonical name mismatches.
func DefaultAliases() AliasTable {
	return AliasTable{
		"Antigua and Barbuda":              "Antigua And Barbuda",
		"Bosnia and Herzegovina":           "Bosnia And Herzegovina",
		"Brunei":                           "Brunei Darussalam",
		"Cape Verde":                       "Cabo Verde",
		"Cote d'Ivoire":                    "Cote D Ivoire",
		"Czechia":                          "Czech Republic",
		"Democratic Republic of Congo":     "Democratic Republic Of The Congo",
		"Falkland Islands":                 "Falkland Islands Malvinas",
		"Guinea-Bissau":                    "Guinea Bissau",
		"Isle of Man":                      "Isle Of Man",
		"North Macedonia":                  "Macedonia",
		"Northern Cyprus":                  "Cyprus",
		"Northern Ireland":                 "Ireland",
		"Saint Kitts and Nevis":            "Saint Kitts And Nevis",
		"Saint Vincent and the Grenadines": "Saint Vincent And The Grenadines",
		"Sao Tome and Principe":            "Sao Tome And Principe",
		"Sint Maarten (Dutch part)":        "Sint Maarten",
		"Timor":                            "Timor Leste",
		"Trinidad and Tobago":              "Trinidad And Tobago",
		"Turks and Caicos Islands":         "Turks And Caicos Islands",
		"United Kingdom":                   "UK",
		"United States":                    "USA",
		"Vietnam":                          "Viet Nam",
		"Wallis and Futuna":                "Wallis And Futuna Islands",
	}
}

// DefaultExclusions returns the territories and sub-national regions that have
// no counterpart in the case source.
func DefaultExclusions() ExclusionSet {
	return NewExclusionSet(
		"Bonaire Sint Eustatius and Saba", "England", "Eswatini", "Guernsey",
		"Hong Kong", "Jersey", "Kosovo", "Macao",
		"Nauru", "Palestine", "Pitcairn", "Scotland",
		"Tonga", "Turkmenistan", "Tuvalu", "Wales",
	)
}

// NewExclusionSet builds a set from names.
func NewExclusionSet(names ...string) ExclusionSet {
	s := make(ExclusionSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Decision is what reconciliation does with one name.
type Decision int

const (
	// Kept means the name passes through unchanged.
	Kept Decision = iota
	// Renamed means the name was replaced through the alias table.
	Renamed
	// Dropped means the name is in the exclusion set.
	Dropped
)

// Reconciler applies the alias table, then the exclusion set.
type Reconciler struct {
	aliases    AliasTable
	exclusions ExclusionSet
}

// NewReconciler merges extra aliases and exclusions over the defaults.
func NewReconciler(extraAliases map[string]string, extraExclusions []string) *Reconciler {
	aliases := DefaultAliases()
	for k, v := range extraAliases {
		aliases[k] = v
	}
	exclusions := DefaultExclusions()
	for _, n := range extraExclusions {
		exclusions[n] = struct{}{}
	}
	return &Reconciler{aliases: aliases, exclusions: exclusions}
}

// Resolve applies the resolution rule to one vaccination-source name. An alias
// takes precedence over an exclusion.
func (r *Reconciler) Resolve(name string) (string, Decision) {
	if canonical, ok := r.aliases[name]; ok {
		return canonical, Renamed
	}
	if _, ok := r.exclusions[name]; ok {
		return "", Dropped
	}
	return name, Kept
}

// Apply reconciles every record of t. Kept names missing from canonical are
// listed in the report as unmatched; their records are retained.
func (r *Reconciler) Apply(t *model.VaccinationTable, canonical map[string]struct{}) (*model.VaccinationTable, model.ReconciliationReport) {
	report := model.ReconciliationReport{Aliased: make(map[string]string)}
	excluded := make(map[string]struct{})
	unmatched := make(map[string]struct{})

	out := make([]model.VaccinationRecord, 0, len(t.Records))
	for _, rec := range t.Records {
		name, decision := r.Resolve(rec.Country)
		switch decision {
		case Dropped:
			excluded[rec.Country] = struct{}{}
			continue
		case Renamed:
			report.Aliased[rec.Country] = name
		case Kept:
			if _, ok := canonical[name]; !ok {
				unmatched[name] = struct{}{}
			}
		}
		rec.Country = name
		out = append(out, rec)
	}

	report.Excluded = sortedKeys(excluded)
	report.Unmatched = sortedKeys(unmatched)
	return t.WithRecords(out), report
}

// CanonicalSet collects the distinct names of one or more name lists.
func CanonicalSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, n := range l {
			if n != "" {
				set[n] = struct{}{}
			}
		}
	}
	return set
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
