// Package country maps free-text country names to ISO codes and reconciles the
// vaccination source's naming with the case source's canonical names.
package country

import (
	"strings"
	"sync"

	"github.com/biter777/countries"
)

// DefaultCodeOverrides covers case-source spellings the ISO table misreads or
// does not know.
func DefaultCodeOverrides() map[string]string {
	return map[string]string{
		"Korea, South":        "KOR",
		"Korea, North":        "PRK",
		"Taiwan*":             "TWN",
		"Burma":               "MMR",
		"Congo (Kinshasa)":    "COD",
		"Congo (Brazzaville)": "COG",
		"Cote d'Ivoire":       "CIV",
		"Holy See":            "VAT",
		"West Bank and Gaza":  "PSE",
		"Laos":                "LAO",
		"Micronesia":          "FSM",
		"Cabo Verde":          "CPV",
	}
}

type lookup struct {
	code string
	ok   bool
}

// Resolver looks up ISO 3166-1 alpha-3 codes. Each distinct name is looked up
// once; later calls are served from memory. Safe for concurrent use.
type Resolver struct {
	overrides map[string]string

	mu      sync.Mutex
	memo    map[string]lookup
	lookups int
}

// NewResolver creates a Resolver. overrides are consulted before the ISO table.
func NewResolver(overrides map[string]string) *Resolver {
	o := make(map[string]string, len(overrides))
	for k, v := range overrides {
		o[k] = strings.ToUpper(v)
	}
	return &Resolver{overrides: o, memo: make(map[string]lookup)}
}

// Code returns the alpha-3 code for name, or ("", false) when it is unknown.
func (r *Resolver) Code(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.memo[name]; ok {
		return l.code, l.ok
	}
	r.lookups++
	l := r.resolve(name)
	r.memo[name] = l
	return l.code, l.ok
}

func (r *Resolver) resolve(name string) lookup {
	if code, ok := r.overrides[name]; ok {
		return lookup{code: code, ok: code != ""}
	}
	if strings.TrimSpace(name) == "" {
		return lookup{}
	}
	c := countries.ByName(name)
	if c == countries.Unknown {
		return lookup{}
	}
	return lookup{code: c.Alpha3(), ok: true}
}

// Lookups returns how many distinct names have been resolved.
func (r *Resolver) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}
