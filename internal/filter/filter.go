// Package filter evaluates facet and search predicates over participants.
package filter

import (
	"sort"
	"strings"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

// Predicate is a compiled set of filters.
type Predicate struct {
	terms    []string
	category string
	sex      string
	country  string
}

// Compile prepares filters for repeated evaluation.
func Compile(f model.Filters) Predicate {
	return Predicate{
		terms:    ParseSearchTerms(f.Search),
		category: f.Category,
		sex:      f.Sex,
		country:  f.Country,
	}
}

// ParseSearchTerms splits a comma-separated search string into trimmed,
// lowercased, non-empty terms.
func ParseSearchTerms(search string) []string {
	parts := strings.Split(search, ",")
	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		terms = append(terms, part)
	}
	return terms
}

// Match reports whether a participant satisfies every facet.
func (p Predicate) Match(participant model.Participant) bool {
	if len(p.terms) > 0 && !p.matchSearch(participant) {
		return false
	}
	if p.category != "" && participant.Category != p.category {
		return false
	}
	if p.sex != "" && participant.Sex != p.sex {
		return false
	}
	if p.country != "" && participant.Country != p.country {
		return false
	}
	return true
}

func (p Predicate) matchSearch(participant model.Participant) bool {
	name := strings.ToLower(participant.Name)
	for _, term := range p.terms {
		if strings.Contains(name, term) || participant.Bib == term {
			return true
		}
	}
	return false
}

// Apply returns the rows matching the filters, in input order.
func Apply(rows []model.RankedRow, f model.Filters) []model.RankedRow {
	pred := Compile(f)
	out := make([]model.RankedRow, 0, len(rows))
	for _, row := range rows {
		if pred.Match(row.Timeline.Participant) {
			out = append(out, row)
		}
	}
	return out
}

// BuildFacets collects the distinct category, sex and country values.
// Countries are ordered by display name.
func BuildFacets(timelines []model.Timeline) model.Facets {
	categories := map[string]struct{}{}
	sexes := map[string]struct{}{}
	countries := map[string]struct{}{}
	for _, tl := range timelines {
		categories[tl.Participant.Category] = struct{}{}
		sexes[tl.Participant.Sex] = struct{}{}
		countries[tl.Participant.Country] = struct{}{}
	}

	facets := model.Facets{
		Categories: sortedKeys(categories),
		Sexes:      sortedKeys(sexes),
		Countries:  make([]model.CountryOption, 0, len(countries)),
	}
	for code := range countries {
		facets.Countries = append(facets.Countries, model.CountryOption{Code: code, Name: CountryName(code)})
	}
	sort.Slice(facets.Countries, func(i, j int) bool {
		a, b := facets.Countries[i], facets.Countries[j]
		if a.Name == b.Name {
			return a.Code < b.Code
		}
		return a.Name < b.Name
	})
	return facets
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
