// Package schema holds the declarative field mappings that turn staging rows
// into target records. Mappings compose with With instead of overriding.
package schema

import "slices"

// EntityMapping describes how rows of one staging table become target records.
type EntityMapping struct {
	// Exclude lists staging columns that never reach the target.
	Exclude []string
	// Lookups fetch columns from related staging tables through a LEFT JOIN.
	Lookups []Lookup
	// Rename maps a staging column to its target column name.
	Rename map[string]string
	// YesNo columns hold y/n/n-a strings stored as yes/no/n/a.
	YesNo []string
	// Bools hold y/n or true/false strings stored as booleans.
	Bools    []string
	Decimals []Decimal
	Ints     []string
	// EmptyString columns are stored as "" instead of NULL.
	EmptyString []string
	// StatusToActive replaces the status column with is_active.
	StatusToActive bool
	// FlagSuffixes extend the default set of suffixes whose "true"/"false"
	// values are coerced to booleans.
	FlagSuffixes []string
	// Computed columns are evaluated in order, after every other rule.
	Computed []Computed
}

// Lookup joins Table on Table.Match = staging.Via and exposes each column as
// <Field>__<column>, which the formatter renames to <Field>_<column>.
type Lookup struct {
	Field   string
	Table   string
	Via     string
	Match   string
	Columns []string
}

// MatchColumn defaults to id.
func (l Lookup) MatchColumn() string {
	if l.Match == "" {
		return "id"
	}
	return l.Match
}

// Alias is the select alias of column in the generated join.
func (l Lookup) Alias(column string) string {
	return l.Field + "__" + column
}

type Decimal struct {
	Name      string
	MaxDigits int
	Places    int
}

type Computed struct {
	Name string
	Fn   func(record map[string]any) any
}

// With returns a mapping holding the rules of m followed by those of other.
// Renames in other win over renames in m.
func (m EntityMapping) With(other EntityMapping) EntityMapping {
	out := EntityMapping{
		Exclude:        concat(m.Exclude, other.Exclude),
		Lookups:        concat(m.Lookups, other.Lookups),
		YesNo:          concat(m.YesNo, other.YesNo),
		Bools:          concat(m.Bools, other.Bools),
		Decimals:       concat(m.Decimals, other.Decimals),
		Ints:           concat(m.Ints, other.Ints),
		EmptyString:    concat(m.EmptyString, other.EmptyString),
		StatusToActive: m.StatusToActive || other.StatusToActive,
		FlagSuffixes:   concat(m.FlagSuffixes, other.FlagSuffixes),
		Computed:       concat(m.Computed, other.Computed),
	}
	if len(m.Rename)+len(other.Rename) > 0 {
		out.Rename = make(map[string]string, len(m.Rename)+len(other.Rename))
		for k, v := range m.Rename {
			out.Rename[k] = v
		}
		for k, v := range other.Rename {
			out.Rename[k] = v
		}
	}
	return out
}

func (m EntityMapping) Excludes(column string) bool {
	return slices.Contains(m.Exclude, column)
}

func concat[T any](a, b []T) []T {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
