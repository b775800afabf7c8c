package validator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/target"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Type     string `json:"type"`
	Domain   string `json:"domain,omitempty"`
	Table    string `json:"table,omitempty"`
	Column   string `json:"column,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // "error", "warning", "info"
}

// ValidationResult contains all validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}
}

func (r *ValidationResult) add(e ValidationError) {
	switch e.Severity {
	case "error":
		r.Errors = append(r.Errors, e)
	case "warning":
		r.Warnings = append(r.Warnings, e)
	default:
		r.Info = append(r.Info, e)
	}
	r.Valid = len(r.Errors) == 0
}

// Merge appends the findings of other.
func (r *ValidationResult) Merge(other *ValidationResult) {
	for _, list := range [][]ValidationError{other.Errors, other.Warnings, other.Info} {
		for _, e := range list {
			r.add(e)
		}
	}
}

// Err joins the errors of the result, or returns nil when it is valid.
func (r *ValidationResult) Err() error {
	var errs []error
	for _, e := range r.Errors {
		errs = append(errs, fmt.Errorf("%w: %s", pipeline.ErrConfig, e.Message))
	}
	return errors.Join(errs...)
}

// ValidatePlans checks the plans without a database: descriptor shape, key
// spaces, duplicate names and tables that are loaded before anything stages
// them.
func ValidatePlans(plans pipeline.Plans, keySpaces map[string]bool) *ValidationResult {
	result := newResult()

	if err := plans.Validate(keySpaces); err != nil {
		for _, e := range unjoin(err) {
			result.add(ValidationError{Type: "descriptor", Message: e.Error(), Severity: "error"})
		}
	}

	staged := map[string]bool{}
	for _, d := range pipeline.Domains {
		plan := plans[d]
		domain := d.String()

		if len(plan.Queries) == 0 && len(plan.Loads) == 0 {
			result.add(ValidationError{
				Type: "empty_domain", Domain: domain,
				Message:  fmt.Sprintf("Domain '%s' has nothing to migrate", domain),
				Severity: "warning",
			})
		}

		names := map[string]bool{}
		for _, q := range plan.Queries {
			if names[q.Name] {
				result.add(ValidationError{
					Type: "duplicate_query", Domain: domain,
					Message:  fmt.Sprintf("Query '%s' is declared more than once in %s", q.Name, domain),
					Severity: "error",
				})
			}
			names[q.Name] = true
			for _, table := range q.Staging {
				staged[table] = true
			}
		}
		for _, p := range plan.Parsers {
			if p.Custom == nil && !staged[p.Parent] {
				result.add(ValidationError{
					Type: "parser_parent", Domain: domain, Table: p.Parent, Column: p.Field,
					Message:  fmt.Sprintf("Parser '%s' reads '%s' before any query stages it", p.Name, p.Parent),
					Severity: "error",
				})
			}
			for _, table := range p.Targets {
				staged[table] = true
			}
		}
		for _, st := range plan.Loads {
			if !staged[st.Source] {
				result.add(ValidationError{
					Type: "unstaged_source", Domain: domain, Table: st.Source,
					Message:  fmt.Sprintf("Load '%s' reads a table nothing stages so far", st.Name()),
					Severity: "warning",
				})
			}
		}
		for _, r := range plan.Relations {
			if !staged[r.Source] {
				result.add(ValidationError{
					Type: "unstaged_source", Domain: domain, Table: r.Source,
					Message:  fmt.Sprintf("Relationship '%s' reads a table nothing stages so far", r.Name()),
					Severity: "warning",
				})
			}
		}
	}

	return result
}

// ValidateAgainstStore checks that every table and document column the plans
// name exists in the target store.
func ValidateAgainstStore(ctx context.Context, store target.Store, plans pipeline.Plans) (*ValidationResult, error) {
	result := newResult()
	v := &storeValidator{store: store, result: result, exists: map[string]bool{}, columns: map[string][]string{}}

	for _, d := range pipeline.Domains {
		plan := plans[d]
		domain := d.String()

		for _, q := range plan.Queries {
			for _, table := range q.Staging {
				if err := v.requireTable(ctx, domain, table, "query "+q.Name); err != nil {
					return nil, err
				}
			}
		}
		for _, p := range plan.Parsers {
			if p.Custom != nil {
				continue
			}
			if err := v.requireColumn(ctx, domain, p.Parent, p.Field, "parser "+p.Name); err != nil {
				return nil, err
			}
			for _, table := range p.Targets {
				if err := v.requireTable(ctx, domain, table, "parser "+p.Name); err != nil {
					return nil, err
				}
			}
		}
		for _, st := range plan.Loads {
			for _, table := range []string{st.Source, st.Target} {
				if err := v.requireTable(ctx, domain, table, "load "+st.Name()); err != nil {
					return nil, err
				}
			}
			for _, l := range st.Mapping.Lookups {
				if err := v.requireColumn(ctx, domain, l.Table, l.MatchColumn(), "lookup "+l.Field); err != nil {
					return nil, err
				}
			}
		}
		for _, r := range plan.Relations {
			if err := v.requireTable(ctx, domain, r.Source, "relationship "+r.Name()); err != nil {
				return nil, err
			}
			owner, related := r.ThroughColumns()
			for _, col := range []string{owner, related} {
				if err := v.requireColumn(ctx, domain, r.Through(), col, "relationship "+r.Name()); err != nil {
					return nil, err
				}
			}
		}
		for _, b := range plan.Backfills {
			if err := v.requireColumn(ctx, domain, b.Companion, b.CompanionOwner, "backfill "+b.Name); err != nil {
				return nil, err
			}
		}
		for _, t := range plan.Tasks {
			if err := v.requireTable(ctx, domain, t.Table, "tasks "+t.Name); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

type storeValidator struct {
	store   target.Store
	result  *ValidationResult
	exists  map[string]bool
	columns map[string][]string
}

func (v *storeValidator) tableExists(ctx context.Context, table string) (bool, error) {
	if ok, seen := v.exists[table]; seen {
		return ok, nil
	}
	ok, err := v.store.TableExists(ctx, table)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	v.exists[table] = ok
	return ok, nil
}

func (v *storeValidator) requireTable(ctx context.Context, domain, table, usedBy string) error {
	ok, err := v.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		v.result.add(ValidationError{
			Type: "missing_table", Domain: domain, Table: table,
			Message:  fmt.Sprintf("Table '%s' used by %s does not exist", table, usedBy),
			Severity: "error",
		})
	}
	return nil
}

func (v *storeValidator) requireColumn(ctx context.Context, domain, table, column, usedBy string) error {
	ok, err := v.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return v.requireTable(ctx, domain, table, usedBy)
	}

	cols, seen := v.columns[table]
	if !seen {
		cols, err = v.store.Columns(ctx, table)
		if err != nil {
			return fmt.Errorf("failed to read columns of %s: %w", table, err)
		}
		v.columns[table] = cols
	}
	if !slices.Contains(cols, column) {
		v.result.add(ValidationError{
			Type: "missing_column", Domain: domain, Table: table, Column: column,
			Message:  fmt.Sprintf("Column '%s.%s' used by %s does not exist", table, column, usedBy),
			Severity: "error",
		})
	}
	return nil
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
