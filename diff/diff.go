// Package diff compares expected row counts with what a migration produced.
package diff

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/target"
)

// CountCheck is one expected count. The expectation is either Expected or,
// when LegacySQL is set, the count that query returns from the legacy
// source plus Adjustment.
type CountCheck struct {
	Name  string
	Table string
	// Where filters the counted target rows.
	Where      string
	Expected   int64
	LegacySQL  string
	Adjustment int64
	// Exact requires equality; otherwise the actual count must reach the
	// expected one.
	Exact bool
	Note  string
}

type CountResult struct {
	Check    CountCheck
	Expected int64
	Actual   int64
	Pass     bool
}

type Report struct {
	Results  []CountResult
	Passes   int
	Failures int
}

// CompareCounts runs every check. legacy may be nil when no check reads the
// legacy source.
func CompareCounts(ctx context.Context, store target.Store, legacy source.Source, checks []CountCheck) (Report, error) {
	var report Report
	for _, c := range checks {
		expected := c.Expected
		if c.LegacySQL != "" {
			if legacy == nil {
				return report, fmt.Errorf("check %s needs the legacy database", c.Name)
			}
			n, err := queryCount(ctx, legacy, source.Query{Name: "legacy count " + c.Name, SQL: c.LegacySQL})
			if err != nil {
				return report, fmt.Errorf("check %s: %w", c.Name, err)
			}
			expected = n + c.Adjustment
		}

		actual, err := targetCount(ctx, store, c)
		if err != nil {
			return report, fmt.Errorf("check %s: %w", c.Name, err)
		}

		res := CountResult{Check: c, Expected: expected, Actual: actual}
		if c.Exact {
			res.Pass = expected == actual
		} else {
			res.Pass = expected <= actual
		}
		if res.Pass {
			report.Passes++
		} else {
			report.Failures++
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func targetCount(ctx context.Context, store target.Store, c CountCheck) (int64, error) {
	if c.Where == "" {
		return store.Count(ctx, c.Table)
	}
	return queryCount(ctx, store, source.Query{
		Name: "count " + c.Name,
		SQL:  fmt.Sprintf("SELECT count(*) AS count FROM %s WHERE %s", c.Table, c.Where),
	})
}

func queryCount(ctx context.Context, src source.Source, q source.Query) (int64, error) {
	var (
		n     int64
		found bool
	)
	err := source.Drain(ctx, src, q, 1, func(rows []source.Row) error {
		if found || len(rows) == 0 {
			return nil
		}
		v, ok := rows[0].Int64("count")
		if !ok {
			return fmt.Errorf("query %s returned no count", q.Name)
		}
		n, found = v, true
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Print writes one line per check and the totals.
func (r Report) Print(w io.Writer) {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	for _, res := range r.Results {
		status := pass("PASS")
		if !res.Pass {
			status = fail("FAIL")
		}
		fmt.Fprintf(w, "%s - %s - EXPECTED: %d - ACTUAL: %d\n", res.Check.Name, status, res.Expected, res.Actual)
		if res.Check.Note != "" && !res.Pass {
			fmt.Fprintf(w, "   💡 %s\n", res.Check.Note)
		}
	}
	fmt.Fprintf(w, "TOTAL PASS: %d - TOTAL FAIL: %d\n", r.Passes, r.Failures)
}
