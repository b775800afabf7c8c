package pipeline

import (
	"fmt"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/generator"
)

// Statements renders the SQL a run of d would issue, for dry runs.
func (p Plans) Statements(d Domain) []string {
	plan := p[d]
	var out []string

	for i, q := range plan.Queries {
		out = append(out, fmt.Sprintf("-- %s.%d export %s -> %v", d, i+1, q.Name, q.Staging), q.SQL+";")
	}
	for i, parser := range plan.Parsers {
		out = append(out, fmt.Sprintf("-- xml %d %s -> %v", i+1, parser.Name, parser.Targets), parser.Query().SQL+";")
	}
	for i, st := range plan.Loads {
		orderBy := st.OrderBy
		if orderBy == "" {
			orderBy = format.KeyColumn
		}
		out = append(out,
			fmt.Sprintf("-- %s.%d load %s", d, i+1, st.Name()),
			generator.StagingSelectSQL(st.Source, orderBy, st.Mapping.Lookups)+";",
			generator.ResetSequenceSQL(st.Target, st.pk())+";",
		)
	}
	for i, r := range plan.Relations {
		owner, related := r.ThroughColumns()
		out = append(out,
			fmt.Sprintf("-- %s-m2m.%d %s", d, i+1, r.Name()),
			generator.InsertPreviewSQL(r.Through(), []string{owner, related}),
		)
	}
	for _, b := range plan.Backfills {
		out = append(out, fmt.Sprintf("-- backfill %s: %s -> %s", b.Name, b.Entity, b.Companion))
	}
	for _, t := range plan.Tasks {
		out = append(out, fmt.Sprintf("-- tasks %s: %s -> %s", t.Name, t.Entity, t.Table))
	}
	return out
}
