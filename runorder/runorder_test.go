package runorder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/casemigrate/memstore"
	"github.com/ridoystarlord/casemigrate/pipeline"
)

func TestPlansValidate(t *testing.T) {
	require.NoError(t, Plans().Validate(KeySpaces()))
}

func TestEveryDomainHasQueries(t *testing.T) {
	plans := Plans()
	for _, d := range pipeline.Domains {
		assert.NotEmpty(t, plans[d].Queries, "domain %s", d)
	}
}

func TestParsersReadStagedTables(t *testing.T) {
	staged := map[string]bool{}
	plans := Plans()
	for _, d := range pipeline.Domains {
		plan := plans[d]
		for _, q := range plan.Queries {
			for _, table := range q.Staging {
				staged[table] = true
			}
		}
		for _, p := range plan.Parsers {
			if p.Custom == nil {
				assert.True(t, staged[p.Parent], "parser %s reads %s before it is staged", p.Name, p.Parent)
			}
			for _, table := range p.Targets {
				staged[table] = true
			}
		}
	}
}

func TestParserTargetsAreConsumed(t *testing.T) {
	consumed := map[string]bool{"dm_sil_section": true}
	plans := Plans()
	for _, dom := range pipeline.Domains {
		for _, st := range plans[dom].Loads {
			consumed[st.Source] = true
		}
		for _, r := range plans[dom].Relations {
			consumed[r.Source] = true
		}
	}
	for _, dom := range pipeline.Domains {
		for _, p := range plans[dom].Parsers {
			for _, table := range p.Targets {
				assert.True(t, consumed[table], "%s writes %s which nothing loads", p.Name, table)
			}
		}
	}
}

func TestSharedTablesSkipLoadedRows(t *testing.T) {
	plans := Plans()
	sources := map[string]int{}
	for _, dom := range pipeline.Domains {
		for _, st := range plans[dom].Loads {
			sources[st.Source]++
			if st.Source == "dm_process" || st.Source == "dm_further_information_request" {
				assert.True(t, st.SkipLoaded, "%s in %s", st.Name(), dom)
			}
		}
	}
	for source, n := range sources {
		if n > 1 {
			assert.Contains(t, []string{"dm_process", "dm_further_information_request"}, source)
		}
	}
}

func TestFileGroups(t *testing.T) {
	queries := FileQueries()
	assert.Len(t, queries, 17)

	names := map[string]bool{}
	for _, q := range queries {
		assert.False(t, names[q.Name], "duplicate %s", q.Name)
		names[q.Name] = true
		assert.Equal(t, "created_datetime", q.LimitBy)
		assert.Equal(t, DefaultFileCreatedDatetime, q.Parameters["created_datetime"])
		assert.Contains(t, q.Parameters, "path_prefix")
		assert.Contains(t, q.SQL, "blob_data")
	}

	groups := FileGroups()
	assert.ElementsMatch(t, []string{
		"SPS Application Files",
		"FA-SIL Application Files",
		"Import Application Licence Documents",
		"Export Application Certificate Documents",
	}, groups["large"])
	assert.Len(t, groups["small"], len(queries)-len(groups["large"]))
	for _, members := range groups {
		for _, name := range members {
			assert.True(t, names[name], "group member %s", name)
		}
	}
}

func TestFileMetadataSkipsContent(t *testing.T) {
	for _, q := range File().Queries {
		assert.NotContains(t, q.SQL, "blob_data", q.Name)
		assert.True(t, strings.HasSuffix(q.Name, "(metadata)"))
	}
}

func TestImportApplicationQueriesCarryType(t *testing.T) {
	for _, q := range ImportApplication().Queries {
		if q.KeySpace == "" {
			continue
		}
		assert.Equal(t, []string{"dm_process", "dm_import_application"}, q.Staging[:2], q.Name)
		assert.NotEmpty(t, q.Parameters["ima_type"], q.Name)
		assert.NotContains(t, q.SQL, "%!", q.Name)
	}
	for _, q := range ExportApplication().Queries {
		assert.NotContains(t, q.SQL, "%!", q.Name)
	}
}

func TestAllocatorsCoverKeySpaces(t *testing.T) {
	allocs := Allocators(memstore.New())
	for space := range KeySpaces() {
		assert.NotNil(t, allocs[space], space)
	}
}
