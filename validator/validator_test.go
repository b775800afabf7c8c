package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/casemigrate/memstore"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/xmlparser"
)

func testPlans() pipeline.Plans {
	return pipeline.Plans{
		pipeline.Reference: {
			Queries: []pipeline.QueryDescriptor{{Name: "country", Staging: []string{"dm_country"}}},
			Loads:   []pipeline.SourceTarget{{Source: "dm_country", Target: "web_country"}},
		},
		pipeline.User: {
			Queries: []pipeline.QueryDescriptor{{Name: "users", Staging: []string{"dm_user"}}},
			Parsers: []xmlparser.Parser{{Name: "phone", Parent: "dm_user", Field: "telephone_xml", Targets: []string{"dm_phone_number"}}},
			Loads: []pipeline.SourceTarget{
				{Source: "dm_user", Target: "web_user"},
				{Source: "dm_phone_number", Target: "web_phone_number", Mapping: schema.EntityMapping{
					Lookups: []schema.Lookup{{Field: "user", Table: "dm_user", Via: "user_id"}},
				}},
			},
			Relations: []pipeline.Relationship{{
				Source: "dm_phone_number", Target: "web_user", Related: "web_phone_number",
				Field: "phones", SourceOwner: "user_id", SourceRelated: "id",
			}},
		},
		pipeline.ImportApplication: {Queries: []pipeline.QueryDescriptor{{Name: "ia", Staging: []string{"dm_ia"}}}},
		pipeline.ExportApplication: {Queries: []pipeline.QueryDescriptor{{Name: "ea", Staging: []string{"dm_ea"}}}},
		pipeline.File:              {Queries: []pipeline.QueryDescriptor{{Name: "file", Staging: []string{"dm_file"}}}},
	}
}

func TestValidatePlansAcceptsConsistentPlans(t *testing.T) {
	result := ValidatePlans(testPlans(), map[string]bool{pipeline.ProcessKeySpace: true})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
}

func TestValidatePlansReportsProblems(t *testing.T) {
	plans := testPlans()
	ref := plans[pipeline.Reference]
	ref.Queries = append(ref.Queries,
		pipeline.QueryDescriptor{Name: "country", Staging: []string{"dm_country"}},
		pipeline.QueryDescriptor{Name: "chain", Staging: []string{"dm_process", "dm_thing"}},
	)
	ref.Parsers = []xmlparser.Parser{{Name: "orphan", Parent: "dm_nothing", Field: "x_xml"}}
	ref.Loads = append(ref.Loads, pipeline.SourceTarget{Source: "dm_elsewhere", Target: "web_elsewhere"})
	plans[pipeline.Reference] = ref

	result := ValidatePlans(plans, map[string]bool{})
	assert.False(t, result.Valid)

	types := map[string]int{}
	for _, e := range append(result.Errors, result.Warnings...) {
		types[e.Type]++
	}
	assert.Equal(t, 1, types["duplicate_query"])
	assert.Equal(t, 1, types["descriptor"])
	assert.Equal(t, 1, types["parser_parent"])
	assert.Equal(t, 1, types["unstaged_source"])

	err := result.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrConfig)
}

func TestValidateAgainstStore(t *testing.T) {
	store := memstore.New().
		CreateTable("dm_country", "id", "name").
		CreateTable("web_country", "id", "name").
		CreateTable("dm_user", "id", "telephone_xml").
		CreateTable("web_user", "id").
		CreateTable("dm_phone_number", "id", "user_id").
		CreateTable("web_phone_number", "id", "phone").
		CreateTable("web_user_phones", "id", "user_id").
		CreateTable("dm_ia", "id").
		CreateTable("dm_ea", "id")

	result, err := ValidateAgainstStore(context.Background(), store, testPlans())
	require.NoError(t, err)
	assert.False(t, result.Valid)

	var missing []string
	for _, e := range result.Errors {
		missing = append(missing, e.Table+"."+e.Column)
	}
	assert.ElementsMatch(t, []string{"web_user_phones.phone_number_id", "dm_file."}, missing)
}

func TestValidateAgainstStoreMissingDocumentColumn(t *testing.T) {
	store := memstore.New().CreateTable("dm_user", "id")
	plans := pipeline.Plans{pipeline.User: {
		Parsers: []xmlparser.Parser{{Name: "phone", Parent: "dm_user", Field: "telephone_xml"}},
	}}

	result, err := ValidateAgainstStore(context.Background(), store, plans)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "missing_column", result.Errors[0].Type)
	assert.Equal(t, "telephone_xml", result.Errors[0].Column)
}

func TestMergeKeepsSeverity(t *testing.T) {
	result := newResult()
	other := newResult()
	other.add(ValidationError{Type: "missing_table", Severity: "error"})
	other.add(ValidationError{Type: "empty_domain", Severity: "warning"})

	result.Merge(other)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 1)
	assert.Len(t, result.Warnings, 1)
}
