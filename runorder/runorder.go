// Package runorder declares what is migrated for each domain and in which
// order: the legacy queries, the XML parsers, the staging to target loads,
// the many-to-many relations, the backfills and the derived tasks.
//
// Lists run top to bottom and must follow foreign key order. A --start
// position indexes into them, so appending is safe but reordering changes
// the meaning of existing resume positions.
package runorder

import (
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/target"
)

// Plans returns the plan of every domain.
func Plans() pipeline.Plans {
	return pipeline.Plans{
		pipeline.Reference:         Reference(),
		pipeline.User:              User(),
		pipeline.ImportApplication: ImportApplication(),
		pipeline.ExportApplication: ExportApplication(),
		pipeline.File:              File(),
	}
}

// KeySpaces names the key spaces Allocators provides.
func KeySpaces() map[string]bool {
	return map[string]bool{pipeline.ProcessKeySpace: true}
}

// Allocators builds the key allocators of every key space. Process keys are
// seeded from both the staging and the target process tables.
func Allocators(store target.Store) map[string]*pipeline.KeyAllocator {
	return map[string]*pipeline.KeyAllocator{
		pipeline.ProcessKeySpace: pipeline.NewKeyAllocator(store, "id", "dm_process", "web_process"),
	}
}

// processChain lists the staging levels of a process-backed entity.
func processChain(levels ...string) []string {
	return append([]string{"dm_process"}, levels...)
}

// load is a staging to target load between tables of the same name.
func load(name string, m schema.EntityMapping) pipeline.SourceTarget {
	return pipeline.SourceTarget{Source: "dm_" + name, Target: "web_" + name, Mapping: m}
}

// shared loads a staging table several domains write to.
func shared(name string) pipeline.SourceTarget {
	st := load(name, schema.EntityMapping{})
	st.SkipLoaded = true
	return st
}

// byLegacy resolves a legacy identifier column to the key of the staging row
// carrying the same identifier.
func byLegacy(field, table, column string) schema.Lookup {
	return schema.Lookup{Field: field, Table: table, Via: column, Match: column, Columns: []string{"id"}}
}

var importApplicationLookup = byLegacy("import_application", "dm_import_application", "ima_id")

var exportApplicationLookup = byLegacy("export_application", "dm_export_application", "ca_id")
