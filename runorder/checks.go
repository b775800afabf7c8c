package runorder

import "github.com/ridoystarlord/casemigrate/diff"

// Checks are the count checks run after every migration, before those of
// pipeline.yaml.
func Checks() []diff.CountCheck {
	return []diff.CountCheck{
		{
			Name:  "Import Applications Without Document Packs",
			Table: "web_import_application a",
			Where: "a.submit_datetime IS NOT NULL AND NOT EXISTS (SELECT 1 FROM web_import_application_licence l WHERE l.import_application_id = a.id)",
			Exact: true,
		},
		{
			Name:  "Export Applications Without Document Packs",
			Table: "web_export_application a",
			Where: "a.submit_datetime IS NOT NULL AND NOT EXISTS (SELECT 1 FROM web_export_application_certificate c WHERE c.export_application_id = a.id)",
			Exact: true,
		},
		{
			Name:  "Duplicate File Paths",
			Table: "web_file f",
			Where: "EXISTS (SELECT 1 FROM web_file o WHERE o.path = f.path AND o.id <> f.id)",
			Exact: true,
		},
		{
			Name:  "Process Keys Above Sequence",
			Table: "web_process",
			Where: "id > (SELECT last_value FROM web_process_id_seq)",
			Exact: true,
			Note:  "process keys above the sequence mean a reset was missed after an explicit-key insert",
		},
	}
}
