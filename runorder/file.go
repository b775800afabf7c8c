package runorder

import (
	"fmt"
	"strings"

	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/schema"
)

// DefaultFileCreatedDatetime is the created_datetime lower bound of a file
// query that has never run.
const DefaultFileCreatedDatetime = "2013-01-01 01:00:00"

// fileSource is one family of legacy files: how to reach its folders and
// which targets inside them hold documents.
type fileSource struct {
	name string
	// from joins down to the folder, aliased ff.
	from    string
	where   string
	targets []string
	params  map[string]any
	// large sources are kept out of the small group.
	large bool
}

func importApplicationFiles(label, imaType, imaSubType, prefix string, large bool, targets ...string) fileSource {
	return fileSource{
		name: label + " Application Files",
		from: `impmgr.xview_ima_details xid
JOIN impmgr.import_application_types iat ON iat.ima_type = xid.ima_type AND iat.ima_sub_type = xid.ima_sub_type
JOIN decmgr.file_folders ff ON ff.id = xid.app_docs_ff_id`,
		where: `xid.ima_type = @ima_type
  AND xid.ima_sub_type = @ima_sub_type
  AND xid.status_control = 'C'
  AND xid.status <> 'DELETED'
  AND (xid.submitted_datetime IS NOT NULL OR xid.last_updated_datetime > CURRENT_DATE - INTERVAL '14' DAY)`,
		targets: targets,
		params:  map[string]any{"ima_type": imaType, "ima_sub_type": imaSubType, "path_prefix": prefix},
		large:   large,
	}
}

func folderTypeFiles(name, folderType, prefix string) fileSource {
	return fileSource{
		name:   name,
		from:   "decmgr.file_folders ff",
		where:  "ff.file_folder_type = @folder_type AND ff.status_control = 'C'",
		params: map[string]any{"folder_type": folderType, "path_prefix": prefix},
	}
}

// fileSources lists every legacy file family in migration order.
var fileSources = []fileSource{
	importApplicationFiles("SPS", "SPS", "SPS1", "sps_application_files", true, "IMP_SUPPORTING_DOC"),
	importApplicationFiles("FA-DFL", "FA", "DEACTIVATED", "dfl_application_files", false, "IMP_FIREARMS_CERTIFICATE"),
	importApplicationFiles("FA-OIL", "FA", "OIL", "oil_application_files", false, "IMP_FIREARMS_CERTIFICATE", "IMP_SECTION5_AUTHORITY"),
	importApplicationFiles("FA-SIL", "FA", "SIL", "sil_application_files", true, "IMP_FIREARMS_CERTIFICATE", "IMP_SECTION5_AUTHORITY"),
	importApplicationFiles("Sanctions & Adhoc", "ADHOC", "ADHOC1", "sanctions_application_files", false, "IMP_SUPPORTING_DOC", "IMP_CONTRACT_DOC"),
	importApplicationFiles("OPT", "OPT", "QUOTA", "opt_application_files", false,
		"IMP_SUPPORTING_DOC", "IMP_OPT_BENEFICIARY_DOC", "IMP_OPT_EMPLOY_DOC", "IMP_OPT_FURTHER_AUTH_DOC",
		"IMP_OPT_NEW_APP_JUST_DOC", "IMP_OPT_PRIOR_AUTH_DOC", "IMP_OPT_SUBCONTRACT_DOC"),
	importApplicationFiles("Wood", "WD", "QUOTA", "wood_application_files", false, "IMP_SUPPORTING_DOC"),
	importApplicationFiles("Textiles", "TEX", "QUOTA", "textiles_application_files", false, "IMP_SUPPORTING_DOC"),
	{
		name: "Firearms & Ammunition Certificate Files",
		from: `impmgr.xview_importer_authorities xia
JOIN decmgr.file_folders ff ON ff.id = xia.file_folder_id`,
		where:  "xia.status_control = 'C' AND xia.authority_type = 'FIREARMS'",
		params: map[string]any{"path_prefix": "fa_certificate_files"},
	},
	{
		name: "Further Information Request Files",
		from: `impmgr.xview_ima_rfis xir
JOIN decmgr.file_folders ff ON ff.id = xir.file_folder_id`,
		where:  "xir.status_control = 'C'",
		params: map[string]any{"path_prefix": "fir_files"},
	},
	{
		name: "Mailshot Files",
		from: `mailshotmgr.xview_mailshot_details xmd
JOIN decmgr.file_folders ff ON ff.id = xmd.documents_ff_id`,
		where:  "xmd.status_control = 'C'",
		params: map[string]any{"path_prefix": "mailshot_files"},
	},
	folderTypeFiles("GMP Application Files", "GMP_SUPPORTING_DOCUMENTS", "gmp_application_files"),
	folderTypeFiles("Import Application Case Note Files", "IMP_CASE_NOTE_DOCUMENTS", "case_note_files"),
	folderTypeFiles("Export Application Case Note Documents", "CA_CASE_NOTE_DOCUMENTS", "export_case_note_files"),
	folderTypeFiles("Supplementary Report Goods Uploaded Files", "IMP_FA_REPORT_UPLOADS", "supplementary_report_files"),
	{
		name: "Import Application Licence Documents",
		from: `impmgr.ima_response_details ird
JOIN decmgr.file_folders ff ON ff.id = ird.document_ff_id`,
		where:  "ird.status_control = 'C'",
		params: map[string]any{"path_prefix": "import_licence_documents"},
		large:  true,
	},
	{
		name: "Export Application Certificate Documents",
		from: `impmgr.cert_app_response_details card
JOIN decmgr.file_folders ff ON ff.id = card.document_ff_id`,
		where:  "card.status <> 'DELETED'",
		params: map[string]any{"path_prefix": "export_certificate_documents"},
		large:  true,
	},
}

func (s fileSource) targetFilter() string {
	if len(s.targets) == 0 {
		return ""
	}
	quoted := make([]string, len(s.targets))
	for i, t := range s.targets {
		quoted[i] = "'" + t + "'"
	}
	return fmt.Sprintf("\n  AND fft.target_mnem IN (%s)", strings.Join(quoted, ", "))
}

// metadataSQL selects the file records without their content.
func (s fileSource) metadataSQL() string {
	return fmt.Sprintf(`SELECT
  fv.version_id id
  , ff.id folder_id
  , fft.id target_id
  , @path_prefix || '/' || fv.path path
  , fv.filename
  , fv.content_type
  , fv.file_size
  , fv.created_datetime
  , fv.created_by_id
FROM %s
JOIN decmgr.file_folder_targets fft ON fft.ff_id = ff.id
JOIN (%s) fv ON fv.fft_id = fft.id
WHERE %s%s
ORDER BY fv.version_id`, s.from, fileVersions, s.where, s.targetFilter())
}

// contentSQL selects the content of files created after @created_datetime,
// oldest first so the last uploaded created_datetime resumes the query.
func (s fileSource) contentSQL() string {
	return fmt.Sprintf(`SELECT
  @path_prefix || '/' || fv.path path
  , sld.blob_data
  , fv.file_size
  , fv.created_datetime
FROM %s
JOIN decmgr.file_folder_targets fft ON fft.ff_id = ff.id
JOIN (%s) fv ON fv.fft_id = fft.id
JOIN securemgr.secure_lob_data sld ON sld.id = fv.secure_lob_id
WHERE %s%s
  AND fv.created_datetime > CAST(@created_datetime AS timestamp)
ORDER BY fv.created_datetime, fv.version_id`, s.from, fileVersions, s.where, s.targetFilter())
}

const fileVersions = `SELECT
    fv.fft_id
    , fv.id version_id
    , fv.secure_lob_id
    , fv.create_start_datetime created_datetime
    , fv.create_by_wua_id created_by_id
    , fv.id || '-' || x.filename path
    , x.filename
    , x.content_type
    , x.file_size
  FROM decmgr.file_versions fv
  CROSS JOIN XMLTABLE('/file-metadata' PASSING fv.metadata_xml COLUMNS
    filename text PATH 'filename'
    , content_type text PATH 'content-type'
    , file_size bigint PATH 'size'
  ) x
  WHERE fv.status_control = 'C'`

// FileQueries is the catalogue of content queries run by the files command.
func FileQueries() []pipeline.QueryDescriptor {
	out := make([]pipeline.QueryDescriptor, 0, len(fileSources))
	for _, s := range fileSources {
		params := map[string]any{"created_datetime": DefaultFileCreatedDatetime}
		for k, v := range s.params {
			params[k] = v
		}
		out = append(out, pipeline.QueryDescriptor{
			Name:       s.name,
			SQL:        s.contentSQL(),
			Parameters: params,
			LimitBy:    "created_datetime",
		})
	}
	return out
}

// FileGroups names the small and large subsets of FileQueries.
func FileGroups() map[string][]string {
	groups := map[string][]string{}
	for _, s := range fileSources {
		group := "small"
		if s.large {
			group = "large"
		}
		groups[group] = append(groups[group], s.name)
	}
	return groups
}

// File migrates file metadata and attaches files to their owners. Content
// moves separately through FileQueries.
func File() pipeline.Plan {
	plan := pipeline.Plan{
		Loads: []pipeline.SourceTarget{
			load("file", schema.EntityMapping{
				Exclude: []string{"folder_id", "target_id"},
				Rename:  map[string]string{"file_size": "file_size_bytes"},
			}),
		},
		Relations: []pipeline.Relationship{
			folderRelation("web_import_application", "files", "dm_import_application", "file_folder_id"),
			folderRelation("web_mailshot", "documents", "dm_mailshot", "folder_id"),
			folderRelation("web_case_note", "files", "dm_case_note", "file_folder_id"),
		},
	}
	for _, s := range fileSources {
		plan.Queries = append(plan.Queries, pipeline.QueryDescriptor{
			Name:       s.name + " (metadata)",
			SQL:        s.metadataSQL(),
			Staging:    []string{"dm_file"},
			Parameters: s.params,
		})
	}
	return plan
}

// folderRelation links files to the owner whose staging row names their
// legacy folder.
func folderRelation(target, field, ownerStaging, folderColumn string) pipeline.Relationship {
	owner := strings.TrimPrefix(target, "web_")
	return pipeline.Relationship{
		Source: "dm_file", Target: target, Related: "web_file",
		Field: field, SourceOwner: owner + "__id", SourceRelated: "id",
		Lookups: []schema.Lookup{{Field: owner, Table: ownerStaging, Via: "folder_id", Match: folderColumn, Columns: []string{"id"}}},
	}
}
