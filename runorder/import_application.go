package runorder

import (
	"fmt"

	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/xmlparser"
)

func ImportApplication() pipeline.Plan {
	return pipeline.Plan{
		Queries: []pipeline.QueryDescriptor{
			{Name: "fa_authorities", SQL: faAuthorities, Staging: []string{"dm_firearms_authority"}},
			{Name: "fa_authority_linked_offices", SQL: faAuthorityLinkedOffices, Staging: []string{"dm_firearms_authority_office"}},
			importApplicationQuery("sil_application", "dm_sil_application", "FA", "SIL", "SILApplication", silApplicationColumns),
			{Name: "sil_checklist", SQL: checklist("FA", "SIL", firearmsChecklistColumns), Staging: []string{"dm_sil_checklist"}},
			importApplicationQuery("dfl_application", "dm_dfl_application", "FA", "DEACTIVATED", "DFLApplication", dflApplicationColumns),
			{Name: "dfl_checklist", SQL: checklist("FA", "DEACTIVATED", firearmsChecklistColumns), Staging: []string{"dm_dfl_checklist"}},
			importApplicationQuery("oil_application", "dm_oil_application", "FA", "OIL", "OpenIndividualLicenceApplication", oilApplicationColumns),
			{Name: "oil_checklist", SQL: checklist("FA", "OIL", firearmsChecklistColumns), Staging: []string{"dm_oil_checklist"}},
			importApplicationQuery("sanctions_application", "dm_sanctions_application", "ADHOC", "ADHOC1", "SanctionsAndAdhocApplication", sanctionsApplicationColumns),
			importApplicationQuery("wood_application", "dm_wood_application", "WD", "QUOTA", "WoodQuotaApplication", woodApplicationColumns),
			{Name: "wood_checklist", SQL: checklist("WD", "QUOTA", woodChecklistColumns), Staging: []string{"dm_wood_checklist"}},
			supplementaryInfoQuery("sil", "SIL"),
			supplementaryInfoQuery("dfl", "DEACTIVATED"),
			supplementaryInfoQuery("oil", "OIL"),
			{Name: "ia_licence", SQL: importApplicationLicence, Staging: []string{"dm_import_application_licence"}},
			{Name: "case_note", SQL: importCaseNote, Staging: []string{"dm_case_note"}},
			{Name: "endorsement", SQL: endorsement, Staging: []string{"dm_endorsement_import_application"}},
		},
		Parsers: xmlparser.ImportApplication(),
		Loads: []pipeline.SourceTarget{
			shared("process"),
			load("import_application", importApplicationMapping),
			load("sil_application", schema.EntityMapping{
				Bools: []string{"section1", "section2", "section5", "section58_obsolete", "section58_other", "military_police", "eu_single_market", "manufactured", "know_bought_from"},
			}),
			load("sil_checklist", checklistMapping),
			load("dfl_application", schema.EntityMapping{Bools: []string{"deactivated_firearm", "proof_checked", "know_bought_from"}}),
			load("dfl_checklist", checklistMapping),
			load("oil_application", schema.EntityMapping{Bools: []string{"section1", "section2", "know_bought_from"}}),
			load("oil_checklist", checklistMapping),
			load("sanctions_application", schema.EntityMapping{}),
			load("wood_application", schema.EntityMapping{
				Decimals: []schema.Decimal{{Name: "goods_qty", MaxDigits: 9, Places: 2}},
			}),
			load("wood_checklist", checklistMapping.With(schema.EntityMapping{
				YesNo: []string{"sigl_wood_application_logged"},
			})),
			load("import_application_licence", schema.EntityMapping{
				Lookups: []schema.Lookup{byImad},
				Exclude: []string{"imad_id"},
			}),
			load("import_contact", schema.EntityMapping{Exclude: []string{"legacy_id"}}),
			load("firearms_authority", schema.EntityMapping{Bools: []string{"is_active"}}),
			load("sil_goods_section1", silGoodsMapping),
			load("sil_goods_section2", silGoodsMapping),
			load("sil_goods_section5", silGoodsMapping),
			load("sil_goods_section582_obsolete", silGoodsMapping),
			load("sil_goods_section582_other", silGoodsMapping),
			load("dfl_goods_certificate", schema.EntityMapping{}),
			load("sil_supplementary_info", supplementaryInfoMapping),
			load("dfl_supplementary_info", supplementaryInfoMapping),
			load("oil_supplementary_info", supplementaryInfoMapping),
			load("sil_supplementary_report", supplementaryReportMapping),
			load("dfl_supplementary_report", supplementaryReportMapping),
			load("oil_supplementary_report", supplementaryReportMapping),
			load("dfl_supplementary_report_firearm", schema.EntityMapping{}),
			load("oil_supplementary_report_firearm", schema.EntityMapping{}),
			load("sil_supplementary_report_firearm_section1", schema.EntityMapping{}),
			load("sil_supplementary_report_firearm_section2", schema.EntityMapping{}),
			load("sil_supplementary_report_firearm_section5", schema.EntityMapping{}),
			load("sil_supplementary_report_firearm_section582_obsolete", schema.EntityMapping{}),
			load("sil_supplementary_report_firearm_section582_other", schema.EntityMapping{}),
			shared("further_information_request"),
			load("case_note", schema.EntityMapping{Exclude: []string{"ima_id"}}),
			load("endorsement_import_application", schema.EntityMapping{
				Lookups: []schema.Lookup{byImad},
				Exclude: []string{"imad_id"},
			}),
		},
		Relations: []pipeline.Relationship{
			{
				Source: "dm_firearms_authority_office", Target: "web_firearms_authority", Related: "web_office",
				Field: "linked_offices", SourceOwner: "firearmsauthority_id", SourceRelated: "office__id",
				Lookups: []schema.Lookup{{Field: "office", Table: "dm_office", Via: "office_legacy_id", Match: "legacy_id", Columns: []string{"id"}}},
			},
			{
				Source: "dm_oil_application_firearm_authority", Target: "web_oil_application", Related: "web_firearms_authority",
				Field: "verified_certificates", SourceOwner: "openindividuallicenceapplication_id", SourceRelated: "firearmsauthority_id",
			},
			{
				Source: "dm_sil_application_firearm_authority", Target: "web_sil_application", Related: "web_firearms_authority",
				Field: "verified_certificates", SourceOwner: "silapplication_id", SourceRelated: "firearmsauthority_id",
			},
			{
				Source: "dm_case_note", Target: "web_import_application", Related: "web_case_note",
				Field: "case_notes", SourceOwner: "import_application__id", SourceRelated: "id",
				Lookups: []schema.Lookup{importApplicationLookup},
			},
			{
				Source: "dm_further_information_request", Target: "web_import_application", Related: "web_further_information_request",
				Field: "further_information_requests", SourceOwner: "import_application_id", SourceRelated: "id",
			},
		},
		Backfills: []pipeline.BackfillDescriptor{
			{
				Name:           "import licences",
				Entity:         "web_import_application",
				Companion:      "web_import_application_licence",
				CompanionOwner: "import_application_id",
				Buckets:        pipeline.DocumentPackBuckets,
				Defaults:       map[string]any{"issue_paper_licence_only": false},
			},
		},
		Tasks: []pipeline.TaskDescriptor{
			{
				Name:   "import application tasks",
				Entity: "dm_import_application",
				Table:  "web_task",
				Rules:  applicationTaskRules,
			},
		},
	}
}

// applicationTaskRules open the task an application's current state needs.
var applicationTaskRules = []pipeline.TaskRule{
	pipeline.StatusRule{Type: "prepare", Column: "status", Statuses: []string{"IN_PROGRESS"}},
	pipeline.StatusRule{Type: "process", Column: "status", Statuses: []string{"SUBMITTED", "PROCESSING", "VARIATION_REQUESTED"}},
	pipeline.ActionCodeRule{Type: "authorise", Column: "action_code", Codes: []string{"IMA_AUTHORISE", "CA_AUTHORISE"}},
}

var byImad = schema.Lookup{Field: "import_application", Table: "dm_import_application", Via: "imad_id", Match: "imad_id", Columns: []string{"id"}}

var importApplicationMapping = schema.EntityMapping{
	Exclude: []string{"ima_id", "imad_id", "action_code", "file_folder_id"},
	Bools:   []string{"is_active"},
	Rename:  map[string]string{"licence_extended_flag": "licence_extended"},
}

var checklistMapping = schema.EntityMapping{
	Lookups: []schema.Lookup{byImad},
	Exclude: []string{"imad_id"},
	YesNo: []string{
		"case_update", "fir_required", "response_preparation", "validity_period_correct",
		"endorsements_listed", "authorisation", "authority_required", "authority_received", "authority_police",
	},
}

var silGoodsMapping = schema.EntityMapping{
	Ints:        []string{"quantity"},
	EmptyString: []string{"description"},
}

var supplementaryInfoMapping = schema.EntityMapping{
	Lookups: []schema.Lookup{importApplicationLookup},
	Exclude: []string{"ima_id"},
	Bools:   []string{"is_complete"},
}

var supplementaryReportMapping = schema.EntityMapping{
	Rename: map[string]string{"bought_from_legacy_id": "bought_from_reference"},
}

func importApplicationQuery(name, table, imaType, imaSubType, processType, columns string) pipeline.QueryDescriptor {
	return pipeline.QueryDescriptor{
		Name:     name,
		SQL:      fmt.Sprintf(importApplicationBase, processType, columns),
		Staging:  processChain("dm_import_application", table),
		KeySpace: pipeline.ProcessKeySpace,
		Parameters: map[string]any{
			"ima_type":     imaType,
			"ima_sub_type": imaSubType,
		},
	}
}

func supplementaryInfoQuery(kind, imaSubType string) pipeline.QueryDescriptor {
	return pipeline.QueryDescriptor{
		Name:       kind + "_supplementary_info",
		SQL:        supplementaryInfo,
		Staging:    []string{"dm_" + kind + "_supplementary_info"},
		Parameters: map[string]any{"ima_type": "FA", "ima_sub_type": imaSubType},
	}
}

func checklist(imaType, imaSubType, columns string) string {
	return fmt.Sprintf(checklistBase, columns, imaType, imaSubType)
}

// importApplicationBase takes the process type and the XMLTABLE columns of
// the application type. @ima_type and @ima_sub_type select the type.
const importApplicationBase = `SELECT
  '%s' process_type
  , xiad.status <> 'DELETED' is_active
  , ia.created_datetime created
  , ia.id ima_id
  , xiad.imad_id
  , ia.case_ref reference
  , xiad.status
  , xiad.submitted_datetime submit_datetime
  , xiad.response_decision decision
  , xiad.refuse_reason
  , xiad.applicant_reference
  , ia.created_datetime create_datetime
  , xiad.variation_no
  , xiad.legacy_case_flag
  , xiad.chief_usage_status
  , xiad.under_appeal_flag
  , xiad.variation_decision
  , xiad.variation_refuse_reason
  , xiad.issue_date
  , xiad.licence_extended licence_extended_flag
  , ir.licence_ref licence_reference
  , xiad.last_updated_datetime last_update_datetime
  , xiad.coo_country_id origin_country_id
  , xiad.coc_country_id consignment_country_id
  , xiad.date_provided_to_imi imi_submit_datetime
  , iat.id application_type_id
  , wb.action_mnem action_code
  , x.*
FROM impmgr.xview_ima_details xiad
JOIN impmgr.import_applications ia ON ia.id = xiad.ima_id
JOIN impmgr.import_application_types iat ON iat.ima_type = xiad.ima_type AND iat.ima_sub_type = xiad.ima_sub_type
JOIN impmgr.import_application_details ad ON ad.id = xiad.imad_id
CROSS JOIN XMLTABLE('/IMA' PASSING ad.xml_data COLUMNS
  file_folder_id integer PATH 'APP_METADATA/APP_DOCS_FF_ID'
  , fir_xml xml PATH 'RFIS/RFI_LIST'
  %s
) x
LEFT JOIN impmgr.ima_responses ir ON ir.ima_id = xiad.ima_id AND ir.licence_ref IS NOT NULL
LEFT JOIN bpmmgr.xview_workbasket_actions wb ON wb.ima_id = xiad.ima_id AND wb.is_open = 'Y'
WHERE xiad.ima_type = @ima_type
  AND xiad.ima_sub_type = @ima_sub_type
  AND xiad.status_control = 'C'
ORDER BY ia.id`

const silApplicationColumns = `, section1 text PATH 'APP_DETAILS/FA_DETAILS/SECTION_LIST/SECTION[text()="SEC1"]'
  , section2 text PATH 'APP_DETAILS/FA_DETAILS/SECTION_LIST/SECTION[text()="SEC2"]'
  , section5 text PATH 'APP_DETAILS/FA_DETAILS/SECTION_LIST/SECTION[text()="SEC5"]'
  , section58_obsolete text PATH 'APP_DETAILS/FA_DETAILS/SECTION_LIST/SECTION[text()="SEC5_OBSOLETE"]'
  , section58_other text PATH 'APP_DETAILS/FA_DETAILS/SECTION_LIST/SECTION[text()="SEC5_OTHER"]'
  , other_description text PATH 'APP_DETAILS/FA_DETAILS/SECTION_OTHER[not(fox-error)]'
  , military_police text PATH 'APP_DETAILS/FA_DETAILS/MILITARY_OR_POLICE[not(fox-error)]'
  , eu_single_market text PATH 'APP_DETAILS/FA_DETAILS/SINGLE_MARKET_BEFORE_SEP2018[not(fox-error)]'
  , manufactured text PATH 'APP_DETAILS/FA_DETAILS/ANY_MANUFACTURED_BEFORE_1939[not(fox-error)]'
  , commodity_group_id text PATH 'APP_DETAILS/FA_DETAILS/COMMODITY_GROUP[not(fox-error)]'
  , know_bought_from text PATH 'APP_DETAILS/SH_DETAILS/IS_SELLER_HOLDER_PROVIDED[not(fox-error)]'
  , additional_comments text PATH 'APP_DETAILS/FA_DETAILS/ADDITIONAL_INFORMATION[not(fox-error)]'
  , cover_letter text PATH 'APP_PROCESSING/RESPONSE/APPROVE/COVER_LETTER'
  , commodities_xml xml PATH 'APP_DETAILS/FA_DETAILS/COMMODITY_LIST'
  , fa_authorities_xml xml PATH 'APP_DETAILS/FA_DETAILS/FIREARMS_AUTHORITIES/AUTHORITY_LIST'
  , bought_from_details_xml xml PATH 'APP_DETAILS/FA_DETAILS/SH_DETAILS/SELLER_HOLDER_LIST'`

const dflApplicationColumns = `, deactivated_firearm text PATH 'APP_DETAILS/FA_DETAILS/DEACTIVATED_FIREARM[not(fox-error)]'
  , proof_checked text PATH 'APP_DETAILS/FA_DETAILS/PROOF_CHECKED[not(fox-error)]'
  , constabulary_id integer PATH 'APP_DETAILS/FA_DETAILS/CONSTABULARY[not(fox-error)]'
  , know_bought_from text PATH 'APP_DETAILS/SH_DETAILS/IS_SELLER_HOLDER_PROVIDED[not(fox-error)]'
  , additional_comments text PATH 'APP_DETAILS/FA_DETAILS/ADDITIONAL_INFORMATION[not(fox-error)]'
  , cover_letter text PATH 'APP_PROCESSING/RESPONSE/APPROVE/COVER_LETTER'
  , fa_goods_certs_xml xml PATH 'APP_DETAILS/FA_DETAILS'
  , bought_from_details_xml xml PATH 'APP_DETAILS/FA_DETAILS/SH_DETAILS/SELLER_HOLDER_LIST'`

const oilApplicationColumns = `, section1 text PATH 'APP_DETAILS/FA_DETAILS/SECTION_LIST/SECTION[text()="SEC1"]'
  , section2 text PATH 'APP_DETAILS/FA_DETAILS/SECTION_LIST/SECTION[text()="SEC2"]'
  , know_bought_from text PATH 'APP_DETAILS/SH_DETAILS/IS_SELLER_HOLDER_PROVIDED[not(fox-error)]'
  , additional_comments text PATH 'APP_DETAILS/FA_DETAILS/ADDITIONAL_INFORMATION[not(fox-error)]'
  , cover_letter text PATH 'APP_PROCESSING/RESPONSE/APPROVE/COVER_LETTER'
  , fa_authorities_xml xml PATH 'APP_DETAILS/FA_DETAILS/FIREARMS_AUTHORITIES/AUTHORITY_LIST'
  , bought_from_details_xml xml PATH 'APP_DETAILS/FA_DETAILS/SH_DETAILS/SELLER_HOLDER_LIST'`

const sanctionsApplicationColumns = `, exporter_name text PATH 'APP_DETAILS/SANCTIONS_DETAILS/EXPORTER_NAME[not(fox-error)]'
  , exporter_address text PATH 'APP_DETAILS/SANCTIONS_DETAILS/EXPORTER_ADDRESS[not(fox-error)]'`

const woodApplicationColumns = `, shipping_year integer PATH 'APP_DETAILS/WOOD_DETAILS/SHIPPING_YEAR[not(fox-error)]'
  , exporter_name text PATH 'APP_DETAILS/WOOD_DETAILS/EXPORTER_NAME[not(fox-error)]'
  , exporter_address text PATH 'APP_DETAILS/WOOD_DETAILS/EXPORTER_ADDRESS[not(fox-error)]'
  , exporter_vat_nr text PATH 'APP_DETAILS/WOOD_DETAILS/EXPORTER_VAT_NR[not(fox-error)]'
  , commodity_id integer PATH 'APP_DETAILS/WOOD_DETAILS/COMMODITY_ID[not(fox-error)]'
  , goods_description text PATH 'APP_DETAILS/WOOD_DETAILS/GOODS_DESCRIPTION[not(fox-error)]'
  , goods_qty text PATH 'APP_DETAILS/WOOD_DETAILS/QUANTITY[not(fox-error)]'
  , goods_unit text PATH 'APP_DETAILS/WOOD_DETAILS/UNIT[not(fox-error)]'
  , additional_comments text PATH 'APP_DETAILS/WOOD_DETAILS/ADDITIONAL_INFORMATION[not(fox-error)]'`

// checklistBase takes the type-specific checklist columns, then the
// application type and sub type.
const checklistBase = `SELECT
  ad.id imad_id
  , x.*
FROM impmgr.xview_ima_details xiad
JOIN impmgr.import_application_details ad ON ad.id = xiad.imad_id
CROSS JOIN XMLTABLE('/IMA/APP_PROCESSING/CHECKLIST' PASSING ad.xml_data COLUMNS
  case_update text PATH 'GEN_UPDATE_REQUIRED[not(fox-error)]'
  , fir_required text PATH 'GEN_FIR_REQUIRED[not(fox-error)]'
  , response_preparation text PATH 'GEN_DECISION_RESPONSE[not(fox-error)]'
  , validity_period_correct text PATH 'GEN_VALIDITY_PERIOD[not(fox-error)]'
  , endorsements_listed text PATH 'GEN_ENDORSEMENTS[not(fox-error)]'
  , authorisation text PATH 'GEN_AUTHORISATION[not(fox-error)]'
  %s
) x
WHERE xiad.ima_type = '%s'
  AND xiad.ima_sub_type = '%s'
  AND xiad.status_control = 'C'
  AND xiad.submitted_datetime IS NOT NULL
ORDER BY ad.id`

const firearmsChecklistColumns = `, authority_required text PATH 'FA_AUTHORITY_TO_POSSESS_REQ[not(fox-error)]'
  , authority_received text PATH 'FA_AUTHORITY_TO_POSSESS_REC[not(fox-error)]'
  , authority_police text PATH 'FA_AUTHORITY_TO_POSSESS_CHECK[not(fox-error)]'`

const woodChecklistColumns = `, sigl_wood_application_logged text PATH 'WOOD_SIGL_LOGGED[not(fox-error)]'`

const faAuthorities = `SELECT
  iad.ia_id id
  , ia.imp_id importer_id
  , CASE iad.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , x.*
FROM impmgr.importer_authorities ia
JOIN impmgr.importer_authority_details iad ON iad.ia_id = ia.id
CROSS JOIN XMLTABLE('/AUTHORITY' PASSING iad.xml_data COLUMNS
  address text PATH 'ADDRESS'
  , postcode text PATH 'POSTCODE'
  , address_entry_type text PATH 'ADDRESS_ENTRY_TYPE'
  , reference text PATH 'FIREARMS_REFERENCE'
  , certificate_type text PATH 'CERTIFICATE_TYPE'
  , further_details text PATH 'UNCATEGORIZED_DETAILS'
  , issuing_constabulary_id integer PATH 'ISSUING_CONSTABULARY'
  , start_date text PATH 'START_DATE'
  , end_date text PATH 'END_DATE'
) x
WHERE iad.status_control = 'C'
  AND ia.authority_type = 'FIREARMS'
ORDER BY iad.ia_id`

const faAuthorityLinkedOffices = `SELECT
  xialo.ia_id firearmsauthority_id
  , 'i-' || xialo.imp_id || '-' || xialo.office_id office_legacy_id
FROM impmgr.xview_imp_auth_linked_offices xialo
JOIN impmgr.importer_authorities ia ON xialo.ia_id = ia.id
WHERE xialo.status_control = 'C'
  AND ia.authority_type = 'FIREARMS'
ORDER BY xialo.ia_id`

const supplementaryInfo = `SELECT
  xiad.ima_id
  , x.is_complete
  , x.no_report_reason
  , to_date(x.completed_datetime, 'YYYY-MM-DD') completed_datetime
  , x.supplementary_report_xml
FROM impmgr.xview_ima_details xiad
JOIN impmgr.import_application_details ad ON ad.id = xiad.imad_id
CROSS JOIN XMLTABLE('/IMA/FA_REPORTS' PASSING ad.xml_data COLUMNS
  is_complete text PATH 'REPORT_COMPLETED_FLAG[not(fox-error)]'
  , no_report_reason text PATH 'NO_FIREARMS_REPORTED_DETAILS/NO_FIREARMS_REPORTED_REASON[not(fox-error)]'
  , completed_datetime text PATH 'HISTORICAL_REPORT_COMPLETION_LIST/HISTORICAL_REPORT_COMPLETION[last()]/REPORT_COMPLETED_DATETIME[last()]'
  , supplementary_report_xml xml PATH 'FA_SUPPLEMENTARY_REPORT_LIST'
) x
WHERE xiad.ima_type = @ima_type
  AND xiad.ima_sub_type = @ima_sub_type
  AND xiad.status_control = 'C'
ORDER BY xiad.ima_id`

const importApplicationLicence = `SELECT
  ird.imad_id
  , ir.created_datetime created_at
  , CASE ir.licence_validity WHEN 'CURRENT' THEN 'AC' ELSE 'AR' END status
  , ird.licence_start_date
  , ird.licence_end_date
FROM impmgr.ima_responses ir
JOIN impmgr.ima_response_details ird ON ird.ir_id = ir.id
JOIN impmgr.import_application_details iad ON iad.id = ird.imad_id
WHERE iad.status_control = 'C'
ORDER BY ir.id`

const importCaseNote = `SELECT
  cn.ima_id
  , cn.status
  , cn.note
  , cn.created_datetime create_datetime
  , cn.file_folder_id
FROM impmgr.xview_ima_case_notes cn
WHERE cn.status_control = 'C'
ORDER BY cn.ima_id, cn.created_datetime`

const endorsement = `SELECT
  e.imad_id
  , e.endorsement_text content
  , e.created_datetime
FROM impmgr.xview_ima_endorsements e
WHERE e.status_control = 'C'
ORDER BY e.imad_id, e.position`
