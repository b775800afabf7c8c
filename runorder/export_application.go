package runorder

import (
	"fmt"

	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/xmlparser"
)

func ExportApplication() pipeline.Plan {
	return pipeline.Plan{
		Queries: []pipeline.QueryDescriptor{
			{Name: "product_legislation", SQL: productLegislation, Staging: []string{"dm_product_legislation"}},
			{Name: "export_application_type", SQL: exportApplicationType, Staging: []string{"dm_export_application_type"}},
			exportApplicationQuery("com_application", "dm_com_application", "CertificateOfManufactureApplication", "COM", comApplicationColumns),
			exportApplicationQuery("gmp_application", "dm_gmp_application", "CertificateofGoodManufacturingPractice", "GMP", gmpApplicationColumns),
			exportApplicationQuery("cfs_application", "dm_cfs_application", "CertificateOfFreeSaleApplication", "CFS", ""),
			{Name: "cfs_schedule", SQL: cfsSchedule, Staging: []string{"dm_cfs_schedule"}},
			{Name: "export_application_countries", SQL: exportApplicationCountries, Staging: []string{"dm_export_application_countries"}},
			{Name: "export_certificate", SQL: exportCertificate, Staging: []string{"dm_export_application_certificate"}},
			caseEmailQuery("beis_emails", "BEIS"),
			caseEmailQuery("hse_emails", "HSE"),
		},
		Parsers: xmlparser.ExportApplication(),
		Loads: []pipeline.SourceTarget{
			load("product_legislation", schema.EntityMapping{
				Bools: []string{"is_active", "is_biocidal", "is_eu_cosmetics_regulation", "is_biocidal_claim", "gb_legislation", "ni_legislation"},
			}),
			load("export_application_type", schema.EntityMapping{
				Bools:   []string{"is_active", "allow_multiple_products", "generate_cover_letter", "allow_hse_authorization"},
				Exclude: []string{"country_group_legacy_id"},
				Rename:  map[string]string{"country_of_manufacture_cg_id": "country_group_for_manufacture_id"},
			}),
			shared("process"),
			load("export_application", exportApplicationMapping),
			load("com_application", schema.EntityMapping{
				YesNo: []string{"is_pesticide_on_free_sale_uk", "is_manufacturer"},
			}),
			load("gmp_application", schema.EntityMapping{
				YesNo: []string{"is_responsible_person", "is_manufacturer"},
			}),
			load("cfs_application", schema.EntityMapping{}),
			load("cfs_schedule", schema.EntityMapping{
				Lookups: []schema.Lookup{byCad},
				Exclude: []string{"cad_id"},
				YesNo:   []string{"any_raw_materials", "goods_placed_on_uk_market", "goods_export_only"},
				Rename:  map[string]string{"export_application_id": "application_id"},
			}),
			load("export_application_certificate", schema.EntityMapping{
				Lookups: []schema.Lookup{byCad},
				Exclude: []string{"ca_id", "cad_id"},
			}),
			shared("further_information_request"),
			load("case_email", schema.EntityMapping{Exclude: []string{"ca_id"}}),
		},
		Relations: []pipeline.Relationship{
			{
				Source: "dm_export_application_countries", Target: "web_export_application", Related: "web_country",
				Field: "countries", SourceOwner: "export_application__id", SourceRelated: "country_id",
				Lookups: []schema.Lookup{byCad},
			},
			{
				Source: "dm_cfs_legislation", Target: "web_cfs_schedule", Related: "web_product_legislation",
				Field: "legislations", SourceOwner: "cfsschedule_id", SourceRelated: "productlegislation_id",
			},
			{
				Source: "dm_further_information_request", Target: "web_export_application", Related: "web_further_information_request",
				Field: "further_information_requests", SourceOwner: "export_application_id", SourceRelated: "id",
			},
			{
				Source: "dm_case_email", Target: "web_export_application", Related: "web_case_email",
				Field: "case_emails", SourceOwner: "export_application__id", SourceRelated: "id",
				Lookups: []schema.Lookup{exportApplicationLookup},
			},
		},
		Backfills: []pipeline.BackfillDescriptor{
			{
				Name:           "export certificates",
				Entity:         "web_export_application",
				Companion:      "web_export_application_certificate",
				CompanionOwner: "export_application_id",
				Buckets:        pipeline.DocumentPackBuckets,
			},
		},
		Tasks: []pipeline.TaskDescriptor{
			{
				Name:   "export application tasks",
				Entity: "dm_export_application",
				Table:  "web_task",
				Rules:  applicationTaskRules,
			},
		},
	}
}

var byCad = schema.Lookup{Field: "export_application", Table: "dm_export_application", Via: "cad_id", Match: "cad_id", Columns: []string{"id"}}

var exportApplicationMapping = schema.EntityMapping{
	Exclude: []string{"ca_id", "cad_id", "action_code"},
}

func exportApplicationQuery(name, table, processType, applicationType, columns string) pipeline.QueryDescriptor {
	return pipeline.QueryDescriptor{
		Name:       name,
		SQL:        fmt.Sprintf(exportApplicationBase, processType, columns),
		Staging:    processChain("dm_export_application", table),
		KeySpace:   pipeline.ProcessKeySpace,
		Parameters: map[string]any{"application_type": applicationType},
	}
}

func caseEmailQuery(name, templateCode string) pipeline.QueryDescriptor {
	return pipeline.QueryDescriptor{
		Name:       name,
		SQL:        caseEmails,
		Staging:    []string{"dm_case_email"},
		Parameters: map[string]any{"template_code": templateCode},
	}
}

// exportApplicationBase takes the process type and the application type
// columns, read from the case XML. @application_type selects the type.
const exportApplicationBase = `SELECT
  '%s' process_type
  , xcad.status <> 'DELETED' is_active
  , ca.created_datetime created
  , xcad.ca_id
  , xcad.cad_id
  , xcad.status
  , xcad.submitted_datetime submit_datetime
  , ca.case_reference reference
  , xcad.case_decision decision
  , xcad.refuse_reason
  , xcad.last_updated_datetime last_update_datetime
  , xcad.last_updated_by_wua_id last_updated_by_id
  , xcad.variation_number variation_no
  , xcad.submitted_by_wua_id submitted_by_id
  , xcad.created_by_wua_id created_by_id
  , xcad.exporter_id
  , xcad.agent_id
  , cat.id application_type_id
  , wb.action_mnem action_code
  , x.*
FROM impmgr.xview_certificate_app_details xcad
JOIN impmgr.certificate_applications ca ON ca.id = xcad.ca_id
JOIN impmgr.certificate_application_types cat ON cat.ca_type = xcad.application_type
JOIN impmgr.certificate_app_details cad ON cad.id = xcad.cad_id
CROSS JOIN XMLTABLE('/CA' PASSING cad.xml_data COLUMNS
  fir_xml xml PATH 'CASE/RFIS/RFI_LIST'
  %s
) x
LEFT JOIN bpmmgr.xview_workbasket_actions wb ON wb.ca_id = xcad.ca_id AND wb.is_open = 'Y'
WHERE xcad.status_control = 'C'
  AND xcad.application_type = @application_type
  AND xcad.status <> 'DELETED'
  AND (xcad.submitted_datetime IS NOT NULL OR xcad.last_updated_datetime > CURRENT_DATE - INTERVAL '14' DAY)
ORDER BY xcad.ca_id`

const comApplicationColumns = `, is_pesticide_on_free_sale_uk text PATH 'APPLICATION/PRODUCTS/PESTICIDE_ON_FREE_SALE_UK[not(fox-error)]'
  , is_manufacturer text PATH 'APPLICATION/PRODUCTS/IS_MANUFACTURER[not(fox-error)]'
  , product_name text PATH 'APPLICATION/PRODUCTS/PRODUCT_NAME[not(fox-error)]'
  , chemical_name text PATH 'APPLICATION/PRODUCTS/CHEMICAL_NAME[not(fox-error)]'
  , manufacturing_process text PATH 'APPLICATION/PRODUCTS/MANUFACTURING_PROCESS[not(fox-error)]'`

const gmpApplicationColumns = `, is_responsible_person text PATH 'APPLICATION/RESPONSIBLE_PERSON/IS_RESPONSIBLE_PERSON[not(fox-error)]'
  , responsible_person_name text PATH 'APPLICATION/RESPONSIBLE_PERSON/NAME[not(fox-error)]'
  , responsible_person_postcode text PATH 'APPLICATION/RESPONSIBLE_PERSON/POSTCODE[not(fox-error)]'
  , responsible_person_address text PATH 'APPLICATION/RESPONSIBLE_PERSON/ADDRESS[not(fox-error)]'
  , is_manufacturer text PATH 'APPLICATION/MANUFACTURER/IS_MANUFACTURER[not(fox-error)]'
  , manufacturer_name text PATH 'APPLICATION/MANUFACTURER/NAME[not(fox-error)]'
  , manufacturer_postcode text PATH 'APPLICATION/MANUFACTURER/POSTCODE[not(fox-error)]'
  , manufacturer_address text PATH 'APPLICATION/MANUFACTURER/ADDRESS[not(fox-error)]'
  , gmp_certificate_issued text PATH 'APPLICATION/GMP_CERTIFICATE_ISSUED[not(fox-error)]'
  , auditor_accredited text PATH 'APPLICATION/AUDITOR_ACCREDITED[not(fox-error)]'
  , auditor_certified text PATH 'APPLICATION/AUDITOR_CERTIFIED[not(fox-error)]'`

const productLegislation = `SELECT
  pl.id
  , pl.name
  , CASE pl.status WHEN 'ARCHIVED' THEN 'false' ELSE 'true' END is_active
  , pl.is_biocidal
  , pl.is_eu_cosmetics_regulation
  , pl.is_biocidal_claim
  , pl.gb_legislation
  , pl.ni_legislation
FROM impmgr.product_legislation pl
ORDER BY pl.id`

const exportApplicationType = `SELECT
  cat.id
  , CASE cat.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , cat.ca_type type_code
  , cat.ca_type_title "type"
  , cat.allow_multiple_products
  , cat.generate_cover_letter
  , cat.allow_hse_authorization
  , cat.country_group_id country_group_legacy_id
  , cat.country_of_manufacture_cg_id
FROM impmgr.certificate_application_types cat
ORDER BY cat.id`

const cfsSchedule = `SELECT
  xcad.cad_id
  , x.exporter_status
  , x.brand_name_holder
  , x.product_eligibility
  , x.goods_placed_on_uk_market
  , x.goods_export_only
  , x.any_raw_materials
  , x.final_product_end_use
  , x.country_of_manufacture_id
  , x.schedule_statements_accordance_with_standards
  , x.schedule_statements_is_responsible_person
  , x.manufacturer_name
  , x.manufacturer_address
  , x.manufacturer_postcode
  , x.legislation_xml
  , x.product_xml
  , xcad.created_by_wua_id created_by_id
  , xcad.created_datetime created_at
  , xcad.last_updated_datetime updated_at
FROM impmgr.xview_certificate_app_details xcad
JOIN impmgr.certificate_app_details cad ON cad.id = xcad.cad_id
CROSS JOIN XMLTABLE('/CA/APPLICATION/PRODUCTS/SCHEDULE_LIST/SCHEDULE' PASSING cad.xml_data COLUMNS
  exporter_status text PATH 'EXPORTER_STATUS[not(fox-error)]'
  , brand_name_holder text PATH 'BRAND_NAME_HOLDER[not(fox-error)]'
  , product_eligibility text PATH 'PRODUCT_ELIGIBILITY[not(fox-error)]'
  , goods_placed_on_uk_market text PATH 'GOODS_PLACED_ON_UK_MARKET[not(fox-error)]'
  , goods_export_only text PATH 'GOODS_EXPORT_ONLY[not(fox-error)]'
  , any_raw_materials text PATH 'ANY_RAW_MATERIALS[not(fox-error)]'
  , final_product_end_use text PATH 'FINAL_PRODUCT_END_USE[not(fox-error)]'
  , country_of_manufacture_id integer PATH 'COUNTRY_OF_MANUFACTURE[not(fox-error)]'
  , schedule_statements_accordance_with_standards text PATH 'STATEMENTS/ACCORDANCE_WITH_STANDARDS[not(fox-error)]'
  , schedule_statements_is_responsible_person text PATH 'STATEMENTS/IS_RESPONSIBLE_PERSON[not(fox-error)]'
  , manufacturer_name text PATH 'MANUFACTURER/NAME[not(fox-error)]'
  , manufacturer_address text PATH 'MANUFACTURER/ADDRESS[not(fox-error)]'
  , manufacturer_postcode text PATH 'MANUFACTURER/POSTCODE[not(fox-error)]'
  , legislation_xml xml PATH 'LEGISLATION_LIST'
  , product_xml xml PATH 'PRODUCT_LIST'
) x
WHERE xcad.status_control = 'C'
  AND xcad.application_type = 'CFS'
  AND xcad.status <> 'DELETED'
ORDER BY xcad.cad_id`

const exportApplicationCountries = `SELECT
  xcac.cad_id
  , xcac.country_id
FROM impmgr.xview_cert_app_countries xcac
JOIN impmgr.xview_certificate_app_details xcad ON xcad.cad_id = xcac.cad_id
WHERE xcac.status_control = 'C'
  AND xcac.status <> 'DELETED'
  AND (xcad.submitted_datetime IS NOT NULL OR xcad.last_updated_datetime > CURRENT_DATE - INTERVAL '14' DAY)
ORDER BY xcac.cad_id, xcac.country_id`

const exportCertificate = `SELECT
  car.ca_id
  , card.cad_id
  , card.issue_datetime case_completion_datetime
  , CASE
    WHEN card.status = 'DRAFT' THEN 'DR'
    WHEN card.is_last_issued = 'false' THEN 'AR'
    ELSE 'AC'
  END status
  , CASE
    WHEN cad.variation_number > 0
    THEN ca.case_reference || '/' || cad.variation_number
    ELSE ca.case_reference
  END case_reference
  , card.start_datetime created_at
  , card.last_updated_datetime updated_at
FROM impmgr.certificate_app_responses car
JOIN impmgr.cert_app_response_details card ON card.car_id = car.id
JOIN impmgr.certificate_applications ca ON ca.id = car.ca_id
JOIN impmgr.certificate_app_details cad ON cad.id = card.cad_id
WHERE card.status <> 'DELETED'
ORDER BY card.id`

const caseEmails = `SELECT
  xce.ca_id
  , xce.status
  , xce.to_address "to"
  , xce.cc_address_list cc_address_list_str
  , xce.subject
  , xce.body
  , xce.response
  , xce.sent_datetime
  , xce.closed_datetime
  , @template_code template_code
FROM impmgr.xview_cert_app_case_emails xce
WHERE xce.status_control = 'C'
  AND xce.template_code = @template_code
ORDER BY xce.ca_id, xce.sent_datetime`
