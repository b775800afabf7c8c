package runorder

import (
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/schema"
)

func Reference() pipeline.Plan {
	return pipeline.Plan{
		Queries: []pipeline.QueryDescriptor{
			{Name: "country", SQL: country, Staging: []string{"dm_country"}},
			{Name: "country_group", SQL: countryGroup, Staging: []string{"dm_country_group"}},
			{Name: "country_group_country", SQL: countryGroupCountry, Staging: []string{"dm_country_group_country"}},
			{Name: "country_translation_set", SQL: countryTranslationSet, Staging: []string{"dm_country_translation_set"}},
			{Name: "country_translation", SQL: countryTranslation, Staging: []string{"dm_country_translation"}},
			{Name: "unit", SQL: unit, Staging: []string{"dm_unit"}},
			{Name: "commodity_type", SQL: commodityType, Staging: []string{"dm_commodity_type"}},
			{Name: "commodity_group", SQL: commodityGroup, Staging: []string{"dm_commodity_group"}},
			{Name: "commodity", SQL: commodity, Staging: []string{"dm_commodity"}},
			{Name: "commodity_group_commodity", SQL: commodityGroupCommodity, Staging: []string{"dm_commodity_group_commodity"}},
			{Name: "ia_type", SQL: importApplicationType, Staging: []string{"dm_import_application_type"}},
			{Name: "constabularies", SQL: constabularies, Staging: []string{"dm_constabulary"}},
			{Name: "obsolete_calibre_group", SQL: obsoleteCalibreGroup, Staging: []string{"dm_obsolete_calibre_group"}},
			{Name: "obsolete_calibre", SQL: obsoleteCalibre, Staging: []string{"dm_obsolete_calibre"}},
		},
		Loads: []pipeline.SourceTarget{
			load("country", schema.EntityMapping{Bools: []string{"is_active"}}),
			load("country_group", schema.EntityMapping{}),
			load("country_translation_set", schema.EntityMapping{Bools: []string{"is_active"}}),
			load("country_translation", schema.EntityMapping{}),
			load("unit", schema.EntityMapping{Exclude: []string{"legacy_code"}}),
			load("commodity_type", schema.EntityMapping{}),
			load("commodity_group", schema.EntityMapping{Bools: []string{"is_active"}}),
			load("commodity", schema.EntityMapping{
				Bools: []string{"is_active"},
				Ints:  []string{"quantity_threshold", "sigl_product_type"},
			}),
			load("import_application_type", schema.EntityMapping{
				Bools: []string{"is_active", "guidance_file_id_required"},
			}),
			load("constabulary", schema.EntityMapping{
				Bools:  []string{"is_active"},
				Rename: map[string]string{"region_code": "region"},
			}),
			load("obsolete_calibre_group", schema.EntityMapping{Bools: []string{"is_active"}, Ints: []string{"order"}}),
			load("obsolete_calibre", schema.EntityMapping{Bools: []string{"is_active"}, Ints: []string{"order"}}),
		},
		Relations: []pipeline.Relationship{
			{
				Source: "dm_country_group_country", Target: "web_country_group", Related: "web_country",
				Field: "countries", SourceOwner: "countrygroup_id", SourceRelated: "country_id",
			},
			{
				Source: "dm_commodity_group_commodity", Target: "web_commodity_group", Related: "web_commodity",
				Field: "commodities", SourceOwner: "commoditygroup_id", SourceRelated: "commodity_id",
			},
		},
	}
}

const country = `SELECT
  c.id
  , c.name
  , CASE c.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , c.country_type "type"
  , c.commission_code
  , c.hmrc_code
FROM impmgr.countries c
ORDER BY c.id`

const countryGroup = `SELECT
  cg.id
  , cg.name
  , cg.comments
FROM impmgr.country_groups cg
ORDER BY cg.id`

const countryGroupCountry = `SELECT
  cgc.cg_id countrygroup_id
  , cgc.c_id country_id
FROM impmgr.country_group_countries cgc
ORDER BY cgc.cg_id, cgc.c_id`

const countryTranslationSet = `SELECT
  cts.id
  , cts.name
  , CASE cts.status WHEN 'ACTIVE' THEN 'true' ELSE 'false' END is_active
FROM impmgr.country_translation_sets cts
ORDER BY cts.id`

const countryTranslation = `SELECT
  ct.translation
  , ct.c_id country_id
  , ct.cts_id translation_set_id
FROM impmgr.country_translations ct
ORDER BY ct.cts_id, ct.c_id`

const unit = `SELECT
  u.unit_type
  , u.description
  , u.short_description
  , u.hmrc_code
  , u.code legacy_code
FROM impmgr.units u
ORDER BY u.unit_type`

const commodityType = `SELECT
  ct.type_code
  , ct.type
FROM impmgr.commodity_types ct
ORDER BY ct.type_code`

const commodityGroup = `SELECT
  cg.id
  , CASE cg.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , cg.group_type
  , cg.group_code
  , cg.group_name
  , cg.group_description
  , cg.start_datetime
  , cg.end_datetime
  , cg.commodity_type commodity_type_id
  , cg.unit unit_id
FROM impmgr.xview_commodity_groups cg
WHERE cg.status_control = 'C'
ORDER BY cg.id`

const commodity = `SELECT
  c.id
  , CASE c.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , c.commodity_code
  , c.validity_start_date
  , c.validity_end_date
  , c.quantity_threshold
  , c.sigl_product_type
  , c.start_datetime
  , c.end_datetime
  , c.commodity_type commodity_type_id
FROM impmgr.xview_commodities c
WHERE c.status_control = 'C'
ORDER BY c.id`

const commodityGroupCommodity = `SELECT
  cgc.cg_id commoditygroup_id
  , cgc.com_id commodity_id
FROM impmgr.xview_commodity_group_commodities cgc
WHERE cgc.status_control = 'C'
ORDER BY cgc.cg_id, cgc.com_id`

const importApplicationType = `SELECT
  iat.id
  , CASE iat.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , iat.ima_type "type"
  , iat.ima_sub_type sub_type
  , iat.licence_type_code
  , iat.sigl_flag
  , iat.chief_flag
  , iat.chief_licence_prefix
  , iat.paper_licence_flag
  , iat.electronic_licence_flag
  , iat.cover_letter_flag
  , iat.cover_letter_schedule_flag
  , iat.category_flag
  , iat.sigl_category_prefix
  , iat.chief_category_prefix
  , iat.default_licence_length_months
  , iat.endorsements_flag
  , iat.default_commodity_desc
  , iat.quantity_unlimited_flag
  , iat.exp_cert_upload_flag
  , iat.supporting_docs_upload_flag
  , iat.multiple_commodities_flag
  , iat.guidance_file_id IS NOT NULL guidance_file_id_required
FROM impmgr.import_application_types iat
ORDER BY iat.id`

const constabularies = `SELECT
  c.id
  , c.name
  , CASE c.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , c.region region_code
  , c.email_address email
FROM impmgr.constabularies c
ORDER BY c.id`

const obsoleteCalibreGroup = `SELECT
  ocg.id
  , ocg.name
  , CASE ocg.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , ocg.display_order "order"
FROM impmgr.obsolete_calibre_groups ocg
ORDER BY ocg.id`

const obsoleteCalibre = `SELECT
  oc.id
  , oc.ocg_id calibre_group_id
  , oc.name
  , CASE oc.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , oc.display_order "order"
FROM impmgr.obsolete_calibres oc
ORDER BY oc.id`
