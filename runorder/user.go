package runorder

import (
	"fmt"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/xmlparser"
)

func User() pipeline.Plan {
	return pipeline.Plan{
		Queries: []pipeline.QueryDescriptor{
			{Name: "users", SQL: users, Staging: []string{"dm_user"}},
			{Name: "importers", SQL: importers, Staging: []string{"dm_importer"}},
			{Name: "importer_offices", SQL: importerOffices, Staging: []string{"dm_office"}},
			{Name: "exporters", SQL: exporters, Staging: []string{"dm_exporter"}},
			{Name: "exporter_offices", SQL: exporterOffices, Staging: []string{"dm_office"}},
			{
				Name: "mailshots", SQL: mailshots,
				Staging: processChain("dm_mailshot"), KeySpace: pipeline.ProcessKeySpace,
			},
			{
				Name: "access_requests", SQL: accessRequests,
				Staging: processChain("dm_access_request"), KeySpace: pipeline.ProcessKeySpace,
			},
		},
		Parsers: xmlparser.User(),
		Loads: []pipeline.SourceTarget{
			load("user", schema.EntityMapping{
				Bools:       []string{"is_active", "share_contact_details"},
				EmptyString: []string{"title", "organisation", "department", "job_title"},
			}),
			load("personal_email", schema.EntityMapping{}),
			load("alternative_email", schema.EntityMapping{}),
			load("phone_number", schema.EntityMapping{}),
			load("importer", schema.EntityMapping{Bools: []string{"is_active"}}),
			load("exporter", schema.EntityMapping{Bools: []string{"is_active"}}),
			load("office", officeMapping),
			shared("process"),
			load("mailshot", schema.EntityMapping{
				Bools: []string{"is_retraction_email", "is_to_importers", "is_to_exporters"},
			}),
			shared("further_information_request"),
			load("access_request", schema.EntityMapping{
				Exclude: []string{"process_type", "iar_id"},
			}),
			load("approval_request", schema.EntityMapping{}),
		},
		Relations: []pipeline.Relationship{
			{
				Source: "dm_office", Target: "web_importer", Related: "web_office",
				Field: "offices", SourceOwner: "importer_id", SourceRelated: "id",
			},
			{
				Source: "dm_office", Target: "web_exporter", Related: "web_office",
				Field: "offices", SourceOwner: "exporter_id", SourceRelated: "id",
			},
			{
				Source: "dm_further_information_request", Target: "web_access_request", Related: "web_further_information_request",
				Field: "further_information_requests", SourceOwner: "access_request_id", SourceRelated: "id",
			},
		},
	}
}

// officeMapping splits the legacy free-text address over five lines.
var officeMapping = schema.EntityMapping{
	Bools:    []string{"is_active"},
	Exclude:  []string{"importer_id", "exporter_id"},
	Computed: addressLines("address", 5),
}

func addressLines(column string, n int) []schema.Computed {
	var out []schema.Computed
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("address_%d", i)
		out = append(out, schema.Computed{Name: name, Fn: func(rec map[string]any) any {
			s, _ := rec[column].(string)
			if line, ok := format.SplitAddress(s, "address_", n)[name]; ok {
				return line
			}
			return nil
		}})
	}
	return out
}

const users = `SELECT
  wua.id
  , wua.login_id username
  , wua.title
  , wua.forename first_name
  , wua.surname last_name
  , wua.email_address email
  , CASE wua.account_status WHEN 'ACTIVE' THEN 'true' ELSE 'false' END is_active
  , wua.password_reset_datetime date_joined
  , wua.last_login_datetime last_login
  , wua.organisation
  , wua.department
  , wua.job_title
  , wua.date_of_birth
  , wua.share_contact_details_flag share_contact_details
  , wua.account_status
  , wua.account_status_date
  , wua.account_status_by
  , wua.telephone_xml
  , wua.personal_email_xml
  , wua.distribution_email_xml alternative_email_xml
FROM securemgr.web_user_accounts wua
WHERE wua.id > 1
ORDER BY wua.id`

const importers = `SELECT
  xid.imp_id id
  , CASE xid.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , xid.imp_entity_type "type"
  , xid.organisation_name name
  , xid.reg_number registered_number
  , xid.eori_number
  , xid.main_imp_id main_importer_id
  , xid.other_coo_code region_origin
FROM impmgr.xview_importer_details xid
WHERE xid.status_control = 'C'
ORDER BY xid.imp_id`

const importerOffices = `SELECT
  xio.imp_id importer_id
  , 'i-' || xio.imp_id || '-' || xio.office_id legacy_id
  , CASE xio.office_status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , xio.postcode
  , xio.address
  , xio.eori_number
  , xio.address_entry_type
FROM impmgr.xview_importer_offices xio
WHERE xio.status_control = 'C'
ORDER BY xio.imp_id, xio.office_id`

const exporters = `SELECT
  e.id
  , CASE xed.status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , xed.organisation_name name
  , xed.organisation_registered_number registered_number
  , xed.comments
  , e.main_e_id main_exporter_id
FROM impmgr.exporters e
JOIN impmgr.xview_exporter_details xed ON xed.e_id = e.id
WHERE xed.status_control = 'C'
ORDER BY e.id`

const exporterOffices = `SELECT
  xeo.e_id exporter_id
  , 'e-' || xeo.e_id || '-' || xeo.office_id legacy_id
  , CASE xeo.office_status WHEN 'CURRENT' THEN 'true' ELSE 'false' END is_active
  , xeo.postcode
  , xeo.address
  , xeo.address_entry_type
FROM impmgr.xview_exporter_offices xeo
WHERE xeo.status_control = 'C'
ORDER BY xeo.e_id, xeo.office_id`

const mailshots = `SELECT
  'Mailshot' process_type
  , xmd.status <> 'DELETED' is_active
  , xmd.start_datetime created
  , xmd.documents_ff_id folder_id
  , m.reference
  , xmd.status
  , xmd.subject title
  , xmd.description
  , xmd.publish_email_subject email_subject
  , xmd.publish_email_body email_body
  , xmd.send_retract_emails is_retraction_email
  , xmd.retract_email_subject
  , xmd.retract_email_body
  , xmd.start_datetime create_datetime
  , xmd.published_datetime
  , xmd.retracted_datetime
  , xmd.version
  , ri.mr_id IS NOT NULL is_to_importers
  , re.mr_id IS NOT NULL is_to_exporters
FROM mailshotmgr.mailshots m
JOIN mailshotmgr.xview_mailshot_details xmd ON xmd.m_id = m.id
LEFT JOIN mailshotmgr.xview_mailshot_selected_rcpts ri ON ri.m_id = xmd.m_id AND ri.mr_id = 1
LEFT JOIN mailshotmgr.xview_mailshot_selected_rcpts re ON re.m_id = xmd.m_id AND re.mr_id = 2
WHERE xmd.status_control = 'C'
ORDER BY m.id`

const accessRequests = `SELECT
  iar.id iar_id
  , CASE
    WHEN iar.request_type IN ('MAIN_IMPORTER_ACCESS', 'AGENT_IMPORTER_ACCESS')
    THEN 'ImporterAccessRequest'
    ELSE 'ExporterAccessRequest'
  END process_type
  , iar.status <> 'DELETED' is_active
  , iar.requested_datetime created
  , iar.request_reference reference
  , iar.status
  , iar.request_type
  , iar.requested_datetime submit_datetime
  , iar.last_updated_datetime last_update_datetime
  , iar.closed_datetime
  , COALESCE(x.i_org_name, x.e_org_name) organisation_name
  , COALESCE(x.i_org_address, x.e_org_address) organisation_address
  , x.request_reason
  , x.agent_name
  , x.agent_address
  , x.response
  , x.response_reason
  , x.importer_id
  , x.exporter_id
  , x.fir_xml
  , x.approval_xml
FROM impmgr.importer_access_requests iar
CROSS JOIN XMLTABLE('/IMPORTER_ACCESS_REQUEST' PASSING iar.xml_data COLUMNS
  i_org_name text PATH 'NEW_REQUEST/IMPORTER/NAME'
  , i_org_address text PATH 'NEW_REQUEST/IMPORTER/ADDRESS'
  , e_org_name text PATH 'NEW_REQUEST/EXPORTER/NAME'
  , e_org_address text PATH 'NEW_REQUEST/EXPORTER/ADDRESS'
  , request_reason text PATH 'NEW_REQUEST/IMPORTER/REASON_FOR_REQUEST'
  , agent_name text PATH 'NEW_REQUEST/AGENT/NAME'
  , agent_address text PATH 'NEW_REQUEST/AGENT/ADDRESS'
  , response text PATH 'CLOSE_REQUEST/RESPONSE'
  , response_reason text PATH 'CLOSE_REQUEST/RESPONSE_REASON'
  , importer_id integer PATH 'NEW_REQUEST/IMPORTER/LINK/IMP_ID'
  , exporter_id integer PATH 'NEW_REQUEST/EXPORTER/LINK/E_ID'
  , fir_xml xml PATH 'RFIS/RFI_LIST'
  , approval_xml xml PATH 'REQUEST_APPROVAL'
) x
WHERE iar.status_control = 'C'
ORDER BY iar.id`
