package xmlparser

import (
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/ridoystarlord/casemigrate/format"
)

var phoneTypes = map[string]string{
	"F": "FAX",
	"H": "HOME",
	"M": "MOBILE",
	"W": "WORK",
}

var emailTypes = map[string]string{
	"H": "HOME",
	"W": "WORK",
}

// User lists the user domain parsers.
func User() []Parser {
	return []Parser{
		PhoneNumber(),
		Email("personal_email", "personal_email_xml", "/PERSONAL_EMAIL_LIST/PERSONAL_EMAIL", "dm_personal_email"),
		Email("alternative_email", "alternative_email_xml", "/DISTRIBUTION_EMAIL_LIST/DISTRIBUTION_EMAIL", "dm_alternative_email"),
		ApprovalRequest(),
		FIR("access_fir", "dm_access_request", "access_request_id"),
	}
}

func PhoneNumber() Parser {
	return Parser{
		Name:    "phone_number",
		Parent:  "dm_user",
		Field:   "telephone_xml",
		Root:    "/TELEPHONE_NO_LIST/TELEPHONE_NO",
		Targets: []string{"dm_phone_number"},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			code := value(el, "./TYPE")
			phoneType, ok := phoneTypes[code]
			if !ok {
				return fmt.Errorf("unknown phone type %q", code)
			}
			b.Add("dm_phone_number", format.Record{
				"user_id": in.Key,
				"phone":   textOrNil(value(el, "./TELEPHONE_HASH_CODE")),
				"type":    phoneType,
				"comment": textOrNil(value(el, "./COMMENT")),
			})
			return nil
		},
	}
}

// Email reads a user email list. Entries without an address are skipped.
func Email(name, field, root, table string) Parser {
	return Parser{
		Name:    name,
		Parent:  "dm_user",
		Field:   field,
		Root:    root,
		Targets: []string{table},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			email := value(el, "./EMAIL_ADDRESS")
			if email == "" {
				return nil
			}
			code := value(el, "./TYPE")
			emailType, ok := emailTypes[code]
			if !ok {
				return fmt.Errorf("unknown email type %q", code)
			}
			portal := value(el, "./PORTAL_NOTIFICATIONS")
			b.Add(table, format.Record{
				"user_id":              in.Key,
				"email":                email,
				"comment":              textOrNil(value(el, "./COMMENT")),
				"type":                 emailType,
				"portal_notifications": portal == "Primary" || portal == "Yes",
				"is_primary":           portal == "Primary",
			})
			return nil
		},
	}
}

// ApprovalRequest reads the approval request of an access request. Each one
// is a process; importer approvals are told apart by an importer id.
func ApprovalRequest() Parser {
	return Parser{
		Name:    "approval_request",
		Parent:  "dm_access_request",
		Field:   "approval_xml",
		Root:    "/REQUEST_APPROVAL",
		Targets: []string{ProcessTable, "dm_approval_request"},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			requested := dateTime(value(el, "./REQUEST_DATE"))
			if requested == nil {
				return nil
			}
			status := value(el, "./STATUS")
			processType := "ExporterApprovalRequest"
			if value(el, "./IMPORTER_ID") != "" {
				processType = "ImporterApprovalRequest"
			}

			key, err := addProcess(b, processType, status != "DELETED", requested)
			if err != nil {
				return err
			}
			b.Add("dm_approval_request", format.Record{
				"id":                key,
				"access_request_id": in.Key,
				"status":            textOrNil(status),
				"request_date":      requested,
				"requested_by_id":   intValue(value(el, "./REQUEST_CREATED_BY_WUA_ID")),
				"requested_from_id": intValue(value(el, "./CONTACT_WUA_ID")),
				"response":          textOrNil(value(el, "./RESPONSE")),
				"response_by_id":    intValue(value(el, "./RESPONDED_BY_WUA_ID")),
				"response_date":     dateTime(value(el, "./RESPONSE_DATE")),
				"response_reason":   textOrNil(value(el, "./RESPONSE_REASON")),
			})
			return nil
		},
	}
}
