package xmlparser

import (
	"github.com/antchfx/xmlquery"

	"github.com/ridoystarlord/casemigrate/format"
)

// ProcessTable holds the base rows of every process-backed entity.
const ProcessTable = "dm_process"

// addProcess allocates a key in the shared process key space and writes the
// base process row. The returned key becomes the child record's id.
func addProcess(b *Batch, processType string, active bool, created any) (int64, error) {
	key, err := b.NextKey()
	if err != nil {
		return 0, err
	}
	b.Add(ProcessTable, format.Record{
		"id":           key,
		"process_type": processType,
		"is_active":    active,
		"created":      created,
	})
	return key, nil
}

// FIR reads further information requests. Requests are stored newest first,
// so the list is walked in reverse to allocate keys in creation order.
// Requests without a request time are skipped.
func FIR(name, parent, ownerColumn string) Parser {
	return Parser{
		Name:    name,
		Parent:  parent,
		Field:   "fir_xml",
		Root:    "/RFI_LIST/RFI",
		Reverse: true,
		Targets: []string{ProcessTable, "dm_further_information_request"},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			requested := dateTime(value(el, "./REQUEST/REQUESTED_DATETIME"))
			if requested == nil {
				return nil
			}
			status := value(el, "./STATUS")

			key, err := addProcess(b, "FurtherInformationRequest", status != "DELETED", requested)
			if err != nil {
				return err
			}
			b.Add("dm_further_information_request", format.Record{
				"id":                        key,
				ownerColumn:                 in.Key,
				"status":                    textOrNil(status),
				"request_subject":           textOrNil(value(el, "./REQUEST/SUBJECT")),
				"request_detail":            textOrNil(value(el, "./REQUEST/BODY")),
				"requested_by_id":           intValue(value(el, "./REQUEST/REQUESTED_BY_WUA_ID")),
				"requested_datetime":        requested,
				"email_cc_address_list_str": textOrNil(value(el, "./REQUEST/CC_EMAIL_LIST")),
				"response_detail":           textOrNil(value(el, "./RESPONSE/RESPONSE_DETAILS")),
				"response_datetime":         dateTime(value(el, "./RESPONSE/RESPONDED_DATETIME")),
				"response_by_id":            intValue(value(el, "./RESPONSE/RESPONDED_BY_WUA_ID")),
				"closed_datetime":           dateTime(value(el, "./CLOSE/CLOSED_DATETIME")),
				"closed_by_id":              intValue(value(el, "./CLOSE/CLOSED_BY_WUA_ID")),
				"deleted_datetime":          dateTime(value(el, "./DELETE/DELETED_DATETIME")),
				"deleted_by_id":             intValue(value(el, "./DELETE/DELETED_BY_WUA_ID")),
			})
			return nil
		},
	}
}
