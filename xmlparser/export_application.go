package xmlparser

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/ridoystarlord/casemigrate/format"
)

// ExportApplication lists the export application parsers.
func ExportApplication() []Parser {
	return []Parser{
		CFSLegislation(),
		FIR("export_fir", "dm_export_application", "export_application_id"),
	}
}

// CFSLegislation links a CFS schedule to the legislation ids it lists.
func CFSLegislation() Parser {
	return Parser{
		Name:    "cfs_legislation",
		Parent:  "dm_cfs_schedule",
		Field:   "legislation_xml",
		Root:    "/LEGISLATION_LIST/LEGISLATION",
		Targets: []string{"dm_cfs_legislation"},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			legislation, err := format.IntOrNil(strings.TrimSpace(el.InnerText()))
			if err != nil || legislation == nil || *legislation == 0 {
				return nil
			}
			b.Add("dm_cfs_legislation", format.Record{
				"cfsschedule_id":        in.Key,
				"productlegislation_id": *legislation,
			})
			return nil
		},
	}
}
