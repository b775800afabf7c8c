package xmlparser

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/source"
)

// ImportApplication lists the import application parsers in load order.
// Supplementary reports must run before the report firearm parsers that
// read the goods-line XML they keep.
func ImportApplication() []Parser {
	return []Parser{
		ImportContact("dm_sil_application"),
		ImportContact("dm_oil_application"),
		ImportContact("dm_dfl_application"),
		SILGoods(),
		DFLGoodsCertificate(),
		FirearmAuthority("dm_oil_application", "dm_oil_application_firearm_authority", "openindividuallicenceapplication_id"),
		FirearmAuthority("dm_sil_application", "dm_sil_application_firearm_authority", "silapplication_id"),
		SupplementaryReport("dfl"),
		SupplementaryReport("oil"),
		SupplementaryReport("sil"),
		ReportFirearm("dfl"),
		ReportFirearm("oil"),
		SILReportFirearm(),
		FIR("import_fir", "dm_import_application", "import_application_id"),
	}
}

// ImportContact reads seller and holder details of firearms applications.
func ImportContact(parent string) Parser {
	return Parser{
		Name:    "import_contact_" + strings.TrimPrefix(parent, "dm_"),
		Parent:  parent,
		Field:   "bought_from_details_xml",
		Root:    "/SELLER_HOLDER_LIST/SELLER_HOLDER",
		Targets: []string{"dm_import_contact"},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			entity := strings.TrimSuffix(strings.ToLower(value(el, "./PERSON_DETAILS/PERSON_TYPE")), "_person")
			firstName := value(el, "./PERSON_DETAILS/FIRST_NAME")
			if entity == "legal" {
				firstName = value(el, "./PERSON_DETAILS/LEGAL_PERSON_NAME")
			}

			b.Add("dm_import_contact", format.Record{
				"import_application_id": in.Key,
				"legacy_id":             textOrNil(value(el, "./SELLER_HOLDER_ID")),
				"entity":                entity,
				"first_name":            textOrNil(firstName),
				"last_name":             textOrNil(value(el, "./PERSON_DETAILS/SURNAME")),
				"registration_number":   textOrNil(value(el, "./PERSON_DETAILS/REGISTRATION_NUMBER")),
				"street":                textOrNil(value(el, "./ADDRESS/STREET_AND_NUMBER")),
				"city":                  textOrNil(value(el, "./ADDRESS/TOWN_CITY")),
				"postcode":              textOrNil(value(el, "./ADDRESS/POSTCODE")),
				"region":                textOrNil(value(el, "./ADDRESS/REGION")),
				"dealer":                yesNo(value(el, "./IS_DEALER_FLAG")),
				"country_id":            intValue(value(el, "./ADDRESS/COUNTRY")),
			})
			return nil
		},
	}
}

// silGoodsTables maps a SIL commodity section to its goods table.
var silGoodsTables = map[string]string{
	"SEC1":             "dm_sil_goods_section1",
	"SEC2":             "dm_sil_goods_section2",
	"SEC5":             "dm_sil_goods_section5",
	"OBSOLETE_CALIBRE": "dm_sil_goods_section582_obsolete",
	"OTHER":            "dm_sil_goods_section582_other",
}

// silReportTables maps a SIL commodity section to its report firearm table.
var silReportTables = map[string]string{
	"SEC1":             "dm_sil_supplementary_report_firearm_section1",
	"SEC2":             "dm_sil_supplementary_report_firearm_section2",
	"SEC5":             "dm_sil_supplementary_report_firearm_section5",
	"OBSOLETE_CALIBRE": "dm_sil_supplementary_report_firearm_section582_obsolete",
	"OTHER":            "dm_sil_supplementary_report_firearm_section582_other",
}

// SILGoods splits SIL commodities by section. Each record keeps the
// commodity's position in the list as legacy_ordinal, and a dm_sil_section
// row records which section table that ordinal went to, so report lines can
// find their goods later.
func SILGoods() Parser {
	return Parser{
		Name:    "sil_goods",
		Parent:  "dm_sil_application",
		Field:   "commodities_xml",
		Root:    "/COMMODITY_LIST/COMMODITY",
		Targets: append(tableValues(silGoodsTables), "dm_sil_section"),
		Element: func(b *Batch, in Input, el *xmlquery.Node, ordinal int) error {
			section := value(el, "./SECTION")
			if section == "" {
				return nil
			}
			table, ok := silGoodsTables[section]
			if !ok {
				return fmt.Errorf("unknown SIL section %q", section)
			}

			rec := format.Record{
				"import_application_id": in.Key,
				"description":           textOrNil(value(el, "./COMMODITY_DESC")),
				"manufacture":           boolOrNil(value(el, "./MANUFACTURED_BEFORE_1900")),
				"quantity":              intValue(value(el, "./QUANTITY")),
				"legacy_ordinal":        ordinal,
			}

			switch section {
			case "SEC5":
				rec["subsection"] = textOrNil(value(el, "./SECTION_5_CLAUSE"))
				unlimited, _ := format.StrToBool(value(el, "./QUANTITY_UNLIMITED_FLAG"))
				rec["unlimited_quantity"] = unlimited
			case "OBSOLETE_CALIBRE":
				rec["acknowledgement"] = boolOrNil(value(el, "./CURIOSITY_STATEMENT_AGREED"))
				rec["centrefire"] = boolOrNil(value(el, "./BREECH_LOADING_CENTREFIRE"))
				rec["curiosity_ornament"] = boolOrNil(value(el, "./CURIOSITY_OR_ORNAMENT"))
				rec["manufacture"] = boolOrNil(value(el, "./MANUFACTURED_AFTER_1899_BEFORE_1939"))
				rec["obsolete_calibre_id"] = intValue(value(el, "./OBSOLETE_CALIBRE/OC_ID"))
				rec["original_chambering"] = boolOrNil(value(el, "./ORIGINAL_CHAMBERING"))
			case "OTHER":
				rec["acknowledgement"] = boolOrNil(value(el, "./CURIOSITY_STATEMENT_AGREED"))
				rec["bore"] = boolOrNil(value(el, "./SHOTGUN_PUNTGUN_RIFLE_OVER_10_BORE"))
				rec["bore_details"] = value(el, "./SHOTGUN_PUNTGUN_RIFLE_OVER_10_BORE_SPECIFIED")
				rec["chamber"] = boolOrNil(value(el, "./SHOTGUN_PUNTGUN_RIFLE_LISTED_CARTRIDGES"))
				rec["curiosity_ornament"] = boolOrNil(value(el, "./CURIOSITY_OR_ORNAMENT"))
				rec["ignition"] = boolOrNil(value(el, "./OTHER_IGNITION_SYSTEM"))
				rec["ignition_details"] = value(el, "./OTHER_IGNITION_SYSTEM_SPECIFIED")
				rec["ignition_other"] = value(el, "./OTHER_IGNITION_SYSTEM_SPECIFIED_OTHER")
				rec["manufacture"] = boolOrNil(value(el, "./MANUFACTURED_AFTER_1899_BEFORE_1939"))
				rec["muzzle_loading"] = boolOrNil(value(el, "./MUZZLE_LOADING"))
				rec["rimfire"] = boolOrNil(value(el, "./OTHER_BREECH_RIMFIRE_CARTRIDGE"))
				rec["rimfire_details"] = value(el, "./OTHER_BREECH_RIMFIRE_CARTRIDGE_SPECIFIED")
			}

			b.Add(table, rec)
			b.Add("dm_sil_section", format.Record{
				"section":               section,
				"legacy_ordinal":        ordinal,
				"import_application_id": in.Key,
			})
			return nil
		},
	}
}

// DFLGoodsCertificate pairs the n-th certificate with the n-th commodity.
// The two lists live side by side under the document root and carry no
// shared identifier.
func DFLGoodsCertificate() Parser {
	return Parser{
		Name:    "dfl_goods_certificate",
		Parent:  "dm_dfl_application",
		Field:   "fa_goods_certs_xml",
		Targets: []string{"dm_dfl_goods_certificate"},
		Document: func(b *Batch, in Input, doc *xmlquery.Node) error {
			certs := xmlquery.Find(doc, "/*/FIREARMS_CERTIFICATE_LIST/FIREARMS_CERTIFICATE")
			commodities := xmlquery.Find(doc, "/*/COMMODITY_LIST/COMMODITY")

			for i := range min(len(certs), len(commodities)) {
				cert, commodity := certs[i], commodities[i]
				b.Add("dm_dfl_goods_certificate", format.Record{
					"dfl_application_id":                in.Key,
					"target_id":                         intValue(value(cert, "./TARGET_ID")),
					"deactivated_certificate_reference": textOrNil(value(cert, "./CERTIFICATE_REF")),
					"issuing_country_id":                intValue(value(cert, "./ISSUING_COUNTRY")),
					"goods_description":                 textOrNil(value(commodity, "./COMMODITY_DESC")),
					"legacy_ordinal":                    i + 1,
				})
			}
			return nil
		},
	}
}

// FirearmAuthority records the authorities selected on an application.
func FirearmAuthority(parent, table, ownerColumn string) Parser {
	return Parser{
		Name:    strings.TrimPrefix(table, "dm_"),
		Parent:  parent,
		Field:   "fa_authorities_xml",
		Root:    "/AUTHORITY_LIST/AUTHORITY",
		Targets: []string{table},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			selected, _ := format.StrToBool(value(el, "./SELECTED"))
			authority, err := format.IntOrNil(value(el, "./IA_ID"))
			if !selected || err != nil || authority == nil || *authority == 0 {
				return nil
			}
			b.Add(table, format.Record{
				ownerColumn:            in.Key,
				"firearmsauthority_id": *authority,
			})
			return nil
		},
	}
}

// SupplementaryReport reads the reports of a supplementary info record. The
// goods lines are kept as XML for the report firearm parsers.
func SupplementaryReport(kind string) Parser {
	table := "dm_" + kind + "_supplementary_report"
	return Parser{
		Name:    kind + "_supplementary_report",
		Parent:  "dm_" + kind + "_supplementary_info",
		Field:   "supplementary_report_xml",
		Root:    "/FA_SUPPLEMENTARY_REPORT_LIST/FA_SUPPLEMENTARY_REPORT",
		Targets: []string{table},
		Element: func(b *Batch, in Input, el *xmlquery.Node, _ int) error {
			var goods any
			if g := xmlquery.FindOne(el, ".//GOODS_LINE_LIST"); g != nil {
				goods = g.OutputXML(true)
			}
			b.Add(table, format.Record{
				"supplementary_info_id": in.Key,
				"transport":             textOrNil(cleanValue(el, "MODE_OF_TRANSPORT")),
				"date_received":         date(cleanValue(el, "RECEIVED_DATE")),
				"bought_from_legacy_id": textOrNil(cleanValue(el, "REPORT_SELLER_HOLDER")),
				"report_firearms_xml":   goods,
			})
			return nil
		},
	}
}

// ReportFirearm reads the goods lines of DFL and OIL supplementary reports.
// goods_certificate_legacy_id is the goods line position, matching the
// legacy_ordinal of the goods it reports on.
func ReportFirearm(kind string) Parser {
	table := "dm_" + kind + "_supplementary_report_firearm"
	return Parser{
		Name:    kind + "_report_firearm",
		Parent:  "dm_" + kind + "_supplementary_report",
		Field:   "report_firearms_xml",
		Root:    "/GOODS_LINE_LIST/GOODS_LINE",
		Targets: []string{table},
		Element: func(b *Batch, in Input, el *xmlquery.Node, ordinal int) error {
			addReportLine(b, table, in.Key, el, ordinal)
			return nil
		},
	}
}

// SILReportFirearm reads SIL goods lines. Each input row names a section and
// a goods ordinal recorded by SILGoods; the goods line at that position is
// written to the section's report table.
func SILReportFirearm() Parser {
	return Parser{
		Name: "sil_report_firearm",
		Custom: &source.Query{
			Name: "sil_report_firearm",
			SQL: `SELECT r.id AS report_id, r.report_firearms_xml, s.section, s.legacy_ordinal
FROM dm_sil_section s
JOIN dm_import_application a ON a.id = s.import_application_id
JOIN dm_sil_supplementary_info i ON i.ima_id = a.ima_id
JOIN dm_sil_supplementary_report r ON r.supplementary_info_id = i.id
WHERE r.report_firearms_xml IS NOT NULL
ORDER BY r.id, s.legacy_ordinal`,
			Table: "dm_sil_section",
		},
		KeyColumn: "report_id",
		DocColumn: "report_firearms_xml",
		Targets:   tableValues(silReportTables),
		Document: func(b *Batch, in Input, doc *xmlquery.Node) error {
			section := in.Row.String("section")
			table, ok := silReportTables[section]
			if !ok {
				return fmt.Errorf("unknown SIL section %q", section)
			}
			ordinal, ok := in.Row.Int64("legacy_ordinal")
			if !ok {
				return fmt.Errorf("missing legacy ordinal")
			}

			lines := xmlquery.Find(doc, "/GOODS_LINE_LIST/GOODS_LINE")
			if ordinal < 1 || int(ordinal) > len(lines) {
				return fmt.Errorf("goods ordinal %d outside %d goods lines", ordinal, len(lines))
			}
			addReportLine(b, table, in.Key, lines[ordinal-1], int(ordinal))
			return nil
		},
	}
}

// addReportLine branches on the goods line reporting mode: manual entries
// give one record per firearm, uploads one record per uploaded file, and
// anything else a single no-firearm record.
func addReportLine(b *Batch, table string, reportID int64, line *xmlquery.Node, ordinal int) {
	switch value(line, "./FA_REPORTING_MODE") {
	case "MANUAL":
		for _, fa := range xmlquery.Find(line, ".//FIREARMS_DETAILS") {
			b.Add(table, format.Record{
				"report_id":                   reportID,
				"serial_number":               textOrNil(value(fa, "./SERIAL_NUMBER")),
				"calibre":                     textOrNil(value(fa, "./CALIBRE")),
				"model":                       textOrNil(value(fa, "./MAKE_MODEL")),
				"proofing":                    yesNo(value(fa, "./PROOFING")),
				"is_manual":                   true,
				"goods_certificate_legacy_id": ordinal,
			})
		}
	case "UPLOAD":
		uploads := xmlquery.Find(line, ".//FILE_UPLOAD")
		if len(uploads) == 0 {
			uploads = []*xmlquery.Node{nil}
		}
		for _, up := range uploads {
			b.Add(table, format.Record{
				"report_id":                   reportID,
				"is_upload":                   true,
				"file_id":                     textOrNil(value(up, "./FILE_CONTENT/file-id")),
				"goods_certificate_legacy_id": ordinal,
			})
		}
	default:
		b.Add(table, format.Record{
			"report_id":                   reportID,
			"is_no_firearm":               true,
			"goods_certificate_legacy_id": ordinal,
		})
	}
}

func boolOrNil(s string) any {
	if v, ok := format.StrToBool(s); ok {
		return v
	}
	return nil
}

func tableValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, section := range []string{"SEC1", "SEC2", "SEC5", "OBSOLETE_CALIBRE", "OTHER"} {
		out = append(out, m[section])
	}
	return out
}
