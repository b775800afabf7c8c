package xmlparser

import (
	"context"
	"errors"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/source"
)

type counterKeys struct{ next int64 }

func (c *counterKeys) NextChainKey(context.Context) (int64, error) {
	c.next++
	return c.next, nil
}

func parseOne(t *testing.T, p Parser, in Input) *Batch {
	t.Helper()
	b := NewBatch(context.Background(), &counterKeys{next: 100})
	require.NoError(t, p.Parse(b, in))
	return b
}

func TestFind(t *testing.T) {
	doc, err := Parse(`<A><B><C>1</C><C>2</C></B><D><E><C>3</C></E></D></A>`)
	require.NoError(t, err)
	root := xmlquery.FindOne(doc, "/A")
	require.NotNil(t, root)

	assert.Len(t, xmlquery.Find(doc, "/A/B/C"), 2)
	assert.Len(t, xmlquery.Find(root, ".//C"), 3)
	assert.Equal(t, "1", value(root, "./B/C/text()"))
	assert.Equal(t, "", value(root, "./MISSING"))
	assert.Equal(t, "", value(nil, "./B"))
	assert.Nil(t, xmlquery.FindOne(doc, "/A/X"))
	assert.Equal(t, "<B><C>1</C><C>2</C></B>", xmlquery.FindOne(root, "B").OutputXML(true))
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	for _, doc := range []string{"<A><B></A>", "", "<A/><B/>"} {
		_, err := Parse(doc)
		assert.Error(t, err, doc)
	}
}

func TestCleanValueSkipsFlaggedElements(t *testing.T) {
	doc, err := Parse(`<R><X><MODE>bad<fox-error>x</fox-error></MODE></X><MODE>AIR</MODE></R>`)
	require.NoError(t, err)
	assert.Equal(t, "AIR", cleanValue(doc, "MODE"))
}

func TestReportFirearmUploadAndNothingReported(t *testing.T) {
	doc := `<GOODS_LINE_LIST>
  <GOODS_LINE>
    <FA_REPORTING_MODE>UPLOAD</FA_REPORTING_MODE>
    <FILE_UPLOAD_LIST><FILE_UPLOAD><FILE_CONTENT><file-id>abcdefg</file-id></FILE_CONTENT></FILE_UPLOAD></FILE_UPLOAD_LIST>
  </GOODS_LINE>
  <GOODS_LINE>
    <FA_REPORTING_MODE/>
  </GOODS_LINE>
</GOODS_LINE_LIST>`

	b := parseOne(t, ReportFirearm("dfl"), Input{Key: 7, Document: doc})

	recs := b.Records("dm_dfl_supplementary_report_firearm")
	require.Len(t, recs, 2)

	assert.Equal(t, format.Record{
		"report_id":                   int64(7),
		"is_upload":                   true,
		"file_id":                     "abcdefg",
		"goods_certificate_legacy_id": 1,
	}, recs[0])
	assert.Equal(t, format.Record{
		"report_id":                   int64(7),
		"is_no_firearm":               true,
		"goods_certificate_legacy_id": 2,
	}, recs[1])
}

func TestReportFirearmManual(t *testing.T) {
	doc := `<GOODS_LINE_LIST><GOODS_LINE>
  <FA_REPORTING_MODE>MANUAL</FA_REPORTING_MODE>
  <FIREARMS_DETAILS_LIST>
    <FIREARMS_DETAILS><SERIAL_NUMBER>S1</SERIAL_NUMBER><CALIBRE>.22</CALIBRE><MAKE_MODEL>M</MAKE_MODEL><PROOFING>Y</PROOFING></FIREARMS_DETAILS>
    <FIREARMS_DETAILS><SERIAL_NUMBER>S2</SERIAL_NUMBER><PROOFING>N</PROOFING></FIREARMS_DETAILS>
  </FIREARMS_DETAILS_LIST>
</GOODS_LINE></GOODS_LINE_LIST>`

	b := parseOne(t, ReportFirearm("oil"), Input{Key: 3, Document: doc})

	recs := b.Records("dm_oil_supplementary_report_firearm")
	require.Len(t, recs, 2)
	assert.Equal(t, "S1", recs[0]["serial_number"])
	assert.Equal(t, "yes", recs[0]["proofing"])
	assert.Equal(t, true, recs[0]["is_manual"])
	assert.Equal(t, "no", recs[1]["proofing"])
	assert.Nil(t, recs[1]["calibre"])
	assert.Equal(t, 1, recs[1]["goods_certificate_legacy_id"])
}

func TestSILOrdinalsMatchAcrossDocuments(t *testing.T) {
	goods := `<COMMODITY_LIST>
  <COMMODITY><SECTION>SEC1</SECTION><COMMODITY_DESC>rifle</COMMODITY_DESC><QUANTITY>2</QUANTITY></COMMODITY>
  <COMMODITY><SECTION/></COMMODITY>
  <COMMODITY><SECTION>SEC5</SECTION><COMMODITY_DESC>pistol</COMMODITY_DESC><QUANTITY_UNLIMITED_FLAG>true</QUANTITY_UNLIMITED_FLAG></COMMODITY>
</COMMODITY_LIST>`

	b := parseOne(t, SILGoods(), Input{Key: 11, Document: goods})

	sections := b.Records("dm_sil_section")
	require.Len(t, sections, 2)
	assert.Equal(t, "SEC5", sections[1]["section"])
	assert.Equal(t, 3, sections[1]["legacy_ordinal"])

	sec5 := b.Records("dm_sil_goods_section5")
	require.Len(t, sec5, 1)
	assert.Equal(t, "pistol", sec5[0]["description"])
	assert.Equal(t, 3, sec5[0]["legacy_ordinal"])
	assert.Equal(t, true, sec5[0]["unlimited_quantity"])
	assert.Equal(t, int64(2), b.Records("dm_sil_goods_section1")[0]["quantity"])

	report := `<GOODS_LINE_LIST>
  <GOODS_LINE><FA_REPORTING_MODE>UPLOAD</FA_REPORTING_MODE></GOODS_LINE>
  <GOODS_LINE><FA_REPORTING_MODE/></GOODS_LINE>
  <GOODS_LINE><FA_REPORTING_MODE>MANUAL</FA_REPORTING_MODE>
    <FIREARMS_DETAILS><SERIAL_NUMBER>P1</SERIAL_NUMBER></FIREARMS_DETAILS>
  </GOODS_LINE>
</GOODS_LINE_LIST>`

	row := source.RowOf(
		"report_id", int64(40),
		"report_firearms_xml", report,
		"section", sections[1]["section"],
		"legacy_ordinal", int64(sections[1]["legacy_ordinal"].(int)),
	)
	p := SILReportFirearm()
	in, ok := p.InputOf(row)
	require.True(t, ok)

	rb := parseOne(t, p, in)
	recs := rb.Records("dm_sil_supplementary_report_firearm_section5")
	require.Len(t, recs, 1)
	assert.Equal(t, "P1", recs[0]["serial_number"])
	assert.Equal(t, int64(40), recs[0]["report_id"])
	assert.Equal(t, 3, recs[0]["goods_certificate_legacy_id"])
}

func TestSILReportFirearmOrdinalOutOfRange(t *testing.T) {
	row := source.RowOf(
		"report_id", int64(1),
		"report_firearms_xml", "<GOODS_LINE_LIST><GOODS_LINE/></GOODS_LINE_LIST>",
		"section", "SEC1",
		"legacy_ordinal", int64(4),
	)
	p := SILReportFirearm()
	in, ok := p.InputOf(row)
	require.True(t, ok)

	err := p.Parse(NewBatch(context.Background(), nil), in)
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestDFLGoodsCertificateZipsByOrdinal(t *testing.T) {
	doc := `<FA_GOODS_CERTS>
  <FIREARMS_CERTIFICATE_LIST>
    <FIREARMS_CERTIFICATE><TARGET_ID>5</TARGET_ID><CERTIFICATE_REF>REF1</CERTIFICATE_REF><ISSUING_COUNTRY>9</ISSUING_COUNTRY></FIREARMS_CERTIFICATE>
    <FIREARMS_CERTIFICATE><TARGET_ID>6</TARGET_ID><CERTIFICATE_REF>REF2</CERTIFICATE_REF></FIREARMS_CERTIFICATE>
  </FIREARMS_CERTIFICATE_LIST>
  <COMMODITY_LIST>
    <COMMODITY><COMMODITY_DESC>first</COMMODITY_DESC></COMMODITY>
    <COMMODITY><COMMODITY_DESC>second</COMMODITY_DESC></COMMODITY>
  </COMMODITY_LIST>
</FA_GOODS_CERTS>`

	b := parseOne(t, DFLGoodsCertificate(), Input{Key: 2, Document: doc})

	recs := b.Records("dm_dfl_goods_certificate")
	require.Len(t, recs, 2)
	assert.Equal(t, "REF2", recs[1]["deactivated_certificate_reference"])
	assert.Equal(t, "second", recs[1]["goods_description"])
	assert.Equal(t, 2, recs[1]["legacy_ordinal"])
	assert.Equal(t, int64(9), recs[0]["issuing_country_id"])
}

func TestFIRAllocatesProcessKeysInReverseOrder(t *testing.T) {
	doc := `<RFI_LIST>
  <RFI><STATUS>OPEN</STATUS><REQUEST><REQUESTED_DATETIME>2022-03-02T10:00:00</REQUESTED_DATETIME><SUBJECT>newest</SUBJECT></REQUEST></RFI>
  <RFI><STATUS>DELETED</STATUS><REQUEST><SUBJECT>no date</SUBJECT></REQUEST></RFI>
  <RFI><STATUS>DELETED</STATUS><REQUEST><REQUESTED_DATETIME>2022-01-02T10:00:00</REQUESTED_DATETIME><SUBJECT>oldest</SUBJECT></REQUEST></RFI>
</RFI_LIST>`

	b := parseOne(t, FIR("import_fir", "dm_import_application", "import_application_id"), Input{Key: 8, Document: doc})

	assert.Equal(t, []string{ProcessTable, "dm_further_information_request"}, b.Tables())

	processes := b.Records(ProcessTable)
	require.Len(t, processes, 2)
	assert.Equal(t, int64(101), processes[0]["id"])
	assert.Equal(t, false, processes[0]["is_active"])
	assert.Equal(t, "FurtherInformationRequest", processes[0]["process_type"])

	firs := b.Records("dm_further_information_request")
	require.Len(t, firs, 2)
	assert.Equal(t, "oldest", firs[0]["request_subject"])
	assert.Equal(t, int64(101), firs[0]["id"])
	assert.Equal(t, "newest", firs[1]["request_subject"])
	assert.Equal(t, int64(102), firs[1]["id"])
	assert.Equal(t, int64(8), firs[1]["import_application_id"])
}

func TestFIRWithoutKeySource(t *testing.T) {
	doc := `<RFI_LIST><RFI><REQUEST><REQUESTED_DATETIME>2022-03-02T10:00:00</REQUESTED_DATETIME></REQUEST></RFI></RFI_LIST>`
	err := FIR("export_fir", "dm_export_application", "export_application_id").
		Parse(NewBatch(context.Background(), nil), Input{Key: 1, Document: doc})
	assert.ErrorIs(t, err, errNoKeySource)
}

func TestUserParsers(t *testing.T) {
	phones := `<TELEPHONE_NO_LIST><TELEPHONE_NO><TELEPHONE_HASH_CODE>0123</TELEPHONE_HASH_CODE><TYPE>M</TYPE></TELEPHONE_NO></TELEPHONE_NO_LIST>`
	b := parseOne(t, PhoneNumber(), Input{Key: 4, Document: phones})
	assert.Equal(t, "MOBILE", b.Records("dm_phone_number")[0]["type"])

	emails := `<PERSONAL_EMAIL_LIST>
  <PERSONAL_EMAIL><EMAIL_ADDRESS>a@example.com</EMAIL_ADDRESS><TYPE>W</TYPE><PORTAL_NOTIFICATIONS>Primary</PORTAL_NOTIFICATIONS></PERSONAL_EMAIL>
  <PERSONAL_EMAIL><EMAIL_ADDRESS>b@example.com</EMAIL_ADDRESS><TYPE>H</TYPE><PORTAL_NOTIFICATIONS>Yes</PORTAL_NOTIFICATIONS></PERSONAL_EMAIL>
  <PERSONAL_EMAIL><TYPE>H</TYPE></PERSONAL_EMAIL>
</PERSONAL_EMAIL_LIST>`
	p := User()[1]
	b = parseOne(t, p, Input{Key: 4, Document: emails})
	recs := b.Records("dm_personal_email")
	require.Len(t, recs, 2)
	assert.Equal(t, true, recs[0]["is_primary"])
	assert.Equal(t, true, recs[1]["portal_notifications"])
	assert.Equal(t, false, recs[1]["is_primary"])

	bad := `<TELEPHONE_NO_LIST><TELEPHONE_NO><TYPE>X</TYPE></TELEPHONE_NO></TELEPHONE_NO_LIST>`
	err := PhoneNumber().Parse(NewBatch(context.Background(), nil), Input{Key: 4, Document: bad})
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestImportContactAndLegislation(t *testing.T) {
	doc := `<SELLER_HOLDER_LIST><SELLER_HOLDER>
  <PERSON_DETAILS><PERSON_TYPE>LEGAL_PERSON</PERSON_TYPE><LEGAL_PERSON_NAME>Acme</LEGAL_PERSON_NAME></PERSON_DETAILS>
  <ADDRESS><TOWN_CITY>Leeds</TOWN_CITY><COUNTRY>1</COUNTRY></ADDRESS>
  <IS_DEALER_FLAG>N</IS_DEALER_FLAG>
</SELLER_HOLDER></SELLER_HOLDER_LIST>`
	b := parseOne(t, ImportContact("dm_dfl_application"), Input{Key: 5, Document: doc})
	rec := b.Records("dm_import_contact")[0]
	assert.Equal(t, "legal", rec["entity"])
	assert.Equal(t, "Acme", rec["first_name"])
	assert.Equal(t, "no", rec["dealer"])
	assert.Equal(t, int64(1), rec["country_id"])

	leg := `<LEGISLATION_LIST><LEGISLATION>12</LEGISLATION><LEGISLATION/><LEGISLATION>x</LEGISLATION></LEGISLATION_LIST>`
	b = parseOne(t, CFSLegislation(), Input{Key: 6, Document: leg})
	assert.Equal(t, []format.Record{{"cfsschedule_id": int64(6), "productlegislation_id": int64(12)}},
		b.Records("dm_cfs_legislation"))
}

func TestParseWrapsMalformedXML(t *testing.T) {
	err := PhoneNumber().Parse(NewBatch(context.Background(), nil), Input{Key: 9, Document: "<TELEPHONE_NO_LIST>"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDocument))
	assert.Contains(t, err.Error(), "phone_number key 9")
}

func TestInputOfSkipsEmptyDocuments(t *testing.T) {
	p := PhoneNumber()
	_, ok := p.InputOf(source.RowOf("id", int64(1), "telephone_xml", nil))
	assert.False(t, ok)

	in, ok := p.InputOf(source.RowOf("id", int64(1), "telephone_xml", "<A/>"))
	assert.True(t, ok)
	assert.Equal(t, int64(1), in.Key)
}

func TestBatchMerge(t *testing.T) {
	a := NewBatch(context.Background(), nil)
	a.Add("x", format.Record{"n": 1})
	b := NewBatch(context.Background(), nil)
	b.Add("y", format.Record{"n": 2})
	b.Add("x", format.Record{"n": 3})

	a.Merge(b)
	assert.Equal(t, []string{"x", "y"}, a.Tables())
	assert.Equal(t, 3, a.Len())

	a.Reset()
	assert.Equal(t, 0, a.Len())
}
