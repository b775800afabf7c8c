package format

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/source"
)

func TestNormalizeLegacyTime(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "summer time is one hour ahead",
			in:   time.Date(2022, 7, 25, 11, 5, 59, 0, time.UTC),
			want: time.Date(2022, 7, 25, 10, 5, 59, 0, time.UTC),
		},
		{
			name: "winter time equals utc",
			in:   time.Date(2022, 1, 10, 9, 0, 0, 0, time.UTC),
			want: time.Date(2022, 1, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLegacyTime(tt.in)
			assert.True(t, tt.want.Equal(got.(time.Time)), "got %v", got)
		})
	}

	assert.Equal(t, "x", NormalizeLegacyTime("x"))
	assert.Nil(t, NormalizeLegacyTime(nil))
}

func TestYesNo(t *testing.T) {
	tests := map[string]struct {
		want string
		ok   bool
	}{
		"Y":     {"yes", true},
		"true":  {"yes", true},
		"n":     {"no", true},
		"FALSE": {"no", true},
		"N/A":   {"n/a", true},
		"na":    {"n/a", true},
		"maybe": {"", false},
		"":      {"", false},
	}

	for in, tt := range tests {
		got, ok := YesNo(in)
		assert.Equal(t, tt.ok, ok, in)
		assert.Equal(t, tt.want, got, in)
	}
}

func TestStrToBool(t *testing.T) {
	v, ok := StrToBool("Y")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = StrToBool("false")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = StrToBool("n/a")
	assert.False(t, ok)
}

func TestFlagToBool(t *testing.T) {
	assert.Equal(t, true, FlagToBool("true"))
	assert.Equal(t, false, FlagToBool("false"))
	assert.Equal(t, "TRUE", FlagToBool("TRUE"))
	assert.Equal(t, 1, FlagToBool(1))
}

func TestDateOrNil(t *testing.T) {
	want := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"14/10/24", "14/10/2024", "14-10-2024", "14-10-24",
		"2024-10-14", "14 October 2024", "14.10.24", "14.10.2024",
	} {
		got, err := DateOrNil(in)
		require.NoError(t, err, in)
		require.NotNil(t, got, in)
		assert.True(t, want.Equal(*got), "%s parsed as %v", in, got)
	}

	got, err := DateOrNil("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = DateOrNil("14-10-2024-01")
	assert.Error(t, err)
}

func TestDateTimeOrNil(t *testing.T) {
	got, err := DateTimeOrNil("2022-07-25T11:05:59")
	require.NoError(t, err)
	assert.True(t, time.Date(2022, 7, 25, 10, 5, 59, 0, time.UTC).Equal(*got))

	got, err = DateTimeOrNil("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = DateTimeOrNil("25/07/2022")
	assert.Error(t, err)
}

func TestIntAndFloatOrNil(t *testing.T) {
	n, err := IntOrNil("3.0")
	require.NoError(t, err)
	assert.Equal(t, int64(3), *n)

	n, err = IntOrNil("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), *n)

	n, err = IntOrNil("")
	assert.NoError(t, err)
	assert.Nil(t, n)

	_, err = IntOrNil("abc")
	assert.Error(t, err)

	f, err := FloatOrNil("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, *f)

	f, err = FloatOrNil("nan")
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestValidateDecimal(t *testing.T) {
	rec := map[string]any{
		"ok":        "1234567.89",
		"too_long":  "12345678.9",
		"too_many":  "1.234",
		"not_num":   "abc",
		"nil_value": nil,
		"float":     12.5,
	}

	ValidateDecimal(rec, []string{"ok", "too_long", "too_many", "not_num", "nil_value", "float"}, 9, 2)

	assert.Contains(t, rec, "ok")
	assert.Contains(t, rec, "float")
	assert.Contains(t, rec, "nil_value")
	assert.NotContains(t, rec, "too_long")
	assert.NotContains(t, rec, "too_many")
	assert.NotContains(t, rec, "not_num")
}

func TestValidateDecimalReadsDatabaseNumerics(t *testing.T) {
	rec := map[string]any{
		"numeric":      pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true},
		"numeric_wide": pgtype.Numeric{Int: big.NewInt(123456789), Exp: 0, Valid: true},
		"numeric_nan":  pgtype.Numeric{NaN: true, Valid: true},
		"small":        "0.05",
		"tiny":         "0.005",
		"float32":      float32(3.25),
		"uint":         uint16(42),
		"trailing":     "1.230",
	}

	ValidateDecimal(rec, []string{"numeric", "numeric_wide", "numeric_nan", "small", "tiny", "float32", "uint", "trailing"}, 9, 2)

	assert.Contains(t, rec, "numeric")
	assert.Contains(t, rec, "small")
	assert.Contains(t, rec, "float32")
	assert.Contains(t, rec, "uint")
	assert.NotContains(t, rec, "numeric_wide")
	assert.NotContains(t, rec, "numeric_nan")
	assert.NotContains(t, rec, "tiny")
	assert.NotContains(t, rec, "trailing")
}

func TestFormatRecordKeepsNumericDecimals(t *testing.T) {
	qty := pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}
	row := source.RowOf("id", int64(1), "goods_qty", qty)

	rec, err := FormatRecord(row, schema.EntityMapping{
		Decimals: []schema.Decimal{{Name: "goods_qty", MaxDigits: 9, Places: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, qty, rec["goods_qty"])
}

func TestValidateInt(t *testing.T) {
	whole := pgtype.Numeric{Int: big.NewInt(4), Exp: 0, Valid: true}
	rec := map[string]any{
		"a": "12", "b": "1.5", "c": int64(3), "d": nil, "e": uint32(9), "f": whole,
		"g": pgtype.Numeric{Int: big.NewInt(45), Exp: -1, Valid: true},
	}

	ValidateInt(rec, []string{"a", "b", "c", "d", "e", "f", "g"})

	assert.Equal(t, map[string]any{"a": "12", "c": int64(3), "d": nil, "e": uint32(9), "f": whole}, rec)
}

func TestSplitAddress(t *testing.T) {
	got := SplitAddress("123 Test\n Test Town \n\nTest City\nL5\nL6\nL7", "address_", 5)

	assert.Equal(t, map[string]string{
		"address_1": "123 Test",
		"address_2": "Test Town",
		"address_4": "Test City",
		"address_5": "L5",
	}, got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList("a;;b;", ";"))
	assert.Nil(t, SplitList(";", ";"))
}

func TestFormatLegacyRow(t *testing.T) {
	created := time.Date(2022, 7, 25, 11, 0, 0, 0, time.UTC)
	row := source.NewRow([]string{"IMA_ID", "STATUS", "CREATED", "IGNORED"}, []any{int64(9), "SUBMITTED", created, "x"})
	key := int64(101)

	rec := FormatLegacyRow(row, []string{"id", "ima_id", "status", "created"}, &key)

	assert.Equal(t, Record{
		"id":      int64(101),
		"ima_id":  int64(9),
		"status":  "SUBMITTED",
		"created": time.Date(2022, 7, 25, 10, 0, 0, 0, time.UTC),
	}, rec)

	// a level without a key column does not receive the shared key
	rec = FormatLegacyRow(row, []string{"ima_id"}, &key)
	assert.Equal(t, Record{"ima_id": int64(9)}, rec)
}

func TestFormatRecord(t *testing.T) {
	row := source.RowOf(
		"id", int64(5),
		"status", "ACTIVE",
		"importer__id", int64(3),
		"is_dealer_flag", "true",
		"proofing", "N",
		"manufacture", "y",
		"value", "1.234",
		"quantity", "7",
		"comment", nil,
		"legacy_id", "L1",
		"commodities_xml", "<COMMODITY_LIST/>",
	)

	m := schema.EntityMapping{
		Exclude:        []string{"legacy_id"},
		StatusToActive: true,
		YesNo:          []string{"proofing"},
		Bools:          []string{"manufacture"},
		Decimals:       []schema.Decimal{{Name: "value", MaxDigits: 9, Places: 2}},
		Ints:           []string{"quantity"},
		EmptyString:    []string{"comment"},
		Rename:         map[string]string{"id": "process_ptr_id"},
		Computed: []schema.Computed{{Name: "has_importer", Fn: func(r map[string]any) any {
			return r["importer_id"] != nil
		}}},
	}

	rec, err := FormatRecord(row, m)
	require.NoError(t, err)

	assert.Equal(t, Record{
		"process_ptr_id": int64(5),
		"is_active":      true,
		"importer_id":    int64(3),
		"is_dealer_flag": true,
		"proofing":       "no",
		"manufacture":    true,
		"quantity":       "7",
		"comment":        "",
		"has_importer":   true,
	}, rec)
}

func TestFormatRecordInactiveStatus(t *testing.T) {
	rec, err := FormatRecord(source.RowOf("status", "ARCHIVED"), schema.EntityMapping{StatusToActive: true})
	require.NoError(t, err)
	assert.Equal(t, Record{"is_active": false}, rec)

	rec, err = FormatRecord(source.RowOf("status", "ARCHIVED"), schema.EntityMapping{})
	require.NoError(t, err)
	assert.Equal(t, Record{"status": "ARCHIVED"}, rec)
}
