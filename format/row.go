package format

import (
	"fmt"
	"strings"

	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/source"
)

// Record is one target-shaped row keyed by column name.
type Record map[string]any

// KeyColumn is the primary key column on staging tables.
const KeyColumn = "id"

// DefaultFlagSuffixes mark columns whose "true"/"false" strings become booleans.
var DefaultFlagSuffixes = []string{"_flag"}

// internalSuffixes mark staging-only columns, such as raw XML payloads,
// that never reach a target table.
var internalSuffixes = []string{"_xml"}

// FormatLegacyRow shapes a legacy row for a staging table. Only columns named
// in fields are kept, or every column when fields is nil. Timestamps move from
// legacy local time to UTC. A non-nil key is written to the key column.
func FormatLegacyRow(row source.Row, fields []string, key *int64) Record {
	var allowed map[string]bool
	if fields != nil {
		allowed = make(map[string]bool, len(fields))
		for _, f := range fields {
			allowed[strings.ToLower(f)] = true
		}
	}

	rec := Record{}
	for i, col := range row.Columns() {
		if allowed != nil && !allowed[col] {
			continue
		}
		rec[col] = NormalizeLegacyTime(row.Values()[i])
	}

	if key != nil && (allowed == nil || allowed[KeyColumn]) {
		rec[KeyColumn] = *key
	}
	return rec
}

// FormatRecord applies an entity mapping to a staging row:
// exclusions, join-path renames (a__b to a_b), status to is_active, flag
// coercion, yes/no and boolean columns, numeric validation, explicit renames
// and finally computed columns.
func FormatRecord(row source.Row, m schema.EntityMapping) (Record, error) {
	rec := Record{}
	for i, col := range row.Columns() {
		if m.Excludes(col) || isInternal(col) {
			continue
		}
		rec[strings.ReplaceAll(col, "__", "_")] = row.Values()[i]
	}

	if m.StatusToActive {
		if status, ok := rec["status"]; ok {
			s, _ := status.(string)
			rec["is_active"] = strings.EqualFold(s, "active")
			delete(rec, "status")
		}
	}

	suffixes := append(append([]string{}, DefaultFlagSuffixes...), m.FlagSuffixes...)
	for col, v := range rec {
		if hasSuffix(col, suffixes) {
			rec[col] = FlagToBool(v)
		}
	}

	for _, col := range m.YesNo {
		if v, ok := rec[col]; ok {
			if yn, ok := YesNo(stringOf(v)); ok {
				rec[col] = yn
			} else {
				rec[col] = nil
			}
		}
	}

	for _, col := range m.Bools {
		if v, ok := rec[col]; ok {
			if _, isBool := v.(bool); isBool {
				continue
			}
			if b, ok := StrToBool(stringOf(v)); ok {
				rec[col] = b
			} else {
				rec[col] = nil
			}
		}
	}

	for _, d := range m.Decimals {
		ValidateDecimal(rec, []string{d.Name}, d.MaxDigits, d.Places)
	}
	ValidateInt(rec, m.Ints)

	for _, col := range m.EmptyString {
		if v, ok := rec[col]; !ok || v == nil {
			rec[col] = ""
		}
	}

	for from, to := range m.Rename {
		if v, ok := rec[from]; ok {
			delete(rec, from)
			rec[to] = v
		}
	}

	for _, c := range m.Computed {
		if c.Fn == nil {
			return nil, fmt.Errorf("computed column %s has no function", c.Name)
		}
		rec[c.Name] = c.Fn(rec)
	}

	return rec, nil
}

func isInternal(col string) bool {
	return hasSuffix(col, internalSuffixes)
}

func hasSuffix(col string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(col, s) {
			return true
		}
	}
	return false
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
