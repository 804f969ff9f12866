package progress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNumber
	KindText
)

// NotRecorded is shown in place of an absent value.
const NotRecorded = "Not Recorded"

// Value is one raw cell of a student table: a number, a piece of text, or
// nothing at all. The zero Value is absent.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Absent returns the empty value.
func Absent() Value { return Value{} }

// Number wraps a numeric cell. NaN is treated as absent, the way
// spreadsheet readers report blank numeric cells.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text wraps a textual cell.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// ParseCell interprets a cell read as text (CSV fields, formatted
// spreadsheet cells). Blank cells are absent and numeric-looking cells
// become numbers; everything else stays text.
func ParseCell(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Absent()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Number(f)
	}
	return Text(s)
}

// ValueOf converts a decoded JSON or database value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Absent()
	case Value:
		return x
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case string:
		return Text(x)
	case bool:
		return Text(strconv.FormatBool(x))
	default:
		return Text(fmt.Sprint(x))
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether nothing was recorded.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String renders the value as it would appear in the table. Absent values
// render as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Recorded is String with NotRecorded for absent values.
func (v Value) Recorded() string {
	if v.IsAbsent() {
		return NotRecorded
	}
	return v.String()
}

// MarshalJSON encodes absent values as null, numbers as JSON numbers and
// text as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsInf(v.num, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a number or a string.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decoding value: %w", err)
	}
	switch raw.(type) {
	case nil, json.Number, string:
		*v = ValueOf(raw)
		return nil
	default:
		return fmt.Errorf("value must be a number, a string or null, got %s", data)
	}
}
