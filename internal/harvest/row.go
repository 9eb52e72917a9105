package harvest

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	// LatField and LonField name the representative point columns.
	LatField = "lat"
	LonField = "lon"
)

var jsonNull = json.RawMessage("null")

// Field is one named attribute value, kept as raw JSON.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Row is a normalized feature: the layer's keep-fields, the type tag and a
// representative point. Lat and Lon are nil when no point could be derived.
type Row struct {
	Fields []Field
	Lat    *float64
	Lon    *float64
}

// Keys returns the row's field names in output order, lat and lon last.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r.Fields)+2)
	for _, f := range r.Fields {
		keys = append(keys, f.Name)
	}
	return append(keys, LatField, LonField)
}

// Value returns the raw value of a named field. The second result reports
// whether the row has that field at all.
func (r Row) Value(name string) (json.RawMessage, bool) {
	switch name {
	case LatField:
		return coordJSON(r.Lat), true
	case LonField:
		return coordJSON(r.Lon), true
	}
	for _, f := range r.Fields {
		if f.Name == name {
			if len(f.Value) == 0 {
				return jsonNull, true
			}
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the row as an object with its keys in row order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalString(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, _ := r.Value(key)
		if err := json.Compact(&buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// cell renders a value for a CSV column: empty for absent or null, strings
// without quotes, anything else as compact JSON text.
func cell(raw json.RawMessage, present bool) string {
	raw = bytes.TrimSpace(raw)
	if !present || len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func coordJSON(v *float64) json.RawMessage {
	if v == nil {
		return jsonNull
	}
	return json.RawMessage(formatCoord(*v))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// marshalString encodes s as a JSON string without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
