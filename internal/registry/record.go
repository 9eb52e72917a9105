package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Field names written on every registry record.
const (
	TypeKey    = "AnleggsType"
	GIDKey     = "GID"
	SourceKey  = "_kildefil"
	IDFieldKey = "_id_felt"
)

// SkipReason says why a source line produced no record.
type SkipReason string

// Skip reasons.
const (
	ReasonInvalidJSON SkipReason = "invalid JSON"
	ReasonNotObject   SkipReason = "not a JSON object"
	ReasonMissingID   SkipReason = "id field missing"
	ReasonNullID      SkipReason = "id field is null"
	ReasonEmptyID     SkipReason = "id field is empty"
)

// SkipError is returned by BuildRecord for lines that cannot become a record.
type SkipError struct {
	Reason  SkipReason
	IDField string
}

func (e *SkipError) Error() string {
	switch e.Reason {
	case ReasonMissingID, ReasonNullID, ReasonEmptyID:
		return fmt.Sprintf("%s: %s", e.Reason, e.IDField)
	default:
		return string(e.Reason)
	}
}

type member struct {
	key string
	raw string // original key text, quotes included
	val string
}

// BuildRecord turns one source line into a registry record line without a
// trailing newline. The record starts with AnleggsType and GID, keeps the
// original fields in source order and ends with _kildefil and _id_felt.
// Original fields carrying one of those four names are dropped. A key that
// appears twice keeps its first position and its last value.
func BuildRecord(line []byte, e Entry) ([]byte, error) {
	if !gjson.ValidBytes(line) {
		return nil, &SkipError{Reason: ReasonInvalidJSON}
	}
	doc := gjson.ParseBytes(line)
	if !doc.IsObject() {
		return nil, &SkipError{Reason: ReasonNotObject}
	}

	var members []member
	index := make(map[string]int)
	doc.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if i, ok := index[name]; ok {
			members[i].val = v.Raw
			return true
		}
		index[name] = len(members)
		members = append(members, member{key: name, raw: k.Raw, val: v.Raw})
		return true
	})

	i, ok := index[e.IDField]
	if !ok {
		return nil, &SkipError{Reason: ReasonMissingID, IDField: e.IDField}
	}
	id, reason := localID(gjson.Parse(members[i].val))
	if reason != "" {
		return nil, &SkipError{Reason: reason, IDField: e.IDField}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	writeMember(&buf, TypeKey, e.Tema)
	buf.WriteByte(',')
	writeMember(&buf, GIDKey, e.Prefix+"."+id)
	for _, m := range members {
		if reserved(m.key) {
			continue
		}
		buf.WriteByte(',')
		buf.WriteString(m.raw)
		buf.WriteByte(':')
		buf.Write(pretty.Ugly([]byte(m.val)))
	}
	buf.WriteByte(',')
	writeMember(&buf, SourceKey, e.File)
	buf.WriteByte(',')
	writeMember(&buf, IDFieldKey, e.IDField)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// localID renders an id value the way it appears in a GID.
func localID(v gjson.Result) (string, SkipReason) {
	switch v.Type {
	case gjson.Null:
		return "", ReasonNullID
	case gjson.String:
		if v.Str == "" {
			return "", ReasonEmptyID
		}
		return v.Str, ""
	case gjson.Number, gjson.True, gjson.False:
		return v.Raw, ""
	default:
		return string(pretty.Ugly([]byte(v.Raw))), ""
	}
}

func reserved(key string) bool {
	switch key {
	case TypeKey, GIDKey, SourceKey, IDFieldKey:
		return true
	}
	return false
}

func writeMember(buf *bytes.Buffer, key, value string) {
	writeString(buf, key)
	buf.WriteByte(':')
	writeString(buf, value)
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	buf.Truncate(buf.Len() - 1)
}
