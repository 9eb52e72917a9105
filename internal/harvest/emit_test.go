package harvest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func sampleRows() []Row {
	return []Row{
		{
			Fields: []Field{
				{Name: "OBJECTID", Value: raw(`1`)},
				{Name: "anlegg", Value: raw(`"Mo, Industripark"`)},
				{Name: "eier", Value: raw(`null`)},
				{Name: "varmeType", Value: raw(`"industri"`)},
			},
			Lat: ptr(66.31), Lon: ptr(14.14),
		},
		{
			Fields: []Field{
				{Name: "OBJECTID", Value: raw(`2`)},
				{Name: "Anlegg", Value: raw(`"Fjernvarme Øst"`)},
				{Name: "Summert", Value: raw(`12.5`)},
				{Name: "varmeType", Value: raw(`"fjernvarme_effekt"`)},
			},
		},
	}
}

func TestCSVHeader(t *testing.T) {
	header := CSVHeader(sampleRows(), "OBJECTID", "varmeType")
	assert.Equal(t, []string{"OBJECTID", "varmeType", "Anlegg", "Summert", "anlegg", "eier", "lat", "lon"}, header)
}

func TestCSVHeader_FixedColumnsWithoutRows(t *testing.T) {
	assert.Equal(t, []string{"OBJECTID", "varmeType", "lat", "lon"}, CSVHeader(nil, "OBJECTID", "varmeType"))
}

func TestCSVHeader_SameIDAndTypeField(t *testing.T) {
	header := CSVHeader(sampleRows(), "varmeType", "varmeType")
	assert.Equal(t, []string{"varmeType", "Anlegg", "OBJECTID", "Summert", "anlegg", "eier", "lat", "lon"}, header)
}

func TestFormatCoord_WholeNumbers(t *testing.T) {
	assert.Equal(t, "59", formatCoord(59))
	assert.Equal(t, "10.75", formatCoord(10.75))
	assert.Equal(t, "-0.5", formatCoord(-0.5))
	assert.Equal(t, "0.00001", formatCoord(1e-5))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows(), "OBJECTID", "varmeType"))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"OBJECTID", "varmeType", "Anlegg", "Summert", "anlegg", "eier", "lat", "lon"}, records[0])
	assert.Equal(t, []string{"1", "industri", "", "", "Mo, Industripark", "", "66.31", "14.14"}, records[1])
	assert.Equal(t, []string{"2", "fjernvarme_effekt", "Fjernvarme Øst", "12.5", "", "", "", ""}, records[2])
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, sampleRows()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"OBJECTID":1,"anlegg":"Mo, Industripark","eier":null,"varmeType":"industri","lat":66.31,"lon":14.14}`, lines[0])
	assert.Equal(t, `{"OBJECTID":2,"Anlegg":"Fjernvarme Øst","Summert":12.5,"varmeType":"fjernvarme_effekt","lat":null,"lon":null}`, lines[1])
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteGeoJSON(&buf, sampleRows())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{14.14, 66.31}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "industri", fc.Features[0].Properties["varmeType"])
	assert.Nil(t, fc.Features[0].Properties["eier"])
}

func TestEmit(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{
		JSONL:   filepath.Join(dir, "varme.jsonl"),
		CSV:     filepath.Join(dir, "varme.csv"),
		GeoJSON: filepath.Join(dir, "varme.geojson"),
	}
	require.NoError(t, os.WriteFile(out.JSONL, []byte("stale\nstale\nstale\n"), 0o644))

	written, err := Emit(sampleRows(), out, "OBJECTID", "varmeType")
	require.NoError(t, err)
	assert.Equal(t, []string{out.JSONL, out.CSV, out.GeoJSON}, written)

	data, err := os.ReadFile(out.JSONL)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.NotContains(t, string(data), "stale")

	data, err = os.ReadFile(out.CSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "OBJECTID,varmeType,"))
}

func TestEmit_SkipsEmptyPaths(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{CSV: filepath.Join(dir, "only.csv")}

	written, err := Emit(sampleRows(), out, "OBJECTID", "varmeType")
	require.NoError(t, err)
	assert.Equal(t, []string{out.CSV}, written)
}

func TestEmit_NoRowsWritesNothing(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{
		JSONL: filepath.Join(dir, "varme.jsonl"),
		CSV:   filepath.Join(dir, "varme.csv"),
	}

	written, err := Emit(nil, out, "OBJECTID", "varmeType")
	require.NoError(t, err)
	assert.Empty(t, written)

	_, err = os.Stat(out.JSONL)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(out.CSV)
	assert.True(t, os.IsNotExist(err))
}

func TestEmit_CreateFails(t *testing.T) {
	out := Outputs{JSONL: filepath.Join(t.TempDir(), "missing", "varme.jsonl")}
	_, err := Emit(sampleRows(), out, "OBJECTID", "varmeType")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "harvest: create")
}

func TestRow_ValueAndCells(t *testing.T) {
	row := Row{Fields: []Field{
		{Name: "flag", Value: raw(`true`)},
		{Name: "nested", Value: raw(`{"a": [1, 2]}`)},
		{Name: "empty", Value: nil},
	}}

	v, ok := row.Value("flag")
	assert.True(t, ok)
	assert.Equal(t, "true", cell(v, ok))

	v, ok = row.Value("nested")
	assert.Equal(t, `{"a":[1,2]}`, cell(v, ok))

	v, ok = row.Value("empty")
	assert.True(t, ok)
	assert.Equal(t, "null", string(v))
	assert.Equal(t, "", cell(v, ok))

	v, ok = row.Value("missing")
	assert.False(t, ok)
	assert.Equal(t, "", cell(v, ok))
}

func TestRow_MarshalJSONKeepsHTMLCharacters(t *testing.T) {
	row := Row{Fields: []Field{{Name: "a&b", Value: raw(`"<x>"`)}}}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	// encoding/json re-escapes Marshaler output, so check the method directly too.
	direct, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a&b":"<x>","lat":null,"lon":null}`, string(direct))
	assert.JSONEq(t, string(direct), string(data))
}
