package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prefix.csv",
		"PREFIX,TEMA,FIL,ID_FELT\n"+
			"VIND, vindkraft ,vindkraft.jsonl,anleggID\n"+
			"VARME,varme,varmeanlegg.jsonl, OBJECTID\n")

	entries, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Prefix: "VIND", Tema: "vindkraft", File: "vindkraft.jsonl", IDField: "anleggID"},
		{Prefix: "VARME", Tema: "varme", File: "varmeanlegg.jsonl", IDField: "OBJECTID"},
	}, entries)
}

func TestLoadConfig_ByteOrderMark(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prefix.csv",
		"\ufeffPREFIX,TEMA,FIL,ID_FELT\r\nKRAFT,vannkraft,vannkraft.jsonl,vannkraftverkNr\r\n")

	entries, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "KRAFT", entries[0].Prefix)
	assert.Equal(t, "vannkraftverkNr", entries[0].IDField)
}

func TestLoadConfig_ExtraColumnsIgnored(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prefix.csv",
		"KOMMENTAR,ID_FELT,FIL,TEMA,PREFIX\nnoe,id,a.jsonl,tema,A\n")

	entries, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Prefix: "A", Tema: "tema", File: "a.jsonl", IDField: "id"}}, entries)
}

func TestLoadConfig_HeaderOnly(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prefix.csv", "PREFIX,TEMA,FIL,ID_FELT\n")

	entries, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "nope.csv"), "open prefix config"},
		{"empty file", writeFile(t, dir, "empty.csv", ""), "is empty"},
		{"missing columns", writeFile(t, dir, "cols.csv", "PREFIX,FIL\nA,a.jsonl\n"), "missing columns TEMA, ID_FELT"},
		{"bad quoting", writeFile(t, dir, "quote.csv", "PREFIX,TEMA,FIL,ID_FELT\n\"A,t,a.jsonl,id\n"), "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuplicatePrefixes(t *testing.T) {
	entries := []Entry{{Prefix: "A"}, {Prefix: "B"}, {Prefix: "A"}, {Prefix: "C"}, {Prefix: "B"}, {Prefix: "A"}}
	assert.Equal(t, []string{"A", "B"}, DuplicatePrefixes(entries))
	assert.Empty(t, DuplicatePrefixes(entries[:2]))
}
