package registry

import (
	"encoding/csv"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Columns required in the prefix configuration file.
var requiredColumns = []string{"PREFIX", "TEMA", "FIL", "ID_FELT"}

// Entry maps one source file to its GID prefix, category and id field.
type Entry struct {
	Prefix  string `csv:"PREFIX"`
	Tema    string `csv:"TEMA"`
	File    string `csv:"FIL"`
	IDField string `csv:"ID_FELT"`
}

// LoadConfig reads the prefix configuration CSV. A byte order mark is
// tolerated; values are trimmed. A missing file, an empty file or a header
// without all of PREFIX, TEMA, FIL and ID_FELT is an error.
func LoadConfig(path string) ([]Entry, error) {
	f, err := openText(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open prefix config %s", path)
	}
	defer f.Close() //nolint:errcheck

	return parseConfig(f, path)
}

func parseConfig(r io.Reader, path string) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.Errorf("registry: prefix config %s is empty", path)
		}
		return nil, eris.Wrapf(err, "registry: read header of %s", path)
	}

	header := dec.Header()
	var missing []string
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("registry: prefix config %s is missing columns %s", path, strings.Join(missing, ", "))
	}

	var entries []Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "registry: parse %s line %d", path, len(entries)+2)
		}
		e.Prefix = strings.TrimSpace(e.Prefix)
		e.Tema = strings.TrimSpace(e.Tema)
		e.File = strings.TrimSpace(e.File)
		e.IDField = strings.TrimSpace(e.IDField)
		entries = append(entries, e)
	}
	return entries, nil
}

// DuplicatePrefixes returns every prefix used by more than one entry, in
// order of first use.
func DuplicatePrefixes(entries []Entry) []string {
	counts := make(map[string]int, len(entries))
	var order []string
	for _, e := range entries {
		if counts[e.Prefix] == 0 {
			order = append(order, e.Prefix)
		}
		counts[e.Prefix]++
	}
	var dups []string
	for _, p := range order {
		if counts[p] > 1 {
			dups = append(dups, p)
		}
	}
	return dups
}
