package harvest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Outputs names the files Emit writes. Empty paths are skipped.
type Outputs struct {
	JSONL   string
	CSV     string
	GeoJSON string
}

// Emit writes rows to every configured output, truncating existing files.
// With no rows nothing is written and no paths are returned.
func Emit(rows []Row, out Outputs, idField, typeField string) ([]string, error) {
	log := zap.L().With(zap.String("component", "harvest.emit"))
	if len(rows) == 0 {
		log.Warn("no rows harvested, no output written")
		return nil, nil
	}

	var written []string
	if out.JSONL != "" {
		if err := writeFile(out.JSONL, func(w io.Writer) error { return WriteJSONL(w, rows) }); err != nil {
			return written, err
		}
		written = append(written, out.JSONL)
	}
	if out.CSV != "" {
		if err := writeFile(out.CSV, func(w io.Writer) error { return WriteCSV(w, rows, idField, typeField) }); err != nil {
			return written, err
		}
		written = append(written, out.CSV)
	}
	if out.GeoJSON != "" {
		var n int
		err := writeFile(out.GeoJSON, func(w io.Writer) error {
			var werr error
			n, werr = WriteGeoJSON(w, rows)
			return werr
		})
		if err != nil {
			return written, err
		}
		if skipped := len(rows) - n; skipped > 0 {
			log.Info("rows without a point left out of geojson", zap.Int("skipped", skipped))
		}
		written = append(written, out.GeoJSON)
	}

	log.Info("rows written", zap.Int("rows", len(rows)), zap.Strings("files", written))
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "harvest: create %s", path)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "harvest: write %s", path)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "harvest: flush %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "harvest: close %s", path)
	}
	return nil
}

// WriteJSONL writes one JSON object per row, one row per line.
func WriteJSONL(w io.Writer, rows []Row) error {
	for i, r := range rows {
		data, err := r.MarshalJSON()
		if err != nil {
			return eris.Wrapf(err, "jsonl: encode row %d", i)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return eris.Wrap(err, "jsonl: write")
		}
	}
	return nil
}

// CSVHeader returns the column order for rows: idField, typeField, every
// other key seen in any row sorted lexicographically, then lat and lon. Each
// column appears once.
func CSVHeader(rows []Row, idField, typeField string) []string {
	fixed := map[string]bool{idField: true, typeField: true, LatField: true, LonField: true}
	seen := make(map[string]bool)
	var rest []string
	for _, r := range rows {
		for _, f := range r.Fields {
			if fixed[f.Name] || seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			rest = append(rest, f.Name)
		}
	}
	slices.Sort(rest)

	header := make([]string, 0, len(rest)+4)
	header = append(header, idField)
	if typeField != idField {
		header = append(header, typeField)
	}
	header = append(header, rest...)
	return append(header, LatField, LonField)
}

// WriteCSV writes rows under the header from CSVHeader. Columns a row does
// not have are left empty.
func WriteCSV(w io.Writer, rows []Row, idField, typeField string) error {
	header := CSVHeader(rows, idField, typeField)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "csv: write header")
	}

	record := make([]string, len(header))
	for i, r := range rows {
		for j, col := range header {
			v, ok := r.Value(col)
			record[j] = cell(v, ok)
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "csv: write row %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// WriteGeoJSON writes rows that have a representative point as a GeoJSON
// FeatureCollection with the row fields as properties. It returns the number
// of features written.
func WriteGeoJSON(w io.Writer, rows []Row) (int, error) {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, r := range rows {
		if r.Lat == nil || r.Lon == nil {
			continue
		}
		props := make(map[string]interface{}, len(r.Fields))
		for _, f := range r.Fields {
			v, _ := r.Value(f.Name)
			props[f.Name] = v
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*r.Lon, *r.Lat}),
			Properties: props,
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return 0, eris.Wrap(err, "geojson: encode")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return 0, eris.Wrap(err, "geojson: write")
	}
	return len(fc.Features), nil
}
