// Package harvest pulls every configured layer of a MapServer into one set of
// flat rows and writes them out as JSONL, CSV and GeoJSON.
package harvest

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facility-registry/internal/arcgis"
)

// DefaultTypeField is the column every row's layer type is written to.
const DefaultTypeField = "varmeType"

// Querier fetches pages of a layer with a fixed page size.
type Querier interface {
	arcgis.Querier
	PageSize() int
}

// Options configures a Harvester.
type Options struct {
	PageDelay time.Duration // pause between pages of one layer
	Centroid  CentroidMode
	TypeField string
}

// LayerStatus summarizes how far a layer got.
type LayerStatus string

const (
	// LayerComplete means paging ended on a short page.
	LayerComplete LayerStatus = "complete"
	// LayerPartial means a page failed after earlier pages succeeded.
	LayerPartial LayerStatus = "partial"
	// LayerFailed means a page failed before any row was collected.
	LayerFailed LayerStatus = "failed"
)

// LayerReport is the outcome of fetching one layer.
type LayerReport struct {
	Layer  Layer
	Rows   int
	Pages  int
	Status LayerStatus
	Err    error
}

// Result holds the rows of a run and a report per layer. Rows are in layer
// order, then paging order.
type Result struct {
	Rows   []Row
	Layers []LayerReport
}

// Harvester fetches layers one at a time and turns features into rows.
type Harvester struct {
	client Querier
	layers []Layer
	opts   Options
}

// New creates a Harvester for the given layers, which are validated and
// visited in ascending id order.
func New(client Querier, layers []Layer, opts Options) (*Harvester, error) {
	if opts.TypeField == "" {
		opts.TypeField = DefaultTypeField
	}
	if opts.Centroid == "" {
		opts.Centroid = CentroidMean
	}
	if err := ValidateLayers(layers, opts.TypeField, LatField, LonField); err != nil {
		return nil, err
	}
	sorted := slices.Clone(layers)
	slices.SortFunc(sorted, func(a, b Layer) int { return a.ID - b.ID })
	return &Harvester{client: client, layers: sorted, opts: opts}, nil
}

// Run fetches every layer in order. Layer failures are recorded in the
// result; only cancellation of ctx returns an error.
func (h *Harvester) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "harvest"))
	res := &Result{}

	for _, layer := range h.layers {
		rows, report, err := h.FetchLayer(ctx, layer)
		res.Rows = append(res.Rows, rows...)
		res.Layers = append(res.Layers, report)
		if err != nil {
			return res, err
		}
		log.Info("layer done",
			zap.Int("layer", layer.ID),
			zap.String("type", layer.Type),
			zap.String("status", string(report.Status)),
			zap.Int("rows", report.Rows),
			zap.Int("total", len(res.Rows)),
		)
	}
	return res, nil
}

// FetchLayer pages through one layer until a page comes back shorter than the
// page size. A failed page ends the layer but keeps the rows already
// collected; the failure is returned in the report, not as an error.
func (h *Harvester) FetchLayer(ctx context.Context, layer Layer) ([]Row, LayerReport, error) {
	log := zap.L().With(
		zap.String("component", "harvest"),
		zap.Int("layer", layer.ID),
		zap.String("type", layer.Type),
	)
	report := LayerReport{Layer: layer, Status: LayerComplete}
	pageSize := h.client.PageSize()
	typeTag, err := json.Marshal(layer.Type)
	if err != nil {
		return nil, report, eris.Wrapf(err, "harvest: encode type of layer %d", layer.ID)
	}

	var rows []Row
	offset := 0
	for {
		resp, err := h.client.Query(ctx, layer.ID, offset)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Rows = len(rows)
				return rows, report, eris.Wrapf(ctxErr, "harvest: layer %d cancelled", layer.ID)
			}
			report.Err = err
			report.Status = LayerPartial
			if len(rows) == 0 {
				report.Status = LayerFailed
			}
			log.Warn("page failed, skipping rest of layer",
				zap.Int("offset", offset),
				zap.Int("kept_rows", len(rows)),
				zap.Error(err),
			)
			break
		}

		report.Pages++
		for _, f := range resp.Features {
			rows = append(rows, h.buildRow(layer, typeTag, f))
		}
		log.Debug("page fetched",
			zap.Int("offset", offset),
			zap.Int("features", len(resp.Features)),
			zap.Int("layer_rows", len(rows)),
		)

		if len(resp.Features) < pageSize {
			break
		}
		offset += pageSize

		if err := pause(ctx, h.opts.PageDelay); err != nil {
			report.Rows = len(rows)
			return rows, report, eris.Wrapf(err, "harvest: layer %d cancelled", layer.ID)
		}
	}

	report.Rows = len(rows)
	return rows, report, nil
}

func (h *Harvester) buildRow(layer Layer, typeTag json.RawMessage, f arcgis.Feature) Row {
	fields := make([]Field, 0, len(layer.Keep)+1)
	for _, k := range layer.Keep {
		v, ok := f.Attributes[k]
		if !ok || len(v) == 0 {
			v = jsonNull
		}
		fields = append(fields, Field{Name: k, Value: v})
	}
	fields = append(fields, Field{Name: h.opts.TypeField, Value: typeTag})

	lat, lon := RepresentativePoint(f.Geometry, h.opts.Centroid)
	return Row{Fields: fields, Lat: lat, Lon: lon}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
