package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/facility-registry/internal/arcgis"
	"github.com/sells-group/facility-registry/internal/config"
	"github.com/sells-group/facility-registry/internal/fetcher"
	"github.com/sells-group/facility-registry/internal/harvest"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Download facility layers from an ArcGIS MapServer",
	Long: `Pages through every configured MapServer layer and writes the rows as
JSONL and CSV, optionally as GeoJSON.

By default the NVE Varme layers 1-6 are harvested. Use --layers-file to
harvest another MapServer with a YAML layer table, and --layers to restrict
the run to some layer ids. A failing layer is reported and skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyHarvestFlags(cmd, &cfg.Harvest); err != nil {
			return err
		}
		if err := cfg.Validate("harvest"); err != nil {
			return err
		}

		layersStr, _ := cmd.Flags().GetString("layers")
		ids, err := parseLayerIDs(layersStr)
		if err != nil {
			return err
		}

		return runHarvest(ctx, cmd.OutOrStdout(), cfg.Harvest, ids)
	},
}

func init() {
	f := harvestCmd.Flags()
	f.String("layers", "", "layer ids to harvest (comma-separated, default all)")
	f.String("base-url", "", "MapServer base URL")
	f.Int("page-size", 0, "features per page")
	f.Int("page-delay-ms", 0, "pause between pages in milliseconds")
	f.String("centroid", "", "polygon centroid mode (mean, area)")
	f.String("layers-file", "", "YAML layer table")
	f.String("jsonl", "", "JSONL output path")
	f.String("csv", "", "CSV output path")
	f.String("geojson", "", "GeoJSON output path")

	rootCmd.AddCommand(harvestCmd)
}

// applyHarvestFlags copies explicitly set flags over the loaded config.
func applyHarvestFlags(cmd *cobra.Command, hc *config.HarvestConfig) error {
	f := cmd.Flags()
	var err error
	if f.Changed("base-url") {
		hc.BaseURL, err = f.GetString("base-url")
	}
	if err == nil && f.Changed("page-size") {
		hc.PageSize, err = f.GetInt("page-size")
	}
	if err == nil && f.Changed("page-delay-ms") {
		hc.PageDelayMS, err = f.GetInt("page-delay-ms")
	}
	if err == nil && f.Changed("centroid") {
		hc.Centroid, err = f.GetString("centroid")
	}
	if err == nil && f.Changed("layers-file") {
		hc.LayersFile, err = f.GetString("layers-file")
	}
	if err == nil && f.Changed("jsonl") {
		hc.OutputJSONL, err = f.GetString("jsonl")
	}
	if err == nil && f.Changed("csv") {
		hc.OutputCSV, err = f.GetString("csv")
	}
	if err == nil && f.Changed("geojson") {
		hc.OutputGeoJSON, err = f.GetString("geojson")
	}
	if err != nil {
		return eris.Wrap(err, "harvest: read flags")
	}
	return nil
}

// parseLayerIDs parses a comma-separated list of layer ids.
func parseLayerIDs(s string) ([]int, error) {
	var ids []int
	for _, p := range splitAndTrim(s) {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, eris.Errorf("harvest: invalid layer id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func loadLayers(hc config.HarvestConfig) ([]harvest.Layer, error) {
	if hc.LayersFile == "" {
		return harvest.VarmeLayers(), nil
	}
	return harvest.LoadLayers(hc.LayersFile)
}

func runHarvest(ctx context.Context, out io.Writer, hc config.HarvestConfig, ids []int) error {
	log := zap.L().With(zap.String("command", "harvest"))

	mode, err := harvest.ParseCentroidMode(hc.Centroid)
	if err != nil {
		return eris.Wrap(err, "harvest")
	}
	all, err := loadLayers(hc)
	if err != nil {
		return err
	}
	layers, err := harvest.SelectLayers(all, ids)
	if err != nil {
		return err
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    hc.UserAgent,
		Timeout:      time.Duration(hc.TimeoutSecs) * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	client := arcgis.NewClient(f, hc.BaseURL, arcgis.WithPageSize(hc.PageSize), arcgis.WithOutSR(hc.OutSR))

	h, err := harvest.New(client, layers, harvest.Options{
		PageDelay: time.Duration(hc.PageDelayMS) * time.Millisecond,
		Centroid:  mode,
		TypeField: hc.TypeField,
	})
	if err != nil {
		return err
	}

	log.Info("starting harvest",
		zap.String("base_url", hc.BaseURL),
		zap.Int("layers", len(layers)),
		zap.Int("page_size", hc.PageSize),
	)

	res, err := h.Run(ctx)
	if err != nil {
		return eris.Wrap(err, "harvest")
	}

	written, err := harvest.Emit(res.Rows, harvest.Outputs{
		JSONL:   hc.OutputJSONL,
		CSV:     hc.OutputCSV,
		GeoJSON: hc.OutputGeoJSON,
	}, hc.IDField, hc.TypeField)
	if err != nil {
		return err
	}

	formatLayerReports(out, res.Layers)
	_, _ = fmt.Fprintf(out, "\nTotal rows: %d\n", len(res.Rows))
	if len(written) == 0 {
		_, _ = fmt.Fprintln(out, "No output written")
	}
	for _, p := range written {
		_, _ = fmt.Fprintf(out, "Wrote %s\n", p)
	}
	return nil
}

// formatLayerReports writes one line per harvested layer to w.
func formatLayerReports(out io.Writer, reports []harvest.LayerReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LAYER\tTYPE\tSTATUS\tPAGES\tROWS\tERROR")
	_, _ = fmt.Fprintln(w, "-----\t----\t------\t-----\t----\t-----")

	for _, r := range reports {
		errMsg := ""
		if r.Err != nil {
			errMsg = truncate(r.Err.Error(), 60)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			r.Layer.ID, r.Layer.Type, r.Status, r.Pages, r.Rows, errMsg)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
