package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/facility-registry/internal/harvest"
)

var harvestLayersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List the layer table used by harvest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if f, _ := cmd.Flags().GetString("layers-file"); f != "" {
			cfg.Harvest.LayersFile = f
		}
		layers, err := loadLayers(cfg.Harvest)
		if err != nil {
			return err
		}
		formatLayerTable(cmd.OutOrStdout(), layers)
		return nil
	},
}

func init() {
	harvestLayersCmd.Flags().String("layers-file", "", "YAML layer table")
	harvestCmd.AddCommand(harvestLayersCmd)
}

func formatLayerTable(out io.Writer, layers []harvest.Layer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tFIELDS")
	_, _ = fmt.Fprintln(w, "--\t----\t------")
	for _, l := range layers {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", l.ID, l.Type, strings.Join(l.Keep, ", "))
	}
	_ = w.Flush()
}
