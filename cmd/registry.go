package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/facility-registry/internal/config"
	"github.com/sells-group/facility-registry/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Facility registry commands",
	Long:  "Builds the unified facility registry from JSONL sources listed in a prefix configuration file.",
}

var registryBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Merge configured sources into the registry",
	Long: `Reads the prefix configuration (PREFIX, TEMA, FIL, ID_FELT), truncates the
registry output and appends one record per source line, each with a GID of
the form PREFIX.ID. Missing sources and bad lines are reported and skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyRegistryFlags(cmd, &cfg.Registry); err != nil {
			return err
		}
		if err := cfg.Validate("registry"); err != nil {
			return err
		}

		return runRegistryBuild(ctx, cmd.OutOrStdout(), cfg.Registry)
	},
}

func init() {
	registryBuildCmd.Flags().String("prefix-config", "", "prefix configuration CSV")
	registryBuildCmd.Flags().String("output", "", "registry JSONL output path")
	registryBuildCmd.Flags().Bool("strict-prefixes", false, "fail when two sources share a prefix")

	registryCmd.AddCommand(registryBuildCmd)
	rootCmd.AddCommand(registryCmd)
}

// applyRegistryFlags copies explicitly set flags over the loaded config.
func applyRegistryFlags(cmd *cobra.Command, rc *config.RegistryConfig) error {
	f := cmd.Flags()
	var err error
	if f.Changed("prefix-config") {
		rc.PrefixConfig, err = f.GetString("prefix-config")
	}
	if err == nil && f.Changed("output") {
		rc.Output, err = f.GetString("output")
	}
	if err == nil && f.Changed("strict-prefixes") {
		rc.StrictPrefixes, err = f.GetBool("strict-prefixes")
	}
	if err != nil {
		return eris.Wrap(err, "registry: read flags")
	}
	return nil
}

func runRegistryBuild(ctx context.Context, out io.Writer, rc config.RegistryConfig) error {
	entries, err := registry.LoadConfig(rc.PrefixConfig)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Found %d source files in %s\n\n", len(entries), rc.PrefixConfig)

	m, err := registry.New(entries, rc.Output, registry.Options{StrictPrefixes: rc.StrictPrefixes})
	if err != nil {
		return err
	}

	report, err := m.Run(ctx)
	if report != nil {
		formatRegistryReport(out, report)
	}
	if err != nil {
		return eris.Wrap(err, "registry build")
	}
	return nil
}

// formatRegistryReport writes the per-source table and run totals to out.
func formatRegistryReport(out io.Writer, r *registry.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tPREFIX\tRECORDS\tSKIPPED\tSTATUS\tERROR")
	_, _ = fmt.Fprintln(w, "----\t------\t-------\t-------\t------\t-----")

	for _, s := range r.Sources {
		status := "ok"
		errMsg := ""
		switch {
		case s.Missing:
			status = "missing"
		case s.Err != nil:
			status = "failed"
			errMsg = truncate(s.Err.Error(), 60)
		case s.Records == 0:
			status = "empty"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", s.File, s.Prefix, s.Records, s.Skipped, status, errMsg)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nProcessed files: %d/%d\n", r.FilesContributed, r.FilesConfigured)
	_, _ = fmt.Fprintf(out, "Total records: %d\n", r.Records)
	if n := r.Failed(); n > 0 {
		_, _ = fmt.Fprintf(out, "Failed sources: %d\n", n)
	}
	_, _ = fmt.Fprintf(out, "Output: %s\n", r.Output)
}
