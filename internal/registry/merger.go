// Package registry merges prefix-configured JSONL sources into one registry
// file where every record carries a global id of the form PREFIX.LOCALID.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options controls a merge run.
type Options struct {
	// StrictPrefixes turns a prefix shared by several entries into an error.
	StrictPrefixes bool
}

// SourceReport describes what one configured source contributed.
type SourceReport struct {
	File    string
	Prefix  string
	Records int
	Skipped int
	Missing bool
	Reasons map[SkipReason]int
	// Err is set when the source could not be opened or read to the end.
	// Records appended before the failure stay in the output.
	Err error
}

// Report is the outcome of a merge run.
type Report struct {
	Sources          []SourceReport
	FilesConfigured  int
	FilesContributed int
	Records          int
	Output           string
}

// Failed returns the number of sources that could not be read to the end.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Skipped returns the number of skipped lines across all sources.
func (r *Report) Skipped() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Skipped
	}
	return n
}

// Merger writes registry records for a list of prefix entries.
type Merger struct {
	entries []Entry
	output  string
	log     *zap.Logger
}

// New creates a Merger writing to output. Duplicate prefixes are logged, or
// rejected when opts.StrictPrefixes is set.
func New(entries []Entry, output string, opts Options) (*Merger, error) {
	if output == "" {
		return nil, eris.New("registry: output path is required")
	}
	log := zap.L().With(zap.String("component", "registry"))

	if dups := DuplicatePrefixes(entries); len(dups) > 0 {
		if opts.StrictPrefixes {
			return nil, eris.Errorf("registry: duplicate prefixes: %s", strings.Join(dups, ", "))
		}
		log.Warn("prefix used by more than one source", zap.Strings("prefixes", dups))
	}

	return &Merger{entries: entries, output: output, log: log}, nil
}

// Run truncates the output and processes every entry in configuration order.
// Only output errors and context cancellation end the run early.
func (m *Merger) Run(ctx context.Context) (*Report, error) {
	f, err := os.Create(m.output)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: create %s", m.output)
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrapf(err, "registry: close %s", m.output)
	}

	report := &Report{FilesConfigured: len(m.entries), Output: m.output}
	for _, e := range m.entries {
		sr, err := m.ProcessSource(ctx, e)
		report.Sources = append(report.Sources, sr)
		report.Records += sr.Records
		if sr.Records > 0 {
			report.FilesContributed++
		}
		if err != nil {
			return report, err
		}
	}

	m.log.Info("registry built",
		zap.Int("files_contributed", report.FilesContributed),
		zap.Int("files_configured", report.FilesConfigured),
		zap.Int("records", report.Records),
		zap.Int("skipped", report.Skipped()),
		zap.Int("failed_sources", report.Failed()),
	)
	return report, nil
}

// ProcessSource appends the records of one source to the output. A missing
// or unreadable source is reported on the SourceReport, not returned as an
// error; only output failures and cancellation are returned.
func (m *Merger) ProcessSource(ctx context.Context, e Entry) (SourceReport, error) {
	sr := SourceReport{File: e.File, Prefix: e.Prefix}
	log := m.log.With(zap.String("file", e.File), zap.String("prefix", e.Prefix))

	in, err := openText(e.File)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			sr.Missing = true
			log.Warn("source file not found, skipping")
			return sr, nil
		}
		sr.Err = eris.Wrapf(err, "registry: open source %s", e.File)
		log.Warn("source file unreadable, skipping", zap.Error(err))
		return sr, nil
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(m.output, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return sr, eris.Wrapf(err, "registry: open %s", m.output)
	}
	w := bufio.NewWriter(out)

	procErr := m.copyRecords(ctx, in, w, e, &sr, log)
	if err := w.Flush(); err != nil && procErr == nil {
		procErr = eris.Wrapf(err, "registry: flush %s", m.output)
	}
	if err := out.Close(); err != nil && procErr == nil {
		procErr = eris.Wrapf(err, "registry: close %s", m.output)
	}
	if procErr != nil {
		return sr, procErr
	}

	if sr.Err == nil {
		log.Info("source processed", zap.Int("records", sr.Records), zap.Int("skipped", sr.Skipped))
	}
	return sr, nil
}

func (m *Merger) copyRecords(ctx context.Context, in io.Reader, w *bufio.Writer, e Entry, sr *SourceReport, log *zap.Logger) error {
	r := bufio.NewReader(in)
	for lineNum := 1; ; lineNum++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "registry: %s interrupted at line %d", e.File, lineNum)
		}

		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			sr.Err = eris.Wrapf(readErr, "registry: read %s line %d", e.File, lineNum)
			log.Warn("source read failed, skipping rest of file",
				zap.Int("line", lineNum),
				zap.Int("kept_records", sr.Records),
				zap.Error(readErr),
			)
			return nil
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			rec, err := BuildRecord(trimmed, e)
			if err != nil {
				var skip *SkipError
				if !errors.As(err, &skip) {
					return err
				}
				sr.Skipped++
				if sr.Reasons == nil {
					sr.Reasons = make(map[SkipReason]int)
				}
				sr.Reasons[skip.Reason]++
				log.Warn("skipping line", zap.Int("line", lineNum), zap.String("reason", skip.Error()))
			} else {
				if _, err := w.Write(rec); err != nil {
					return eris.Wrapf(err, "registry: write %s", m.output)
				}
				if err := w.WriteByte('\n'); err != nil {
					return eris.Wrapf(err, "registry: write %s", m.output)
				}
				sr.Records++
			}
		}

		if readErr != nil {
			return nil
		}
	}
}
