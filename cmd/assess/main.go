// Command assess scores seismic hazard for every site in a CSV file using the
// same domain package as the streaming service, so batch output matches what
// the pipeline publishes.
//
// Usage:
//
//	go run ./cmd/assess sites.csv --format yaml --processed-at 2024-04-27T06:00:00Z
//	go run ./cmd/assess sites.csv --zones 5
//	go run ./cmd/assess recovery --total-loss 600000 --months 24
package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// requiredColumns must appear in the CSV header. Other columns are optional
// and fall back to the evaluator defaults when absent.
var requiredColumns = []string{
	domain.FieldCity,
	domain.FieldAverageMagnitude,
	domain.FieldFaultActivity,
}

type assessOptions struct {
	format      string
	processedAt string
	eventWeight float64
	zones       int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &assessOptions{}

	cmd := &cobra.Command{
		Use:   "assess <sites.csv|->",
		Short: "Score seismic hazard for every site in a CSV file",
		Long: `Reads a CSV file whose header row names the site record fields and
prints one assessment per row. Use "-" to read from stdin.

Required columns: City, Average_Magnitude, Nearby_Fault_Activity.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatJSON, "output format: json, yaml or csv")
	cmd.Flags().StringVar(&opts.processedAt, "processed-at", "", "RFC3339 timestamp stamped on every assessment")
	cmd.Flags().Float64Var(&opts.eventWeight, "event-weight", domain.DefaultEventWeight, "fault activity weight in the event likelihood score")
	cmd.Flags().IntVar(&opts.zones, "zones", domain.DefaultEventZones, "risk propensity zones to split event scores into (0 disables)")

	cmd.AddCommand(newRecoveryCmd())
	return cmd
}

func runAssess(cmd *cobra.Command, path string, opts *assessOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	if opts.eventWeight <= 0 || math.IsInf(opts.eventWeight, 0) || math.IsNaN(opts.eventWeight) {
		return errors.New("--event-weight must be a positive number")
	}
	if opts.zones < 0 {
		return errors.New("--zones must not be negative")
	}

	if opts.processedAt != "" {
		ts, err := time.Parse(time.RFC3339, opts.processedAt)
		if err != nil {
			return fmt.Errorf("invalid --processed-at: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(ts.UTC()))
		defer domain.SetClock(nil)
	}

	in, closeInput, err := openInput(cmd, path)
	if err != nil {
		return err
	}
	defer closeInput()

	records, err := readSites(in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	sites := make([]domain.SiteAssessment, 0, len(records))
	defaulted := 0
	for _, rec := range records {
		site := domain.AssessSite(rec, opts.eventWeight)
		if site.Hazard.Defaulted {
			defaulted++
		}
		sites = append(sites, site)
	}
	if opts.zones > 0 {
		domain.AssignEventZones(sites, opts.zones)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	logger.Info("assessed sites", "count", len(sites), "defaulted", defaulted)

	return writeAssessments(cmd.OutOrStdout(), opts.format, sites)
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// readSites turns CSV rows into site records keyed by the header. Empty
// cells are left out of the record so the evaluator treats them as missing.
func readSites(r io.Reader) ([]domain.SiteRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}

	header := make([]string, len(rows[0]))
	present := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		present[header[i]] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	records := make([]domain.SiteRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := domain.SiteRecord{}
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			if v := strings.TrimSpace(cell); v != "" {
				rec[header[i]] = v
			}
		}
		if len(rec) == 0 {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
