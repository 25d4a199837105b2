package main

import (
	"errors"
	"math"
	"strconv"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/spf13/cobra"
)

// defaultRecoveryMonths is the schedule length when --months is not given.
const defaultRecoveryMonths = 24

func newRecoveryCmd() *cobra.Command {
	var (
		totalLoss float64
		months    int
		format    string
	)

	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Print the monthly recovery cost schedule for a total loss",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if totalLoss < 0 || math.IsInf(totalLoss, 0) || math.IsNaN(totalLoss) {
				return errors.New("--total-loss must be a non-negative number")
			}
			if months < 1 {
				return errors.New("--months must be at least 1")
			}

			timeline := domain.RecoveryTimeline(totalLoss, months)
			out := cmd.OutOrStdout()
			switch format {
			case formatYAML:
				return writeYAML(out, timeline)
			case formatCSV:
				records := [][]string{{"month", "monthly_cost", "cumulative_cost"}}
				for _, m := range timeline {
					records = append(records, []string{
						strconv.Itoa(m.Month),
						strconv.FormatFloat(m.MonthlyCost, 'f', 2, 64),
						strconv.FormatFloat(m.CumulativeCost, 'f', 2, 64),
					})
				}
				return writeCSV(out, records)
			default:
				return writeJSON(out, timeline)
			}
		},
	}

	cmd.Flags().Float64Var(&totalLoss, "total-loss", 0, "total loss to spread over the recovery period")
	cmd.Flags().IntVar(&months, "months", defaultRecoveryMonths, "number of months in the schedule")
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format: json, yaml or csv")
	return cmd
}
