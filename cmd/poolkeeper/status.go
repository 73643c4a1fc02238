package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/poolkeeper/internal/app"
	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/epoch"
)

func newStatusCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Read every managed pool once and print its epoch state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rd, err := app.WireReader(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rd.Close()

			pools, err := rd.Source.Pools(ctx)
			if err != nil {
				return fmt.Errorf("status: list pools: %w", err)
			}
			states, failed, err := rd.Aggregator.Aggregate(ctx, pools)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			return renderStatus(cmd.OutOrStdout(), pools, states, failed, time.Now())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline for the ledger read")
	return cmd
}

// renderStatus prints one row per pool, sorted by name. Pools that could not
// be read show the error in place of their state.
func renderStatus(w io.Writer, pools []domain.Pool, states map[string]domain.PoolState, failed map[string]error, now time.Time) error {
	sorted := append([]domain.Pool(nil), pools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DisplayName() < sorted[j].DisplayName() })

	table := tablewriter.NewWriter(w)
	table.Header("Pool", "Epoch", "Phase", "Reserve", "Max reserve", "Senior ratio", "NAV", "Capacity")

	for _, p := range sorted {
		st, ok := states[p.ID]
		if !ok {
			reason := "not read"
			if err := failed[p.ID]; err != nil {
				reason = err.Error()
			}
			if err := table.Append(p.DisplayName(), "-", "error: "+reason, "", "", "", "", ""); err != nil {
				return err
			}
			continue
		}

		capacity := "-"
		if !st.Capacity.Total.IsNil() {
			capacity = domain.FormatAmount(st.Capacity.Total, domain.AmountDecimals)
		}
		if err := table.Append(
			p.DisplayName(),
			fmt.Sprint(st.Epoch.CurrentEpoch),
			epoch.Classify(st.Epoch, now).String(),
			domain.FormatAmount(st.Reserve, domain.AmountDecimals),
			domain.FormatAmount(st.MaxReserve, domain.AmountDecimals),
			domain.FormatRatio(st.SeniorRatio),
			domain.FormatAmount(st.NetAssetValue, domain.AmountDecimals),
			capacity,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
