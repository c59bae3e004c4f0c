// Command tracediag inspects element-set files and catalogs offline: ground
// traces, orbital periods and filter option counts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/filter"
	"github.com/jakifasty/orbiteye/internal/orbit"
	"github.com/jakifasty/orbiteye/internal/propagation"
	"github.com/jakifasty/orbiteye/internal/tle"
	"github.com/jakifasty/orbiteye/internal/trace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracediag",
		Short: "Offline diagnostics for ground traces and filter counts",
		Long: `tracediag reads NORAD element-set files and satellite catalogs and
prints what the orbiteye server would compute for them.

Every flag can also be set through the environment with the TRACEDIAG_
prefix, for example TRACEDIAG_STEP=10s.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
	}
	root.PersistentFlags().Bool("verbose", false, "log at debug level to stderr")

	viper.SetEnvPrefix("TRACEDIAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newTraceCmd(), newPeriodCmd(), newCountsCmd())
	return root
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func readEntries(path string, logger *slog.Logger) ([]tle.TLEEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, skipped, err := tle.ParseCounted(f, logger)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn("skipped malformed entries", "path", path, "skipped", skipped)
	}
	return entries, nil
}

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <tle-file>",
		Short: "Compute ground traces with SGP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			entries, err := readEntries(args[0], logger)
			if err != nil {
				return err
			}

			ref := time.Now().UTC()
			if at := viper.GetString("at"); at != "" {
				if ref, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("parsing --at: %w", err)
				}
			}

			registry := propagation.NewRegistry(logger)
			sampler := orbit.NewSampler(func(el *tle.Elements) (orbit.Propagator, error) {
				p, err := registry.Propagator(el)
				if err != nil {
					return nil, err
				}
				return p, nil
			}, logger)

			norad := viper.GetIntSlice("norad")
			limit := viper.GetInt("limit")
			sats := make([]catalog.Satellite, 0, len(entries))
			for _, e := range entries {
				if len(norad) > 0 && !containsInt(norad, e.NORADID) {
					continue
				}
				sats = append(sats, catalog.Satellite{ID: strconv.Itoa(e.NORADID), Name: e.Name, NORADID: e.NORADID, TLE: e.Raw()})
				if limit > 0 && len(sats) == limit {
					break
				}
			}

			pool := trace.NewWorkerPool(viper.GetInt("workers"), logger)
			res, err := pool.TraceBatch(cmd.Context(), sampler, sats, viper.GetDuration("step"), ref)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if viper.GetBool("geojson") {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(trace.FeatureCollection(res.Traces))
			}
			printTraces(out, res)
			return nil
		},
	}
	cmd.Flags().Duration("step", orbit.DefaultStep, "sample step")
	cmd.Flags().String("at", "", "reference time (RFC 3339), default now")
	cmd.Flags().IntSlice("norad", nil, "only trace these NORAD catalog numbers")
	cmd.Flags().Int("limit", 10, "maximum satellites to trace (0 for all)")
	cmd.Flags().Int("workers", 4, "concurrent trace workers")
	cmd.Flags().Bool("geojson", false, "print a GeoJSON FeatureCollection")
	return cmd
}

func printTraces(w io.Writer, res *trace.Result) {
	for _, tr := range res.Traces {
		fmt.Fprintf(w, "%-8s %-8s start=%s span=%s period=%s points=%d",
			tr.SatelliteID, tr.Mode, tr.Start.Format(time.RFC3339), tr.Span, tr.Period, len(tr.Points))
		if n := len(tr.Points); n > 0 {
			first, last := tr.Points[0], tr.Points[n-1]
			fmt.Fprintf(w, " first=(%.3f,%.3f) last=(%.3f,%.3f)", first.Lng, first.Lat, last.Lng, last.Lat)
		}
		fmt.Fprintln(w)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "%-8s FAILED %v\n", f.SatelliteID, f.Err)
	}
	fmt.Fprintf(w, "\n%d traced, %d failed\n", len(res.Traces), len(res.Failures))
}

func newPeriodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "period <tle-file>",
		Short: "Print the mean-motion period and orbit class of every entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readEntries(args[0], newLogger())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				el, err := tle.ParseElements(e.Raw())
				if err != nil {
					fmt.Fprintf(out, "%6d %-24s %v\n", e.NORADID, e.Name, err)
					continue
				}
				p, err := orbit.AveragePeriod(el)
				if err != nil {
					fmt.Fprintf(out, "%6d %-24s no period: %v\n", e.NORADID, e.Name, err)
					continue
				}
				fmt.Fprintf(out, "%6d %-24s %12s %s\n", e.NORADID, e.Name, p.Round(time.Millisecond), orbit.Classify(el))
			}
			return nil
		},
	}
}

func newCountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counts <catalog.json>",
		Short: "Print filter options with live match counts",
		Long: `counts loads a catalog, optionally attaches element sets from --tle, and
prints every filter dimension with its option labels. Selections are given
as dimension=value pairs, for example --select owner=US --select orbit_class=LEO.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			ds, err := catalog.Load(f, args[0], time.Now())
			f.Close()
			if err != nil {
				return err
			}

			if path := viper.GetString("tle"); path != "" {
				entries, err := readEntries(path, logger)
				if err != nil {
					return err
				}
				ds, _ = ds.WithElements(entries, orbit.Classify, false, time.Now())
			}

			reg := filter.DefaultRegistry()
			settings := filter.NewSettings(reg)
			for _, sel := range viper.GetStringSlice("select") {
				dim, value, ok := strings.Cut(sel, "=")
				if !ok {
					return fmt.Errorf("invalid --select %q, want dimension=value", sel)
				}
				settings = settings.Add(dim, value)
			}

			all, err := filter.NewCounter(filter.NewValueIndex(reg), nil).AllOptions(ds, settings)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d satellites match %s\n", filter.CountMatching(ds.Satellites, settings.Predicate()), ds.Len(), settings)
			for _, d := range all {
				fmt.Fprintf(out, "\n%s", d.Dimension)
				if d.Placeholder {
					fmt.Fprint(out, " (no filter semantics)")
				}
				fmt.Fprintln(out)
				for _, o := range d.Options {
					fmt.Fprintf(out, "  %s\n", o.Label)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("tle", "", "element-set file to attach by NORAD number")
	cmd.Flags().StringSlice("select", nil, "selection as dimension=value (repeatable)")
	return cmd
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
