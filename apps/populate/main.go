package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcousage/internal/config"
	"github.com/smallbiznis/telcousage/internal/migration"
	"github.com/smallbiznis/telcousage/internal/observability"
	"github.com/smallbiznis/telcousage/internal/ratelimit"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/internal/usage/rollup"
	"github.com/smallbiznis/telcousage/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	populateKind string
	populateDate string
	startTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "populate",
	Short: "Roll raw usage of one day into daily aggregates",
	Long: `Roll raw usage records of one UTC day into the daily aggregate tables.

Raw rows of the day are summed per subscription, added to that day's
aggregate rows and deleted, in a single transaction per usage kind.
Running it again for the same day changes nothing.

Examples:
  populate --kind data --date 2026-10-18
  populate --kind all`,
	SilenceUsage: true,
	RunE:         runPopulate,
}

func init() {
	rootCmd.Flags().StringVar(&populateKind, "kind", "all", "usage kind to roll up: data, voice or all")
	rootCmd.Flags().StringVar(&populateDate, "date", "", "UTC day to roll up as YYYY-MM-DD (default today)")
	rootCmd.Flags().DurationVar(&startTimeout, "start-timeout", 30*time.Second, "time allowed to connect to dependencies")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPopulate(cmd *cobra.Command, _ []string) error {
	kind, all, err := parseKind(populateKind)
	if err != nil {
		return err
	}
	date, err := parseDate(populateDate, time.Now())
	if err != nil {
		return err
	}

	var svc *rollup.Service
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		db.Module,
		migration.Module,
		fx.Provide(
			ratelimit.NewRedisClient,
			ratelimit.NewLocker,
			rollup.NewService,
		),
		fx.Populate(&svc),
	)

	startCtx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	results, err := populate(cmd.Context(), svc, kind, all, date)
	if err != nil {
		return err
	}

	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []rollup.Result) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tDATE\tCREATED\tUPDATED\tDELETED")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.Kind, r.Date.Format(time.DateOnly), r.Created, r.Updated, r.Deleted)
	}
	w.Flush()
}

type populator interface {
	Populate(ctx context.Context, kind usagedomain.Kind, date time.Time) (rollup.Result, error)
	PopulateAll(ctx context.Context, date time.Time) ([]rollup.Result, error)
}

func populate(ctx context.Context, svc populator, kind usagedomain.Kind, all bool, date time.Time) ([]rollup.Result, error) {
	day := date.Format(time.DateOnly)
	if all {
		results, err := svc.PopulateAll(ctx, date)
		if err != nil {
			return results, fmt.Errorf("populate all for %s: %w", day, err)
		}
		return results, nil
	}
	result, err := svc.Populate(ctx, kind, date)
	if err != nil {
		return nil, fmt.Errorf("populate %s for %s: %w", kind, day, err)
	}
	return []rollup.Result{result}, nil
}

// parseKind reports all=true for "all".
func parseKind(value string) (usagedomain.Kind, bool, error) {
	if strings.EqualFold(strings.TrimSpace(value), "all") {
		return "", true, nil
	}
	kind, err := usagedomain.ParseKind(value)
	if err != nil {
		return "", false, fmt.Errorf("invalid --kind %q: must be data, voice or all", value)
	}
	return kind, false, nil
}

func parseDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return usagedomain.StartOfDay(now), nil
	}
	date, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", value)
	}
	return date, nil
}
