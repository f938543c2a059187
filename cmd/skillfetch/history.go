package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillfetch/pkg/history"
	"github.com/jingkaihe/skillfetch/pkg/presenter"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past download runs",
	Long:  `Show past download runs recorded in the local history database.`,
	Run: func(cmd *cobra.Command, _ []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")
		if err := listHistory(cmd, limit, format); err != nil {
			presenter.Error(err, "Failed to list run history")
			os.Exit(1)
		}
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().String("format", "text", "Output format (text, json, yaml)")
}

func listHistory(cmd *cobra.Command, limit int, format string) error {
	dbPath, err := historyDBPath()
	if err != nil {
		return err
	}

	store, err := history.NewStore(cmd.Context(), dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		presenter.Info("No runs recorded yet")
		return nil
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal runs")
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(runs)
		if err != nil {
			return errors.Wrap(err, "failed to marshal runs")
		}
		fmt.Print(string(out))
	case "text":
		printRunTable(runs)
	default:
		return errors.Errorf("unknown format %q", format)
	}
	return nil
}

func printRunTable(runs []history.Record) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tMODE\tQUERY\tTOTAL\tOK\tSKIPPED\tFAILED\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.Mode,
			run.Query,
			run.Total,
			run.Succeeded,
			run.Skipped,
			run.Failed,
			(time.Duration(run.DurationMS) * time.Millisecond).String(),
		)
	}
	tw.Flush()
}
