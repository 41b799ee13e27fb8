package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/openfroyo/urlcat/pkg/engine"
	"github.com/openfroyo/urlcat/pkg/runner"
	"github.com/openfroyo/urlcat/pkg/stores"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport prints one invocation outcome.
func writeReport(w io.Writer, report *runner.Report, asJSON bool) error {
	if asJSON {
		return writeJSON(w, report)
	}

	verb := "ok"
	if report.Changed {
		verb = "changed"
		if report.CheckMode {
			verb = "would change"
		}
	}
	header := fmt.Sprintf("%s [%s]: %s", report.Name, report.Scope, verb)
	if report.Operation != "" && report.Operation != engine.OperationNoop {
		header += " (" + string(report.Operation) + ")"
	}
	fmt.Fprintln(w, header)

	if diff := report.Diff.String(); diff != "" {
		for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
			fmt.Fprintln(w, "  "+line)
		}
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning.String())
	}
	if report.Committed && report.Commit != nil {
		fmt.Fprintf(w, "committed: job %s\n", report.Commit.JobID)
	}
	if report.Error != "" {
		fmt.Fprintf(w, "error: %s\n", report.Error)
	}
	return nil
}

// writeListing prints the custom URL categories of one scope.
func writeListing(w io.Writer, listing []engine.CustomURLCategory, asJSON bool) error {
	if asJSON {
		if listing == nil {
			listing = []engine.CustomURLCategory{}
		}
		return writeJSON(w, listing)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tMEMBERS\tDESCRIPTION")
	for _, obj := range listing {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", obj.Name, obj.Type, strings.Join(obj.URLValues, ","), obj.Description)
	}
	return tw.Flush()
}

// writeRuns prints run history rows.
func writeRuns(w io.Writer, runs []*stores.Run, asJSON bool) error {
	if asJSON {
		if runs == nil {
			runs = []*stores.Run{}
		}
		return writeJSON(w, runs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tNAME\tSCOPE\tOPERATION\tCHANGED\tSTATUS")
	for _, run := range runs {
		op := string(run.Operation)
		if op == "" {
			op = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Name, run.Scope, op, run.Changed, run.Status)
	}
	return tw.Flush()
}

// writeEvents prints the timeline of one run.
func writeEvents(w io.Writer, events []*stores.Event, asJSON bool) error {
	if asJSON {
		if events == nil {
			events = []*stores.Event{}
		}
		return writeJSON(w, events)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Timestamp.Format("15:04:05.000"), ev.Level, ev.Type, ev.Message)
	}
	return tw.Flush()
}
