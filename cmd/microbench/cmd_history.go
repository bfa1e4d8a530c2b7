// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/microbench/pkg/report"
	"github.com/AleutianAI/microbench/pkg/store"
)

type historyOptions struct {
	limit int
	json  bool
}

var historyOpts = historyOptions{limit: 20}

// errHistoryDisabled is returned when storage is turned off in the config.
var errHistoryDisabled = errors.New("history is disabled (storage.enabled is false)")

func runHistory(cmd *cobra.Command, args []string) error {
	if !app.cfg.Storage.Enabled {
		return errHistoryDisabled
	}
	db, results, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return showRun(app.stdout, results, args[0], historyOpts.json)
	}
	return listRuns(cmd.Context(), app.stdout, results, historyOpts)
}

func listRuns(ctx context.Context, w io.Writer, results *store.ResultStore, opts historyOptions) error {
	runs, err := results.List(ctx, opts.limit)
	if err != nil {
		return err
	}

	summaries := make([]store.Summary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, run.Summarize())
	}
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	styles := report.NewStyles(w)
	if _, err := fmt.Fprintln(w, styles.Header.Render(fmt.Sprintf("%-36s  %-20s  %8s  %s", "ID", "STARTED", "DURATION", "ACCEPTED"))); err != nil {
		return err
	}
	for _, s := range summaries {
		_, err := fmt.Fprintf(w, "%-36s  %-20s  %8s  %d/%d\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
			s.Accepted, s.Cases)
		if err != nil {
			return err
		}
	}
	return nil
}

func showRun(w io.Writer, results *store.ResultStore, id string, asJSON bool) error {
	run, err := results.Get(id)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	styles := report.NewStyles(w)
	fmt.Fprintln(w, styles.Title.Render("run "+run.ID))
	fmt.Fprintf(w, "started %s, %d iterations x %d samples, target cov %g\n",
		run.StartedAt.Local().Format(time.RFC3339), run.Config.Iterations, run.Config.SampleSize, run.Config.TargetCoV)
	for _, rec := range run.Records {
		per := time.Duration(rec.PerCallNanos)
		line := fmt.Sprintf("%-22s %-28s %-18s", rec.Group, rec.Argument, rec.Status)
		if rec.Outcome() != 0 {
			line += fmt.Sprintf(" %10s/op", per)
		} else if rec.Error != "" {
			line += " " + styles.Muted.Render(rec.Error)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
