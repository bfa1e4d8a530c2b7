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
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/microbench/pkg/report"
	"github.com/AleutianAI/microbench/pkg/workload"
)

func listWorkloads(w io.Writer, reg *workload.Registry) error {
	styles := report.NewStyles(w)
	for _, name := range reg.List() {
		def, ok := reg.Get(name)
		if !ok {
			continue
		}
		labels := make([]string, 0, len(def.Args))
		for _, a := range def.Args {
			labels = append(labels, a.Label)
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", styles.Header.Render(fmt.Sprintf("%-22s", name)), def.Description); err != nil {
			return err
		}
		if len(labels) > 0 {
			if _, err := fmt.Fprintf(w, "%-22s  %s\n", "", styles.Muted.Render("args: "+strings.Join(labels, ", "))); err != nil {
				return err
			}
		}
	}
	return nil
}
