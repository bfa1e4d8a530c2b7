// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/aclements/go-moremath/stats"
	"github.com/charmbracelet/lipgloss"
)

// Palette, deep ocean teals.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Styles are the console styles bound to one renderer.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles builds styles that render for w's color profile.
func NewStyles(w io.Writer) Styles {
	re := lipgloss.NewRenderer(w)
	return Styles{
		Title:   re.NewStyle().Bold(true).Foreground(ColorTealBright),
		Header:  re.NewStyle().Bold(true).Foreground(ColorTealPrimary),
		Muted:   re.NewStyle().Foreground(ColorSlate),
		Success: re.NewStyle().Foreground(ColorTealBright),
		Warning: re.NewStyle().Foreground(ColorWarning),
		Error:   re.NewStyle().Foreground(ColorError),
		Box: re.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// Spread holds order statistics of the per-call sample times.
type Spread struct {
	Min    time.Duration
	Median time.Duration
	P90    time.Duration
	Max    time.Duration
}

// SampleSpread computes order statistics of samples (seconds per sample of
// iterations calls) converted to per-call durations.
func SampleSpread(samples []float64, iterations int) Spread {
	if len(samples) == 0 || iterations <= 0 {
		return Spread{}
	}

	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s / float64(iterations)
	}
	sample := stats.Sample{Xs: xs}
	sample.Sort()
	lo, hi := sample.Bounds()

	return Spread{
		Min:    seconds(lo),
		Median: seconds(sample.Quantile(0.5)),
		P90:    seconds(sample.Quantile(0.9)),
		Max:    seconds(hi),
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(math.Round(f * float64(time.Second)))
}

// ConsoleReporter prints a styled line per result and, on Close, the
// per-group means.
//
// Thread Safety: Safe for concurrent use.
type ConsoleReporter struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	means  *GroupMeans
	title  bool
	closed bool
}

// NewConsoleReporter writes to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		w:      w,
		styles: NewStyles(w),
		means:  NewGroupMeans(),
	}
}

// Report prints one line for the row.
func (c *ConsoleReporter) Report(row Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrReporterClosed
	}
	if err := c.means.Report(row); err != nil {
		return err
	}
	if !c.title {
		c.title = true
		if _, err := fmt.Fprintln(c.w, c.styles.Title.Render("microbench")); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(c.w, c.line(row))
	return err
}

func (c *ConsoleReporter) line(row Row) string {
	name := fmt.Sprintf("%-22s %-28s", row.Group, row.Argument)
	res := row.Result

	switch row.Status() {
	case "accepted":
		sp := SampleSpread(res.Samples(), res.Iterations)
		return fmt.Sprintf("%s %s %s %s",
			c.styles.Success.Render("✓"),
			name,
			c.styles.Header.Render(fmt.Sprintf("%10s/op", res.PerCall())),
			c.styles.Muted.Render(fmt.Sprintf("cov=%.3g tries=%d median=%s p90=%s",
				res.CoefficientOfVariation, res.Attempts, sp.Median, sp.P90)),
		)
	case "exhausted":
		return fmt.Sprintf("%s %s %s %s",
			c.styles.Warning.Render("⚠"),
			name,
			c.styles.Warning.Render(fmt.Sprintf("%10s/op", res.PerCall())),
			c.styles.Muted.Render(fmt.Sprintf("not converged: cov=%.3g after %d tries",
				res.CoefficientOfVariation, res.Attempts)),
		)
	default:
		msg := row.Status()
		if row.Err != nil {
			msg = row.Err.Error()
		}
		return fmt.Sprintf("%s %s %s", c.styles.Error.Render("✗"), name, c.styles.Error.Render(msg))
	}
}

// Close prints the per-group means box.
func (c *ConsoleReporter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	means := c.means.Means()
	if len(means) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(c.styles.Header.Render("Group means (fully adjusted)"))
	for _, m := range means {
		b.WriteString("\n")
		if m.Count == 0 {
			fmt.Fprintf(&b, "%-22s %s", m.Group, c.styles.Muted.Render("no accepted results"))
			continue
		}
		fmt.Fprintf(&b, "%-22s %.6gs", m.Group, m.Mean)
		if m.Skipped > 0 {
			b.WriteString(" " + c.styles.Muted.Render(fmt.Sprintf("(%d skipped)", m.Skipped)))
		}
	}
	_, err := fmt.Fprintln(c.w, c.styles.Box.Render(b.String()))
	return err
}
