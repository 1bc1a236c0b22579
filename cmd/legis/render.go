package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/legis-client/pkg/dashboard"
	"github.com/Sternrassler/legis-client/pkg/dates"
	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/pagination"
	"github.com/dustin/go-humanize"
)

const (
	prevArrow = "‹"
	nextArrow = "›"
)

func renderList(w io.Writer, snap dashboard.Snapshot, dateFormat string, now time.Time) error {
	fmt.Fprintf(w, "%s legislation", snap.State.View.Label())
	if snap.State.Search != "" {
		fmt.Fprintf(w, " matching %q", snap.State.Search)
	}
	fmt.Fprintf(w, " (%s total)\n\n", humanize.Comma(int64(snap.Meta.Total)))

	if len(snap.Items) == 0 {
		fmt.Fprintln(w, "No legislation found.")
		return nil
	}
	for _, item := range snap.Items {
		renderItem(w, item, dateFormat, now)
	}
	fmt.Fprintln(w, pageBar(snap.Pages, snap.Meta))
	return nil
}

// renderItem prints one record block followed by a blank line.
func renderItem(w io.Writer, item legislation.Legislation, dateFormat string, now time.Time) {
	fmt.Fprintf(w, "%s  %s\n", item.ID, item.Title)
	if item.Status != "" {
		fmt.Fprintf(w, "  Status:     %s\n", statusLabel(item.Status))
	}
	if item.IntroducedDate != "" {
		fmt.Fprintf(w, "  Introduced: %s (%s)\n",
			dates.Format(item.IntroducedDate, dateFormat), dates.TimeAgo(item.IntroducedDate, now))
	}
	if item.LastActionDate != "" {
		fmt.Fprintf(w, "  Updated:    %s\n", dates.TimeAgo(item.LastActionDate, now))
	}
	if item.Summary != "" {
		fmt.Fprintf(w, "  %s\n", item.Summary)
	}
	fmt.Fprintln(w)
}

func renderDetail(w io.Writer, item legislation.Legislation, dateFormat string, now time.Time) error {
	renderItem(w, item, dateFormat, now)
	fmt.Fprintf(w, "  Type:   %s\n", item.Type.Label())
	if item.SourceURL != "" {
		fmt.Fprintf(w, "  Source: %s\n", item.SourceURL)
	}
	if len(item.Actions) > 0 {
		fmt.Fprintln(w, "\n  Actions:")
		for _, act := range item.Actions {
			line := fmt.Sprintf("    %s  %s", dates.Format(act.ActionDate, dateFormat), act.ActionType)
			if act.Chamber != "" {
				line += " [" + act.Chamber + "]"
			}
			if act.Description != "" {
				line += ": " + act.Description
			}
			if act.Result != "" {
				line += " (" + act.Result + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func renderStats(w io.Writer, stats legislation.Stats) {
	total := 0
	for _, t := range legislation.Types {
		n := stats.Count(t)
		total += n
		fmt.Fprintf(w, "%-18s %8s\n", t.Label(), humanize.Comma(int64(n)))
	}
	fmt.Fprintf(w, "%-18s %8s\n", "Total", humanize.Comma(int64(total)))
}

// pageBar renders the window with the current page bracketed, e.g.
// "‹ 1 … 4 [5] 6 … 10 ›". Arrows are omitted at the ends.
func pageBar(pages pagination.PageSet, meta pagination.Meta) string {
	parts := make([]string, 0, len(pages)+2)
	if meta.HasPrevious {
		parts = append(parts, prevArrow)
	}
	for _, e := range pages {
		if !e.Gap && e.Page == meta.Page {
			parts = append(parts, "["+e.String()+"]")
			continue
		}
		parts = append(parts, e.String())
	}
	if meta.HasNext {
		parts = append(parts, nextArrow)
	}
	return strings.Join(parts, " ")
}

func statusLabel(s legislation.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
