package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/campusconnect/campusconnect/internal/models"
)

func activeOnly(items []models.FoundItem) []models.FoundItem {
	var out []models.FoundItem
	for _, item := range items {
		if item.IsActive() {
			out = append(out, item)
		}
	}
	return out
}

// renderItems prints items as an aligned table; unsynced items are marked
func renderItems(w io.Writer, items []models.FoundItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No found items.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tLOCATION\tDATE\tSTATUS\tREPORTER")
	for _, item := range items {
		status := string(item.Status)
		if status == "" {
			status = string(models.StatusActive)
		}
		if item.IsLocal() {
			status += " (not synced)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.Title, dash(item.Location), item.Date, status, dash(item.OwnerEmail))
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
