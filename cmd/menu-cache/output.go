package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/menu"
	"github.com/Sternrassler/campus-menu-client/pkg/prefetch"
)

var (
	criticalColor = color.New(color.FgRed, color.Bold)
	highColor     = color.New(color.FgRed)
	mediumColor   = color.New(color.FgYellow)
	lowColor      = color.New(color.FgHiBlack)
	okColor       = color.New(color.FgGreen)
)

func severityColor(s apperror.Severity) *color.Color {
	switch s {
	case apperror.SeverityCritical:
		return criticalColor
	case apperror.SeverityHigh:
		return highColor
	case apperror.SeverityMedium:
		return mediumColor
	default:
		return lowColor
	}
}

// printError prints the user message coloured by severity, followed by the
// technical message.
func printError(w io.Writer, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		// Configuration and setup errors are not categorized.
		_, _ = criticalColor.Fprintf(w, "Error: %v\n", err)
		return
	}

	_, _ = severityColor(appErr.Severity()).Fprintf(w, "%s\n", appErr.UserMessage())
	_, _ = lowColor.Fprintf(w, "  %s [%s, severity %s]\n", appErr.TechnicalMessage(), appErr.Kind, appErr.Severity())
}

func printStats(w io.Writer, stats cache.Stats) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.PerColumn = []tw.Align{tw.AlignLeft, tw.AlignRight}
	})

	data := [][]string{
		{"Memory entries", strconv.Itoa(stats.MemoryEntries)},
		{"Memory bytes", strconv.FormatInt(stats.MemoryBytes, 10)},
		{"Persistent entries", strconv.Itoa(stats.DiskEntries)},
		{"Persistent bytes", strconv.FormatInt(stats.DiskBytes, 10)},
		{"Hits", strconv.FormatInt(stats.Hits, 10)},
		{"Misses", strconv.FormatInt(stats.Misses, 10)},
		{"Evictions", strconv.FormatInt(stats.Evictions, 10)},
		{"Hit rate", fmt.Sprintf("%.1f%%", stats.HitRate()*100)},
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func printWeek(w io.Writer, week menu.Week) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Date", "Category", "Meal", "Price", "Veg"})

	var data [][]string
	for _, day := range week.Days {
		date := day.Date.Format("Mon 2006-01-02")
		if len(day.Meals) == 0 {
			data = append(data, []string{date, "", lowColor.Sprint("no menu"), "", ""})
			continue
		}
		for _, m := range day.Meals {
			veg := ""
			if m.Vegetarian {
				veg = okColor.Sprint("yes")
			}
			data = append(data, []string{
				date,
				m.Category,
				m.Name,
				fmt.Sprintf("%d.%02d", m.PriceCents/100, m.PriceCents%100),
				veg,
			})
		}
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func printOutcomes(w io.Writer, outcomes []prefetch.Outcome) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Path", "Duration", "Result"})

	var data [][]string
	for _, o := range outcomes {
		result := okColor.Sprint("ok")
		if o.Err != nil {
			result = mediumColor.Sprint(o.Err.Error())
			if appErr, ok := apperror.As(o.Err); ok {
				result = severityColor(appErr.Severity()).Sprint(appErr.TechnicalMessage())
			}
		}
		data = append(data, []string{o.Endpoint.Path, o.Duration.Round(time.Millisecond).String(), result})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
