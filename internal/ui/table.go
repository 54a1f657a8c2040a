package ui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
	// MaxWidth caps auto-sized columns; 0 means no cap.
	MaxWidth int
}

// NewTable creates a new Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	// Apply styling
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Nothing is focused; keep the first row from looking selected.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string. Columns with a
// zero Width are sized to their widest cell, capped at MaxWidth.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	sized := make([]TableColumn, len(columns))
	copy(sized, columns)
	for i := range sized {
		if sized[i].Width > 0 {
			continue
		}
		w := lipgloss.Width(sized[i].Title)
		for _, row := range rows {
			if i < len(row) {
				w = max(w, lipgloss.Width(row[i]))
			}
		}
		if sized[i].MaxWidth > 0 {
			w = min(w, sized[i].MaxWidth)
		}
		sized[i].Width = w
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := NewTable(sized, tableRows)
	return t.View()
}

// PlanRow is one host of a dry-run plan.
type PlanRow struct {
	Index    int
	Host     string
	Address  string
	Port     int
	Username string
	Auth     string // e.g. "key, password x2"
	Attempts int
	Command  string
}

// RenderPlanTable renders the dry-run plan.
func RenderPlanTable(rows []PlanRow, commandWidth int) string {
	if len(rows) == 0 {
		return "No hosts selected"
	}
	if commandWidth <= 0 {
		commandWidth = 40
	}

	columns := []TableColumn{
		{Title: "#"},
		{Title: "HOST", MaxWidth: 32},
		{Title: "ADDRESS", MaxWidth: 40},
		{Title: "USER", MaxWidth: 16},
		{Title: "AUTH", MaxWidth: 32},
		{Title: "TRIES"},
		{Title: "COMMAND", MaxWidth: commandWidth},
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{
			strconv.Itoa(r.Index + 1),
			r.Host,
			r.Address + ":" + strconv.Itoa(r.Port),
			r.Username,
			r.Auth,
			strconv.Itoa(r.Attempts),
			r.Command,
		}
	}
	return RenderSimpleTable(columns, cells)
}

// ResultRow is one host in the final results table.
type ResultRow struct {
	Host     string
	Status   string
	ExitCode string
	Username string
	Duration string
	Reason   string
}

// RenderResultTable renders per-host results.
func RenderResultTable(rows []ResultRow, reasonWidth int) string {
	if len(rows) == 0 {
		return "No results"
	}
	if reasonWidth <= 0 {
		reasonWidth = 60
	}

	columns := []TableColumn{
		{Title: "HOST", MaxWidth: 32},
		{Title: "STATUS"},
		{Title: "EXIT"},
		{Title: "USER", MaxWidth: 16},
		{Title: "TIME"},
		{Title: "REASON", MaxWidth: reasonWidth},
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.Host, r.Status, r.ExitCode, r.Username, r.Duration, r.Reason}
	}
	return RenderSimpleTable(columns, cells)
}
