package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/rzbill/subrelay/pkg/types"
)

// ResourceTable renders rows with a styled header.
type ResourceTable struct {
	Headers  []string
	MaxWidth int

	out           io.Writer
	tableRenderer *pterm.TablePrinter
}

// NewResourceTable creates a table that writes to out.
func NewResourceTable(out io.Writer) *ResourceTable {
	table := pterm.DefaultTable.WithHasHeader(true)
	table = table.WithHeaderStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold))

	return &ResourceTable{
		MaxWidth:      60,
		out:           out,
		tableRenderer: table,
	}
}

// Render prints rows, the first of which is the header.
func (t *ResourceTable) Render(rows [][]string) error {
	s, err := t.tableRenderer.WithData(rows).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(t.out, s)
	return err
}

// RenderConfigs renders a table of configurations.
func (t *ResourceTable) RenderConfigs(configs []*types.Configuration) error {
	if len(configs) == 0 {
		fmt.Fprintln(t.out, "No configs found")
		return nil
	}

	if len(t.Headers) == 0 {
		t.Headers = []string{"ID", "NAME", "BACKEND", "SUBSCRIPTIONS", "PROXY TAG", "SAVED"}
	}

	rows := [][]string{t.Headers}
	for _, c := range configs {
		tag := c.ProxyTag
		if !c.HasProxyTag() {
			tag = "-"
		}
		rows = append(rows, []string{
			c.ID,
			c.Name,
			t.truncate(c.BackendURL),
			fmt.Sprintf("%d", len(c.SubscribeURLs)),
			tag,
			formatAge(c.LastSavedTime()),
		})
	}
	return t.Render(rows)
}

func (t *ResourceTable) truncate(s string) string {
	if t.MaxWidth <= 3 || len(s) <= t.MaxWidth {
		return s
	}
	return s[:t.MaxWidth-3] + "..."
}

// formatAge formats a time as a short age like 5m or 3d.
func formatAge(ts time.Time) string {
	if ts.IsZero() {
		return "Unknown"
	}

	d := timeNow().Sub(ts)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%dmo", int(d.Hours()/24/30))
	}
	return fmt.Sprintf("%dy", int(d.Hours()/24/365))
}

var timeNow = time.Now

// joinLines renders a list one item per line for detail views.
func joinLines(items []string, indent string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, "\n"+indent)
}
