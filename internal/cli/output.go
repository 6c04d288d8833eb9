package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func newTable(headers ...any) *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.Wrap = true
	if len(headers) > 0 {
		for i, h := range headers {
			headers[i] = bold(h)
		}
		tbl.AddRow(headers...)
	}
	return tbl
}

func title(w io.Writer, s string) {
	_, _ = fmt.Fprintln(w, color.New(color.Bold, color.Underline).Sprint(s))
}

func none(w io.Writer) {
	_, _ = fmt.Fprintln(w, faint("  none"))
}

func printTable(w io.Writer, tbl *uitable.Table) {
	_, _ = fmt.Fprintln(w, tbl)
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return shortDate(*t)
}

func check(done bool) string {
	if done {
		return green("[x]")
	}
	return "[ ]"
}

func bar(pct int) string {
	const width = 20
	filled := pct * width / 100
	return strings.Repeat("#", filled) + faint(strings.Repeat(".", width-filled)) + fmt.Sprintf(" %3d%%", pct)
}
