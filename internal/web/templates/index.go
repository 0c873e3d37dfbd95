// Package templates renders the HTML pages of the export server.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/seedexport/internal/core"
)

// IndexData is the view model for the manifest page.
type IndexData struct {
	Source string
	Groups []GroupView
}

// GroupView is one group of registered tables.
type GroupView struct {
	Name   string
	Tables []core.TableSpec
}

// NewIndexData groups the registry for display. Ungrouped tables are listed
// under "other".
func NewIndexData(source string, reg *core.Registry) IndexData {
	data := IndexData{Source: source}
	for _, g := range reg.Groups() {
		data.Groups = append(data.Groups, GroupView{Name: g, Tables: reg.ByGroup(g)})
	}
	var ungrouped []core.TableSpec
	for _, t := range reg.All() {
		if t.Group == "" {
			ungrouped = append(ungrouped, t)
		}
	}
	if len(ungrouped) > 0 {
		data.Groups = append(data.Groups, GroupView{Name: "other", Tables: ungrouped})
	}
	return data
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;margin-bottom:1.5rem}
th,td{border:1px solid #d1d5db;padding:.35rem .6rem;text-align:left}
th{background:#f3f4f6}
code{font-size:.9em}
.alert{border:1px solid #fca5a5;background:#fef2f2;padding:1rem}
</style>
</head>
<body>
`

const pageFoot = "</body>\n</html>\n"

// Index renders the manifest page listing every registered table.
func Index(data IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, pageHead, "Seed data export")
		b.WriteString("<h1>Seed data export</h1>\n")
		fmt.Fprintf(&b, "<p>Source: <code>%s</code>. <a href=\"/api/export\">Download full artifact</a></p>\n",
			templ.EscapeString(data.Source))

		for _, g := range data.Groups {
			fmt.Fprintf(&b, "<h2>%s</h2>\n", templ.EscapeString(g.Name))
			b.WriteString("<table>\n<tr><th>Table</th><th>Primary key</th><th>Conflict column</th><th>Excluded</th><th>JSON columns</th><th></th></tr>\n")
			for _, t := range g.Tables {
				fmt.Fprintf(&b, "<tr><td><code>%s</code></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td><a href=\"/api/export/%s\">SQL</a></td></tr>\n",
					templ.EscapeString(t.Name),
					templ.EscapeString(t.PrimaryKey),
					templ.EscapeString(t.ConflictColumn()),
					templ.EscapeString(strings.Join(t.ExcludeColumns, ", ")),
					templ.EscapeString(strings.Join(t.JSONColumns, ", ")),
					templ.EscapeString(t.Name),
				)
			}
			b.WriteString("</table>\n")
		}

		b.WriteString(pageFoot)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorPage renders a user-facing error with its code and suggested action.
func ErrorPage(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, pageHead, "Export error")
		b.WriteString("<div class=\"alert\" role=\"alert\">\n")
		fmt.Fprintf(&b, "<strong>%s</strong>\n", templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", templ.EscapeString(action))
		}
		fmt.Fprintf(&b, "<p><small>Error code: %s</small></p>\n", templ.EscapeString(code))
		b.WriteString("</div>\n")
		b.WriteString(pageFoot)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
