package versioning

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/format"
)

var notificationTemplate = template.Must(template.New("activation").Parse(`<h2>{{.Title}}</h2>
<p>Version #{{.Version.Number}}{{if .Version.Label}} &laquo;{{.Version.Label}}&raquo;{{end}} is now active.</p>
{{- if .First}}
<p>This is the first activated version; {{.RowCount}} rate rows are in effect.</p>
{{- else}}
<p>Previous version: #{{.Previous.Number}}{{if .Previous.Label}} &laquo;{{.Previous.Label}}&raquo;{{end}}.</p>
{{- if .Diff.Empty}}
<p>No rates changed.</p>
{{- end}}
{{- range .Projects}}
<h3>{{.Name}}</h3>
{{- if .Note}}
<p><i>{{.Note}}</i></p>
{{- end}}
<ul>
{{- range .Lines}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
{{- end}}
`))

type notificationProject struct {
	Name  string
	Note  string
	Lines []string
}

type notificationData struct {
	Title    string
	First    bool
	Version  domain.Version
	Previous domain.Version
	RowCount int
	Diff     domain.VersionDiff
	Projects []notificationProject
}

// RenderNotification builds the activation message for the newly active
// version. previous is nil on the first activation; notes are the editor's
// per-project comments from the change log.
func RenderNotification(active domain.Version, previous *domain.Version, diff domain.VersionDiff, rowCount int, notes map[string]string) (*domain.Notification, error) {
	data := notificationData{
		Version:  active,
		RowCount: rowCount,
		Diff:     diff,
	}

	n := &domain.Notification{VersionID: active.ID}
	if previous == nil {
		n.FirstActivation = true
		n.Subject = fmt.Sprintf("Discount version #%d activated", active.Number)
		data.Title = "First discount version activated"
		data.First = true
	} else {
		n.Subject = fmt.Sprintf("Discount changes: version #%d replaces #%d", active.Number, previous.Number)
		data.Title = "Discount rates changed"
		data.Previous = *previous
		data.Projects = groupByProject(diff, notes)
	}

	var buf bytes.Buffer
	if err := notificationTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering activation notification: %w", err)
	}
	n.HTMLBody = buf.String()
	return n, nil
}

func groupByProject(diff domain.VersionDiff, notes map[string]string) []notificationProject {
	byName := map[string]*notificationProject{}
	var order []*notificationProject
	get := func(name string) *notificationProject {
		if p, ok := byName[name]; ok {
			return p
		}
		p := &notificationProject{Name: name, Note: notes[name]}
		byName[name] = p
		order = append(order, p)
		return p
	}

	for _, name := range diff.Projects() {
		get(name)
	}
	for _, r := range diff.Added {
		p := get(r.Key.Project)
		p.Lines = append(p.Lines, fmt.Sprintf("%s, %s: new row", r.Key.Category.Label(), r.Key.Method.Label()))
	}
	for _, r := range diff.Removed {
		p := get(r.Key.Project)
		p.Lines = append(p.Lines, fmt.Sprintf("%s, %s: row removed", r.Key.Category.Label(), r.Key.Method.Label()))
	}
	for _, m := range diff.Modified {
		p := get(m.Key.Project)
		for _, f := range m.Fields {
			p.Lines = append(p.Lines, fmt.Sprintf("%s, %s: %s %s → %s",
				m.Key.Category.Label(), m.Key.Method.Label(), f.Field.Label(),
				format.Rate(f.Before), format.Rate(f.After)))
		}
		if m.Cutoff != nil {
			p.Lines = append(p.Lines, fmt.Sprintf("%s, %s: cutoff %s → %s",
				m.Key.Category.Label(), m.Key.Method.Label(), dash(m.Cutoff.Before), dash(m.Cutoff.After)))
		}
	}
	for _, a := range diff.Annotations {
		p := get(a.Project)
		p.Lines = append(p.Lines, fmt.Sprintf("comment: %q → %q", a.Before, a.After))
	}

	out := make([]notificationProject, len(order))
	for i, p := range order {
		out[i] = *p
	}
	return out
}

func dash(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
