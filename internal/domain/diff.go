package domain

// FieldChange is the before and after value of one named rate.
type FieldChange struct {
	Field  RateName `json:"field" yaml:"field"`
	Before float64  `json:"before" yaml:"before"`
	After  float64  `json:"after" yaml:"after"`
}

// CutoffChange is set when a row's cutoff date changed. Empty strings stand
// for an absent date.
type CutoffChange struct {
	Before string `json:"before" yaml:"before"`
	After  string `json:"after" yaml:"after"`
}

// RowChange describes a row present in both versions with differing values.
type RowChange struct {
	Key    RateKey       `json:"key" yaml:"key"`
	Fields []FieldChange `json:"fields,omitempty" yaml:"fields,omitempty"`
	Cutoff *CutoffChange `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
}

// AnnotationChange describes a project comment that differs between versions.
type AnnotationChange struct {
	Project string `json:"project" yaml:"project"`
	Before  string `json:"before" yaml:"before"`
	After   string `json:"after" yaml:"after"`
}

// VersionDiff is the structured delta between two versions.
type VersionDiff struct {
	FromVersionID int64              `json:"fromVersionId" yaml:"fromVersionId"`
	ToVersionID   int64              `json:"toVersionId" yaml:"toVersionId"`
	Added         []RateRow          `json:"added,omitempty" yaml:"added,omitempty"`
	Removed       []RateRow          `json:"removed,omitempty" yaml:"removed,omitempty"`
	Modified      []RowChange        `json:"modified,omitempty" yaml:"modified,omitempty"`
	Annotations   []AnnotationChange `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Empty reports whether the diff carries no change at all.
func (d VersionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0 && len(d.Annotations) == 0
}

// Projects returns the projects touched by the diff, in first-seen order.
func (d VersionDiff) Projects() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, r := range d.Added {
		add(r.Key.Project)
	}
	for _, r := range d.Removed {
		add(r.Key.Project)
	}
	for _, m := range d.Modified {
		add(m.Key.Project)
	}
	for _, a := range d.Annotations {
		add(a.Project)
	}
	return out
}

// Clone returns a deep copy of the diff.
func (d VersionDiff) Clone() VersionDiff {
	out := d
	out.Added = CloneRows(d.Added)
	out.Removed = CloneRows(d.Removed)
	if d.Modified != nil {
		out.Modified = make([]RowChange, len(d.Modified))
		for i, m := range d.Modified {
			c := m
			c.Fields = append([]FieldChange(nil), m.Fields...)
			if m.Cutoff != nil {
				cc := *m.Cutoff
				c.Cutoff = &cc
			}
			out.Modified[i] = c
		}
	}
	if d.Annotations != nil {
		out.Annotations = append([]AnnotationChange(nil), d.Annotations...)
	}
	return out
}

// CloneRows deep copies a slice of rows.
func CloneRows(rows []RateRow) []RateRow {
	if rows == nil {
		return nil
	}
	out := make([]RateRow, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

