package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// VersionStatus is derived from a version's flags.
type VersionStatus string

const (
	StatusDraft    VersionStatus = "draft"
	StatusActive   VersionStatus = "active"
	StatusArchived VersionStatus = "archived"
)

// Version is a snapshot of the rate table. Only drafts may be edited or
// deleted; once activated a version is immutable for good.
type Version struct {
	ID            int64        `json:"id" yaml:"id"`
	Number        int          `json:"number" yaml:"number"`
	Label         string       `json:"label" yaml:"label"`
	Active        bool         `json:"active" yaml:"active"`
	EverActivated bool         `json:"everActivated" yaml:"everActivated"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"createdAt"`
	ChangeLog     *ChangeLog   `json:"changeLog,omitempty" yaml:"changeLog,omitempty"`
	Diff          *VersionDiff `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// Status reports where the version is in its lifecycle.
func (v Version) Status() VersionStatus {
	switch {
	case v.Active:
		return StatusActive
	case v.EverActivated:
		return StatusArchived
	default:
		return StatusDraft
	}
}

// Editable reports whether rows and annotations of the version may change.
func (v Version) Editable() bool {
	return v.Status() == StatusDraft
}

// Clone returns a deep copy of the version.
func (v Version) Clone() Version {
	out := v
	if v.ChangeLog != nil {
		cl := v.ChangeLog.Clone()
		out.ChangeLog = &cl
	}
	if v.Diff != nil {
		d := v.Diff.Clone()
		out.Diff = &d
	}
	return out
}

// ProjectAnnotation is a free-text comment attached to a project within a version.
type ProjectAnnotation struct {
	VersionID int64  `json:"versionId" yaml:"-"`
	Project   string `json:"project" yaml:"project"`
	Comment   string `json:"comment" yaml:"comment"`
}

// RateEdit changes one named rate of one row of a draft.
type RateEdit struct {
	Key   RateKey  `json:"key" yaml:"key"`
	Field RateName `json:"field" yaml:"field"`
	Value float64  `json:"value" yaml:"value"`
}

// ChangeLog records the edits applied to a draft and the notes the editor
// attached to them. It feeds the activation notification.
type ChangeLog struct {
	Edits   []AppliedEdit     `json:"edits,omitempty" yaml:"edits,omitempty"`
	Cutoffs []CutoffEdit      `json:"cutoffs,omitempty" yaml:"cutoffs,omitempty"`
	Notes   map[string]string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// AppliedEdit is an edit that actually modified a stored value.
type AppliedEdit struct {
	Key    RateKey  `json:"key" yaml:"key"`
	Field  RateName `json:"field" yaml:"field"`
	Before float64  `json:"before" yaml:"before"`
	After  float64  `json:"after" yaml:"after"`
}

// Clone returns a deep copy of the change log.
func (c ChangeLog) Clone() ChangeLog {
	out := ChangeLog{}
	if c.Edits != nil {
		out.Edits = append([]AppliedEdit(nil), c.Edits...)
	}
	if c.Cutoffs != nil {
		out.Cutoffs = make([]CutoffEdit, len(c.Cutoffs))
		for i, e := range c.Cutoffs {
			out.Cutoffs[i] = e
			if e.Cutoff != nil {
				d := *e.Cutoff
				out.Cutoffs[i].Cutoff = &d
			}
		}
	}
	if c.Notes != nil {
		out.Notes = make(map[string]string, len(c.Notes))
		for k, v := range c.Notes {
			out.Notes[k] = v
		}
	}
	return out
}

// DraftUpdate is a batch of edits to one draft together with the editor's
// per-project notes.
type DraftUpdate struct {
	Edits   []RateEdit        `json:"edits"`
	Cutoffs []CutoffEdit      `json:"cutoffs,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
}

// CutoffEdit sets or clears the cutoff date of one row of a draft.
type CutoffEdit struct {
	Key    RateKey     `json:"key"`
	Cutoff *civil.Date `json:"cutoff"`
}
