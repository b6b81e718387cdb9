package versioning

import (
	"sort"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/mathutil"
)

// Diff computes the structured delta from one snapshot to another. Rates
// closer than constants.RateEpsilon are considered unchanged.
func Diff(from, to Snapshot) domain.VersionDiff {
	diff := domain.VersionDiff{
		FromVersionID: from.Version.ID,
		ToVersionID:   to.Version.ID,
	}

	before := domain.NewRateTable(from.Rows)
	after := domain.NewRateTable(to.Rows)

	for key, row := range after {
		old, ok := before[key]
		if !ok {
			diff.Added = append(diff.Added, row.Clone())
			continue
		}
		if change, changed := compareRows(old, row); changed {
			diff.Modified = append(diff.Modified, change)
		}
	}
	for key, row := range before {
		if _, ok := after[key]; !ok {
			diff.Removed = append(diff.Removed, row.Clone())
		}
	}

	SortRows(diff.Added)
	SortRows(diff.Removed)
	sort.Slice(diff.Modified, func(i, j int) bool {
		return lessKey(diff.Modified[i].Key, diff.Modified[j].Key)
	})

	diff.Annotations = diffAnnotations(from.Annotations, to.Annotations)
	return diff
}

func compareRows(old, row domain.RateRow) (domain.RowChange, bool) {
	change := domain.RowChange{Key: row.Key}
	for _, name := range domain.AllRateNames {
		b, a := old.Rates.Get(name), row.Rates.Get(name)
		if !mathutil.SameRate(b, a) {
			change.Fields = append(change.Fields, domain.FieldChange{Field: name, Before: b, After: a})
		}
	}
	if b, a := cutoffString(old), cutoffString(row); b != a {
		change.Cutoff = &domain.CutoffChange{Before: b, After: a}
	}
	return change, len(change.Fields) > 0 || change.Cutoff != nil
}

func cutoffString(r domain.RateRow) string {
	if r.Cutoff == nil {
		return ""
	}
	return r.Cutoff.String()
}

func diffAnnotations(from, to []domain.ProjectAnnotation) []domain.AnnotationChange {
	before := map[string]string{}
	for _, a := range from {
		before[a.Project] = a.Comment
	}
	after := map[string]string{}
	for _, a := range to {
		after[a.Project] = a.Comment
	}

	projects := map[string]bool{}
	for p := range before {
		projects[p] = true
	}
	for p := range after {
		projects[p] = true
	}

	var out []domain.AnnotationChange
	for p := range projects {
		if before[p] != after[p] {
			out = append(out, domain.AnnotationChange{Project: p, Before: before[p], After: after[p]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out
}
